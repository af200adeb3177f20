package attlink

/*
 * attlink
 *
 * Host side of the attitude link: a byte-at-a-time frame decoder bound to a
 * serial transport, with per-type subscriptions and automatic reconnect.
 *
 * Features:
 * - Zero allocation frame decoding, one byte at a time
 * - Telemetry, SetAttitude, AttitudeAchieved and Reserved frames
 * - Type-based subscriptions and latest-frame table
 * - USB VID/PID port discovery or explicit device paths
 *
 * License: MIT License
 */

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Link defaults
const (
	ReadBufferSize = 128
	MaxRetries     = 1000
	RetryDelay     = 10 * time.Second
	IdleReadPause  = 10 * time.Millisecond
)

var ErrReconnectFailed = errors.New("attlink: reconnect failed")

// Transport is an open byte link to the device.
type Transport struct {
	io.ReadWriteCloser
	PortName     string
	VendorID     string
	ProductID    string
	SerialNumber string
}

// Dialer opens a fresh transport. It is called for the first connection and
// for every reconnect attempt.
type Dialer func() (*Transport, error)

// Stats counts link activity since the Link was created.
type Stats struct {
	Frames         map[MessageType]uint64
	InvalidHeaders uint64
	BytesRead      uint64
	Reconnects     uint64
}

type Option func(*Link)

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Link) {
		l.logger = logger
	}
}

func WithMaxRetries(n int) Option {
	return func(l *Link) {
		if n > 0 {
			l.maxRetries = n
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(l *Link) {
		if d >= 0 {
			l.retryDelay = d
		}
	}
}

func WithReadBufferSize(n int) Option {
	return func(l *Link) {
		if n > 0 {
			l.bufSize = n
		}
	}
}

// WithErrorHandler registers fn for every Failed outcome.
func WithErrorHandler(fn func(Outcome)) Option {
	return func(l *Link) {
		l.onError = fn
	}
}

// Link drives one Decoder from one transport and dispatches the frames.
type Link struct {
	// Dialer opens the transport.
	dialer Dialer
	// transport is nil until the first successful dial.
	transport *Transport
	closed    bool
	// decoder holds the partial frame of the current connection.
	decoder *Decoder
	// latest keeps the last frame received per type.
	latest map[MessageType]Frame
	// callbacks are called for frames of a specific type.
	callbacks map[MessageType]func(Frame)
	// generalCallback is called for frames without a specific callback.
	generalCallback func(Frame)
	onError         func(Outcome)
	stats           Stats
	events          []Outcome
	// mu guards everything above; callbacks run without it.
	mu sync.Mutex

	logger     zerolog.Logger
	maxRetries int
	retryDelay time.Duration
	bufSize    int
}

// NewLink creates a link that dials through dialer when Run starts.
func NewLink(dialer Dialer, opts ...Option) *Link {
	l := &Link{
		dialer:     dialer,
		decoder:    NewDecoder(),
		latest:     make(map[MessageType]Frame),
		callbacks:  make(map[MessageType]func(Frame)),
		stats:      Stats{Frames: make(map[MessageType]uint64)},
		logger:     zerolog.Nop(),
		maxRetries: MaxRetries,
		retryDelay: RetryDelay,
		bufSize:    ReadBufferSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe registers a callback for frames of type t.
func (l *Link) Subscribe(t MessageType, callback func(Frame)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks[t] = callback
	l.logger.Debug().Stringer("type", t).Msg("subscribed")
}

// SubscribeAll registers a callback for frames whose type has no specific
// callback.
func (l *Link) SubscribeAll(callback func(Frame)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generalCallback = callback
	l.logger.Debug().Msg("subscribed to all types")
}

// Run connects and decodes until ctx is done. It returns nil on
// cancellation and an error when the transport cannot be re-established.
func (l *Link) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, l.closeTransport)
	defer stop()

	if err := l.dial(ctx, false); err != nil {
		return l.exitErr(ctx, err)
	}

	buffer := make([]byte, l.bufSize)
	for {
		l.mu.Lock()
		tr := l.transport
		l.mu.Unlock()

		n, err := tr.Read(buffer)
		if n > 0 {
			l.process(buffer[:n])
		}
		if err == nil {
			// A port without a read timeout reports an idle line as (0, nil).
			if n == 0 && !sleepCtx(ctx, IdleReadPause) {
				return nil
			}
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn().Err(err).Str("port", tr.PortName).Msg("read failed")
		_ = tr.Close()
		if err := l.dial(ctx, true); err != nil {
			return l.exitErr(ctx, err)
		}
	}
}

func (l *Link) exitErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Feed decodes p as if it had been read from the transport.
func (l *Link) Feed(p []byte) {
	l.process(p)
}

type dispatch struct {
	out      Outcome
	callback func(Frame)
}

func (l *Link) process(p []byte) {
	l.mu.Lock()
	l.stats.BytesRead += uint64(len(p))
	l.events = l.events[:0]
	l.decoder.Feed(p, func(out Outcome) {
		l.events = append(l.events, out)
		if out.Status == Complete {
			l.stats.Frames[out.Frame.Type]++
			l.latest[out.Frame.Type] = out.Frame
			return
		}
		l.stats.InvalidHeaders++
	})
	pending := make([]dispatch, 0, len(l.events))
	for _, out := range l.events {
		d := dispatch{out: out}
		if out.Status == Complete {
			if callback, ok := l.callbacks[out.Frame.Type]; ok && callback != nil {
				d.callback = callback
			} else {
				d.callback = l.generalCallback
			}
		}
		pending = append(pending, d)
	}
	onError := l.onError
	l.mu.Unlock()

	for _, d := range pending {
		if d.out.Status == Failed {
			l.logger.Debug().Hex("header", []byte{d.out.Header}).Msg("invalid header")
			if onError != nil {
				onError(d.out)
			}
			continue
		}
		if d.callback != nil {
			d.callback(d.out.Frame)
		}
	}
}

// dial opens a transport, retrying up to maxRetries times. The decoder is
// reset so a frame cut by a dead connection is dropped.
func (l *Link) dial(ctx context.Context, reconnect bool) error {
	if reconnect {
		l.logger.Info().Msg("attempting to reconnect")
	}
	var lastErr error
	for i := 0; i < l.maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		transport, err := l.dialer()
		if err == nil {
			l.mu.Lock()
			if l.closed {
				l.mu.Unlock()
				_ = transport.Close()
				return ctx.Err()
			}
			l.transport = transport
			l.decoder.Reset()
			if reconnect {
				l.stats.Reconnects++
			}
			l.mu.Unlock()
			l.logger.Info().Str("port", transport.PortName).Bool("reconnect", reconnect).Msg("connected")
			return nil
		}
		lastErr = err
		l.logger.Warn().Err(err).Int("attempt", i+1).Int("max", l.maxRetries).Msg("dial failed")
		if i == l.maxRetries-1 {
			break
		}
		if !sleepCtx(ctx, l.retryDelay) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrReconnectFailed, l.maxRetries, lastErr)
}

func (l *Link) closeTransport() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.transport != nil {
		_ = l.transport.Close()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Latest returns the last frame received of type t.
func (l *Link) Latest(t MessageType) (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.latest[t]
	return f, ok
}

// Stats returns a copy of the link counters.
func (l *Link) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Frames = make(map[MessageType]uint64, len(l.stats.Frames))
	for t, n := range l.stats.Frames {
		s.Frames[t] = n
	}
	return s
}

// PortName returns the name of the connected port, or "" before the first
// connection.
func (l *Link) PortName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.transport == nil {
		return ""
	}
	return l.transport.PortName
}
