package attlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeDialer hands the device side of every dialed pipe to the test.
type pipeDialer struct {
	devices chan net.Conn
	count   int
}

func newPipeDialer() *pipeDialer {
	return &pipeDialer{devices: make(chan net.Conn, 4)}
}

func (p *pipeDialer) dial() (*Transport, error) {
	host, device := net.Pipe()
	p.count++
	p.devices <- device
	return &Transport{ReadWriteCloser: host, PortName: fmt.Sprintf("pipe%d", p.count)}, nil
}

func nextDevice(t *testing.T, p *pipeDialer) net.Conn {
	t.Helper()
	select {
	case conn := <-p.devices:
		return conn
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for dial")
		return nil
	}
}

func nextFrame(t *testing.T, ch <-chan Frame) Frame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for frame")
		return Frame{}
	}
}

func startLink(t *testing.T, l *Link) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- l.Run(ctx)
	}()
	t.Cleanup(cancel)
	return cancel, errc
}

func TestLinkDispatchesFrames(t *testing.T) {
	dialer := newPipeDialer()
	errs := make(chan Outcome, 4)
	l := NewLink(dialer.dial, WithErrorHandler(func(o Outcome) { errs <- o }))

	telemetry := make(chan Frame, 4)
	others := make(chan Frame, 4)
	l.Subscribe(Telemetry, func(f Frame) { telemetry <- f })
	l.SubscribeAll(func(f Frame) { others <- f })

	cancel, errc := startLink(t, l)
	device := nextDevice(t, dialer)
	defer device.Close()

	_, err := device.Write([]byte{0x01, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0x07, 0x03})
	require.NoError(t, err)

	f := nextFrame(t, telemetry)
	assert.Equal(t, Frame{Type: Telemetry, Triplet: Triplet{X: 4660, Y: 22136, Z: -25924}}, f)
	assert.Equal(t, AttitudeAchieved, nextFrame(t, others).Type)

	select {
	case o := <-errs:
		assert.Equal(t, byte(0x07), o.Header)
		assert.ErrorIs(t, o.Err, ErrInvalidHeader)
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for invalid header")
	}

	latest, ok := l.Latest(Telemetry)
	require.True(t, ok)
	assert.Equal(t, f, latest)
	_, ok = l.Latest(SetAttitude)
	assert.False(t, ok)

	stats := l.Stats()
	assert.Equal(t, uint64(9), stats.BytesRead)
	assert.Equal(t, uint64(1), stats.InvalidHeaders)
	assert.Equal(t, uint64(1), stats.Frames[Telemetry])
	assert.Equal(t, uint64(1), stats.Frames[AttitudeAchieved])
	assert.Equal(t, "pipe1", l.PortName())

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestLinkReconnectDropsPartialFrame(t *testing.T) {
	dialer := newPipeDialer()
	l := NewLink(dialer.dial, WithRetryDelay(0))
	frames := make(chan Frame, 4)
	l.SubscribeAll(func(f Frame) { frames <- f })

	startLink(t, l)

	first := nextDevice(t, dialer)
	_, err := first.Write([]byte{0x01, 0x12, 0x34})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := nextDevice(t, dialer)
	defer second.Close()
	_, err = second.Write([]byte{0x03})
	require.NoError(t, err)

	assert.Equal(t, AttitudeAchieved, nextFrame(t, frames).Type)
	stats := l.Stats()
	assert.Equal(t, uint64(1), stats.Reconnects)
	assert.Equal(t, uint64(4), stats.BytesRead)
	assert.Equal(t, "pipe2", l.PortName())
}

func TestLinkGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	dialErr := errors.New("no device")
	l := NewLink(func() (*Transport, error) {
		calls++
		return nil, dialErr
	}, WithMaxRetries(3), WithRetryDelay(0))

	err := l.Run(context.Background())
	require.ErrorIs(t, err, ErrReconnectFailed)
	assert.Equal(t, 3, calls)
	assert.Empty(t, l.PortName())
}

func TestLinkRunCancelledWhileDialing(t *testing.T) {
	l := NewLink(func() (*Transport, error) {
		return nil, errors.New("no device")
	}, WithRetryDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestLinkFeedPrefersSpecificCallback(t *testing.T) {
	l := NewLink(nil)
	var specific, general []MessageType
	l.Subscribe(SetAttitude, func(f Frame) { specific = append(specific, f.Type) })
	l.SubscribeAll(func(f Frame) { general = append(general, f.Type) })

	l.Feed([]byte{0x02, 0, 1, 0, 2, 0, 3, 0x00, 0x03})

	assert.Equal(t, []MessageType{SetAttitude}, specific)
	assert.Equal(t, []MessageType{Reserved, AttitudeAchieved}, general)
	f, ok := l.Latest(SetAttitude)
	require.True(t, ok)
	assert.Equal(t, Triplet{X: 1, Y: 2, Z: 3}, f.Triplet)
}

// idleReader reports an idle line the way a port with no read timeout does.
type idleReader struct {
	reads atomic.Int64
}

func (r *idleReader) Read(p []byte) (int, error) {
	r.reads.Add(1)
	return 0, nil
}

func (r *idleReader) Write(p []byte) (int, error) { return len(p), nil }
func (r *idleReader) Close() error                { return nil }

func TestLinkIdleReadsDoNotSpin(t *testing.T) {
	idle := &idleReader{}
	l := NewLink(func() (*Transport, error) {
		return &Transport{ReadWriteCloser: idle, PortName: "idle"}, nil
	})
	cancel, errc := startLink(t, l)

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	reads := idle.reads.Load()
	assert.Positive(t, reads)
	assert.Less(t, reads, int64(2*200*time.Millisecond/IdleReadPause))
}

func TestLinkLastDialAttemptDoesNotWait(t *testing.T) {
	l := NewLink(func() (*Transport, error) {
		return nil, errors.New("no device")
	}, WithMaxRetries(1), WithRetryDelay(time.Hour))

	errc := make(chan error, 1)
	go func() { errc <- l.Run(context.Background()) }()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrReconnectFailed)
	case <-time.After(time.Second):
		t.Fatalf("Run waited after the last dial attempt")
	}
}
