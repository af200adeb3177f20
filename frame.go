package attlink

import "errors"

var ErrInvalidHeader = errors.New("attlink: invalid header byte")

type FramingState int

const (
	Idle FramingState = iota
	Accumulating
)

// Status tags an Outcome.
type Status int

const (
	Continue Status = iota
	Complete
	Failed
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of pushing one byte.
//
// Frame is set when Status is Complete. Err and Header (the rejected byte)
// are set when Status is Failed.
type Outcome struct {
	Status Status
	Frame  Frame
	Header byte
	Err    error
}

// Decoder rebuilds frames from a stream handed to it one byte at a time.
// It is not safe for concurrent use; give each stream its own Decoder.
type Decoder struct {
	state   FramingState
	latched MessageType
	payload [PayloadSize]byte
	tail    int
}

func NewDecoder() *Decoder {
	return &Decoder{state: Idle}
}

// Push consumes one byte. It never blocks and never allocates.
func (d *Decoder) Push(b byte) Outcome {
	if d.state == Accumulating {
		d.payload[d.tail] = b
		d.tail++
		if d.tail < PayloadSize {
			return Outcome{Status: Continue}
		}
		f := Frame{Type: d.latched, Triplet: DecodeTriplet(d.payload)}
		d.Reset()
		return Outcome{Status: Complete, Frame: f}
	}

	switch t := MessageType(b); t {
	case Reserved, AttitudeAchieved:
		return Outcome{Status: Complete, Frame: Frame{Type: t}}
	case Telemetry, SetAttitude:
		d.latched = t
		d.tail = 0
		d.state = Accumulating
		return Outcome{Status: Continue}
	default:
		d.Reset()
		return Outcome{Status: Failed, Header: b, Err: ErrInvalidHeader}
	}
}

// Feed pushes every byte of p and calls fn for each Complete or Failed
// outcome, in stream order.
func (d *Decoder) Feed(p []byte, fn func(Outcome)) {
	for _, b := range p {
		out := d.Push(b)
		if out.Status != Continue && fn != nil {
			fn(out)
		}
	}
}

// Reset drops any partial frame and waits for a header byte.
func (d *Decoder) Reset() {
	d.state = Idle
	d.latched = Reserved
	d.tail = 0
}

// Pending reports the latched type and the payload bytes received so far
// while a frame is in progress.
func (d *Decoder) Pending() (MessageType, int, bool) {
	if d.state != Accumulating {
		return Reserved, 0, false
	}
	return d.latched, d.tail, true
}
