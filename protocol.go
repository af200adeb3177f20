package attlink

import "fmt"

// Message format:
//
//	header, 1 byte:
//
//	  0x00 Reserved          no payload
//	  0x01 Telemetry         6 byte triplet, device -> host
//	  0x02 SetAttitude       6 byte triplet, host -> device
//	  0x03 AttitudeAchieved  no payload, device -> host after a SetAttitude
//
//	triplet payload, big-endian signed pairs:
//
//	   0                   1
//	   0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
//	  +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	  |  X high bits  |  X low bits   |
//	  +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	  |  Y high bits  |  Y low bits   |
//	  +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	  |  Z high bits  |  Z low bits   |
//	  +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

// MessageType is the header byte of a frame.
type MessageType uint8

const (
	Reserved         MessageType = 0x00
	Telemetry        MessageType = 0x01
	SetAttitude      MessageType = 0x02
	AttitudeAchieved MessageType = 0x03
)

// PayloadSize is the length of a triplet payload on the wire.
const PayloadSize = 6

// Valid reports whether t is a defined message type.
func (t MessageType) Valid() bool {
	return t <= AttitudeAchieved
}

// HasPayload reports whether frames of type t carry a triplet.
func (t MessageType) HasPayload() bool {
	return t == Telemetry || t == SetAttitude
}

func (t MessageType) String() string {
	switch t {
	case Reserved:
		return "reserved"
	case Telemetry:
		return "telemetry"
	case SetAttitude:
		return "set-attitude"
	case AttitudeAchieved:
		return "attitude-achieved"
	default:
		return fmt.Sprintf("invalid(0x%02x)", uint8(t))
	}
}

// Triplet is one 3-axis reading or target.
type Triplet struct {
	X int16
	Y int16
	Z int16
}

func (tr Triplet) String() string {
	return fmt.Sprintf("x: %d, y: %d, z: %d", tr.X, tr.Y, tr.Z)
}

// Frame is one decoded message. Triplet is meaningful only when the type
// carries a payload; use Payload to read it.
type Frame struct {
	Type    MessageType
	Triplet Triplet
}

// Payload returns the triplet and true for Telemetry and SetAttitude frames.
func (f Frame) Payload() (Triplet, bool) {
	if !f.Type.HasPayload() {
		return Triplet{}, false
	}
	return f.Triplet, true
}
