package attlink

import (
	"encoding/binary"
	"errors"
)

var ErrShortPayload = errors.New("attlink: payload shorter than 6 bytes")

// DecodeTriplet decodes a payload in wire order. Every input is valid.
func DecodeTriplet(buf [PayloadSize]byte) Triplet {
	return Triplet{
		X: int16(binary.BigEndian.Uint16(buf[0:2])),
		Y: int16(binary.BigEndian.Uint16(buf[2:4])),
		Z: int16(binary.BigEndian.Uint16(buf[4:6])),
	}
}

// ParseTriplet decodes the first 6 bytes of b.
func ParseTriplet(b []byte) (Triplet, error) {
	if len(b) < PayloadSize {
		return Triplet{}, ErrShortPayload
	}
	var buf [PayloadSize]byte
	copy(buf[:], b)
	return DecodeTriplet(buf), nil
}
