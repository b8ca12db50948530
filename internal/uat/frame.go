package uat

import (
	"errors"
	"fmt"
)

// Data lengths of corrected ADS-B frames
const (
	ShortFrameLen = 18 // basic: HDR + SV
	LongFrameLen  = 34 // long: HDR + SV + MS/AUXSV
)

// FrameKind is the size class of a downlink frame.
type FrameKind int

const (
	FrameShort FrameKind = iota + 1
	FrameLong
)

func (k FrameKind) String() string {
	switch k {
	case FrameShort:
		return "short"
	case FrameLong:
		return "long"
	}
	return fmt.Sprintf("FrameKind(%d)", int(k))
}

var (
	// ErrFrameLength means the frame is neither short nor long.
	ErrFrameLength = errors.New("uat: invalid frame length")
	// ErrFrameType means the payload type field contradicts the frame length.
	ErrFrameType = errors.New("uat: payload type does not match frame length")
)

// PayloadType returns the 5-bit MDB type code from the frame header.
func PayloadType(frame []byte) uint8 {
	if len(frame) == 0 {
		return 0
	}
	return frame[0] >> 3
}

// Classify checks the frame length against the two legal sizes and
// cross-checks the payload type: basic frames carry type 0, long frames
// any other type.
func Classify(frame []byte) (FrameKind, error) {
	switch len(frame) {
	case ShortFrameLen:
		if t := PayloadType(frame); t != 0 {
			return 0, fmt.Errorf("%w: short frame with type %d", ErrFrameType, t)
		}
		return FrameShort, nil
	case LongFrameLen:
		if PayloadType(frame) == 0 {
			return 0, fmt.Errorf("%w: long frame with type 0", ErrFrameType)
		}
		return FrameLong, nil
	}
	return 0, fmt.Errorf("%w: %d bytes", ErrFrameLength, len(frame))
}
