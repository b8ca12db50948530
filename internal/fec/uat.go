package fec

import "fmt"

// UAT link-layer code parameters. All three UAT codes share one field.
const (
	UATSymbolBits = 8
	UATFieldPoly  = 0x187
	UATFirstRoot  = 120
	UATPrimStep   = 1
)

// Downlink (ADS-B) frame geometry
const (
	ShortFrameDataLen = 18
	ShortFrameLen     = 30
	ShortFrameRoots   = ShortFrameLen - ShortFrameDataLen

	LongFrameDataLen = 34
	LongFrameLen     = 48
	LongFrameRoots   = LongFrameLen - LongFrameDataLen
)

// Uplink (ground station) frame geometry. The six RS blocks are
// interleaved byte by byte on the air.
const (
	UplinkBlocks       = 6
	UplinkBlockDataLen = 72
	UplinkBlockLen     = 92
	UplinkBlockRoots   = UplinkBlockLen - UplinkBlockDataLen
	UplinkFrameDataLen = UplinkBlocks * UplinkBlockDataLen
	UplinkFrameLen     = UplinkBlocks * UplinkBlockLen
)

// UAT bundles the three Reed-Solomon codes used on the UAT link.
type UAT struct {
	short  *Codec
	long   *Codec
	uplink *Codec
}

func uatConfig(blockLen, roots int) Config {
	return Config{
		SymbolBits: UATSymbolBits,
		FieldPoly:  UATFieldPoly,
		FirstRoot:  UATFirstRoot,
		PrimStep:   UATPrimStep,
		Roots:      roots,
		Pad:        (1<<UATSymbolBits - 1) - blockLen,
	}
}

// NewUAT builds the ADS-B short, ADS-B long and uplink codecs.
func NewUAT() (*UAT, error) {
	short, err := New(uatConfig(ShortFrameLen, ShortFrameRoots))
	if err != nil {
		return nil, fmt.Errorf("short frame codec: %w", err)
	}
	long, err := New(uatConfig(LongFrameLen, LongFrameRoots))
	if err != nil {
		return nil, fmt.Errorf("long frame codec: %w", err)
	}
	uplink, err := New(uatConfig(UplinkBlockLen, UplinkBlockRoots))
	if err != nil {
		return nil, fmt.Errorf("uplink codec: %w", err)
	}
	return &UAT{short: short, long: long, uplink: uplink}, nil
}

// CorrectDownlink error-corrects a raw ADS-B block of ShortFrameLen or
// LongFrameLen bytes and returns the data portion (18 or 34 bytes) with the
// number of corrected symbols. raw is not modified.
//
// A long block is first decoded as a long frame; if that fails, or the
// decoded payload type says basic, the leading ShortFrameLen bytes are
// decoded as a short frame.
func (u *UAT) CorrectDownlink(raw []byte) ([]byte, int, error) {
	switch len(raw) {
	case LongFrameLen:
		pkt := append([]byte(nil), raw...)
		n, err := u.long.Decode(pkt, nil)
		if err == nil && n <= LongFrameRoots/2 && pkt[0]>>3 != 0 {
			return pkt[:LongFrameDataLen], n, nil
		}
	case ShortFrameLen:
	default:
		return nil, 0, fmt.Errorf("%w: %d byte downlink block", ErrBlockLength, len(raw))
	}

	// retry as basic frame
	pkt := append([]byte(nil), raw[:ShortFrameLen]...)
	n, err := u.short.Decode(pkt, nil)
	if err != nil {
		return nil, 0, err
	}
	if n > ShortFrameRoots/2 || pkt[0]>>3 != 0 {
		return nil, 0, fmt.Errorf("%w: no valid basic or long frame", ErrUncorrectable)
	}
	return pkt[:ShortFrameDataLen], n, nil
}

// CorrectUplink de-interleaves and corrects a raw UplinkFrameLen byte
// uplink frame, returning the UplinkFrameDataLen data bytes and the total
// number of corrected symbols. Any uncorrectable block fails the frame.
func (u *UAT) CorrectUplink(raw []byte) ([]byte, int, error) {
	if len(raw) != UplinkFrameLen {
		return nil, 0, fmt.Errorf("%w: %d byte uplink frame", ErrBlockLength, len(raw))
	}

	out := make([]byte, UplinkFrameDataLen)
	block := make([]byte, UplinkBlockLen)
	total := 0
	for b := 0; b < UplinkBlocks; b++ {
		for i := range block {
			block[i] = raw[i*UplinkBlocks+b]
		}
		n, err := u.uplink.Decode(block, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("uplink block %d: %w", b, err)
		}
		total += n
		copy(out[b*UplinkBlockDataLen:], block[:UplinkBlockDataLen])
	}
	return out, total, nil
}

// EncodeDownlink appends parity to an 18 or 34 byte ADS-B frame, producing
// the block as it is sent on the air.
func (u *UAT) EncodeDownlink(frame []byte) ([]byte, error) {
	switch len(frame) {
	case ShortFrameDataLen:
		return u.short.EncodeBlock(frame)
	case LongFrameDataLen:
		return u.long.EncodeBlock(frame)
	}
	return nil, fmt.Errorf("%w: %d byte downlink frame", ErrBlockLength, len(frame))
}

// EncodeUplink splits data into six blocks, appends parity to each and
// interleaves the result.
func (u *UAT) EncodeUplink(data []byte) ([]byte, error) {
	if len(data) != UplinkFrameDataLen {
		return nil, fmt.Errorf("%w: %d byte uplink data", ErrBlockLength, len(data))
	}

	raw := make([]byte, UplinkFrameLen)
	for b := 0; b < UplinkBlocks; b++ {
		block, err := u.uplink.EncodeBlock(data[b*UplinkBlockDataLen : (b+1)*UplinkBlockDataLen])
		if err != nil {
			return nil, err
		}
		for i, v := range block {
			raw[i*UplinkBlocks+b] = v
		}
	}
	return raw, nil
}
