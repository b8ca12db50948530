package fec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(n int, mdbType byte) []byte {
	frame := make([]byte, n)
	for i := range frame {
		frame[i] = byte(i*37 + 11)
	}
	frame[0] = mdbType<<3 | 0x02
	return frame
}

func TestUATGeometry(t *testing.T) {
	u, err := NewUAT()
	require.NoError(t, err)

	assert.Equal(t, 225, u.short.Pad())
	assert.Equal(t, 207, u.long.Pad())
	assert.Equal(t, 163, u.uplink.Pad())
	assert.Equal(t, ShortFrameDataLen, u.short.DataLen())
	assert.Equal(t, LongFrameDataLen, u.long.DataLen())
	assert.Equal(t, UplinkBlockDataLen, u.uplink.DataLen())
	assert.Equal(t, 432, UplinkFrameDataLen)
	assert.Equal(t, 552, UplinkFrameLen)
}

func TestCorrectDownlink(t *testing.T) {
	u, err := NewUAT()
	require.NoError(t, err)

	tests := []struct {
		name      string
		frame     []byte
		positions []int
	}{
		{"clean long", testFrame(LongFrameDataLen, 1), nil},
		{"long with seven errors", testFrame(LongFrameDataLen, 1), []int{1, 4, 9, 17, 25, 36, 47}},
		{"clean short", testFrame(ShortFrameDataLen, 0), nil},
		{"short with six errors", testFrame(ShortFrameDataLen, 0), []int{0, 3, 8, 15, 22, 29}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := u.EncodeDownlink(tt.frame)
			require.NoError(t, err)
			for _, pos := range tt.positions {
				raw[pos] ^= 0xc3
			}
			sent := append([]byte(nil), raw...)

			got, n, err := u.CorrectDownlink(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.frame, got)
			assert.Equal(t, len(tt.positions), n)
			assert.Equal(t, sent, raw, "raw block must not be modified")
		})
	}
}

func TestCorrectDownlinkShortInLongBuffer(t *testing.T) {
	u, err := NewUAT()
	require.NoError(t, err)

	frame := testFrame(ShortFrameDataLen, 0)
	block, err := u.EncodeDownlink(frame)
	require.NoError(t, err)

	// A demodulator that cannot tell the length hands over a long buffer.
	raw := make([]byte, LongFrameLen)
	copy(raw, block)
	raw[2] ^= 0x10

	got, n, err := u.CorrectDownlink(raw)
	require.NoError(t, err)
	assert.Equal(t, frame, got)
	assert.Equal(t, 1, n)
}

func TestCorrectDownlinkRejects(t *testing.T) {
	u, err := NewUAT()
	require.NoError(t, err)

	t.Run("long codeword with basic type", func(t *testing.T) {
		raw, err := u.long.EncodeBlock(testFrame(LongFrameDataLen, 0))
		require.NoError(t, err)
		_, _, err = u.CorrectDownlink(raw)
		assert.ErrorIs(t, err, ErrUncorrectable)
	})

	t.Run("short codeword with long type", func(t *testing.T) {
		raw, err := u.short.EncodeBlock(testFrame(ShortFrameDataLen, 1))
		require.NoError(t, err)
		_, _, err = u.CorrectDownlink(raw)
		assert.ErrorIs(t, err, ErrUncorrectable)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, _, err := u.CorrectDownlink(make([]byte, 40))
		assert.ErrorIs(t, err, ErrBlockLength)
	})

	t.Run("wrong frame length to encode", func(t *testing.T) {
		_, err := u.EncodeDownlink(make([]byte, 20))
		assert.ErrorIs(t, err, ErrBlockLength)
	})
}

func TestCorrectUplink(t *testing.T) {
	u, err := NewUAT()
	require.NoError(t, err)

	data := make([]byte, UplinkFrameDataLen)
	for i := range data {
		data[i] = byte(i * 13)
	}
	raw, err := u.EncodeUplink(data)
	require.NoError(t, err)
	require.Len(t, raw, UplinkFrameLen)

	// ten errors in every block: block b owns raw[i*6+b]
	for b := 0; b < UplinkBlocks; b++ {
		for i := 0; i < 10; i++ {
			raw[(i*9+b)*UplinkBlocks+b] ^= 0xa5
		}
	}

	got, n, err := u.CorrectUplink(raw)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, 60, n)
}

func TestCorrectUplinkFailsOnBadBlock(t *testing.T) {
	u, err := NewUAT()
	require.NoError(t, err)

	raw, err := u.EncodeUplink(make([]byte, UplinkFrameDataLen))
	require.NoError(t, err)
	// wreck block 3 far beyond its ten-symbol bound
	for i := 0; i < UplinkBlockLen; i++ {
		raw[i*UplinkBlocks+3] = byte(i + 1)
	}

	_, _, err = u.CorrectUplink(raw)
	assert.Error(t, err)

	_, _, err = u.CorrectUplink(raw[:100])
	assert.ErrorIs(t, err, ErrBlockLength)
}
