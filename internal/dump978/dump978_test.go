package dump978

import (
	"errors"
	"io"
	"strings"
	"syscall"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Frame
		wantErr bool
	}{
		{
			name: "downlink with metadata",
			line: "-00a1b2c3;rs=2;ss=187;",
			want: Frame{Direction: Downlink, Data: []byte{0x00, 0xa1, 0xb2, 0xc3}, RSErrors: 2, Signal: 187, Line: "-00a1b2c3;rs=2;ss=187;"},
		},
		{
			name: "uplink without metadata",
			line: "+0102;",
			want: Frame{Direction: Uplink, Data: []byte{0x01, 0x02}, RSErrors: -1, Signal: -1, Line: "+0102;"},
		},
		{
			name: "no trailing semicolon",
			line: "-ABCD",
			want: Frame{Direction: Downlink, Data: []byte{0xab, 0xcd}, RSErrors: -1, Signal: -1, Line: "-ABCD"},
		},
		{
			name: "unknown keys ignored",
			line: "-ff;t=12.5;rssi=-3.2;rs=0;",
			want: Frame{Direction: Downlink, Data: []byte{0xff}, RSErrors: 0, Signal: -1, Line: "-ff;t=12.5;rssi=-3.2;rs=0;"},
		},
		{name: "empty", line: "   ", wantErr: true},
		{name: "unknown prefix", line: "*8d4840d6;", wantErr: true},
		{name: "odd hex", line: "-abc;", wantErr: true},
		{name: "not hex", line: "-zz;", wantErr: true},
		{name: "no payload", line: "-;rs=1;", wantErr: true},
		{name: "bad rs", line: "-00;rs=x;", wantErr: true},
		{name: "bad ss", line: "-00;ss=;", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "-0a0b;rs=3;", Format(Downlink, []byte{0x0a, 0x0b}, 3))
	assert.Equal(t, "+ff;", Format(Uplink, []byte{0xff}, -1))

	f, err := ParseLine(Format(Downlink, []byte{1, 2, 3}, 1))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, f.Data)
	assert.Equal(t, 1, f.RSErrors)
}

func TestReaderSkipsNoise(t *testing.T) {
	input := strings.Join([]string{
		"# dump978 capture",
		"",
		"-0011;rs=0;",
		"garbage",
		"-0g;",
		"+2233;",
		"-4455", // final line without newline
	}, "\n")

	rd := NewReader(strings.NewReader(input), testLogger())

	var frames []Frame
	for {
		f, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}

	require.Len(t, frames, 3)
	assert.Equal(t, Downlink, frames[0].Direction)
	assert.Equal(t, []byte{0x00, 0x11}, frames[0].Data)
	assert.Equal(t, Uplink, frames[1].Direction)
	assert.Equal(t, []byte{0x44, 0x55}, frames[2].Data)
	assert.Equal(t, uint64(2), rd.Skipped())
	assert.Equal(t, uint64(7), rd.Lines())

	_, err := rd.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderCRLF(t *testing.T) {
	rd := NewReader(strings.NewReader("-0102;\r\n-0304;\r\n"), testLogger())

	f, err := rd.Read()
	require.NoError(t, err)
	assert.Equal(t, "-0102;", f.Line)

	f, err = rd.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x04}, f.Data)
}

// flakyReader fails with the given errors before delivering its data.
type flakyReader struct {
	errs []error
	data io.Reader
}

func (r *flakyReader) Read(p []byte) (int, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return 0, err
	}
	return r.data.Read(p)
}

func TestReaderRetriesTransientErrors(t *testing.T) {
	src := &flakyReader{
		errs: []error{syscall.EINTR, syscall.EAGAIN},
		data: strings.NewReader("-abcd;\n"),
	}
	rd := NewReader(src, testLogger())

	f, err := rd.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xab, 0xcd}, f.Data)
}

func TestReaderReturnsFatalErrors(t *testing.T) {
	boom := errors.New("device unplugged")
	src := &flakyReader{errs: []error{boom}, data: strings.NewReader("")}
	rd := NewReader(src, testLogger())

	_, err := rd.Read()
	assert.ErrorIs(t, err, boom)
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "downlink", Downlink.String())
	assert.Equal(t, "uplink", Uplink.String())
	assert.Contains(t, Direction('x').String(), "Direction")
}
