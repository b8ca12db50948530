package dump978

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Frame directions, as the leading character of a dump978 line
const (
	Downlink Direction = '-' // ADS-B, aircraft to ground
	Uplink   Direction = '+' // ground station broadcast
)

// ErrMalformed is returned for lines that are not dump978 frames.
var ErrMalformed = errors.New("dump978: malformed frame line")

// Direction of a UAT frame
type Direction byte

func (d Direction) String() string {
	switch d {
	case Downlink:
		return "downlink"
	case Uplink:
		return "uplink"
	}
	return fmt.Sprintf("Direction(%q)", byte(d))
}

// Frame is one line of dump978 output
type Frame struct {
	Direction Direction
	Data      []byte
	RSErrors  int // errors corrected upstream, -1 if not reported
	Signal    int // ss= signal strength, -1 if not reported
	Line      string
}

// ParseLine decodes a line of the form
//
//	-<hex>;rs=N;ss=M;
//
// where the trailing key=value fields are optional and unknown keys are
// ignored.
func ParseLine(line string) (Frame, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Frame{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	f := Frame{
		Direction: Direction(line[0]),
		RSErrors:  -1,
		Signal:    -1,
		Line:      line,
	}
	if f.Direction != Downlink && f.Direction != Uplink {
		return Frame{}, fmt.Errorf("%w: unknown prefix %q", ErrMalformed, line[0])
	}

	fields := strings.Split(line[1:], ";")
	hexStr := fields[0]
	if hexStr == "" {
		return Frame{}, fmt.Errorf("%w: no payload", ErrMalformed)
	}
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	f.Data = data

	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "rs":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Frame{}, fmt.Errorf("%w: rs=%q", ErrMalformed, value)
			}
			f.RSErrors = n
		case "ss":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Frame{}, fmt.Errorf("%w: ss=%q", ErrMalformed, value)
			}
			f.Signal = n
		}
	}

	return f, nil
}

// Format renders a frame back into dump978 line format.
func Format(dir Direction, data []byte, rsErrors int) string {
	var sb strings.Builder
	sb.WriteByte(byte(dir))
	sb.WriteString(hex.EncodeToString(data))
	sb.WriteByte(';')
	if rsErrors >= 0 {
		fmt.Fprintf(&sb, "rs=%d;", rsErrors)
	}
	return sb.String()
}
