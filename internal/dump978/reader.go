package dump978

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Reader reads frames from dump978 text output
type Reader struct {
	logger  *logrus.Logger
	r       *bufio.Reader
	pending strings.Builder
	lines   uint64
	skipped uint64
}

// NewReader creates a new dump978 frame reader
func NewReader(r io.Reader, logger *logrus.Logger) *Reader {
	return &Reader{
		logger: logger,
		r:      bufio.NewReaderSize(r, 64*1024),
	}
}

// Read returns the next frame. Blank lines, '#' comments and malformed
// lines are skipped. Interrupted or would-block reads are retried. At end
// of input Read returns io.EOF.
func (rd *Reader) Read() (Frame, error) {
	for {
		line, err := rd.readLine()
		if err != nil {
			return Frame{}, err
		}
		rd.lines++

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		f, err := ParseLine(trimmed)
		if err != nil {
			rd.skipped++
			rd.logger.WithError(err).WithFields(logrus.Fields{
				"line_number": rd.lines,
			}).Debug("Skipping malformed frame line")
			continue
		}

		rd.logger.WithFields(logrus.Fields{
			"direction": f.Direction.String(),
			"length":    len(f.Data),
		}).Debug("Read frame")

		return f, nil
	}
}

// readLine returns one line without its terminator. A final line without
// a newline is returned before io.EOF.
func (rd *Reader) readLine() (string, error) {
	for {
		chunk, err := rd.r.ReadString('\n')
		rd.pending.WriteString(chunk)

		if err == nil {
			line := rd.pending.String()
			rd.pending.Reset()
			return strings.TrimRight(line, "\r\n"), nil
		}
		if isTransient(err) {
			continue
		}
		if errors.Is(err, io.EOF) && rd.pending.Len() > 0 {
			line := rd.pending.String()
			rd.pending.Reset()
			return line, nil
		}
		return "", err
	}
}

func isTransient(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}

// Lines returns the number of lines consumed so far.
func (rd *Reader) Lines() uint64 { return rd.lines }

// Skipped returns the number of malformed lines dropped so far.
func (rd *Reader) Skipped() uint64 { return rd.skipped }
