package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger
type Options struct {
	File       string // optional log file, rotated by size
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Verbose    bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup builds the process logger. Output goes to stderr and, when
// opts.File is set, also to a size-rotated log file. The returned closer
// releases the log file.
func Setup(opts Options) (*logrus.Logger, io.Closer) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if opts.File == "" {
		logger.SetOutput(os.Stderr)
		return logger, nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxAge:     opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return logger, rotator
}
