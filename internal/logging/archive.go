package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const archivePrefix = "uat_"

// FrameArchive appends accepted frames to a daily text file
// (uat_YYYY-MM-DD.log) and gzips each day's file once the date rolls over.
type FrameArchive struct {
	dir         string
	useUTC      bool
	logger      *logrus.Logger
	now         func() time.Time
	currentFile *os.File
	currentDate string
	mutex       sync.Mutex
	compressing sync.WaitGroup
}

// NewFrameArchive creates dir if needed and opens today's archive file.
func NewFrameArchive(dir string, useUTC bool, logger *logrus.Logger) (*FrameArchive, error) {
	return newFrameArchive(dir, useUTC, logger, time.Now)
}

func newFrameArchive(dir string, useUTC bool, logger *logrus.Logger, now func() time.Time) (*FrameArchive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	a := &FrameArchive{
		dir:    dir,
		useUTC: useUTC,
		logger: logger,
		now:    now,
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()
	if err := a.rotate(a.date()); err != nil {
		return nil, fmt.Errorf("failed to initialize archive file: %w", err)
	}

	return a, nil
}

func (a *FrameArchive) date() string {
	now := a.now()
	if a.useUTC {
		now = now.UTC()
	}
	return now.Format("2006-01-02")
}

func (a *FrameArchive) fileName(date string) string {
	return filepath.Join(a.dir, archivePrefix+date+".log")
}

// WriteLine appends one line, switching to a new file first if the date
// has changed.
func (a *FrameArchive) WriteLine(line string) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.currentFile == nil {
		return fmt.Errorf("archive is closed")
	}

	if date := a.date(); date != a.currentDate {
		a.logger.WithFields(logrus.Fields{
			"old_date": a.currentDate,
			"new_date": date,
		}).Info("Rotating frame archive")

		if err := a.rotate(date); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(a.currentFile, line+"\n"); err != nil {
		return fmt.Errorf("failed to write to archive: %w", err)
	}
	return nil
}

// rotate closes the current file, queues it for compression and opens the
// file for date. Caller holds the mutex.
func (a *FrameArchive) rotate(date string) error {
	if a.currentFile != nil {
		if err := a.currentFile.Close(); err != nil {
			a.logger.WithError(err).Error("Failed to close old archive file")
		}
		old := a.fileName(a.currentDate)
		a.currentFile = nil

		a.compressing.Add(1)
		go func() {
			defer a.compressing.Done()
			a.compress(old)
		}()
	}

	path := a.fileName(date)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create archive file %s: %w", path, err)
	}

	a.currentFile = f
	a.currentDate = date

	a.logger.WithField("file", path).Info("Opened frame archive")
	return nil
}

// compress gzips path to path.gz and removes the original.
func (a *FrameArchive) compress(path string) {
	target := path + ".gz"

	src, err := os.Open(path)
	if err != nil {
		a.logger.WithError(err).WithField("file", path).Error("Failed to open archive file for compression")
		return
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		a.logger.WithError(err).WithField("file", target).Error("Failed to create compressed file")
		return
	}

	gz := gzip.NewWriter(dst)
	gz.Name = filepath.Base(path)
	gz.ModTime = a.now()

	if _, err := io.Copy(gz, src); err != nil {
		a.logger.WithError(err).Error("Failed to compress archive file")
		_ = gz.Close()
		_ = dst.Close()
		return
	}
	if err := gz.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close gzip writer")
		_ = dst.Close()
		return
	}
	if err := dst.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close compressed file")
		return
	}
	if err := os.Remove(path); err != nil {
		a.logger.WithError(err).WithField("file", path).Error("Failed to remove archive file")
		return
	}

	a.logger.WithField("file", target).Debug("Archive file compressed")
}

// CurrentFile returns the path of the file being written.
func (a *FrameArchive) CurrentFile() string {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.currentDate == "" {
		return ""
	}
	return a.fileName(a.currentDate)
}

// Files lists archive files, plain and compressed.
func (a *FrameArchive) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(a.dir, archivePrefix+"*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list archive files: %w", err)
	}
	return files, nil
}

// CleanupOld removes archive files last modified more than maxDays ago and
// returns how many were removed. The current file is kept.
func (a *FrameArchive) CleanupOld(maxDays int) (int, error) {
	if maxDays <= 0 {
		return 0, fmt.Errorf("maxDays must be positive")
	}

	files, err := a.Files()
	if err != nil {
		return 0, err
	}

	cutoff := a.now().AddDate(0, 0, -maxDays)
	current := a.CurrentFile()

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}
		info, err := os.Stat(file)
		if err != nil {
			a.logger.WithError(err).WithField("file", file).Warn("Failed to stat archive file")
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				a.logger.WithError(err).WithField("file", file).Error("Failed to remove old archive file")
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		a.logger.WithField("count", removed).Info("Removed old archive files")
	}
	return removed, nil
}

// Close closes the current file and waits for pending compression.
func (a *FrameArchive) Close() error {
	a.mutex.Lock()
	var err error
	if a.currentFile != nil {
		err = a.currentFile.Close()
		a.currentFile = nil
	}
	a.mutex.Unlock()

	a.compressing.Wait()
	return err
}
