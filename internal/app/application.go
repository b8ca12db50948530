package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"go978/internal/aircraft"
	"go978/internal/dump978"
	"go978/internal/fec"
	"go978/internal/logging"
	"go978/internal/metrics"
	"go978/internal/publish"
	"go978/internal/uat"
)

const (
	frameWait      = 500 * time.Millisecond
	frameQueueSize = 256
	statsInterval  = 30 * time.Second
)

// readResult carries one frame, or the error that ended the input, from
// the reader goroutine to the control loop.
type readResult struct {
	frame dump978.Frame
	err   error
}

// statistics are owned by the control loop
type statistics struct {
	downlink      uint64
	uplink        uint64
	corrected     uint64
	uncorrectable uint64
	rejected      uint64
	expired       uint64
	publishErrors uint64
}

// Application represents the main application
type Application struct {
	config    Config
	logger    *logrus.Logger
	logCloser io.Closer
	now       func() time.Time
	input     io.Reader
	inputFile *os.File

	codec     *fec.UAT
	registry  *aircraft.Registry
	publisher *publish.Publisher
	archive   *logging.FrameArchive
	metrics   *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats       statistics
	started     time.Time
	nextPublish time.Time
	nextStats   time.Time
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	logger, closer := logging.Setup(logging.Options{
		File:       config.Log.File,
		MaxSizeMB:  config.Log.MaxSizeMB,
		MaxBackups: config.Log.MaxBackups,
		MaxAgeDays: config.Log.MaxAgeDays,
		Compress:   config.Log.Compress,
		Verbose:    config.Log.Verbose,
	})

	if config.Receiver.Version == "" {
		config.Receiver.Version = receiverVersion()
	}

	return &Application{
		config:    config,
		logger:    logger,
		logCloser: closer,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start runs the application until the input ends, a fatal read error
// occurs or the process is signalled.
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
		"output_dir": app.config.OutputDir,
	}).Info("Starting UAT decoder")

	defer app.shutdown()

	if err := app.initializeComponents(); err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	if err := app.publisher.WriteReceiver(publish.ReceiverInfo{
		Version: app.config.Receiver.Version,
		Refresh: app.config.Receiver.Refresh,
		History: app.config.Receiver.History,
	}); err != nil {
		return fmt.Errorf("failed to write receiver info: %w", err)
	}

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		select {
		case sig := <-sigChan:
			app.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
			app.cancel()
		case <-app.ctx.Done():
		}
	}()

	if app.config.MetricsAddr != "" {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.metrics.Serve(app.ctx, app.config.MetricsAddr, app.logger); err != nil {
				app.logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	return app.run()
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	var err error

	if err := app.config.Validate(); err != nil {
		return err
	}

	app.codec, err = fec.NewUAT()
	if err != nil {
		return fmt.Errorf("failed to initialize FEC codec: %w", err)
	}

	app.publisher, err = publish.New(app.config.OutputDir, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}

	app.registry = aircraft.New()
	app.metrics = metrics.New()

	if app.config.ArchiveDir != "" {
		app.archive, err = logging.NewFrameArchive(app.config.ArchiveDir, app.config.ArchiveUTC, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize frame archive: %w", err)
		}
		if app.config.ArchiveMaxAgeDays > 0 {
			if _, err := app.archive.CleanupOld(app.config.ArchiveMaxAgeDays); err != nil {
				app.logger.WithError(err).Warn("Failed to clean up frame archive")
			}
		}
	}

	if app.input == nil {
		if app.config.Input == "" || app.config.Input == "-" {
			app.input = os.Stdin
		} else {
			app.inputFile, err = os.Open(app.config.Input)
			if err != nil {
				return fmt.Errorf("failed to open input: %w", err)
			}
			app.input = app.inputFile
		}
	}

	return nil
}

// readFrames parses input lines and forwards frames until the input ends
// or the context is cancelled. The channel is closed on return.
func (app *Application) readFrames(reader *dump978.Reader, frames chan<- readResult) {
	defer close(frames)

	for {
		frame, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				app.logger.WithFields(logrus.Fields{
					"lines":   reader.Lines(),
					"skipped": reader.Skipped(),
				}).Info("End of input")
				return
			}
			select {
			case frames <- readResult{err: err}:
			case <-app.ctx.Done():
			}
			return
		}

		select {
		case frames <- readResult{frame: frame}:
		case <-app.ctx.Done():
			return
		}
	}
}

// run is the control loop. It owns the registry, codec and publisher.
func (app *Application) run() error {
	frames := make(chan readResult, frameQueueSize)
	reader := dump978.NewReader(app.input, app.logger)

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.readFrames(reader, frames)
	}()

	app.started = app.now()
	app.nextPublish = app.started
	app.nextStats = app.started.Add(statsInterval)

	app.logger.WithFields(logrus.Fields{
		"interval": app.config.PublishInterval,
		"expire":   app.config.ExpireAfter,
	}).Info("Processing frames")

	var readErr error
	done := false
	timer := time.NewTimer(frameWait)
	defer timer.Stop()

	for !done {
		var pending []readResult

		select {
		case <-app.ctx.Done():
			done = true
		case r, ok := <-frames:
			if !ok {
				done = true
			} else {
				pending = append(pending, r)
			}
		case <-timer.C:
		}

		now := app.now()

	drain:
		for !done {
			select {
			case r, ok := <-frames:
				if !ok {
					done = true
					break drain
				}
				pending = append(pending, r)
			default:
				break drain
			}
		}

		for _, r := range pending {
			if r.err != nil {
				readErr = r.err
				done = true
				continue
			}
			app.handleFrame(r.frame, now)
		}

		app.periodic(now)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(frameWait)
	}

	app.publish(app.now())
	app.reportStatistics(app.now())

	if readErr != nil {
		app.logger.WithError(readErr).Error("Input read failed")
		return fmt.Errorf("failed to read input: %w", readErr)
	}
	return nil
}

// handleFrame processes one input frame.
func (app *Application) handleFrame(frame dump978.Frame, now time.Time) {
	switch frame.Direction {
	case dump978.Downlink:
		app.stats.downlink++
		app.handleDownlink(frame, now)
	case dump978.Uplink:
		app.stats.uplink++
		app.handleUplink(frame)
	}
}

func (app *Application) handleDownlink(frame dump978.Frame, now time.Time) {
	direction := dump978.Downlink.String()
	data := frame.Data
	corrected := 0
	result := metrics.ResultAccepted

	switch len(data) {
	case fec.ShortFrameLen, fec.LongFrameLen:
		fixed, n, err := app.codec.CorrectDownlink(data)
		if err != nil {
			app.stats.uncorrectable++
			app.metrics.Frame(direction, metrics.ResultFailed, 0)
			app.logger.WithError(err).WithField("length", len(data)).Debug("Dropping uncorrectable downlink frame")
			return
		}
		data, corrected = fixed, n
		if n > 0 {
			result = metrics.ResultCorrected
			app.stats.corrected++
		}
	}

	msg, err := uat.DecodeADSB(data)
	if err != nil {
		app.stats.rejected++
		app.metrics.Frame(direction, metrics.ResultRejected, 0)
		app.logger.WithError(err).WithField("length", len(data)).Debug("Dropping downlink frame")
		return
	}

	a := app.registry.Merge(msg, now)
	app.metrics.Frame(direction, result, corrected)
	app.metrics.MessagesMerged.Inc()

	if app.logger.IsLevelEnabled(logrus.DebugLevel) {
		app.logger.WithFields(logrus.Fields{
			"address":   a.Hex(),
			"type":      msg.Type,
			"qualifier": msg.AddressQualifier.String(),
			"corrected": corrected,
		}).Debug("Merged downlink message")
	}

	if app.archive != nil {
		rs := frame.RSErrors
		if len(data) != len(frame.Data) {
			rs = corrected
		}
		if err := app.archive.WriteLine(dump978.Format(dump978.Downlink, data, rs)); err != nil {
			app.logger.WithError(err).Warn("Failed to archive frame")
		}
	}
}

// handleUplink verifies uplink frames. Their payload is not decoded.
func (app *Application) handleUplink(frame dump978.Frame) {
	direction := dump978.Uplink.String()

	switch len(frame.Data) {
	case fec.UplinkFrameLen:
		_, n, err := app.codec.CorrectUplink(frame.Data)
		if err != nil {
			app.stats.uncorrectable++
			app.metrics.Frame(direction, metrics.ResultFailed, 0)
			app.logger.WithError(err).Debug("Dropping uncorrectable uplink frame")
			return
		}
		if n > 0 {
			app.stats.corrected++
			app.metrics.Frame(direction, metrics.ResultCorrected, n)
		} else {
			app.metrics.Frame(direction, metrics.ResultAccepted, 0)
		}
	case fec.UplinkFrameDataLen:
		app.metrics.Frame(direction, metrics.ResultAccepted, 0)
	default:
		app.stats.rejected++
		app.metrics.Frame(direction, metrics.ResultRejected, 0)
		app.logger.WithField("length", len(frame.Data)).Debug("Dropping uplink frame of unexpected length")
	}
}

// periodic runs the once-per-interval work: expiry, publishing and the
// statistics log line.
func (app *Application) periodic(now time.Time) {
	if !now.Before(app.nextPublish) {
		app.publish(now)
		app.nextPublish = now.Add(app.config.PublishInterval)
	}

	if !now.Before(app.nextStats) {
		app.reportStatistics(now)
		app.nextStats = now.Add(statsInterval)
	}
}

// publish expires silent aircraft and writes aircraft.json. A failed write
// leaves the previous snapshot in place and is retried next interval.
func (app *Application) publish(now time.Time) {
	if removed := app.registry.Expire(now, app.config.ExpireAfter); removed > 0 {
		app.stats.expired += uint64(removed)
		app.metrics.AircraftExpired.Add(float64(removed))
		app.logger.WithField("count", removed).Debug("Expired aircraft")
	}
	app.metrics.AircraftTracked.Set(float64(app.registry.Len()))

	err := app.publisher.WriteAircraft(app.registry, now)
	app.metrics.Publish(err)
	if err != nil {
		app.stats.publishErrors++
		app.logger.WithError(err).Error("Failed to publish aircraft snapshot")
	}
}

// reportStatistics logs processing statistics
func (app *Application) reportStatistics(now time.Time) {
	app.logger.WithFields(logrus.Fields{
		"uptime":         strings.TrimSpace(humanize.RelTime(app.started, now, "", "")),
		"downlink":       humanize.Comma(int64(app.stats.downlink)),
		"uplink":         humanize.Comma(int64(app.stats.uplink)),
		"corrected":      humanize.Comma(int64(app.stats.corrected)),
		"uncorrectable":  humanize.Comma(int64(app.stats.uncorrectable)),
		"rejected":       humanize.Comma(int64(app.stats.rejected)),
		"messages":       humanize.Comma(int64(app.registry.Messages())),
		"aircraft":       app.registry.Len(),
		"expired":        app.stats.expired,
		"publish_errors": app.stats.publishErrors,
	}).Info("UAT processing statistics")
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() {
	app.logger.Info("Shutting down application")
	app.cancel()

	// unblocks a reader waiting on the input file
	if app.inputFile != nil {
		app.inputFile.Close()
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Debug("All goroutines finished")
	case <-time.After(5 * time.Second):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	if app.archive != nil {
		if err := app.archive.Close(); err != nil {
			app.logger.WithError(err).Warn("Failed to close frame archive")
		}
	}

	app.logger.Info("Shutdown completed")
	if app.logCloser != nil {
		app.logCloser.Close()
	}
}
