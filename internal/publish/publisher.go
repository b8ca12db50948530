package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"go978/internal/aircraft"
)

// File names inside the output directory
const (
	ReceiverFile = "receiver.json"
	AircraftFile = "aircraft.json"
	tempSuffix   = ".new"
)

// MaxPathLen is the longest path the publisher will write to.
const MaxPathLen = 4096

// ErrPathTooLong is returned by New when an output path would exceed
// MaxPathLen.
var ErrPathTooLong = errors.New("publish: path too long")

// ReceiverInfo is the static receiver metadata.
type ReceiverInfo struct {
	Version string
	Refresh int // milliseconds between aircraft.json updates
	History int // number of history files kept
}

type file interface {
	io.Writer
	Sync() error
	Close() error
}

// fileSystem is the set of file operations the atomic writer needs.
type fileSystem interface {
	Create(name string) (file, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

type osFS struct{}

func (osFS) Create(name string) (file, error) {
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (osFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (osFS) Remove(name string) error { return os.Remove(name) }

// Publisher writes receiver.json and aircraft.json into one directory,
// replacing each file atomically.
type Publisher struct {
	logger       *logrus.Logger
	fs           fileSystem
	dir          string
	receiverPath string
	aircraftPath string
}

// New creates a publisher for dir. It checks path lengths but does not
// touch the filesystem.
func New(dir string, logger *logrus.Logger) (*Publisher, error) {
	p := &Publisher{
		logger:       logger,
		fs:           osFS{},
		dir:          dir,
		receiverPath: filepath.Join(dir, ReceiverFile),
		aircraftPath: filepath.Join(dir, AircraftFile),
	}
	for _, path := range []string{p.receiverPath, p.aircraftPath} {
		if len(path+tempSuffix) >= MaxPathLen {
			return nil, fmt.Errorf("%w: %s", ErrPathTooLong, path)
		}
	}
	return p, nil
}

// Dir returns the output directory.
func (p *Publisher) Dir() string { return p.dir }

type receiverJSON struct {
	Version string `json:"version"`
	Refresh int    `json:"refresh"`
	History int    `json:"history"`
}

// WriteReceiver writes receiver.json.
func (p *Publisher) WriteReceiver(info ReceiverInfo) error {
	data, err := json.MarshalIndent(receiverJSON{
		Version: info.Version,
		Refresh: info.Refresh,
		History: info.History,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode receiver info: %w", err)
	}
	if err := p.writeAtomic(p.receiverPath, append(data, '\n')); err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"path":    p.receiverPath,
		"version": info.Version,
	}).Debug("Wrote receiver info")
	return nil
}

type aircraftFileJSON struct {
	Now      int64          `json:"now"`
	Messages uint64         `json:"messages"`
	Aircraft []aircraftJSON `json:"aircraft"`
}

type aircraftJSON struct {
	Hex      string      `json:"hex"`
	Squawk   string      `json:"squawk,omitempty"`
	Flight   string      `json:"flight,omitempty"`
	Lat      json.Number `json:"lat,omitempty"`
	Lon      json.Number `json:"lon,omitempty"`
	SeenPos  *int64      `json:"seen_pos,omitempty"`
	Altitude *int        `json:"altitude,omitempty"`
	VertRate *int        `json:"vert_rate,omitempty"`
	Track    *int        `json:"track,omitempty"`
	Speed    *int        `json:"speed,omitempty"`
	Messages uint64      `json:"messages"`
	Seen     int64       `json:"seen"`
	RSSI     int         `json:"rssi"`
}

// secondsSince is whole seconds from then to now, never negative.
func secondsSince(now, then time.Time) int64 {
	d := now.Unix() - then.Unix()
	if d < 0 {
		return 0
	}
	return d
}

func coord(v float64) json.Number {
	return json.Number(strconv.FormatFloat(v, 'f', 6, 64))
}

func validPtr(v aircraft.Valid[int]) *int {
	if !v.OK {
		return nil
	}
	x := v.Value
	return &x
}

func renderAircraft(a *aircraft.Aircraft, now time.Time) aircraftJSON {
	out := aircraftJSON{
		Hex:      a.Hex(),
		Squawk:   a.Squawk,
		Flight:   a.Callsign,
		Altitude: validPtr(a.Altitude),
		VertRate: validPtr(a.VertRate),
		Track:    validPtr(a.Track),
		Speed:    validPtr(a.Speed),
		Messages: a.Messages,
		Seen:     secondsSince(now, a.LastSeen),
	}
	if a.Position.OK {
		out.Lat = coord(a.Position.Value.Lat)
		out.Lon = coord(a.Position.Value.Lon)
		seenPos := secondsSince(now, a.LastSeenPos)
		out.SeenPos = &seenPos
	}
	return out
}

// EncodeAircraft renders the registry as aircraft.json content.
func EncodeAircraft(reg *aircraft.Registry, now time.Time) ([]byte, error) {
	snap := reg.Snapshot()
	doc := aircraftFileJSON{
		Now:      now.Unix(),
		Messages: reg.Messages(),
		Aircraft: make([]aircraftJSON, 0, len(snap)),
	}
	for _, a := range snap {
		doc.Aircraft = append(doc.Aircraft, renderAircraft(a, now))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode aircraft: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteAircraft writes the current registry contents to aircraft.json.
// On failure the previously published file is left in place.
func (p *Publisher) WriteAircraft(reg *aircraft.Registry, now time.Time) error {
	data, err := EncodeAircraft(reg, now)
	if err != nil {
		return err
	}
	if err := p.writeAtomic(p.aircraftPath, data); err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"aircraft": reg.Len(),
		"messages": reg.Messages(),
		"bytes":    len(data),
	}).Debug("Published aircraft snapshot")
	return nil
}

// writeAtomic writes data to a sibling temporary file, syncs it and renames
// it over path. The temporary file is removed on any failure.
func (p *Publisher) writeAtomic(path string, data []byte) (err error) {
	tmp := path + tempSuffix

	f, err := p.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = p.fs.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err = p.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}
