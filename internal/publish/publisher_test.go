package publish

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go978/internal/aircraft"
	"go978/internal/uat"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestPublisher(t *testing.T) *Publisher {
	t.Helper()
	p, err := New(t.TempDir(), testLogger())
	require.NoError(t, err)
	return p
}

func readJSON(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc), "file must be well-formed JSON: %s", data)
	return doc
}

func TestNewRejectsLongPath(t *testing.T) {
	dir := "/" + strings.Repeat("d", MaxPathLen)
	p, err := New(dir, testLogger())
	assert.ErrorIs(t, err, ErrPathTooLong)
	assert.Nil(t, p)
}

func TestWriteReceiver(t *testing.T) {
	p := newTestPublisher(t)

	require.NoError(t, p.WriteReceiver(ReceiverInfo{Version: "go978 test", Refresh: 1000, History: 0}))

	doc := readJSON(t, filepath.Join(p.Dir(), ReceiverFile))
	assert.Equal(t, "go978 test", doc["version"])
	assert.Equal(t, float64(1000), doc["refresh"])
	assert.Equal(t, float64(0), doc["history"])

	_, err := os.Stat(filepath.Join(p.Dir(), ReceiverFile+tempSuffix))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteReceiverMissingDir(t *testing.T) {
	p, err := New(filepath.Join(t.TempDir(), "missing"), testLogger())
	require.NoError(t, err)
	assert.Error(t, p.WriteReceiver(ReceiverInfo{Version: "x"}))
}

func TestWriteAircraft(t *testing.T) {
	p := newTestPublisher(t)
	reg := aircraft.New()
	t0 := time.Unix(1700000000, 0)

	full := &uat.Message{
		Address:          0xABCDEF,
		AddressQualifier: uat.AddrADSBICAO,
		AirGround:        uat.AirborneSubsonic,
		Position:         &uat.Position{Lat: 40.0, Lon: -73.0},
		Altitude:         &uat.Altitude{Feet: 1000},
		Track:            &uat.Track{Degrees: 90},
		VertRate:         &uat.VertRate{FPM: -64},
		CallsignType:     uat.CallsignFlight,
		Callsign:         "UAL123",
	}
	full.Speed = new(int)
	*full.Speed = 250
	reg.Merge(full, t0)

	squawk := &uat.Message{
		Address:          0x00BEEF,
		AddressQualifier: uat.AddrTISBOther,
		AirGround:        uat.AirGroundReserved,
		CallsignType:     uat.CallsignSquawk,
		Callsign:         "1200",
	}
	reg.Merge(squawk, t0.Add(3*time.Second))

	now := t0.Add(5 * time.Second)
	require.NoError(t, p.WriteAircraft(reg, now))

	doc := readJSON(t, filepath.Join(p.Dir(), AircraftFile))
	assert.Equal(t, float64(now.Unix()), doc["now"])
	assert.Equal(t, float64(2), doc["messages"])

	list, ok := doc["aircraft"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)

	// non-ICAO addresses sort after every ICAO address
	second := list[1].(map[string]interface{})
	assert.Equal(t, "~00BEEF", second["hex"])
	assert.Equal(t, "1200", second["squawk"])
	assert.NotContains(t, second, "flight")
	assert.NotContains(t, second, "lat")
	assert.NotContains(t, second, "altitude")
	assert.Equal(t, float64(2), second["seen"])
	assert.Equal(t, float64(0), second["rssi"])

	first := list[0].(map[string]interface{})
	assert.Equal(t, "ABCDEF", first["hex"])
	assert.Equal(t, "UAL123", first["flight"])
	assert.Equal(t, 40.0, first["lat"])
	assert.Equal(t, -73.0, first["lon"])
	assert.Equal(t, float64(5), first["seen_pos"])
	assert.Equal(t, float64(1000), first["altitude"])
	assert.Equal(t, float64(-64), first["vert_rate"])
	assert.Equal(t, float64(90), first["track"])
	assert.Equal(t, float64(250), first["speed"])
	assert.Equal(t, float64(1), first["messages"])
	assert.Equal(t, float64(5), first["seen"])
}

func TestEncodeAircraftCoordinatePrecision(t *testing.T) {
	reg := aircraft.New()
	reg.Merge(&uat.Message{
		Address:   0x000001,
		AirGround: uat.AirGroundReserved,
		Position:  &uat.Position{Lat: 12.3456789, Lon: -0.5},
	}, time.Unix(100, 0))

	data, err := EncodeAircraft(reg, time.Unix(100, 0))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lat": 12.345679`)
	assert.Contains(t, string(data), `"lon": -0.500000`)
}

func TestExpiredAircraftLeaveEmptyArray(t *testing.T) {
	p := newTestPublisher(t)
	reg := aircraft.New()
	t0 := time.Unix(1700000000, 0)

	reg.Merge(&uat.Message{Address: 0x123456, AirGround: uat.AirGroundReserved}, t0)

	now := t0.Add(301 * time.Second)
	reg.Expire(now, aircraft.DefaultExpiry)
	require.NoError(t, p.WriteAircraft(reg, now))

	data, err := os.ReadFile(filepath.Join(p.Dir(), AircraftFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"aircraft": []`)

	doc := readJSON(t, filepath.Join(p.Dir(), AircraftFile))
	assert.Empty(t, doc["aircraft"])
	assert.Equal(t, float64(1), doc["messages"])
}

// failingFS wraps the real filesystem and fails selected operations.
type failingFS struct {
	osFS
	failCreate bool
	failRename bool
	failWrite  bool
}

type failingFile struct {
	file
}

func (failingFile) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func (f *failingFS) Create(name string) (file, error) {
	if f.failCreate {
		return nil, errors.New("permission denied")
	}
	fh, err := f.osFS.Create(name)
	if err != nil || !f.failWrite {
		return fh, err
	}
	return failingFile{fh}, nil
}

func (f *failingFS) Rename(oldpath, newpath string) error {
	if f.failRename {
		return errors.New("rename interrupted")
	}
	return f.osFS.Rename(oldpath, newpath)
}

func TestFailedPublishKeepsPreviousFile(t *testing.T) {
	tests := []struct {
		name string
		fs   *failingFS
	}{
		{"rename fails", &failingFS{failRename: true}},
		{"write fails", &failingFS{failWrite: true}},
		{"create fails", &failingFS{failCreate: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPublisher(t)
			reg := aircraft.New()
			t0 := time.Unix(1700000000, 0)

			reg.Merge(&uat.Message{Address: 0x000001, AirGround: uat.AirGroundReserved}, t0)
			require.NoError(t, p.WriteAircraft(reg, t0))
			before, err := os.ReadFile(filepath.Join(p.Dir(), AircraftFile))
			require.NoError(t, err)

			reg.Merge(&uat.Message{Address: 0x000002, AirGround: uat.AirGroundReserved}, t0)
			p.fs = tt.fs
			assert.Error(t, p.WriteAircraft(reg, t0.Add(time.Second)))

			after, err := os.ReadFile(filepath.Join(p.Dir(), AircraftFile))
			require.NoError(t, err)
			assert.Equal(t, before, after)
			readJSON(t, filepath.Join(p.Dir(), AircraftFile))

			_, err = os.Stat(filepath.Join(p.Dir(), AircraftFile+tempSuffix))
			assert.True(t, os.IsNotExist(err), "temporary file must be removed")

			// the next interval succeeds again
			p.fs = osFS{}
			require.NoError(t, p.WriteAircraft(reg, t0.Add(2*time.Second)))
			doc := readJSON(t, filepath.Join(p.Dir(), AircraftFile))
			assert.Len(t, doc["aircraft"], 2)
		})
	}
}
