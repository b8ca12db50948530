package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameCounters(t *testing.T) {
	m := New()

	m.Frame("downlink", ResultCorrected, 3)
	m.Frame("downlink", ResultCorrected, 2)
	m.Frame("downlink", ResultFailed, 0)
	m.Frame("uplink", ResultAccepted, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Frames.WithLabelValues("downlink", ResultCorrected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("downlink", ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("uplink", ResultAccepted)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.SymbolsCorrected))
}

func TestPublishCounter(t *testing.T) {
	m := New()

	m.Publish(nil)
	m.Publish(nil)
	m.Publish(errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Publishes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Publishes.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.AircraftTracked.Set(4)
	m.MessagesMerged.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go978_aircraft_tracked 4")
	assert.Contains(t, string(body), "go978_messages_merged_total 1")
}
