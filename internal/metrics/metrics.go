package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "go978"

// Frame results
const (
	ResultAccepted  = "accepted"
	ResultCorrected = "corrected"
	ResultFailed    = "uncorrectable"
	ResultRejected  = "rejected"
)

// Metrics holds the station's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Frames           *prometheus.CounterVec
	SymbolsCorrected prometheus.Counter
	MessagesMerged   prometheus.Counter
	AircraftTracked  prometheus.Gauge
	AircraftExpired  prometheus.Counter
	Publishes        *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames read from the input, by direction and result.",
		}, []string{"direction", "result"}),
		SymbolsCorrected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fec_symbols_corrected_total",
			Help:      "Symbols repaired by the Reed-Solomon decoder.",
		}),
		MessagesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_merged_total",
			Help:      "Decoded messages merged into the aircraft registry.",
		}),
		AircraftTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aircraft_tracked",
			Help:      "Aircraft currently in the registry.",
		}),
		AircraftExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aircraft_expired_total",
			Help:      "Aircraft removed after going silent.",
		}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "aircraft.json publish attempts, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.Frames,
		m.SymbolsCorrected,
		m.MessagesMerged,
		m.AircraftTracked,
		m.AircraftExpired,
		m.Publishes,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Frame records one input frame.
func (m *Metrics) Frame(direction, result string, corrected int) {
	m.Frames.WithLabelValues(direction, result).Inc()
	if corrected > 0 {
		m.SymbolsCorrected.Add(float64(corrected))
	}
}

// Publish records one aircraft.json publish attempt.
func (m *Metrics) Publish(err error) {
	if err != nil {
		m.Publishes.WithLabelValues("error").Inc()
		return
	}
	m.Publishes.WithLabelValues("ok").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("Serving metrics")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
