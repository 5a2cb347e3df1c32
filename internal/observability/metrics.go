// Package observability exposes Prometheus metrics for the dashboard.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector bundles Prometheus metrics for the dashboard and provides helpers
// to wire them into HTTP handlers and the dataset source.
type Collector struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec

	LoginAttempts *prometheus.CounterVec
	Predictions   *prometheus.CounterVec
	Exports       *prometheus.CounterVec

	DatasetRows    prometheus.Gauge
	DatasetReloads *prometheus.CounterVec
	ModelAvailable prometheus.Gauge
	SnapshotBuilds prometheus.Histogram
}

// NewCollector registers dashboard metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentiq_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"}), "segmentiq_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "segmentiq_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds, including page and chart rendering.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route", "method"}), "segmentiq_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	logins, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentiq_login_attempts_total",
		Help: "Login attempts, labeled by result.",
	}, []string{"result"}), "segmentiq_login_attempts_total")
	if err != nil {
		return nil, err
	}

	predictions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentiq_predictions_total",
		Help: "Churn risk predictions, labeled by risk level.",
	}, []string{"level"}), "segmentiq_predictions_total")
	if err != nil {
		return nil, err
	}

	exports, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentiq_exports_total",
		Help: "Report exports, labeled by format and result.",
	}, []string{"format", "result"}), "segmentiq_exports_total")
	if err != nil {
		return nil, err
	}

	rows, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "segmentiq_dataset_rows",
		Help: "Number of customer rows in the loaded dataset.",
	}), "segmentiq_dataset_rows")
	if err != nil {
		return nil, err
	}

	reloads, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "segmentiq_dataset_reloads_total",
		Help: "Dataset loads, labeled by result.",
	}, []string{"result"}), "segmentiq_dataset_reloads_total")
	if err != nil {
		return nil, err
	}

	model, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "segmentiq_model_available",
		Help: "1 when the model artifact was found at startup, 0 otherwise.",
	}), "segmentiq_model_available")
	if err != nil {
		return nil, err
	}

	builds, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "segmentiq_snapshot_build_seconds",
		Help:    "Time spent recomputing the analytics snapshot after a dataset change.",
		Buckets: prometheus.DefBuckets,
	}), "segmentiq_snapshot_build_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		Requests:       requests,
		Durations:      durations,
		LoginAttempts:  logins,
		Predictions:    predictions,
		Exports:        exports,
		DatasetRows:    rows,
		DatasetReloads: reloads,
		ModelAvailable: model,
		SnapshotBuilds: builds,
	}, nil
}

// Instrument records request counts and durations for one route.
func (c *Collector) Instrument(route string, h http.Handler) http.Handler {
	if c == nil {
		return h
	}
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(
		c.Durations.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(c.Requests.MustCurryWith(labels), h),
	)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveLogin counts a login attempt.
func (c *Collector) ObserveLogin(ok bool) {
	if c == nil {
		return
	}
	c.LoginAttempts.WithLabelValues(result(ok)).Inc()
}

// ObservePrediction counts a prediction at the given level label.
func (c *Collector) ObservePrediction(level string) {
	if c == nil {
		return
	}
	c.Predictions.WithLabelValues(level).Inc()
}

// ObserveExport counts an export attempt.
func (c *Collector) ObserveExport(format string, err error) {
	if c == nil {
		return
	}
	c.Exports.WithLabelValues(format, result(err == nil)).Inc()
}

// ObserveReload satisfies the dataset reload hook: it counts the load and,
// on success, updates the row gauge.
func (c *Collector) ObserveReload(rows int, err error) {
	if c == nil {
		return
	}
	c.DatasetReloads.WithLabelValues(result(err == nil)).Inc()
	if err == nil {
		c.DatasetRows.Set(float64(rows))
	}
}

// ObserveSnapshotBuild records a snapshot recomputation.
func (c *Collector) ObserveSnapshotBuild(d time.Duration) {
	if c == nil {
		return
	}
	c.SnapshotBuilds.Observe(d.Seconds())
}

// SetModelAvailable records whether the model artifact was found.
func (c *Collector) SetModelAvailable(ok bool) {
	if c == nil {
		return
	}
	v := 0.0
	if ok {
		v = 1
	}
	c.ModelAvailable.Set(v)
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
