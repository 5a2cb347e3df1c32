package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestInstrumentRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	h := collector.Instrument("/predict", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/predict", nil))

	if got := testutil.ToFloat64(collector.Requests.WithLabelValues("/predict", "post", "400")); got != 1 {
		t.Fatalf("segmentiq_http_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "segmentiq_http_request_duration_seconds", map[string]string{
		"route": "/predict",
	}); count != 1 {
		t.Fatalf("segmentiq_http_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestObserveHelpers(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	collector.ObserveLogin(false)
	collector.ObserveLogin(true)
	collector.ObserveLogin(false)
	collector.ObservePrediction("High Churn Risk")
	collector.ObserveExport("pdf", errors.New("disk full"))
	collector.ObserveExport("pdf", nil)
	collector.ObserveReload(42, nil)
	collector.ObserveReload(0, errors.New("bad csv"))
	collector.SetModelAvailable(true)
	collector.ObserveSnapshotBuild(5 * time.Millisecond)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"login failures", testutil.ToFloat64(collector.LoginAttempts.WithLabelValues(ResultFailure)), 2},
		{"login successes", testutil.ToFloat64(collector.LoginAttempts.WithLabelValues(ResultSuccess)), 1},
		{"predictions", testutil.ToFloat64(collector.Predictions.WithLabelValues("High Churn Risk")), 1},
		{"export failures", testutil.ToFloat64(collector.Exports.WithLabelValues("pdf", ResultFailure)), 1},
		{"export successes", testutil.ToFloat64(collector.Exports.WithLabelValues("pdf", ResultSuccess)), 1},
		{"dataset rows", testutil.ToFloat64(collector.DatasetRows), 42},
		{"reload failures", testutil.ToFloat64(collector.DatasetReloads.WithLabelValues(ResultFailure)), 1},
		{"model available", testutil.ToFloat64(collector.ModelAvailable), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if count := histogramSampleCount(t, reg, "segmentiq_snapshot_build_seconds", nil); count != 1 {
		t.Errorf("segmentiq_snapshot_build_seconds sample_count = %d, want 1", count)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveLogin(true)
	c.ObservePrediction("x")
	c.ObserveExport("pdf", nil)
	c.ObserveReload(1, nil)
	c.ObserveSnapshotBuild(time.Second)
	c.SetModelAvailable(false)

	called := false
	h := c.Instrument("/", http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("nil collector should pass requests through")
	}
}

func TestNewCollectorReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("first NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}

	first.ObserveLogin(true)
	if got := testutil.ToFloat64(second.LoginAttempts.WithLabelValues(ResultSuccess)); got != 1 {
		t.Errorf("collectors should share registered metrics, got %v", got)
	}
}

func TestMetricsHandlerExposesDashboardMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	collector.ObserveReload(7, nil)
	collector.ObserveLogin(true)
	collector.Requests.WithLabelValues("/", "get", "200").Inc()
	collector.Durations.WithLabelValues("/", "get").Observe(0.01)

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"segmentiq_http_requests_total",
		"segmentiq_http_request_duration_seconds",
		"segmentiq_login_attempts_total",
		"segmentiq_dataset_rows 7",
		"segmentiq_dataset_reloads_total",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
