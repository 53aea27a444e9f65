package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestEngineCollectorRecordsGenerations(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.ObserveGeneration(5 * time.Millisecond)
	collector.ObserveGeneration(7 * time.Millisecond)

	if got := testutil.ToFloat64(collector.GenerationsTotal); got != 2 {
		t.Fatalf("engine_generations_total = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "engine_generation_duration_seconds", nil); count != 2 {
		t.Fatalf("engine_generation_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestEngineCollectorRecordsPhases(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.ObservePhase("dispatch", time.Millisecond)
	collector.ObservePhase("commit", time.Millisecond)
	collector.ObservePhase("commit", time.Millisecond)

	if count := histogramSampleCount(t, reg, "engine_phase_duration_seconds", map[string]string{"phase": "commit"}); count != 2 {
		t.Fatalf("commit phase sample_count = %d, want 2", count)
	}
	if count := histogramSampleCount(t, reg, "engine_phase_duration_seconds", map[string]string{"phase": "dispatch"}); count != 1 {
		t.Fatalf("dispatch phase sample_count = %d, want 1", count)
	}
}

func TestEngineCollectorCountsActionsAndDiagnostics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.AddActions("move", 3)
	collector.AddActions("spawn", 1)
	collector.AddActions("remove", 0) // no-op
	collector.IncDiagnostic("stale_action")
	collector.IncDiagnostic("stale_action")
	collector.IncDiagnostic("reaction_failure")

	if got := testutil.ToFloat64(collector.ActionsTotal.WithLabelValues("move")); got != 3 {
		t.Fatalf("engine_actions_total{kind=move} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.DiagnosticsTotal.WithLabelValues("stale_action")); got != 2 {
		t.Fatalf("engine_diagnostics_total{reason=stale_action} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.DiagnosticsTotal.WithLabelValues("reaction_failure")); got != 1 {
		t.Fatalf("engine_diagnostics_total{reason=reaction_failure} = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	collector.SetPopulation(42)
	collector.ObserveGeneration(time.Millisecond)
	collector.AddActions("move", 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"engine_generations_total",
		"engine_generation_duration_seconds",
		"engine_population",
		"engine_actions_total",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, "engine_population 42") {
		t.Fatalf("/metrics output missing population gauge value: %s", body)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *EngineCollector
	collector.ObserveGeneration(time.Millisecond)
	collector.ObservePhase("dispatch", time.Millisecond)
	collector.SetPopulation(1)
	collector.AddActions("move", 1)
	collector.IncDiagnostic("stale_action")
	if collector.Gatherer() != nil {
		t.Fatal("nil collector should have a nil gatherer")
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
