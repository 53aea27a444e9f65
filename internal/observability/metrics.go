package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector bundles Prometheus metrics for the generation engine and
// provides helpers to expose them over HTTP.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	GenerationsTotal   prometheus.Counter
	GenerationDuration prometheus.Histogram
	PhaseDuration      *prometheus.HistogramVec
	Population         prometheus.Gauge
	ActionsTotal       *prometheus.CounterVec
	DiagnosticsTotal   *prometheus.CounterVec
}

// NewEngineCollector registers engine Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	generations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_generations_total",
		Help: "Cumulative number of completed generations.",
	})
	generations, err := registerCounter(reg, generations, "engine_generations_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_generation_duration_seconds",
		Help:    "Wall-clock duration of one full generation cycle.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})
	duration, err = registerHistogram(reg, duration, "engine_generation_duration_seconds")
	if err != nil {
		return nil, err
	}

	phases := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_phase_duration_seconds",
		Help:    "Duration of the dispatch and commit phases of a generation.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"phase"})
	phases, err = registerHistogramVec(reg, phases, "engine_phase_duration_seconds")
	if err != nil {
		return nil, err
	}

	population := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_population",
		Help: "Number of live entities after the last committed generation.",
	})
	population, err = registerGauge(reg, population, "engine_population")
	if err != nil {
		return nil, err
	}

	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_actions_total",
		Help: "Applied actions by kind (move, mutate, spawn, remove).",
	}, []string{"kind"})
	actions, err = registerCounterVec(reg, actions, "engine_actions_total")
	if err != nil {
		return nil, err
	}

	diagnostics := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_diagnostics_total",
		Help: "Dropped actions and failed reactions by diagnostic reason.",
	}, []string{"reason"})
	diagnostics, err = registerCounterVec(reg, diagnostics, "engine_diagnostics_total")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:           gatherer,
		GenerationsTotal:   generations,
		GenerationDuration: duration,
		PhaseDuration:      phases,
		Population:         population,
		ActionsTotal:       actions,
		DiagnosticsTotal:   diagnostics,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EngineCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler returns an HTTP handler exposing the collector's metrics.
func (c *EngineCollector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ObserveGeneration records one completed generation cycle.
func (c *EngineCollector) ObserveGeneration(d time.Duration) {
	if c == nil {
		return
	}
	if c.GenerationsTotal != nil {
		c.GenerationsTotal.Inc()
	}
	if c.GenerationDuration != nil {
		c.GenerationDuration.Observe(d.Seconds())
	}
}

// ObservePhase records the duration of a named generation phase.
func (c *EngineCollector) ObservePhase(phase string, d time.Duration) {
	if c == nil || c.PhaseDuration == nil {
		return
	}
	c.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// SetPopulation updates the live entity gauge.
func (c *EngineCollector) SetPopulation(count int) {
	if c == nil || c.Population == nil {
		return
	}
	c.Population.Set(float64(count))
}

// AddActions adds to the applied-action counter for the given kind label.
func (c *EngineCollector) AddActions(kind string, count int) {
	if c == nil || c.ActionsTotal == nil || count <= 0 {
		return
	}
	c.ActionsTotal.WithLabelValues(kind).Add(float64(count))
}

// IncDiagnostic increments the diagnostics counter for the given reason
// label.
func (c *EngineCollector) IncDiagnostic(reason string) {
	if c == nil || c.DiagnosticsTotal == nil {
		return
	}
	c.DiagnosticsTotal.WithLabelValues(reason).Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
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

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
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
