package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/grid-simulator/env"
	"github.com/signalsfoundry/grid-simulator/internal/logging"
	"github.com/signalsfoundry/grid-simulator/internal/observability"
)

const tracerName = "github.com/signalsfoundry/grid-simulator/core"

// Engine is the generation scheduler. It owns an environment and advances it
// one generation per AdvanceGeneration call: snapshot, dispatch every live
// entity's reaction (sequentially or across a worker pool), collect the
// resulting actions in identity-issuance order, and commit them atomically.
// Both dispatch strategies produce bit-identical state given identical
// entity logic.
type Engine struct {
	mu sync.Mutex

	environment *env.Environment
	log         logging.Logger
	collector   *observability.EngineCollector
	tracer      trace.Tracer
	dispatcher  dispatcher

	listeners  []func(uint64)
	lastReport env.Report
}

// Option configures an Engine at construction time.
type Option func(*Engine) error

// WithLogger attaches a structured logger; the default drops all logs.
func WithLogger(log logging.Logger) Option {
	return func(e *Engine) error {
		if log != nil {
			e.log = log
		}
		return nil
	}
}

// WithCollector attaches Prometheus metrics for generations, phases,
// population, actions, and diagnostics.
func WithCollector(c *observability.EngineCollector) Option {
	return func(e *Engine) error {
		e.collector = c
		return nil
	}
}

// WithTracer overrides the OpenTelemetry tracer used for generation spans;
// the default comes from the global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) error {
		if tracer != nil {
			e.tracer = tracer
		}
		return nil
	}
}

// WithParallelDispatch switches the dispatch phase to a fixed pool of worker
// goroutines. Every entity in the environment, now and later, must satisfy
// env.Concurrent; that constraint is established here and at insert time,
// never checked during dispatch. Observable semantics are identical to
// sequential dispatch.
func WithParallelDispatch(workers int) Option {
	return func(e *Engine) error {
		if workers < 1 {
			return fmt.Errorf("parallel dispatch requires at least 1 worker, got %d", workers)
		}
		if err := e.environment.RestrictToConcurrent(); err != nil {
			return fmt.Errorf("parallel dispatch: %w", err)
		}
		e.dispatcher = &parallelDispatcher{workers: workers}
		return nil
	}
}

// New constructs an engine over the given environment. Configuration errors
// are fatal: they prevent the engine from being built at all, before any
// generation runs.
func New(environment *env.Environment, opts ...Option) (*Engine, error) {
	if environment == nil {
		return nil, fmt.Errorf("engine requires an environment")
	}
	e := &Engine{
		environment: environment,
		log:         logging.Noop(),
		tracer:      otel.Tracer(tracerName),
		dispatcher:  sequentialDispatcher{},
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Environment returns the environment the engine drives.
func (e *Engine) Environment() *env.Environment {
	return e.environment
}

// Generation returns the current generation number, starting at 0.
func (e *Engine) Generation() uint64 {
	return e.environment.Generation()
}

// Snapshot returns a read-only view of the current generation for rendering
// or analysis. It must not be retained past the next AdvanceGeneration call.
func (e *Engine) Snapshot() *env.Snapshot {
	return e.environment.Snapshot()
}

// LastReport returns the report of the most recently completed generation,
// including every diagnostic it produced.
func (e *Engine) LastReport() env.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReport
}

// RegisterGenerationListener registers a callback invoked after every
// committed generation with the new current generation number. Listeners
// must be registered before the run starts.
func (e *Engine) RegisterGenerationListener(fn func(uint64)) {
	e.listeners = append(e.listeners, fn)
}

// AdvanceGeneration drives one full scheduler cycle: Idle -> Dispatching ->
// Collecting -> Committing -> Idle. It returns the generation's report;
// reaction failures and dropped actions are reported there, never as an
// error. The context is used for tracing and logging only: a generation
// either completes its commit or the whole run aborts, so there is no
// mid-generation cancellation.
func (e *Engine) AdvanceGeneration(ctx context.Context) env.Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	gen := e.environment.Generation()
	ctx, span := e.tracer.Start(ctx, "engine.advance_generation",
		trace.WithAttributes(attribute.Int64("generation", int64(gen))))
	defer span.End()

	started := time.Now()
	snap := e.environment.Snapshot()
	population := e.environment.Population()

	dispatchStart := time.Now()
	_, dispatchSpan := e.tracer.Start(ctx, "engine.dispatch",
		trace.WithAttributes(attribute.Int("population", len(population))))
	actions, failures := e.dispatcher.dispatch(snap, population)
	dispatchSpan.End()
	e.collector.ObservePhase("dispatch", time.Since(dispatchStart))

	commitStart := time.Now()
	_, commitSpan := e.tracer.Start(ctx, "engine.commit",
		trace.WithAttributes(attribute.Int("actions", len(actions))))
	rep := e.environment.Commit(actions)
	commitSpan.End()
	e.collector.ObservePhase("commit", time.Since(commitStart))

	if len(failures) > 0 {
		rep.Diagnostics = append(failures, rep.Diagnostics...)
	}

	e.collector.ObserveGeneration(time.Since(started))
	e.collector.SetPopulation(e.environment.Len())
	e.collector.AddActions(env.ActionMove.String(), rep.Moved)
	e.collector.AddActions(env.ActionMutate.String(), rep.Mutated)
	e.collector.AddActions(env.ActionSpawn.String(), rep.Spawned)
	e.collector.AddActions(env.ActionRemove.String(), rep.Removed)
	for _, d := range rep.Diagnostics {
		e.collector.IncDiagnostic(d.Reason.String())
	}

	e.log.Debug(ctx, "generation committed",
		logging.Any("generation", rep.Generation),
		logging.Int("population", e.environment.Len()),
		logging.Int("moved", rep.Moved),
		logging.Int("spawned", rep.Spawned),
		logging.Int("removed", rep.Removed),
		logging.Int("diagnostics", len(rep.Diagnostics)),
	)

	e.lastReport = rep
	current := e.environment.Generation()
	for _, fn := range e.listeners {
		fn(current)
	}
	return rep
}
