package timectrl

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/grid-simulator/env"
)

// GenerationClock is an interface for reading simulation time expressed in
// generations. Consumers (renderers, analysis loops) should depend on this
// abstraction rather than the concrete Runner type, enabling testability.
type GenerationClock interface {
	// Generation returns the current generation number.
	Generation() uint64
}

// Advancer is the slice of the engine the runner drives. *core.Engine
// satisfies it.
type Advancer interface {
	AdvanceGeneration(ctx context.Context) env.Report
	Generation() uint64
}

// Mode describes how the Runner paces generations.
type Mode int

const (
	// RealTime advances one generation per tick of wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "real-time"
}

// Runner drives an engine generation by generation and notifies registered
// listeners after each commit. It implements GenerationClock.
type Runner struct {
	mu     sync.RWMutex
	engine Advancer

	Tick time.Duration
	Mode Mode

	listeners []func(uint64, env.Report)
}

// NewRunner constructs a runner over the given engine.
func NewRunner(engine Advancer, tick time.Duration, mode Mode) *Runner {
	return &Runner{
		engine: engine,
		Tick:   tick,
		Mode:   mode,
	}
}

// Generation returns the current generation number. Implements
// GenerationClock.
func (r *Runner) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.engine.Generation()
}

// AddListener registers a callback invoked after every committed generation
// with the new generation number and the generation's report. Listeners
// must be registered before Run.
func (r *Runner) AddListener(fn func(uint64, env.Report)) {
	r.listeners = append(r.listeners, fn)
}

// Run advances the engine for the specified number of generations in a
// separate goroutine; generations <= 0 runs until the context is cancelled.
// It returns a channel that is closed when the runner finishes. Cancellation
// is observed between generations only: a generation that has started always
// completes its commit.
func (r *Runner) Run(ctx context.Context, generations int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var ticker *time.Ticker
		if r.Mode == RealTime {
			ticker = time.NewTicker(r.Tick)
			defer ticker.Stop()
		}

		for completed := 0; generations <= 0 || completed < generations; completed++ {
			if ctx.Err() != nil {
				return
			}
			if ticker != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}

			rep := r.engine.AdvanceGeneration(ctx)

			r.mu.RLock()
			gen := r.engine.Generation()
			r.mu.RUnlock()
			for _, fn := range r.listeners {
				fn(gen, rep)
			}
		}
	}()
	return done
}
