package core

import (
	"fmt"
	"sync"

	"github.com/signalsfoundry/grid-simulator/env"
)

// dispatcher runs the dispatch phase: invoke every live entity's reaction
// against the snapshot and collect the resulting actions. Implementations
// must return the actions in the same order as the population slice
// (identity-issuance order); that single invariant makes the commit phase
// deterministic and independent of the dispatch mode.
type dispatcher interface {
	dispatch(snap *env.Snapshot, population []env.Handle) ([]env.ScheduledAction, []env.Diagnostic)
}

// sequentialDispatcher invokes reactions one at a time on the calling
// goroutine. This is the default strategy.
type sequentialDispatcher struct{}

func (sequentialDispatcher) dispatch(snap *env.Snapshot, population []env.Handle) ([]env.ScheduledAction, []env.Diagnostic) {
	actions := make([]env.ScheduledAction, len(population))
	var diags []env.Diagnostic
	for i, h := range population {
		act, err := react(h, snap)
		if err != nil {
			diags = append(diags, failureDiagnostic(snap.Generation(), h, err))
			act = env.None()
		}
		actions[i] = env.ScheduledAction{Entity: h.ID, Action: act}
	}
	return actions, diags
}

// parallelDispatcher distributes reactions across a fixed pool of worker
// goroutines. Workers write each result into a slice slot preallocated for
// the entity's issuance position, so the collected list is bit-identical to
// the sequential strategy's. Reactions only read the shared snapshot and
// mutate their own receiver, so no synchronization is needed beyond joining
// the workers.
type parallelDispatcher struct {
	workers int
}

func (p *parallelDispatcher) dispatch(snap *env.Snapshot, population []env.Handle) ([]env.ScheduledAction, []env.Diagnostic) {
	n := len(population)
	if n == 0 {
		return nil, nil
	}
	workers := p.workers
	if workers > n {
		workers = n
	}

	actions := make([]env.ScheduledAction, n)
	failures := make([]error, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for i := start; i < n; i += workers {
				h := population[i]
				act, err := react(h, snap)
				if err != nil {
					failures[i] = err
					act = env.None()
				}
				actions[i] = env.ScheduledAction{Entity: h.ID, Action: act}
			}
		}(w)
	}
	wg.Wait()

	var diags []env.Diagnostic
	for i, err := range failures {
		if err != nil {
			diags = append(diags, failureDiagnostic(snap.Generation(), population[i], err))
		}
	}
	return actions, diags
}

// react invokes one entity's reaction, recovering panics at the per-entity
// boundary. A failed reaction degrades to None; it never aborts the
// generation's dispatch for other entities.
func react(h env.Handle, snap *env.Snapshot) (act env.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			act = env.None()
			err = fmt.Errorf("reaction panicked: %v", r)
		}
	}()

	act, err = h.Entity.React(env.Self{ID: h.ID, Footprint: h.Footprint}, snap)
	if err != nil {
		return env.None(), err
	}
	return act, nil
}

func failureDiagnostic(gen uint64, h env.Handle, err error) env.Diagnostic {
	return env.Diagnostic{
		Generation: gen,
		Reason:     env.ReasonReactionFailure,
		Entity:     h.ID,
		Detail:     err.Error(),
	}
}
