package env

import "github.com/signalsfoundry/grid-simulator/model"

// Entity is the behavioral contract implemented by every simulated object.
//
// React is invoked exactly once per generation for every live entity. It
// receives the entity's own engine-managed identity and footprint via self,
// and a read-only snapshot of the environment as of the last committed
// generation. The returned Action is the only channel through which an
// entity may affect the environment; direct mutation of anything reachable
// from the snapshot is not allowed. An entity may freely mutate its own
// receiver state, in which case it should return Mutated so the change is
// accounted for.
//
// A non-nil error (or a panic) is recovered at the per-entity boundary: the
// entity is treated as having returned None and the failure is reported in
// the generation's diagnostics. It never aborts dispatch for other entities.
type Entity interface {
	React(self Self, snap *Snapshot) (Action, error)
}

// Concurrent marks entity types whose React method is safe to invoke from a
// worker goroutine while other entities react concurrently. Reactions only
// read the shared snapshot and mutate their own receiver, so a type is
// Concurrent as long as its receiver state is not shared with other
// entities. Environments configured for parallel dispatch only accept
// Concurrent entities; the check happens when an entity enters the
// environment, never during dispatch.
type Concurrent interface {
	Entity

	// ConcurrentSafe is a marker with no behavior.
	ConcurrentSafe()
}

// Self carries the engine-owned spatial identity of the reacting entity: its
// ID as issued by the environment and its footprint as of the snapshot.
type Self struct {
	ID        model.EntityID
	Footprint model.Footprint
}
