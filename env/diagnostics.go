package env

import (
	"fmt"

	"github.com/signalsfoundry/grid-simulator/model"
)

// Reason classifies a generation-local diagnostic. All of these are
// recovered conditions: the offending action is dropped (or substituted with
// None) and the generation completes normally.
type Reason int

const (
	// ReasonStaleAction marks an action whose subject identity was no
	// longer alive at commit time.
	ReasonStaleAction Reason = iota
	// ReasonOutOfBoundsMove marks a move whose destination footprint falls
	// outside a bounded environment.
	ReasonOutOfBoundsMove
	// ReasonOutOfBoundsSpawn marks a spawn whose requested footprint falls
	// outside a bounded environment.
	ReasonOutOfBoundsSpawn
	// ReasonOccupiedMove marks a move rejected by the RejectOverlap
	// conflict policy because the destination was already occupied.
	ReasonOccupiedMove
	// ReasonOccupiedSpawn marks a spawn rejected by the RejectOverlap
	// conflict policy because the requested footprint was already occupied.
	ReasonOccupiedSpawn
	// ReasonRejectedSpawn marks a spawn dropped for a non-spatial cause: a
	// nil child, or a child that does not satisfy the Concurrent
	// requirement of a parallel-dispatch environment.
	ReasonRejectedSpawn
	// ReasonReactionFailure marks an entity whose reaction returned an
	// error or panicked; the entity was treated as having returned None.
	ReasonReactionFailure
)

// String returns the reason as a lower-case label, suitable for logs and
// metric label values.
func (r Reason) String() string {
	switch r {
	case ReasonStaleAction:
		return "stale_action"
	case ReasonOutOfBoundsMove:
		return "out_of_bounds_move"
	case ReasonOutOfBoundsSpawn:
		return "out_of_bounds_spawn"
	case ReasonOccupiedMove:
		return "occupied_move"
	case ReasonOccupiedSpawn:
		return "occupied_spawn"
	case ReasonRejectedSpawn:
		return "rejected_spawn"
	case ReasonReactionFailure:
		return "reaction_failure"
	default:
		return "unknown"
	}
}

// Diagnostic describes one recovered condition attached to a generation.
type Diagnostic struct {
	// Generation is the generation during which the action was produced.
	Generation uint64
	// Reason classifies the condition.
	Reason Reason
	// Entity is the identity the action referred to.
	Entity model.EntityID
	// Detail is a human-readable explanation.
	Detail string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("generation %d: %s (entity %d): %s",
		d.Generation, d.Reason, d.Entity, d.Detail)
}

// Report summarizes the outcome of one committed generation. A Report is
// returned by Commit (and by the engine's AdvanceGeneration) and is the
// caller's only window into dropped actions and failed reactions; no
// diagnostic is ever silently discarded.
type Report struct {
	// Generation is the generation whose actions were committed; after the
	// commit the environment is at Generation+1.
	Generation uint64

	// Counts of applied effects.
	Moved   int
	Mutated int
	Spawned int
	Removed int

	// Diagnostics accumulated during dispatch and commit, in the order the
	// conditions were encountered.
	Diagnostics []Diagnostic
}

// Failed reports whether any diagnostics were attached to the generation.
func (r Report) Failed() bool {
	return len(r.Diagnostics) > 0
}
