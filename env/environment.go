package env

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalsfoundry/grid-simulator/internal/logging"
	"github.com/signalsfoundry/grid-simulator/model"
)

// WrapPolicy controls how footprints at the edge of the grid are handled.
type WrapPolicy int

const (
	// Bounded rejects moves and spawns whose footprint leaves the grid.
	Bounded WrapPolicy = iota
	// Toroidal joins opposite edges of the grid: footprints past an edge
	// re-enter from the other side and are never out of bounds.
	Toroidal
)

func (w WrapPolicy) String() string {
	switch w {
	case Bounded:
		return "bounded"
	case Toroidal:
		return "toroidal"
	default:
		return "unknown"
	}
}

// ConflictPolicy controls how moves and spawns into occupied cells are
// resolved at commit time.
type ConflictPolicy int

const (
	// AllowOverlap lets any number of entities share a cell; actions are
	// applied in issuance order and never rejected for occupancy. This is
	// the default: entities that want exclusive occupancy avoid collisions
	// themselves by reading the snapshot.
	AllowOverlap ConflictPolicy = iota
	// RejectOverlap drops moves and spawns whose destination overlaps a
	// live entity at the time the action is applied, reporting a
	// diagnostic. Earlier actions of the same commit win.
	RejectOverlap
)

func (c ConflictPolicy) String() string {
	switch c {
	case AllowOverlap:
		return "allow_overlap"
	case RejectOverlap:
		return "reject_overlap"
	default:
		return "unknown"
	}
}

// Config describes an environment at construction time.
type Config struct {
	// Bounds is the grid size; both dimensions must be positive.
	Bounds model.Dimension
	// Wrap selects edge handling; defaults to Bounded.
	Wrap WrapPolicy
	// Conflict selects commit-time occupancy resolution; defaults to
	// AllowOverlap.
	Conflict ConflictPolicy
}

// record is the registry entry owning one entity. Behavioral state lives in
// the entity itself and is opaque to the engine; identity, footprint, and
// liveness are engine-owned.
type record struct {
	id        model.EntityID
	entity    Entity
	footprint model.Footprint
	alive     bool
}

// Handle is a borrowed view of a live entity, handed to the dispatch phase.
// The entity reference is mutable only for its own reaction call; the
// spatial fields are the engine's bookkeeping as of the snapshot.
type Handle struct {
	ID        model.EntityID
	Footprint model.Footprint
	Entity    Entity
}

// Environment owns the entity registry, the spatial index, and the
// generation counter. All mutation happens through Insert (pre-population)
// and Commit (the scheduler's commit phase); everything else is a read.
type Environment struct {
	mu sync.RWMutex

	log      logging.Logger
	bounds   model.Dimension
	wrap     WrapPolicy
	conflict ConflictPolicy

	// concurrentOnly is set when the environment backs a parallel-dispatch
	// engine; from then on only Concurrent entities are accepted.
	concurrentOnly bool

	nextID     model.EntityID
	records    map[model.EntityID]*record
	order      []model.EntityID // live identities in issuance order
	tiles      *tiles
	generation uint64
}

// New constructs an empty environment. Invalid bounds or policy values are a
// configuration error, fatal before any generation runs.
func New(cfg Config, log logging.Logger) (*Environment, error) {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.Bounds.Width <= 0 || cfg.Bounds.Height <= 0 {
		return nil, fmt.Errorf("invalid bounds %dx%d: both dimensions must be positive",
			cfg.Bounds.Width, cfg.Bounds.Height)
	}
	if cfg.Wrap != Bounded && cfg.Wrap != Toroidal {
		return nil, fmt.Errorf("invalid wrap policy %d", cfg.Wrap)
	}
	if cfg.Conflict != AllowOverlap && cfg.Conflict != RejectOverlap {
		return nil, fmt.Errorf("invalid conflict policy %d", cfg.Conflict)
	}
	return &Environment{
		log:      log,
		bounds:   cfg.Bounds,
		wrap:     cfg.Wrap,
		conflict: cfg.Conflict,
		records:  make(map[model.EntityID]*record),
		tiles:    newTiles(cfg.Bounds, cfg.Wrap == Toroidal),
	}, nil
}

// Insert adds an entity to the current population, issuing its identity.
// This is how the initial generation is populated; entities created during a
// run come from Spawn actions instead. The footprint must fit the bounds (a
// toroidal environment wraps it). Inserting a non-Concurrent entity into an
// environment restricted for parallel dispatch is an error.
func (e *Environment) Insert(entity Entity, fp model.Footprint) (model.EntityID, error) {
	if entity == nil {
		return model.NoEntity, fmt.Errorf("cannot insert a nil entity")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.concurrentOnly {
		if _, ok := entity.(Concurrent); !ok {
			return model.NoEntity, fmt.Errorf(
				"entity %T is not Concurrent but the environment is restricted to parallel-safe entities", entity)
		}
	}
	if e.wrap == Toroidal {
		fp = fp.Wrap(e.bounds)
	} else if !fp.In(e.bounds) {
		return model.NoEntity, fmt.Errorf("footprint anchored at (%d,%d) is out of bounds %dx%d",
			fp.Anchor.X, fp.Anchor.Y, e.bounds.Width, e.bounds.Height)
	}

	id := e.issue()
	e.records[id] = &record{id: id, entity: entity, footprint: fp, alive: true}
	e.order = append(e.order, id)
	e.tiles.insert(id, fp)
	return id, nil
}

// RestrictToConcurrent marks the environment as backing a parallel-dispatch
// engine. It fails if any already-inserted entity is not Concurrent; on
// success every later Insert and Spawn is checked the same way, so parallel
// eligibility is established before dispatch ever runs.
func (e *Environment) RestrictToConcurrent() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range e.order {
		rec := e.records[id]
		if _, ok := rec.entity.(Concurrent); !ok {
			return fmt.Errorf("entity %d (%T) is not Concurrent; parallel dispatch requires every entity to be parallel-safe",
				id, rec.entity)
		}
	}
	e.concurrentOnly = true
	return nil
}

// Generation returns the current generation number, starting at 0.
func (e *Environment) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Bounds returns the grid dimensions.
func (e *Environment) Bounds() model.Dimension {
	return e.bounds
}

// Len returns the number of live entities.
func (e *Environment) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.order)
}

// Population returns borrowed handles to every live entity in ascending
// identity-issuance order, the run's deterministic dispatch order.
func (e *Environment) Population() []Handle {
	e.mu.RLock()
	defer e.mu.RUnlock()

	handles := make([]Handle, 0, len(e.order))
	for _, id := range e.order {
		rec := e.records[id]
		handles = append(handles, Handle{ID: rec.id, Footprint: rec.footprint, Entity: rec.entity})
	}
	return handles
}

// Snapshot returns a read-only view of the environment as of the current
// generation. The view stays fixed for the whole of the next dispatch phase
// and is invalidated by the following commit; callers must not retain it
// past the next AdvanceGeneration.
func (e *Environment) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &Snapshot{env: e, generation: e.generation}
}

// Commit applies one generation's collected actions and advances the
// generation counter. Actions are applied in the order given (the
// scheduler's issuance order) in two passes: all removals first, so that
// space vacated this generation is available to movers and spawners, then
// mutations, moves, and spawns. Invalid actions are dropped and reported in
// the returned Report; Commit itself never fails.
func (e *Environment) Commit(actions []ScheduledAction) Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep := Report{Generation: e.generation}

	// Pass 1: removals, retiring identities from registry and index.
	removed := false
	for _, sa := range actions {
		if sa.Action.Kind != ActionRemove {
			continue
		}
		rec, ok := e.records[sa.Entity]
		if !ok || !rec.alive {
			rep.diagnose(e.generation, ReasonStaleAction, sa.Entity,
				"remove action for an identity that is not alive")
			continue
		}
		e.tiles.remove(rec.id, rec.footprint)
		rec.alive = false
		delete(e.records, rec.id)
		rep.Removed++
		removed = true
	}
	if removed {
		e.compactOrder()
	}

	// Pass 2: mutations, moves, and spawns in issuance order.
	for _, sa := range actions {
		if sa.Action.Kind == ActionRemove {
			continue
		}
		rec, ok := e.records[sa.Entity]
		if !ok || !rec.alive {
			rep.diagnose(e.generation, ReasonStaleAction, sa.Entity,
				fmt.Sprintf("%s action for an identity that is not alive", sa.Action.Kind))
			continue
		}

		switch sa.Action.Kind {
		case ActionNone:
			// absence of an effect

		case ActionMutate:
			rep.Mutated++

		case ActionMove:
			e.applyMove(rec, sa.Action.To, &rep)

		case ActionSpawn:
			e.applySpawn(rec, sa.Action, &rep)
		}
	}

	e.generation++

	if rep.Failed() {
		for _, d := range rep.Diagnostics {
			e.log.Debug(context.Background(), "action dropped",
				logging.Any("generation", d.Generation),
				logging.String("reason", d.Reason.String()),
				logging.Any("entity", d.Entity),
				logging.String("detail", d.Detail),
			)
		}
	}
	return rep
}

func (e *Environment) applyMove(rec *record, to model.Footprint, rep *Report) {
	if e.wrap == Toroidal {
		to = to.Wrap(e.bounds)
	} else if !to.In(e.bounds) {
		rep.diagnose(e.generation, ReasonOutOfBoundsMove, rec.id,
			fmt.Sprintf("destination anchored at (%d,%d) is outside bounds %dx%d",
				to.Anchor.X, to.Anchor.Y, e.bounds.Width, e.bounds.Height))
		return
	}
	if e.conflict == RejectOverlap && e.tiles.occupied(to, rec.id) {
		rep.diagnose(e.generation, ReasonOccupiedMove, rec.id,
			fmt.Sprintf("destination anchored at (%d,%d) is occupied", to.Anchor.X, to.Anchor.Y))
		return
	}
	e.tiles.remove(rec.id, rec.footprint)
	rec.footprint = to
	e.tiles.insert(rec.id, to)
	rep.Moved++
}

func (e *Environment) applySpawn(parent *record, act Action, rep *Report) {
	if act.Child == nil {
		rep.diagnose(e.generation, ReasonRejectedSpawn, parent.id, "spawn action with a nil child")
		return
	}
	if e.concurrentOnly {
		if _, ok := act.Child.(Concurrent); !ok {
			rep.diagnose(e.generation, ReasonRejectedSpawn, parent.id,
				fmt.Sprintf("child %T is not Concurrent", act.Child))
			return
		}
	}
	fp := act.ChildFootprint
	if e.wrap == Toroidal {
		fp = fp.Wrap(e.bounds)
	} else if !fp.In(e.bounds) {
		rep.diagnose(e.generation, ReasonOutOfBoundsSpawn, parent.id,
			fmt.Sprintf("spawn anchored at (%d,%d) is outside bounds %dx%d",
				fp.Anchor.X, fp.Anchor.Y, e.bounds.Width, e.bounds.Height))
		return
	}
	if e.conflict == RejectOverlap && e.tiles.occupied(fp, model.NoEntity) {
		rep.diagnose(e.generation, ReasonOccupiedSpawn, parent.id,
			fmt.Sprintf("spawn anchored at (%d,%d) is occupied", fp.Anchor.X, fp.Anchor.Y))
		return
	}

	id := e.issue()
	e.records[id] = &record{id: id, entity: act.Child, footprint: fp, alive: true}
	e.order = append(e.order, id)
	e.tiles.insert(id, fp)
	rep.Spawned++
}

// issue hands out the next identity; identities are monotonic and never
// reused within a run. Callers hold the write lock.
func (e *Environment) issue() model.EntityID {
	e.nextID++
	return e.nextID
}

// compactOrder drops retired identities from the issuance-order slice.
// Callers hold the write lock.
func (e *Environment) compactOrder() {
	live := e.order[:0]
	for _, id := range e.order {
		if _, ok := e.records[id]; ok {
			live = append(live, id)
		}
	}
	e.order = live
}

func (r *Report) diagnose(gen uint64, reason Reason, id model.EntityID, detail string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Generation: gen,
		Reason:     reason,
		Entity:     id,
		Detail:     detail,
	})
}
