package env

import (
	"sort"

	"github.com/signalsfoundry/grid-simulator/model"
)

// Snapshot is the read-only view of the environment that reaction calls and
// external readers observe during one generation. It is a view over the
// live store, not a copy: it stays fixed because the store is only ever
// mutated by the commit phase, which runs strictly after dispatch. A
// snapshot is invalidated by the next commit and must not be retained past
// the next AdvanceGeneration call; use Expired to detect a stale handle.
type Snapshot struct {
	env        *Environment
	generation uint64
}

// Generation returns the generation the snapshot was taken at.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Bounds returns the environment's grid dimensions.
func (s *Snapshot) Bounds() model.Dimension {
	return s.env.bounds
}

// Wrap returns the environment's edge policy.
func (s *Snapshot) Wrap() WrapPolicy {
	return s.env.wrap
}

// Expired reports whether a commit has happened since the snapshot was
// taken, invalidating it.
func (s *Snapshot) Expired() bool {
	return s.env.Generation() != s.generation
}

// Len returns the number of live entities.
func (s *Snapshot) Len() int {
	return s.env.Len()
}

// EntitiesIn returns the identities occupying at least one cell of the
// region, in ascending issuance order. In a toroidal environment the region
// wraps around the edges.
func (s *Snapshot) EntitiesIn(region model.Footprint) []model.EntityID {
	s.env.mu.RLock()
	found := s.env.tiles.in(region)
	s.env.mu.RUnlock()

	ids := make([]model.EntityID, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FootprintOf returns the footprint of the given entity, if it is alive.
func (s *Snapshot) FootprintOf(id model.EntityID) (model.Footprint, bool) {
	s.env.mu.RLock()
	defer s.env.mu.RUnlock()
	rec, ok := s.env.records[id]
	if !ok || !rec.alive {
		return model.Footprint{}, false
	}
	return rec.footprint, true
}

// Contains reports whether the given entity is alive in the snapshot.
func (s *Snapshot) Contains(id model.EntityID) bool {
	_, ok := s.FootprintOf(id)
	return ok
}

// Each visits every live entity in ascending identity-issuance order,
// stopping early if fn returns false. The entity reference is provided for
// rendering and analysis; callers must treat it as read-only, and reactions
// must not mutate anything reached through it.
func (s *Snapshot) Each(fn func(id model.EntityID, fp model.Footprint, entity Entity) bool) {
	for _, h := range s.env.Population() {
		if !fn(h.ID, h.Footprint, h.Entity) {
			return
		}
	}
}
