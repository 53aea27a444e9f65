package env

import "github.com/signalsfoundry/grid-simulator/model"

// tiles is the spatial index of the environment: a 1-dimensional, row-major
// grid of cells, each holding the set of entity identities occupying it. It
// is the authoritative answer to "what occupies region R" and is kept
// consistent with the registry at every generation boundary.
type tiles struct {
	bounds model.Dimension
	wrap   bool
	cells  []map[model.EntityID]struct{}
}

func newTiles(bounds model.Dimension, wrap bool) *tiles {
	return &tiles{
		bounds: bounds,
		wrap:   wrap,
		cells:  make([]map[model.EntityID]struct{}, bounds.Len()),
	}
}

// index maps a position to its cell index, wrapping toroidal coordinates.
// It returns -1 for positions outside a bounded grid.
func (t *tiles) index(p model.Position) int {
	if t.wrap {
		p = p.Wrap(t.bounds)
	} else if !t.bounds.Contains(p) {
		return -1
	}
	return p.Index(t.bounds)
}

// insert registers the entity on every cell of its footprint.
func (t *tiles) insert(id model.EntityID, fp model.Footprint) {
	for _, pos := range fp.Cells() {
		idx := t.index(pos)
		if idx < 0 {
			continue
		}
		if t.cells[idx] == nil {
			t.cells[idx] = make(map[model.EntityID]struct{})
		}
		t.cells[idx][id] = struct{}{}
	}
}

// remove unregisters the entity from every cell of its footprint.
func (t *tiles) remove(id model.EntityID, fp model.Footprint) {
	for _, pos := range fp.Cells() {
		idx := t.index(pos)
		if idx < 0 {
			continue
		}
		delete(t.cells[idx], id)
	}
}

// in collects the identities occupying at least one cell of the region. The
// result is an unordered set; callers sort as needed.
func (t *tiles) in(region model.Footprint) map[model.EntityID]struct{} {
	found := make(map[model.EntityID]struct{})
	for _, pos := range region.Cells() {
		idx := t.index(pos)
		if idx < 0 {
			continue
		}
		for id := range t.cells[idx] {
			found[id] = struct{}{}
		}
	}
	return found
}

// occupied reports whether any cell of the region is held by an entity other
// than the one being moved.
func (t *tiles) occupied(region model.Footprint, moving model.EntityID) bool {
	for _, pos := range region.Cells() {
		idx := t.index(pos)
		if idx < 0 {
			continue
		}
		for id := range t.cells[idx] {
			if id != moving {
				return true
			}
		}
	}
	return false
}
