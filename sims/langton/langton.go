// Package langton implements Langton's ant. Black cells are marked by
// Square entities; a cell is black exactly when a square occupies it. The
// ant runs at half speed, spending one generation per cell reading the
// color and one generation moving, so that spawn visibility lines up with
// the environment's next-generation rule.
package langton

import (
	"github.com/signalsfoundry/grid-simulator/env"
	"github.com/signalsfoundry/grid-simulator/model"
)

// Direction is a cardinal heading.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return "unknown"
}

// TurnLeft returns the heading after a 90 degree counterclockwise turn.
func (d Direction) TurnLeft() Direction { return (d + 3) % 4 }

// TurnRight returns the heading after a 90 degree clockwise turn.
func (d Direction) TurnRight() Direction { return (d + 1) % 4 }

// Offset returns the unit step for the heading.
func (d Direction) Offset() model.Offset {
	switch d {
	case Up:
		return model.Offset{DX: 0, DY: -1}
	case Right:
		return model.Offset{DX: 1, DY: 0}
	case Down:
		return model.Offset{DX: 0, DY: 1}
	}
	return model.Offset{DX: -1, DY: 0}
}

// Ant walks the grid flipping cell colors. Each cell visit takes two
// generations: the flip generation turns the ant and toggles the cell, the
// move generation steps onto the next cell. A board carries at most one ant;
// color checks read only cell occupancy, never other entities' state, so the
// ant is parallel-dispatch safe.
type Ant struct {
	dir     Direction
	pending bool
}

// NewAnt returns an ant facing the given direction.
func NewAnt(dir Direction) *Ant {
	return &Ant{dir: dir}
}

// Direction returns the ant's current heading.
func (a *Ant) Direction() Direction { return a.dir }

// ConcurrentSafe marks the ant as parallel-dispatch eligible.
func (a *Ant) ConcurrentSafe() {}

// React alternates flip and move generations.
func (a *Ant) React(self env.Self, snap *env.Snapshot) (env.Action, error) {
	if a.pending {
		a.pending = false
		to := self.Footprint.Anchor.Add(a.dir.Offset())
		return env.MoveTo(model.At(to)), nil
	}
	a.pending = true
	if occupied(snap, self) {
		// Black cell: turn left. The square removes itself this
		// generation, flipping the cell back to white.
		a.dir = a.dir.TurnLeft()
		return env.Mutated(), nil
	}
	// White cell: turn right and flip it black.
	a.dir = a.dir.TurnRight()
	return env.SpawnChild(NewSquare(), self.Footprint), nil
}

// Square marks a black cell. It idles until the ant returns, then removes
// itself on the flip generation. A freshly spawned square skips its first
// reaction so it does not take the still-present ant that created it for a
// returning one.
type Square struct {
	age int
}

// NewSquare returns a square that has not yet reacted.
func NewSquare() *Square { return &Square{} }

// ConcurrentSafe marks the square as parallel-dispatch eligible.
func (s *Square) ConcurrentSafe() {}

// React removes the square when the ant stands on it again.
func (s *Square) React(self env.Self, snap *env.Snapshot) (env.Action, error) {
	s.age++
	if s.age > 1 && occupied(snap, self) {
		return env.Remove(), nil
	}
	return env.Mutated(), nil
}

// occupied reports whether any entity other than self stands on self's cell.
func occupied(snap *env.Snapshot, self env.Self) bool {
	for _, id := range snap.EntitiesIn(model.At(self.Footprint.Anchor)) {
		if id != self.ID {
			return true
		}
	}
	return false
}
