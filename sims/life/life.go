// Package life implements Conway's Game of Life as a single board entity:
// the whole grid is one entity whose reaction evolves its internal cell
// state and reports the change with a Mutate action.
package life

import (
	"math/rand"

	"github.com/signalsfoundry/grid-simulator/env"
	"github.com/signalsfoundry/grid-simulator/model"
)

// Board holds the cell grid with toroidal wrapping. It occupies the full
// environment footprint and is safe for parallel dispatch since its state is
// not shared with other entities.
type Board struct {
	w, h int
	cur  []uint8
	nxt  []uint8
}

// NewBoard returns an empty board of the given dimensions.
func NewBoard(bounds model.Dimension) *Board {
	cells := make([]uint8, bounds.Len())
	return &Board{
		w:   bounds.Width,
		h:   bounds.Height,
		cur: cells,
		nxt: make([]uint8, len(cells)),
	}
}

// Install inserts the board into the environment with a footprint covering
// the whole grid and returns its identity.
func (b *Board) Install(environment *env.Environment) (model.EntityID, error) {
	fp := model.Region(model.Origin(), model.Dimension{Width: b.w, Height: b.h})
	return environment.Insert(b, fp)
}

// ConcurrentSafe marks the board as parallel-dispatch eligible.
func (b *Board) ConcurrentSafe() {}

// React advances the board one generation.
func (b *Board) React(env.Self, *env.Snapshot) (env.Action, error) {
	b.step()
	return env.Mutated(), nil
}

// Alive reports whether the cell at (x, y) is live.
func (b *Board) Alive(x, y int) bool {
	return b.cur[y*b.w+x] == 1
}

// Set makes the cell at (x, y) live.
func (b *Board) Set(x, y int) {
	b.cur[y*b.w+x] = 1
}

// Population returns the number of live cells.
func (b *Board) Population() int {
	n := 0
	for _, c := range b.cur {
		n += int(c)
	}
	return n
}

// Randomize fills the board from the given seed; roughly half the cells
// come up live.
func (b *Board) Randomize(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range b.cur {
		b.cur[i] = uint8(rng.Intn(2))
	}
}

// SeedPattern marks live every listed position, anchored at the given
// offset, wrapping positions that fall outside the board.
func (b *Board) SeedPattern(at model.Position, cells []model.Position) {
	bounds := model.Dimension{Width: b.w, Height: b.h}
	for _, c := range cells {
		p := model.Position{X: at.X + c.X, Y: at.Y + c.Y}.Wrap(bounds)
		b.Set(p.X, p.Y)
	}
}

// step applies the B3/S23 rule with toroidal wrapping.
func (b *Board) step() {
	w, h := b.w, b.h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			neighbors := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx := (x + dx + w) % w
					ny := (y + dy + h) % h
					neighbors += int(b.cur[ny*w+nx])
				}
			}
			idx := y*w + x
			alive := b.cur[idx] == 1
			b.nxt[idx] = 0
			if (alive && (neighbors == 2 || neighbors == 3)) || (!alive && neighbors == 3) {
				b.nxt[idx] = 1
			}
		}
	}
	b.cur, b.nxt = b.nxt, b.cur
}

// Common seed patterns, relative to their top-left corner.
var (
	// Blinker is a period-2 oscillator.
	Blinker = []model.Position{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2}}
	// Glider travels diagonally, one cell every four generations.
	Glider = []model.Position{{X: 1, Y: 0}, {X: 2, Y: 1}, {X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2}}
)
