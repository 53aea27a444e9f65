package model

// Footprint is the set of cells occupied by an entity: a width-by-height
// extent anchored at a position. The zero Size is normalized to a single
// cell, so a Footprint built from just an anchor occupies that one cell.
type Footprint struct {
	Anchor Position
	Size   Dimension
}

// At returns a single-cell footprint anchored at the given position.
func At(p Position) Footprint {
	return Footprint{Anchor: p, Size: Dimension{Width: 1, Height: 1}}
}

// Region returns a multi-cell footprint of the given size anchored at the
// given position.
func Region(p Position, size Dimension) Footprint {
	return Footprint{Anchor: p, Size: size}
}

// normalized returns the footprint with a zero or negative size promoted to
// a single cell.
func (f Footprint) normalized() Footprint {
	if f.Size.Width < 1 {
		f.Size.Width = 1
	}
	if f.Size.Height < 1 {
		f.Size.Height = 1
	}
	return f
}

// Cells enumerates every cell of the footprint in row-major order.
func (f Footprint) Cells() []Position {
	f = f.normalized()
	cells := make([]Position, 0, f.Size.Len())
	for y := 0; y < f.Size.Height; y++ {
		for x := 0; x < f.Size.Width; x++ {
			cells = append(cells, Position{X: f.Anchor.X + x, Y: f.Anchor.Y + y})
		}
	}
	return cells
}

// In reports whether every cell of the footprint falls within the given
// bounds.
func (f Footprint) In(bounds Dimension) bool {
	f = f.normalized()
	if !bounds.Contains(f.Anchor) {
		return false
	}
	corner := Position{
		X: f.Anchor.X + f.Size.Width - 1,
		Y: f.Anchor.Y + f.Size.Height - 1,
	}
	return bounds.Contains(corner)
}

// Wrap translates the footprint anchor into the given bounds treating the
// grid as a torus. The size is preserved; individual cells of a wrapped
// multi-cell footprint are wrapped again during enumeration by the spatial
// index.
func (f Footprint) Wrap(bounds Dimension) Footprint {
	f = f.normalized()
	f.Anchor = f.Anchor.Wrap(bounds)
	return f
}

// Overlaps reports whether the two footprints share at least one cell.
func (f Footprint) Overlaps(other Footprint) bool {
	f = f.normalized()
	other = other.normalized()
	if f.Anchor.X+f.Size.Width <= other.Anchor.X ||
		other.Anchor.X+other.Size.Width <= f.Anchor.X {
		return false
	}
	if f.Anchor.Y+f.Size.Height <= other.Anchor.Y ||
		other.Anchor.Y+other.Size.Height <= f.Anchor.Y {
		return false
	}
	return true
}
