package model

// Position is a pair of integer coordinates identifying a cell of the
// environment grid. It is a plain value type with structural equality.
type Position struct {
	X int
	Y int
}

// Offset is a relative displacement between two positions.
type Offset struct {
	DX int
	DY int
}

// Dimension is the extent of a rectangular region as a number of columns
// and rows.
type Dimension struct {
	Width  int
	Height int
}

// Origin returns the position (0, 0).
func Origin() Position {
	return Position{}
}

// Add returns the position translated by the given offset, without any
// bounds handling.
func (p Position) Add(o Offset) Position {
	return Position{X: p.X + o.DX, Y: p.Y + o.DY}
}

// Wrap translates the position into the given bounds treating the grid as a
// torus: coordinates past an edge re-enter from the opposite edge.
func (p Position) Wrap(bounds Dimension) Position {
	return Position{
		X: mod(p.X, bounds.Width),
		Y: mod(p.Y, bounds.Height),
	}
}

// Index maps the position to a 1-dimensional row-major index within the
// given bounds. The position must be contained in the bounds.
func (p Position) Index(bounds Dimension) int {
	return p.Y*bounds.Width + p.X
}

// Less orders positions row-major: first by Y, then by X.
func (p Position) Less(other Position) bool {
	if p.Y != other.Y {
		return p.Y < other.Y
	}
	return p.X < other.X
}

// Len returns the number of cells in a grid of this dimension.
func (d Dimension) Len() int {
	if d.Width <= 0 || d.Height <= 0 {
		return 0
	}
	return d.Width * d.Height
}

// Contains reports whether the given position falls within a grid of this
// dimension anchored at the origin.
func (d Dimension) Contains(p Position) bool {
	return p.X >= 0 && p.X < d.Width && p.Y >= 0 && p.Y < d.Height
}

// mod is the euclidean remainder, always in [0, n) for n > 0.
func mod(v, n int) int {
	m := v % n
	if m < 0 {
		m += n
	}
	return m
}
