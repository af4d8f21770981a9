// Package grid holds the static occupancy map robots move on.
package grid

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds = errors.New("position out of bounds")
	ErrInvalidSize = errors.New("grid dimensions must be positive")
	ErrBadLayout   = errors.New("malformed grid layout")
)

// Position is a cell coordinate. It is comparable and usable as a map key.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Manhattan returns |dx| + |dy|.
func Manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Neighbors returns the four orthogonal neighbours of p in fixed order:
// +x, -x, +y, -y. Bounds are not checked.
func Neighbors(p Position) [4]Position {
	return [4]Position{
		{p.X + 1, p.Y},
		{p.X - 1, p.Y},
		{p.X, p.Y + 1},
		{p.X, p.Y - 1},
	}
}

// Grid is a rectangular occupancy map. Cells default to free.
type Grid struct {
	width, height int
	blocked       []bool // row-major, index y*width+x
}

// New creates a width x height grid with no obstacles.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return &Grid{width: width, height: height, blocked: make([]bool, width*height)}, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// InBounds reports whether p lies within [0,width)x[0,height).
func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.X < g.width && p.Y >= 0 && p.Y < g.height
}

// Index returns the row-major index of p. The caller must check bounds.
func (g *Grid) Index(p Position) int { return p.Y*g.width + p.X }

// Size returns the number of cells.
func (g *Grid) Size() int { return g.width * g.height }

// IsObstacle reports whether p is blocked. Out-of-range positions are an error.
func (g *Grid) IsObstacle(p Position) (bool, error) {
	if !g.InBounds(p) {
		return false, fmt.Errorf("%w: %v in %dx%d", ErrOutOfBounds, p, g.width, g.height)
	}
	return g.blocked[g.Index(p)], nil
}

// Blocked is IsObstacle without the bounds error: out-of-range cells count as blocked.
func (g *Grid) Blocked(p Position) bool {
	return !g.InBounds(p) || g.blocked[g.Index(p)]
}

// SetObstacle marks p as blocked. Marking an already blocked cell is a no-op.
func (g *Grid) SetObstacle(p Position) error {
	if !g.InBounds(p) {
		return fmt.Errorf("%w: %v in %dx%d", ErrOutOfBounds, p, g.width, g.height)
	}
	g.blocked[g.Index(p)] = true
	return nil
}

// Obstacles lists blocked cells in row-major order.
func (g *Grid) Obstacles() []Position {
	out := []Position{}
	for i, b := range g.blocked {
		if b {
			out = append(out, Position{X: i % g.width, Y: i / g.width})
		}
	}
	return out
}

// FreeCells counts unblocked cells.
func (g *Grid) FreeCells() int {
	n := 0
	for _, b := range g.blocked {
		if !b {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of g.
func (g *Grid) Clone() *Grid {
	c := &Grid{width: g.width, height: g.height, blocked: make([]bool, len(g.blocked))}
	copy(c.blocked, g.blocked)
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
