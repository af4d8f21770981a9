package pathfind

import (
	"fmt"
	"strings"

	"fleetnav/internal/grid"
)

// Path is an ordered run of cells from start to goal inclusive.
type Path []grid.Position

// Cost is the number of moves, len-1. An empty path costs 0.
func (p Path) Cost() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Start returns the first cell. The path must not be empty.
func (p Path) Start() grid.Position { return p[0] }

// End returns the last cell. The path must not be empty.
func (p Path) End() grid.Position { return p[len(p)-1] }

// Validate checks that every cell is in bounds and free and consecutive cells are 4-adjacent.
func (p Path) Validate(g *grid.Grid) error {
	for i, c := range p {
		blocked, err := g.IsObstacle(c)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if blocked {
			return fmt.Errorf("step %d: %v is blocked", i, c)
		}
		if i > 0 && grid.Manhattan(p[i-1], c) != 1 {
			return fmt.Errorf("step %d: %v not adjacent to %v", i, c, p[i-1])
		}
	}
	return nil
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, c := range p {
		parts[i] = c.String()
	}
	return strings.Join(parts, "->")
}
