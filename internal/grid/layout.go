package grid

import "fmt"

const (
	runeFree    = '.'
	runeBlocked = '#'
)

// Parse builds a grid from an ASCII map, one string per row (y ascending).
// '#' marks an obstacle and '.' a free cell. All rows must have equal length.
func Parse(rows []string) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrBadLayout)
	}
	width := len(rows[0])
	g, err := New(width, len(rows))
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrBadLayout, y, len(row), width)
		}
		for x := 0; x < len(row); x++ {
			switch row[x] {
			case runeFree:
			case runeBlocked:
				g.blocked[g.Index(Position{X: x, Y: y})] = true
			default:
				return nil, fmt.Errorf("%w: unexpected %q at %v", ErrBadLayout, row[x], Position{X: x, Y: y})
			}
		}
	}
	return g, nil
}

// Layout is the declarative form of a grid used in scenario files.
// Either Rows or Width/Height must be set; Obstacles are applied on top.
type Layout struct {
	Width     int        `yaml:"width,omitempty" json:"width,omitempty"`
	Height    int        `yaml:"height,omitempty" json:"height,omitempty"`
	Rows      []string   `yaml:"rows,omitempty" json:"rows,omitempty"`
	Obstacles []Position `yaml:"obstacles,omitempty" json:"obstacles,omitempty"`
}

// Build materialises the layout.
func (l Layout) Build() (*Grid, error) {
	var g *Grid
	var err error
	if len(l.Rows) > 0 {
		g, err = Parse(l.Rows)
	} else {
		g, err = New(l.Width, l.Height)
	}
	if err != nil {
		return nil, err
	}
	for _, p := range l.Obstacles {
		if err := g.SetObstacle(p); err != nil {
			return nil, fmt.Errorf("layout obstacle: %w", err)
		}
	}
	return g, nil
}
