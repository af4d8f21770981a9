package assign

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fleetnav/internal/fleet"
	"fleetnav/internal/grid"
	"fleetnav/internal/pathfind"
)

// Costs is the complete robot x order matrix of shortest paths.
// A nil path marks a pair with no feasible route.
type Costs struct {
	Robots []fleet.Robot
	Orders []fleet.Order
	paths  [][]pathfind.Path
	// Stats sums the search work over all pairs.
	Stats pathfind.Stats
	// Excluded counts unreachable or invalid pairs.
	Excluded int
}

// Path returns the path for robot index r and order index o, nil if infeasible.
func (c *Costs) Path(r, o int) pathfind.Path { return c.paths[r][o] }

// Cost returns the path cost for a pair and whether the pair is feasible.
func (c *Costs) Cost(r, o int) (int, bool) {
	p := c.paths[r][o]
	if p == nil {
		return 0, false
	}
	return p.Cost(), true
}

// candidate is a feasible (robot, order) pair by index.
type candidate struct {
	r, o int
	cost int
}

func (c *Costs) candidates() []candidate {
	out := []candidate{}
	for r := range c.Robots {
		for o := range c.Orders {
			if cost, ok := c.Cost(r, o); ok {
				out = append(out, candidate{r: r, o: o, cost: cost})
			}
		}
	}
	return out
}

// BuildCosts searches every (robot, order) pair. Searches run in parallel, at most
// workers at a time (0 means unbounded); the grid must not change meanwhile.
// Unreachable pairs and pairs with a blocked endpoint are excluded rather than
// failing the batch. Out-of-range positions and context cancellation abort it.
func BuildCosts(ctx context.Context, g *grid.Grid, robots []fleet.Robot, orders []fleet.Order, workers int, opts pathfind.Options) (*Costs, error) {
	c := &Costs{Robots: robots, Orders: orders, paths: make([][]pathfind.Path, len(robots))}
	for r := range c.paths {
		c.paths[r] = make([]pathfind.Path, len(orders))
	}
	stats := make([]pathfind.Stats, len(robots)*len(orders))

	eg, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for r := range robots {
		for o := range orders {
			eg.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				p, st, err := pathfind.Search(g, robots[r].Position, orders[o].Destination, opts)
				stats[r*len(orders)+o] = st
				switch {
				case err == nil:
					c.paths[r][o] = p
				case errors.Is(err, pathfind.ErrNotFound), errors.Is(err, pathfind.ErrInvalidEndpoint):
				default:
					return fmt.Errorf("robot %d to order %d: %w", robots[r].ID, orders[o].ID, err)
				}
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, st := range stats {
		c.Stats.Expanded += st.Expanded
		c.Stats.Pushed += st.Pushed
	}
	for r := range c.paths {
		for o := range c.paths[r] {
			if c.paths[r][o] == nil {
				c.Excluded++
			}
		}
	}
	return c, nil
}
