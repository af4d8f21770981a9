// Package assign matches pending orders to robots using real shortest-path costs.
package assign

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"fleetnav/internal/fleet"
	"fleetnav/internal/grid"
	"fleetnav/internal/pathfind"
)

var (
	ErrDuplicateRobot = errors.New("duplicate robot id")
	ErrDuplicateOrder = errors.New("duplicate order id")
)

// Pairing is one robot's assignment: the order it received and the path to it.
type Pairing struct {
	RobotID int           `json:"robotId"`
	Order   fleet.Order   `json:"order"`
	Path    pathfind.Path `json:"path"`
}

// Cost is the number of moves along the path.
func (p Pairing) Cost() int { return p.Path.Cost() }

// Result of one assignment round. An empty Assignments map means no robot
// could reach any order; that is a normal outcome, not an error.
type Result struct {
	Policy           string          `json:"policy"`
	Assignments      map[int]Pairing `json:"assignments"`
	UnassignedRobots []int           `json:"unassignedRobots"`
	Pending          []fleet.Order   `json:"pending"`
	Stats            pathfind.Stats  `json:"-"`
	Excluded         int             `json:"excludedPairs"`
}

// Empty reports whether nothing was assigned.
func (r Result) Empty() bool { return len(r.Assignments) == 0 }

// Sorted returns the pairings ordered by robot id.
func (r Result) Sorted() []Pairing {
	out := make([]Pairing, 0, len(r.Assignments))
	for _, p := range r.Assignments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RobotID < out[j].RobotID })
	return out
}

// TotalCost sums the path costs of all pairings.
func (r Result) TotalCost() int {
	total := 0
	for _, p := range r.Assignments {
		total += p.Cost()
	}
	return total
}

// Assigner computes assignments. The zero value uses Greedy with unbounded parallelism.
type Assigner struct {
	Policy  Policy
	Workers int
	Search  pathfind.Options
}

// Assign runs Greedy with default settings.
func Assign(g *grid.Grid, robots []fleet.Robot, orders []fleet.Order) (Result, error) {
	return (&Assigner{}).Assign(context.Background(), g, robots, orders)
}

// Assign pairs robots with orders. The full cost matrix is computed before any
// pairing is committed. Each robot and each order appears in at most one pairing.
func (a *Assigner) Assign(ctx context.Context, g *grid.Grid, robots []fleet.Robot, orders []fleet.Order) (Result, error) {
	policy := a.Policy
	if policy == nil {
		policy = Greedy{}
	}
	if err := checkUnique(robots, orders); err != nil {
		return Result{}, err
	}

	res := Result{Policy: policy.Name(), Assignments: map[int]Pairing{}, UnassignedRobots: []int{}, Pending: []fleet.Order{}}
	if len(robots) == 0 || len(orders) == 0 {
		res.UnassignedRobots = append(res.UnassignedRobots, fleet.RobotIDs(robots)...)
		res.Pending = append(res.Pending, orders...)
		return res, nil
	}

	costs, err := BuildCosts(ctx, g, robots, orders, a.Workers, a.Search)
	if err != nil {
		return Result{}, err
	}
	res.Stats = costs.Stats
	res.Excluded = costs.Excluded

	usedR := make([]bool, len(robots))
	usedO := make([]bool, len(orders))
	for _, m := range policy.Match(costs) {
		if usedR[m.Robot] || usedO[m.Order] || costs.Path(m.Robot, m.Order) == nil {
			return Result{}, fmt.Errorf("policy %s produced an invalid match %+v", policy.Name(), m)
		}
		usedR[m.Robot], usedO[m.Order] = true, true
		id := robots[m.Robot].ID
		res.Assignments[id] = Pairing{RobotID: id, Order: orders[m.Order], Path: costs.Path(m.Robot, m.Order)}
	}
	for i, r := range robots {
		if !usedR[i] {
			res.UnassignedRobots = append(res.UnassignedRobots, r.ID)
		}
	}
	for i, o := range orders {
		if !usedO[i] {
			res.Pending = append(res.Pending, o)
		}
	}
	return res, nil
}

func checkUnique(robots []fleet.Robot, orders []fleet.Order) error {
	seenR := make(map[int]struct{}, len(robots))
	for _, r := range robots {
		if _, ok := seenR[r.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateRobot, r.ID)
		}
		seenR[r.ID] = struct{}{}
	}
	seenO := make(map[int]struct{}, len(orders))
	for _, o := range orders {
		if _, ok := seenO[o.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateOrder, o.ID)
		}
		seenO[o.ID] = struct{}{}
	}
	return nil
}
