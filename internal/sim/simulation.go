// Package sim owns the fleet state and drives order assignment rounds.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"fleetnav/internal/assign"
	"fleetnav/internal/fleet"
	"fleetnav/internal/grid"
)

var (
	ErrDuplicateRobot = errors.New("robot already exists")
	ErrUnknownRobot   = errors.New("unknown robot")
)

// DefaultLowBattery is the charge at or below which a robot sits out assignment.
const DefaultLowBattery = 30

// Simulation owns one grid, the robots and the queue of pending orders.
// All methods are safe for concurrent use; an assignment round holds the lock
// for its whole computation so nothing mutates during a search.
type Simulation struct {
	mu         sync.Mutex
	grid       *grid.Grid
	robots     map[int]*fleet.Robot
	pending    []fleet.Order
	nextOrder  int
	nextSeq    int
	assigner   *assign.Assigner
	lowBattery int
}

type Option func(*Simulation)

// WithAssigner replaces the default greedy assigner.
func WithAssigner(a *assign.Assigner) Option {
	return func(s *Simulation) { s.assigner = a }
}

// WithLowBattery sets the low-battery level. Zero or less disables the check.
func WithLowBattery(level int) Option {
	return func(s *Simulation) { s.lowBattery = level }
}

// New creates a Simulation over g. The simulation takes ownership of g.
func New(g *grid.Grid, opts ...Option) *Simulation {
	s := &Simulation{
		grid:       g,
		robots:     map[int]*fleet.Robot{},
		nextOrder:  1,
		assigner:   &assign.Assigner{},
		lowBattery: DefaultLowBattery,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddRobot places a fully charged robot at pos.
func (s *Simulation) AddRobot(id int, pos grid.Position) (fleet.Robot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.robots[id]; ok {
		return fleet.Robot{}, fmt.Errorf("%w: %d", ErrDuplicateRobot, id)
	}
	if _, err := s.grid.IsObstacle(pos); err != nil {
		return fleet.Robot{}, err
	}
	r := &fleet.Robot{ID: id, Position: pos, Charge: fleet.FullCharge}
	s.robots[id] = r
	return *r, nil
}

// AddOrder queues a delivery to dest and returns it with its assigned id.
func (s *Simulation) AddOrder(dest grid.Position) (fleet.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.grid.IsObstacle(dest); err != nil {
		return fleet.Order{}, err
	}
	o := fleet.Order{ID: s.nextOrder, Destination: dest, Seq: s.nextSeq}
	s.nextOrder++
	s.nextSeq++
	s.pending = append(s.pending, o)
	return o, nil
}

// Recharge restores a robot to full charge.
func (s *Simulation) Recharge(id int) (fleet.Robot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.robots[id]
	if !ok {
		return fleet.Robot{}, fmt.Errorf("%w: %d", ErrUnknownRobot, id)
	}
	r.Charge = fleet.FullCharge
	return *r, nil
}

// SetObstacle blocks a cell between assignment rounds.
func (s *Simulation) SetObstacle(pos grid.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.SetObstacle(pos)
}

// Grid returns a copy of the current grid.
func (s *Simulation) Grid() *grid.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Clone()
}

// Robots returns a snapshot of all robots ordered by id.
func (s *Simulation) Robots() []fleet.Robot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(false)
}

// Pending returns the queued orders in arrival order.
func (s *Simulation) Pending() []fleet.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fleet.Order{}, s.pending...)
}

// AssignOrders runs one assignment round. Every pairing moves its robot to the
// order's destination and consumes the order; unassigned orders stay queued.
// Robots at or below the low-battery level do not take part.
func (s *Simulation) AssignOrders(ctx context.Context) (assign.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	robots := s.snapshotLocked(true)
	res, err := s.assigner.Assign(ctx, s.grid, robots, s.pending)
	if err != nil {
		return assign.Result{}, err
	}

	// report benched robots alongside the ones the assigner left idle
	if len(robots) != len(s.robots) {
		res.UnassignedRobots = s.idleIDsLocked(res)
	}

	consumed := make(map[int]struct{}, len(res.Assignments))
	for id, p := range res.Assignments {
		r := s.robots[id]
		r.Position = p.Path.End()
		r.OrderID = p.Order.ID
		r.Odometer += p.Cost()
		r.Charge = max(0, r.Charge-p.Cost())
		consumed[p.Order.ID] = struct{}{}
	}
	kept := s.pending[:0]
	for _, o := range s.pending {
		if _, ok := consumed[o.ID]; !ok {
			kept = append(kept, o)
		}
	}
	s.pending = kept
	return res, nil
}

func (s *Simulation) snapshotLocked(eligibleOnly bool) []fleet.Robot {
	out := make([]fleet.Robot, 0, len(s.robots))
	for _, r := range s.robots {
		if eligibleOnly && s.lowBattery > 0 && r.Charge <= s.lowBattery {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Simulation) idleIDsLocked(res assign.Result) []int {
	ids := []int{}
	for id := range s.robots {
		if _, ok := res.Assignments[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}
