// Package pathfind implements A* search over a 4-connected unit-cost grid.
package pathfind

import (
	"container/heap"
	"errors"
	"fmt"

	"fleetnav/internal/grid"
)

var (
	// ErrInvalidEndpoint means start or goal is itself an obstacle.
	ErrInvalidEndpoint = errors.New("endpoint is blocked")
	// ErrNotFound means no path connects the endpoints. It is an expected outcome.
	ErrNotFound = errors.New("no path found")
	// ErrBudgetExhausted is reported when Options.MaxExpansions is hit; it matches ErrNotFound.
	ErrBudgetExhausted = fmt.Errorf("%w: search budget exhausted", ErrNotFound)
)

// Options tunes a search.
type Options struct {
	// MaxExpansions caps the number of cells popped from the open set. 0 means unbounded.
	MaxExpansions int
}

// Stats describes the work done by one search.
type Stats struct {
	Expanded int // cells finalized
	Pushed   int // open-set insertions
}

// astarNode for the open set.
type astarNode struct {
	cell   int // row-major grid index
	g      int // cost so far
	h      int // heuristic to goal
	seq    int // insertion order
	parent *astarNode
	index  int // heap index
}

// astarHeap orders by f = g+h, then lower h, then earlier insertion.
type astarHeap []*astarNode

func (h astarHeap) Len() int { return len(h) }
func (h astarHeap) Less(i, j int) bool {
	fi, fj := h[i].g+h[i].h, h[j].g+h[j].h
	if fi != fj {
		return fi < fj
	}
	if h[i].h != h[j].h {
		return h[i].h < h[j].h
	}
	return h[i].seq < h[j].seq
}
func (h astarHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *astarHeap) Push(x any) {
	n := x.(*astarNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *astarHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// FindPath returns the shortest path from start to goal, both inclusive.
func FindPath(g *grid.Grid, start, goal grid.Position) (Path, error) {
	p, _, err := Search(g, start, goal, Options{})
	return p, err
}

// Search runs A* from start to goal.
//
// Endpoints out of range fail with grid.ErrOutOfBounds, blocked endpoints with
// ErrInvalidEndpoint. An exhausted open set yields ErrNotFound. Identical inputs
// always produce the identical path.
func Search(g *grid.Grid, start, goal grid.Position, opts Options) (Path, Stats, error) {
	var st Stats
	if err := checkEndpoint(g, start, "start"); err != nil {
		return nil, st, err
	}
	if err := checkEndpoint(g, goal, "goal"); err != nil {
		return nil, st, err
	}
	if start == goal {
		return Path{start}, st, nil
	}

	width := g.Width()
	best := make([]int, g.Size()) // best known g per cell, 0 = unseen
	closed := make([]bool, g.Size())
	seq := 0

	open := &astarHeap{}
	push := func(n *astarNode) {
		n.seq = seq
		seq++
		st.Pushed++
		heap.Push(open, n)
	}

	startIdx := g.Index(start)
	best[startIdx] = 1
	push(&astarNode{cell: startIdx, h: grid.Manhattan(start, goal)})

	goalIdx := g.Index(goal)
	for open.Len() > 0 {
		current := heap.Pop(open).(*astarNode)
		if closed[current.cell] {
			continue
		}
		closed[current.cell] = true
		st.Expanded++

		if current.cell == goalIdx {
			return reconstructPath(current, width), st, nil
		}
		if opts.MaxExpansions > 0 && st.Expanded >= opts.MaxExpansions {
			return nil, st, ErrBudgetExhausted
		}

		pos := grid.Position{X: current.cell % width, Y: current.cell / width}
		for _, nb := range grid.Neighbors(pos) {
			if g.Blocked(nb) {
				continue
			}
			idx := g.Index(nb)
			if closed[idx] {
				continue
			}
			ng := current.g + 1
			// best stores g+1 so the zero value can mean unseen
			if best[idx] != 0 && best[idx] <= ng+1 {
				continue
			}
			best[idx] = ng + 1
			push(&astarNode{cell: idx, g: ng, h: grid.Manhattan(nb, goal), parent: current})
		}
	}
	return nil, st, ErrNotFound
}

func checkEndpoint(g *grid.Grid, p grid.Position, name string) error {
	blocked, err := g.IsObstacle(p)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if blocked {
		return fmt.Errorf("%s %v: %w", name, p, ErrInvalidEndpoint)
	}
	return nil
}

func reconstructPath(node *astarNode, width int) Path {
	var path Path
	for n := node; n != nil; n = n.parent {
		path = append(path, grid.Position{X: n.cell % width, Y: n.cell / width})
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
