package assign

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Match pairs a robot index with an order index in a Costs matrix.
type Match struct {
	Robot, Order int
}

// Policy turns a complete cost matrix into a one-to-one matching.
// Only feasible pairs may be returned.
type Policy interface {
	Name() string
	Match(c *Costs) []Match
}

// ParsePolicy resolves a policy by name. Empty selects Greedy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "greedy":
		return Greedy{}, nil
	case "optimal":
		return Optimal{}, nil
	default:
		return nil, fmt.Errorf("unknown assignment policy: %s (allowed: greedy,optimal)", name)
	}
}

// Greedy repeatedly commits the globally cheapest unassigned pair.
// Ties go to the lowest robot id, then the lowest order sequence.
type Greedy struct{}

func (Greedy) Name() string { return "greedy" }

func (Greedy) Match(c *Costs) []Match {
	cands := c.candidates()
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.cost != b.cost {
			return a.cost < b.cost
		}
		if ra, rb := c.Robots[a.r].ID, c.Robots[b.r].ID; ra != rb {
			return ra < rb
		}
		if sa, sb := c.Orders[a.o].Seq, c.Orders[b.o].Seq; sa != sb {
			return sa < sb
		}
		return a.o < b.o
	})

	limit := min(len(c.Robots), len(c.Orders))
	usedR := make([]bool, len(c.Robots))
	usedO := make([]bool, len(c.Orders))
	out := []Match{}
	for _, cd := range cands {
		if len(out) == limit {
			break
		}
		if usedR[cd.r] || usedO[cd.o] {
			continue
		}
		usedR[cd.r], usedO[cd.o] = true, true
		out = append(out, Match{Robot: cd.r, Order: cd.o})
	}
	return out
}

// Optimal finds a maximum-cardinality matching of minimum total path cost
// (Hungarian method). Infeasible pairs carry a penalty larger than any
// feasible total so they are only chosen when unavoidable, then dropped.
type Optimal struct{}

func (Optimal) Name() string { return "optimal" }

func (Optimal) Match(c *Costs) []Match {
	n, m := len(c.Robots), len(c.Orders)
	if n == 0 || m == 0 {
		return []Match{}
	}
	var penalty int64 = 1
	for _, cd := range c.candidates() {
		penalty += int64(cd.cost)
	}

	// hungarian needs rows <= cols
	transposed := n > m
	rows, cols := n, m
	if transposed {
		rows, cols = m, n
	}
	a := make([][]int64, rows)
	for i := range a {
		a[i] = make([]int64, cols)
		for j := range a[i] {
			r, o := i, j
			if transposed {
				r, o = j, i
			}
			if cost, ok := c.Cost(r, o); ok {
				a[i][j] = int64(cost)
			} else {
				a[i][j] = penalty
			}
		}
	}

	out := []Match{}
	for i, j := range hungarian(a) {
		r, o := i, j
		if transposed {
			r, o = j, i
		}
		if _, ok := c.Cost(r, o); ok {
			out = append(out, Match{Robot: r, Order: o})
		}
	}
	return out
}

// hungarian solves the rectangular assignment problem for len(a) <= len(a[0])
// and returns the column chosen for each row.
func hungarian(a [][]int64) []int {
	const inf = math.MaxInt64 / 4
	n, m := len(a), len(a[0])
	u := make([]int64, n+1)
	v := make([]int64, m+1)
	p := make([]int, m+1) // p[j]: row matched to column j, 1-based
	way := make([]int, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]int64, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = inf
		}
		for {
			used[j0] = true
			i0, delta, j1 := p[j0], int64(inf), 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := a[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	ans := make([]int, n)
	for j := 1; j <= m; j++ {
		if p[j] != 0 {
			ans[p[j]-1] = j - 1
		}
	}
	return ans
}
