package model

import (
	"fleetnav/internal/assign"
	"fleetnav/internal/fleet"
	"fleetnav/internal/grid"
	"fleetnav/internal/pathfind"
)

// Wire types of the dispatch API.

type GridOut struct {
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Obstacles []grid.Position `json:"obstacles"`
	FreeCells int             `json:"freeCells"`
}

type RobotIn struct {
	ID       int            `json:"id"`
	Position *grid.Position `json:"position"`
}

// ObstacleIn marks one cell blocked. Both coordinates are required.
type ObstacleIn struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

type OrderIn struct {
	Destination *grid.Position `json:"destination"`
}

type PathRequest struct {
	Start         *grid.Position `json:"start"`
	Goal          *grid.Position `json:"goal"`
	MaxExpansions int            `json:"maxExpansions,omitempty"`
}

type PathResponse struct {
	Found    bool            `json:"found"`
	Path     []grid.Position `json:"path,omitempty"`
	Cost     int             `json:"cost"`
	Expanded int             `json:"expanded"`
	Reason   string          `json:"reason,omitempty"`
}

// Assignment is one robot/order pairing as stored and served.
type Assignment struct {
	RobotID int             `json:"robotId"`
	OrderID int             `json:"orderId"`
	From    grid.Position   `json:"from"`
	To      grid.Position   `json:"to"`
	Cost    int             `json:"cost"`
	Path    []grid.Position `json:"path"`
}

// DispatchRun records the outcome of one assignment round.
type DispatchRun struct {
	ID               string        `json:"id"`
	CreatedAt        string        `json:"createdAt"`
	Policy           string        `json:"policy"`
	Assignments      []Assignment  `json:"assignments"`
	UnassignedRobots []int         `json:"unassignedRobots"`
	Pending          []fleet.Order `json:"pending"`
	TotalCost        int           `json:"totalCost"`
	Expanded         int           `json:"expanded"`
	ExcludedPairs    int           `json:"excludedPairs"`
	DurationMs       int64         `json:"durationMs"`
}

// NewDispatchRun flattens an assignment result in robot-id order.
// The run id and timestamps are left for the store to fill.
func NewDispatchRun(res assign.Result) DispatchRun {
	run := DispatchRun{
		Policy:           res.Policy,
		Assignments:      []Assignment{},
		UnassignedRobots: append([]int{}, res.UnassignedRobots...),
		Pending:          append([]fleet.Order{}, res.Pending...),
		TotalCost:        res.TotalCost(),
		Expanded:         res.Stats.Expanded,
		ExcludedPairs:    res.Excluded,
	}
	for _, p := range res.Sorted() {
		run.Assignments = append(run.Assignments, Assignment{
			RobotID: p.RobotID,
			OrderID: p.Order.ID,
			From:    p.Path.Start(),
			To:      p.Path.End(),
			Cost:    p.Cost(),
			Path:    []grid.Position(p.Path),
		})
	}
	return run
}

// NewPathResponse renders a successful search.
func NewPathResponse(p pathfind.Path, st pathfind.Stats) PathResponse {
	return PathResponse{Found: true, Path: []grid.Position(p), Cost: p.Cost(), Expanded: st.Expanded}
}
