// Package fleet defines the robot and order records shared by the assigner and the simulation.
package fleet

import "fleetnav/internal/grid"

// FullCharge is the battery level of a freshly added or recharged robot.
const FullCharge = 100

// Robot is a mobile unit on the grid.
type Robot struct {
	ID       int           `json:"id"`
	Position grid.Position `json:"position"`
	Charge   int           `json:"charge"`
	OrderID  int           `json:"orderId,omitempty"`  // last order delivered, 0 if none
	Odometer int           `json:"odometer,omitempty"` // total cells travelled
}

// Order is a pending delivery destination.
type Order struct {
	ID          int           `json:"id"`
	Destination grid.Position `json:"destination"`
	// Seq is the insertion index and breaks assignment ties.
	Seq int `json:"seq"`
}

// RobotIDs returns the ids of rs in order.
func RobotIDs(rs []Robot) []int {
	ids := make([]int, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}
