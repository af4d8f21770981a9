package api

import (
	"fmt"

	"fleetnav/internal/model"
)

func validateRobotIn(in *model.RobotIn) error {
	if in.ID <= 0 {
		return fmt.Errorf("id must be > 0")
	}
	if in.Position == nil {
		return fmt.Errorf("position is required")
	}
	return nil
}

func validateOrderIn(in *model.OrderIn) error {
	if in.Destination == nil {
		return fmt.Errorf("destination is required")
	}
	return nil
}

func validateObstacleIn(in *model.ObstacleIn) error {
	if in.X == nil || in.Y == nil {
		return fmt.Errorf("x and y are required")
	}
	return nil
}

func validatePathRequest(req *model.PathRequest) error {
	if req.Start == nil || req.Goal == nil {
		return fmt.Errorf("start and goal are required")
	}
	if req.MaxExpansions < 0 {
		return fmt.Errorf("maxExpansions must be >= 0")
	}
	return nil
}
