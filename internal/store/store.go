package store

import (
	"context"
	"errors"

	"fleetnav/internal/model"
)

// Store persists dispatch runs produced by assignment rounds.
type Store interface {
	// SaveRun assigns an id and creation time when they are empty.
	SaveRun(ctx context.Context, run model.DispatchRun) (model.DispatchRun, error)
	GetRun(ctx context.Context, id string) (model.DispatchRun, error)
	// ListRuns returns runs oldest first. nextCursor is empty on the last page.
	// A cursor that names no stored run yields ErrBadCursor.
	ListRuns(ctx context.Context, cursor string, limit int) (items []model.DispatchRun, nextCursor string, err error)
}

var (
	ErrNotFound  = errors.New("not found")
	ErrBadCursor = errors.New("invalid cursor")
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
