package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetnav/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu    sync.Mutex
	runs  map[string]model.DispatchRun
	order []string // ids in insertion order
}

func NewMemory() *Memory {
	return &Memory{runs: map[string]model.DispatchRun{}}
}

func (m *Memory) SaveRun(ctx context.Context, run model.DispatchRun) (model.DispatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if _, ok := m.runs[run.ID]; !ok {
		m.order = append(m.order, run.ID)
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.DispatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.DispatchRun{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, cursor string, limit int) ([]model.DispatchRun, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	start := 0
	if cursor != "" {
		start = -1
		for i, id := range m.order {
			if id == cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, "", fmt.Errorf("%w: %s", ErrBadCursor, cursor)
		}
	}
	out := []model.DispatchRun{}
	var next string
	for i := start; i < len(m.order) && len(out) < limit; i++ {
		out = append(out, m.runs[m.order[i]])
		next = m.order[i]
	}
	if start+len(out) >= len(m.order) {
		next = ""
	}
	return out, next, nil
}
