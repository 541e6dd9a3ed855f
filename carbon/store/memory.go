// Package store provides PoolStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/carbon-book/carbon"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	runs    map[string]carbon.Run
	pools   map[string][]carbon.Pool
	reports map[string][]carbon.Record
}

func NewMemory() *Memory {
	return &Memory{
		runs:    make(map[string]carbon.Run),
		pools:   make(map[string][]carbon.Pool),
		reports: make(map[string][]carbon.Record),
	}
}

// SaveRun keeps a copy of the collection. Append-only.
func (m *Memory) SaveRun(_ context.Context, run carbon.Run, col *carbon.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; exists {
		return carbon.ErrDuplicateRun
	}
	run.Pools = col.Len()
	run.Width = col.Width()
	m.runs[run.ID] = run
	m.pools[run.ID] = col.Pools()
	return nil
}

func (m *Memory) LoadRun(_ context.Context, id string) (carbon.Run, *carbon.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return carbon.Run{}, nil, carbon.ErrRunNotFound
	}
	col, err := carbon.NewCollection(m.pools[id])
	if err != nil {
		return carbon.Run{}, nil, err
	}
	return run, col, nil
}

func (m *Memory) ListRuns(_ context.Context) ([]carbon.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]carbon.Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) SaveReport(_ context.Context, runID string, records []carbon.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[runID]; !ok {
		return carbon.ErrRunNotFound
	}
	m.reports[runID] = append([]carbon.Record(nil), records...)
	return nil
}

func (m *Memory) LoadReport(_ context.Context, runID string) ([]carbon.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.runs[runID]; !ok {
		return nil, carbon.ErrRunNotFound
	}
	return append([]carbon.Record(nil), m.reports[runID]...), nil
}
