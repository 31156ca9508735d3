// ABOUTME: Mock AuditStore implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory AuditStore implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	invocations []*Invocation
	// Err, when set, is returned by Record.
	Err error
}

var _ AuditStore = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// Record stores a copy of inv.
func (m *MockStore) Record(ctx context.Context, inv *Invocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	// Make a copy to avoid external modification
	c := *inv
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.invocations = append(m.invocations, &c)
	return nil
}

// Recent returns the newest invocations first.
func (m *MockStore) Recent(ctx context.Context, limit int) ([]*Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	out := make([]*Invocation, 0, len(m.invocations))
	for i := len(m.invocations) - 1; i >= 0 && len(out) < limit; i-- {
		c := *m.invocations[i]
		out = append(out, &c)
	}
	return out, nil
}

// Get returns one invocation by ID.
func (m *MockStore) Get(ctx context.Context, id string) (*Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, inv := range m.invocations {
		if inv.ID == id {
			c := *inv
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// Stats aggregates invocations per tool.
func (m *MockStore) Stats(ctx context.Context, filter StatsFilter) ([]*ToolStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byTool := make(map[string]*ToolStats)
	totals := make(map[string]time.Duration)
	for _, inv := range m.invocations {
		if filter.Since != nil && inv.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Tool != "" && inv.Tool != filter.Tool {
			continue
		}
		st, ok := byTool[inv.Tool]
		if !ok {
			st = &ToolStats{Tool: inv.Tool}
			byTool[inv.Tool] = st
		}
		st.Total++
		if inv.Outcome == OutcomeError {
			st.Errors++
		}
		totals[inv.Tool] += inv.Duration
	}

	out := make([]*ToolStats, 0, len(byTool))
	for tool, st := range byTool {
		st.AvgDuration = totals[tool] / time.Duration(st.Total)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tool < out[j].Tool })
	return out, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// All returns every recorded invocation in insertion order.
func (m *MockStore) All() []*Invocation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Invocation, len(m.invocations))
	for i, inv := range m.invocations {
		c := *inv
		out[i] = &c
	}
	return out
}
