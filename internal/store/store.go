// ABOUTME: AuditStore interface and the Invocation record it persists.
// ABOUTME: Shared by the SQLite store and the in-memory mock.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Invocation outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Invocation is one audited tool call.
type Invocation struct {
	ID        string
	Tool      string
	Transport string
	City      string
	Outcome   string
	ErrorKind string // empty on success
	Duration  time.Duration
	CreatedAt time.Time
}

// ToolStats aggregates invocations of one tool.
type ToolStats struct {
	Tool        string
	Total       int64
	Errors      int64
	AvgDuration time.Duration
}

// StatsFilter narrows Stats. Zero values mean no filter.
type StatsFilter struct {
	Since *time.Time
	Tool  string
}

// AuditStore records and reports tool invocations.
type AuditStore interface {
	Record(ctx context.Context, inv *Invocation) error
	Recent(ctx context.Context, limit int) ([]*Invocation, error)
	Get(ctx context.Context, id string) (*Invocation, error)
	Stats(ctx context.Context, filter StatsFilter) ([]*ToolStats, error)
	Close() error
}

// DefaultRecentLimit is used when Recent is called with a non-positive limit.
const DefaultRecentLimit = 20
