package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Entry is one launch in the persistent history. PIDs recycle, so the
// unique key combines the pid with its launch timestamp.
// Timestamps should be in UTC.
type Entry struct {
	ID        int64
	PID       int
	ExePath   string
	Args      string
	Prefix    string
	State     string
	ExitCode  sql.NullInt64
	StartedAt time.Time
	EndedAt   sql.NullTime
	UpdatedAt time.Time
}

// Key returns the unique identifier used to correlate a launch row with
// its later exit update.
func (e Entry) Key() string {
	return fmt.Sprintf("%d:%d", e.PID, e.StartedAt.UTC().UnixNano())
}

// Store persists launch and exit history for executed processes.
type Store interface {
	EnsureSchema(ctx context.Context) error
	RecordLaunch(ctx context.Context, e Entry) error
	RecordExit(ctx context.Context, key string, state string, exitCode int, endedAt time.Time) error
	History(ctx context.Context, limit int) ([]Entry, error)
	PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}
