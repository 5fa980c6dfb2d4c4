package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/winevisor/winevisor/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.

type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS launch_history(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pid INTEGER NOT NULL,
			exe_path TEXT NOT NULL,
			args TEXT NOT NULL,
			prefix TEXT NOT NULL,
			state TEXT NOT NULL,
			exit_code INTEGER NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NULL,
			uniq TEXT NOT NULL UNIQUE,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_launch_history_pid ON launch_history(pid);`,
		`CREATE INDEX IF NOT EXISTS idx_launch_history_started ON launch_history(started_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) RecordLaunch(ctx context.Context, e store.Entry) error {
	e.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO launch_history(pid, exe_path, args, prefix, state, exit_code, started_at, ended_at, uniq, updated_at)
		VALUES(?, ?, ?, ?, ?, NULL, ?, NULL, ?, ?)
		ON CONFLICT(uniq) DO UPDATE SET
			exe_path=excluded.exe_path,
			args=excluded.args,
			prefix=excluded.prefix,
			state=excluded.state,
			updated_at=excluded.updated_at;`,
		e.PID, e.ExePath, e.Args, e.Prefix, e.State, e.StartedAt.UTC(), e.Key(), e.UpdatedAt)
	return err
}

func (s *DB) RecordExit(ctx context.Context, key string, state string, exitCode int, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE launch_history
		SET state=?, exit_code=?, ended_at=?, updated_at=?
		WHERE uniq=?;`,
		state, exitCode, endedAt.UTC(), time.Now().UTC(), key)
	return err
}

func (s *DB) History(ctx context.Context, limit int) ([]store.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pid, exe_path, args, prefix, state, exit_code, started_at, ended_at, updated_at
		FROM launch_history
		ORDER BY started_at DESC
		LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

func (s *DB) PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM launch_history WHERE ended_at IS NOT NULL AND updated_at < ?;`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]store.Entry, error) {
	out := make([]store.Entry, 0)
	for rows.Next() {
		var e store.Entry
		if err := rows.Scan(&e.ID, &e.PID, &e.ExePath, &e.Args, &e.Prefix, &e.State, &e.ExitCode, &e.StartedAt, &e.EndedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
