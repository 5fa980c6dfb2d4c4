package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/winevisor/winevisor/internal/store"
)

type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS launch_history(
			id BIGSERIAL PRIMARY KEY,
			pid INTEGER NOT NULL,
			exe_path TEXT NOT NULL,
			args TEXT NOT NULL,
			prefix TEXT NOT NULL,
			state TEXT NOT NULL,
			exit_code INTEGER NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NULL,
			uniq TEXT NOT NULL UNIQUE,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_launch_history_pid ON launch_history(pid);`,
		`CREATE INDEX IF NOT EXISTS idx_launch_history_started ON launch_history(started_at);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) RecordLaunch(ctx context.Context, e store.Entry) error {
	e.UpdatedAt = time.Now().UTC()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO launch_history(pid, exe_path, args, prefix, state, exit_code, started_at, ended_at, uniq, updated_at)
		VALUES($1, $2, $3, $4, $5, NULL, $6, NULL, $7, $8)
		ON CONFLICT(uniq) DO UPDATE SET
			exe_path=EXCLUDED.exe_path,
			args=EXCLUDED.args,
			prefix=EXCLUDED.prefix,
			state=EXCLUDED.state,
			updated_at=EXCLUDED.updated_at;`,
		e.PID, e.ExePath, e.Args, e.Prefix, e.State, e.StartedAt.UTC(), e.Key(), e.UpdatedAt)
	return err
}

func (p *DB) RecordExit(ctx context.Context, key string, state string, exitCode int, endedAt time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE launch_history
		SET state=$1, exit_code=$2, ended_at=$3, updated_at=$4
		WHERE uniq=$5;`,
		state, exitCode, endedAt.UTC(), time.Now().UTC(), key)
	return err
}

func (p *DB) History(ctx context.Context, limit int) ([]store.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, pid, exe_path, args, prefix, state, exit_code, started_at, ended_at, updated_at
		FROM launch_history
		ORDER BY started_at DESC
		LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
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

func (p *DB) PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM launch_history WHERE ended_at IS NOT NULL AND updated_at < $1;`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
