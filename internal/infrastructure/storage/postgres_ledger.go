package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"RucFilter/internal/domain"
	"RucFilter/internal/ports"
)

const runsTable = "run_history"

const schema = `CREATE TABLE IF NOT EXISTS run_history (
    run_id         TEXT PRIMARY KEY,
    stage          TEXT NOT NULL,
    pending        INTEGER NOT NULL,
    processed      INTEGER NOT NULL,
    found          INTEGER NOT NULL,
    not_found      INTEGER NOT NULL,
    errors         INTEGER NOT NULL,
    unsaved        INTEGER NOT NULL,
    failed_workers INTEGER[] NOT NULL DEFAULT '{}',
    started_at     TIMESTAMPTZ NOT NULL,
    elapsed_ms     BIGINT NOT NULL
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresLedger keeps the run history in Postgres.
type PostgresLedger struct {
	db *sql.DB
}

var _ ports.RunLedger = (*PostgresLedger)(nil)

// NewPostgresLedger wires a sql.DB implementation.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Migrate creates the history table when missing.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	if l.db == nil {
		return nil
	}
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create %s: %w", runsTable, err)
	}
	return nil
}

// RecordRun upserts one run summary.
func (l *PostgresLedger) RecordRun(ctx context.Context, s domain.RunSummary) error {
	if l.db == nil {
		return nil
	}

	_, err := insertRun(s).RunWith(l.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", s.RunID, err)
	}
	return nil
}

func insertRun(s domain.RunSummary) sq.InsertBuilder {
	return psql.Insert(runsTable).
		Columns("run_id", "stage", "pending", "processed", "found", "not_found",
			"errors", "unsaved", "failed_workers", "started_at", "elapsed_ms").
		Values(s.RunID, string(s.Stage), s.Pending, s.Processed, s.Found, s.NotFound,
			s.Errors, s.Unsaved, pq.Array(failedWorkers(s)), s.StartedAt, s.Elapsed.Milliseconds()).
		Suffix(`ON CONFLICT (run_id) DO UPDATE SET processed = EXCLUDED.processed,
              found = EXCLUDED.found, not_found = EXCLUDED.not_found,
              errors = EXCLUDED.errors, unsaved = EXCLUDED.unsaved,
              elapsed_ms = EXCLUDED.elapsed_ms`)
}

func failedWorkers(s domain.RunSummary) []int64 {
	ids := []int64{}
	for _, w := range s.Workers {
		if w.LoginFailed || w.Panic != "" {
			ids = append(ids, int64(w.Worker))
		}
	}
	return ids
}

// Recent lists the latest runs, optionally for one stage.
func (l *PostgresLedger) Recent(ctx context.Context, stage domain.Stage, limit uint64) ([]domain.RunSummary, error) {
	if l.db == nil {
		return nil, nil
	}

	rows, err := recentRuns(stage, limit).RunWith(l.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var result []domain.RunSummary
	for rows.Next() {
		var (
			s       domain.RunSummary
			stageV  string
			elapsed int64
		)
		if err := rows.Scan(&s.RunID, &stageV, &s.Pending, &s.Processed, &s.Found, &s.NotFound,
			&s.Errors, &s.Unsaved, &s.StartedAt, &elapsed); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.Stage = domain.Stage(stageV)
		s.Elapsed = time.Duration(elapsed) * time.Millisecond
		result = append(result, s)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func recentRuns(stage domain.Stage, limit uint64) sq.SelectBuilder {
	q := psql.Select("run_id", "stage", "pending", "processed", "found", "not_found",
		"errors", "unsaved", "started_at", "elapsed_ms").
		From(runsTable).
		OrderBy("started_at DESC")
	if stage != "" {
		q = q.Where(sq.Eq{"stage": string(stage)})
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}
