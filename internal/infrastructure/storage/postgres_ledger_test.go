package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"RucFilter/internal/domain"
)

func TestInsertRunSQL(t *testing.T) {
	t.Parallel()

	s := domain.RunSummary{
		RunID: "r1", Stage: domain.StagePhone, Pending: 3, Processed: 3, Found: 2, NotFound: 1,
		Workers:   []domain.WorkerStats{{Worker: 0}, {Worker: 1, LoginFailed: true}, {Worker: 2, Panic: "boom"}},
		StartedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Elapsed:   1500 * time.Millisecond,
	}

	query, args, err := insertRun(s).ToSql()
	if err != nil {
		t.Fatalf("to sql: %v", err)
	}
	if !strings.HasPrefix(query, "INSERT INTO run_history (run_id,stage,") {
		t.Fatalf("unexpected query: %s", query)
	}
	if !strings.Contains(query, "$11") || strings.Contains(query, "?") {
		t.Fatalf("expected dollar placeholders: %s", query)
	}
	if !strings.Contains(query, "ON CONFLICT (run_id)") {
		t.Fatalf("missing upsert suffix: %s", query)
	}
	if len(args) != 11 {
		t.Fatalf("expected 11 args, got %d", len(args))
	}
	if args[0] != "r1" || args[1] != "entel" || args[10] != int64(1500) {
		t.Fatalf("unexpected args: %v", args)
	}

	if got := failedWorkers(s); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected failed workers: %v", got)
	}
}

func TestRecentRunsSQL(t *testing.T) {
	t.Parallel()

	query, args, err := recentRuns(domain.StageLines, 5).ToSql()
	if err != nil {
		t.Fatalf("to sql: %v", err)
	}
	want := "SELECT run_id, stage, pending, processed, found, not_found, errors, unsaved, started_at, elapsed_ms " +
		"FROM run_history WHERE stage = $1 ORDER BY started_at DESC LIMIT 5"
	if query != want {
		t.Fatalf("unexpected query:\n%s\nwant:\n%s", query, want)
	}
	if len(args) != 1 || args[0] != "osiptel" {
		t.Fatalf("unexpected args: %v", args)
	}

	query, _, err = recentRuns("", 0).ToSql()
	if err != nil {
		t.Fatalf("to sql: %v", err)
	}
	if strings.Contains(query, "WHERE") || strings.Contains(query, "LIMIT") {
		t.Fatalf("unexpected filters: %s", query)
	}
}

func TestNilDBIsNoop(t *testing.T) {
	t.Parallel()

	l := NewPostgresLedger(nil)
	if err := l.RecordRun(context.Background(), domain.RunSummary{RunID: "x"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	runs, err := l.Recent(context.Background(), "", 10)
	if err != nil || runs != nil {
		t.Fatalf("recent: %v %v", runs, err)
	}
}
