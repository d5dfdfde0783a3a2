package ports

import (
	"context"
	"time"

	"RucFilter/internal/domain"
)

// ValueRange is a block of cell values addressed in A1 notation (without sheet name).
type ValueRange struct {
	Range  string
	Values [][]string
}

// Sheet is the values API of the shared tabular dataset.
type Sheet interface {
	// Values reads a range; an empty range reads the whole sheet.
	Values(ctx context.Context, a1 string) ([][]string, error)
	BatchUpdate(ctx context.Context, ranges []ValueRange) error
	BatchClear(ctx context.Context, ranges []string) error
}

// SiteSession is one authenticated conversation with an external portal.
type SiteSession interface {
	Login(ctx context.Context) error
	IsAlive(ctx context.Context) bool
	Lookup(ctx context.Context, key domain.Key) (domain.Result, error)
	Close() error
}

// RecordWriter persists column-scoped row updates for one stage.
type RecordWriter interface {
	WriteBatch(ctx context.Context, stage domain.Stage, updates []domain.Update) (domain.WriteReport, error)
}

// PendingReader computes the pending set of a stage.
type PendingReader interface {
	EnsureHeaders(ctx context.Context) (bool, error)
	ReadPending(ctx context.Context, stage domain.Stage, filter domain.PendingFilter) ([]domain.Record, error)
}

// Operator is the human in the loop: run confirmations and challenge pauses.
type Operator interface {
	Confirm(ctx context.Context, prompt string) bool
	AwaitResume(ctx context.Context, prompt string) error
}

// Notifier publishes run summaries to a chat channel.
type Notifier interface {
	PublishSummary(ctx context.Context, text string) error
}

// RunLedger keeps a history of batch runs.
type RunLedger interface {
	RecordRun(ctx context.Context, summary domain.RunSummary) error
}

// Scheduler controls recurring background jobs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
