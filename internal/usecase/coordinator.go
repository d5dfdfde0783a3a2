package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"RucFilter/internal/domain"
	"RucFilter/internal/ports"
	"RucFilter/internal/wait"
)

var errInvalidKey = errors.New("record has no usable lookup key")

// SessionFactory opens a fresh, logged-out session for a stage's portal.
type SessionFactory func(ctx context.Context, stage domain.Stage) (ports.SiteSession, error)

// WriterFactory opens a dedicated Record Store connection for one worker.
type WriterFactory func(ctx context.Context) (ports.RecordWriter, error)

// CoordinatorDeps wires all driven adapters into the batch coordinator.
type CoordinatorDeps struct {
	Store    ports.PendingReader
	Sessions SessionFactory
	Writers  WriterFactory
	Operator ports.Operator
	Ledger   ports.RunLedger
	Notifier ports.Notifier
	Logger   *slog.Logger
}

// RunOptions control a single stage run.
type RunOptions struct {
	Workers      int
	FlushEvery   int
	Stagger      time.Duration
	Pause        time.Duration
	ConfirmAbove int
	Limit        int
	RetryErrors  bool
	OnStart      func(pending int)
	OnOutcome    func(domain.Outcome)
}

// Coordinator implements a full run of one stage.
type Coordinator struct {
	store    ports.PendingReader
	sessions SessionFactory
	writers  WriterFactory
	operator ports.Operator
	ledger   ports.RunLedger
	notifier ports.Notifier
	logger   *slog.Logger
}

// NewCoordinator constructs the orchestration component.
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	return &Coordinator{
		store:    deps.Store,
		sessions: deps.Sessions,
		writers:  deps.Writers,
		operator: deps.Operator,
		ledger:   deps.Ledger,
		notifier: deps.Notifier,
		logger:   deps.Logger,
	}
}

// Run reads the pending set once, fans it out to workers and aggregates their stats.
func (c *Coordinator) Run(ctx context.Context, stage domain.Stage, opts RunOptions) (domain.RunSummary, error) {
	summary := domain.RunSummary{RunID: uuid.NewString(), Stage: stage, StartedAt: time.Now()}
	if c.store == nil || c.sessions == nil || c.writers == nil {
		return summary, fmt.Errorf("coordinator is not fully configured")
	}

	if _, err := c.store.EnsureHeaders(ctx); err != nil {
		return summary, fmt.Errorf("ensure headers: %w", err)
	}

	records, err := c.store.ReadPending(ctx, stage, domain.PendingFilter{RetryErrors: opts.RetryErrors})
	if err != nil {
		return summary, fmt.Errorf("read pending: %w", err)
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	summary.Pending = len(records)

	if len(records) == 0 {
		c.info("nothing pending", "stage", stage)
		return summary, nil
	}

	if opts.ConfirmAbove > 0 && len(records) > opts.ConfirmAbove && c.operator != nil {
		prompt := fmt.Sprintf("%d registros pendientes para %s. ¿Procesar todos?", len(records), strings.ToUpper(string(stage)))
		if !c.operator.Confirm(ctx, prompt) {
			return summary, domain.ErrRunCancelled
		}
	}

	items := make([]domain.WorkItem, len(records))
	for i, rec := range records {
		items[i] = domain.WorkItem{Record: rec, Stage: stage}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	partitions := Partition(items, workers)
	if opts.OnStart != nil {
		opts.OnStart(len(items))
	}
	c.info("run started", "stage", stage, "run_id", summary.RunID, "pending", len(items), "workers", len(partitions))

	var (
		writeLock sync.Mutex
		results   = make([]domain.WorkerStats, len(partitions))
		g         errgroup.Group
	)
	g.SetLimit(len(partitions))

	for i, part := range partitions {
		g.Go(func() error {
			results[i] = c.runWorker(ctx, stage, i+1, part, time.Duration(i)*opts.Stagger, &writeLock, opts)
			return nil
		})
	}
	_ = g.Wait()

	for _, stats := range results {
		summary.Add(stats)
	}
	summary.Elapsed = time.Since(summary.StartedAt)

	c.info("run finished", "stage", stage, "run_id", summary.RunID, "processed", summary.Processed,
		"found", summary.Found, "not_found", summary.NotFound, "errors", summary.Errors,
		"unsaved", summary.Unsaved, "elapsed", summary.Elapsed.Round(time.Second))

	c.publish(ctx, summary)
	return summary, nil
}

func (c *Coordinator) runWorker(ctx context.Context, stage domain.Stage, id int, items []domain.WorkItem,
	delay time.Duration, lock sync.Locker, opts RunOptions) (stats domain.WorkerStats) {
	stats = domain.WorkerStats{Worker: id, Assigned: len(items)}
	logger := c.logger
	if logger != nil {
		logger = logger.With("worker", id, "stage", string(stage))
	}

	// Worker.Run recovers its own panics; this covers session and store setup.
	defer func() {
		if r := recover(); r != nil {
			stats.Panic = fmt.Sprint(r)
			if logger != nil {
				logger.Error("worker crashed", "panic", r, "stack", string(debug.Stack()))
			}
		}
	}()

	if err := wait.For(ctx, delay); err != nil {
		return stats
	}

	sess, err := c.sessions(ctx, stage)
	if err != nil {
		stats.LoginFailed = true
		if logger != nil {
			logger.Error("open session", "error", err)
		}
		return stats
	}

	writer, err := c.writers(ctx)
	if err != nil {
		_ = sess.Close()
		stats.LoginFailed = true
		if logger != nil {
			logger.Error("open store connection", "error", err)
		}
		return stats
	}

	w := NewWorker(WorkerDeps{
		ID:         id,
		Stage:      stage,
		Session:    sess,
		Writer:     writer,
		Lock:       lock,
		FlushEvery: opts.FlushEvery,
		Pause:      opts.Pause,
		OnOutcome:  opts.OnOutcome,
		Logger:     logger,
	})
	return w.Run(ctx, items)
}

func (c *Coordinator) publish(ctx context.Context, summary domain.RunSummary) {
	ctx = context.WithoutCancel(ctx)

	if c.ledger != nil {
		if err := c.ledger.RecordRun(ctx, summary); err != nil {
			c.warn("record run", "error", err)
		}
	}

	if c.notifier != nil {
		if err := c.notifier.PublishSummary(ctx, BuildSummaryMessage(summary)); err != nil {
			c.warn("publish summary", "error", err)
		}
	}
}

// Partition assigns item i to worker i mod n, dropping empty partitions.
func Partition(items []domain.WorkItem, n int) [][]domain.WorkItem {
	if n <= 0 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}

	parts := make([][]domain.WorkItem, n)
	for i, item := range items {
		parts[i%n] = append(parts[i%n], item)
	}
	return parts
}

// BuildSummaryMessage renders the run summary as a plain-text report.
func BuildSummaryMessage(s domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RESUMEN %s\n", strings.ToUpper(string(s.Stage)))
	fmt.Fprintf(&b, "Procesados: %d/%d\n", s.Processed, s.Pending)
	fmt.Fprintf(&b, "Exitosos: %d (encontrados %d, sin registro %d)\n", s.Success(), s.Found, s.NotFound)
	fmt.Fprintf(&b, "Errores: %d\n", s.Errors)
	fmt.Fprintf(&b, "Tasa de éxito: %.2f%%\n", s.SuccessRate())
	fmt.Fprintf(&b, "Tiempo total: %s\n", s.Elapsed.Round(time.Second))
	fmt.Fprintf(&b, "Segundos por RUC: %.2f\n", s.SecondsPerItem())
	if s.Unsaved > 0 {
		fmt.Fprintf(&b, "Sin guardar: %d\n", s.Unsaved)
	}
	if failed := s.FailedWorkers(); failed > 0 {
		fmt.Fprintf(&b, "Workers fallidos: %d/%d\n", failed, len(s.Workers))
	}
	return b.String()
}

func (c *Coordinator) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Coordinator) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
