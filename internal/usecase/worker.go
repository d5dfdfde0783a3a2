package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"RucFilter/internal/domain"
	"RucFilter/internal/ports"
	"RucFilter/internal/wait"
)

const finalFlushTimeout = 30 * time.Second

// WorkerDeps wires one worker to its exclusive session and store connection.
type WorkerDeps struct {
	ID         int
	Stage      domain.Stage
	Session    ports.SiteSession
	Writer     ports.RecordWriter
	Lock       sync.Locker
	FlushEvery int
	Pause      time.Duration
	OnOutcome  func(domain.Outcome)
	Logger     *slog.Logger
}

// Worker drains one partition serially through its own session.
type Worker struct {
	id         int
	stage      domain.Stage
	session    ports.SiteSession
	writer     ports.RecordWriter
	lock       sync.Locker
	flushEvery int
	pause      time.Duration
	onOutcome  func(domain.Outcome)
	logger     *slog.Logger

	buffer []domain.Update
	stats  domain.WorkerStats
}

// NewWorker constructs a worker; FlushEvery below 1 means "flush at the end only".
func NewWorker(deps WorkerDeps) *Worker {
	lock := deps.Lock
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Worker{
		id:         deps.ID,
		stage:      deps.Stage,
		session:    deps.Session,
		writer:     deps.Writer,
		lock:       lock,
		flushEvery: deps.FlushEvery,
		pause:      deps.Pause,
		onOutcome:  deps.OnOutcome,
		logger:     deps.Logger,
	}
}

// Run processes items in order. Remaining results are flushed and the
// session closed on every exit path, a panic included; the panic is kept in
// the returned stats next to the counts reached so far.
func (w *Worker) Run(ctx context.Context, items []domain.WorkItem) (stats domain.WorkerStats) {
	w.stats = domain.WorkerStats{Worker: w.id, Assigned: len(items)}

	defer func() {
		if r := recover(); r != nil {
			w.stats.Panic = fmt.Sprint(r)
			w.logError("worker crashed", "panic", r, "stack", string(debug.Stack()))
		}
		if len(w.buffer) > 0 {
			flushCtx := ctx
			if ctx.Err() != nil {
				var cancel context.CancelFunc
				flushCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
				defer cancel()
			}
			w.flush(flushCtx)
		}
		if err := w.session.Close(); err != nil {
			w.warn("close session", "error", err)
		}
		stats = w.stats
	}()

	if err := w.session.Login(ctx); err != nil {
		w.stats.LoginFailed = true
		w.logError("login failed, worker stops", "error", err)
		return w.stats
	}
	w.info("worker started", "items", len(items))

	for i, item := range items {
		if ctx.Err() != nil {
			w.warn("worker interrupted", "done", i, "remaining", len(items)-i)
			break
		}

		out := w.process(ctx, item)
		if out.Kind == domain.OutcomeFailed && ctx.Err() != nil {
			// interrupted mid-lookup: leave the row pending
			w.warn("worker interrupted", "done", i, "remaining", len(items)-i)
			break
		}
		w.stats.Record(out.Kind)
		w.buffer = append(w.buffer, out.Update())
		if w.onOutcome != nil {
			w.onOutcome(out)
		}

		if w.flushEvery > 0 && len(w.buffer) >= w.flushEvery {
			w.flush(ctx)
			if w.pause > 0 && i < len(items)-1 {
				_ = wait.For(ctx, w.pause)
			}
		}
	}

	w.info("worker finished", "processed", w.stats.Processed, "found", w.stats.Found,
		"not_found", w.stats.NotFound, "errors", w.stats.Errors)
	return w.stats
}

func (w *Worker) process(ctx context.Context, item domain.WorkItem) domain.Outcome {
	key, ok := w.stage.Key(item.Record)
	if !ok {
		return w.stage.Apply(item.Record, domain.Result{}, errInvalidKey)
	}

	res, err := w.session.Lookup(ctx, key)
	out := w.stage.Apply(item.Record, res, err)
	switch out.Kind {
	case domain.OutcomeFailed:
		w.warn("lookup failed", "row", item.Record.Row, "ruc", item.Record.RUC, "reason", out.Reason)
	default:
		w.debug("lookup done", "row", item.Record.Row, "ruc", item.Record.RUC, "outcome", out.Kind.String())
	}
	return out
}

// flush hands the buffer to the store under the shared write lock.
func (w *Worker) flush(ctx context.Context) {
	batch := w.buffer
	w.buffer = nil

	w.lock.Lock()
	report, err := w.writer.WriteBatch(ctx, w.stage, batch)
	w.lock.Unlock()

	if err != nil {
		w.logError("flush failed", "rows", len(batch), "error", err)
		w.stats.Unsaved += len(batch) - report.Written
		w.stats.Saved += report.Written
		return
	}
	w.stats.Saved += report.Written
	w.stats.Unsaved += report.Failed()
	w.debug("flushed", "rows", len(batch), "written", report.Written)
}

func (w *Worker) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}

func (w *Worker) info(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}

func (w *Worker) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}

func (w *Worker) logError(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Error(msg, args...)
	}
}

