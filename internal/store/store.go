// Package store implements the Record Store over a tabular sheet.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"RucFilter/internal/domain"
	"RucFilter/internal/ports"
	"RucFilter/internal/wait"
)

// Options tune batching and retry behaviour.
type Options struct {
	WriteAttempts   int
	RetryBackoff    time.Duration
	RowDelay        time.Duration
	RequestInterval time.Duration
	ChunkRows       int
}

// DefaultOptions mirrors the production settings.
func DefaultOptions() Options {
	return Options{
		WriteAttempts: 3,
		RetryBackoff:  5 * time.Second,
		RowDelay:      500 * time.Millisecond,
		ChunkRows:     5000,
	}
}

// Store mediates every read and write of the dataset.
type Store struct {
	sheet   ports.Sheet
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
}

var (
	_ ports.RecordWriter  = (*Store)(nil)
	_ ports.PendingReader = (*Store)(nil)
)

// New wires a sheet backend.
func New(sheet ports.Sheet, opts Options, logger *slog.Logger) *Store {
	def := DefaultOptions()
	if opts.WriteAttempts <= 0 {
		opts.WriteAttempts = def.WriteAttempts
	}
	if opts.ChunkRows <= 0 {
		opts.ChunkRows = def.ChunkRows
	}

	limit := rate.Inf
	if opts.RequestInterval > 0 {
		limit = rate.Every(opts.RequestInterval)
	}

	return &Store{
		sheet:   sheet,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// EnsureHeaders writes the header row unless A1 already holds it.
// It reports whether the header was written.
func (s *Store) EnsureHeaders(ctx context.Context) (bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}
	values, err := s.sheet.Values(ctx, "A1:A1")
	if err != nil {
		return false, fmt.Errorf("read header: %w", err)
	}
	if len(values) > 0 && len(values[0]) > 0 && values[0][0] == domain.HeaderID {
		return false, nil
	}

	header := []ports.ValueRange{{
		Range:  cellRange(1, domain.ColID, domain.LastColumn()),
		Values: [][]string{domain.Headers()},
	}}
	if err := s.update(ctx, header); err != nil {
		return false, fmt.Errorf("write header: %w", err)
	}
	s.info("header row created")
	return true, nil
}

// ReadPending scans the sheet once and returns the stage's pending records in row order.
func (s *Store) ReadPending(ctx context.Context, stage domain.Stage, filter domain.PendingFilter) ([]domain.Record, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if stage.Pending(rec, filter) {
			pending = append(pending, rec)
		}
	}

	s.debug("pending set computed", "stage", stage, "rows", len(records), "pending", len(pending))
	return pending, nil
}

// Records returns every data row with a valid identifier.
func (s *Store) Records(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	for i, cells := range body(rows) {
		if rec, ok := domain.NewRecord(i+2, cells); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// WriteBatch writes the stage's updates, retrying the whole batch and then
// degrading to row-by-row writes. Only ownership violations and context
// cancellation are returned as errors; write failures show up in the report.
func (s *Store) WriteBatch(ctx context.Context, stage domain.Stage, updates []domain.Update) (domain.WriteReport, error) {
	report := domain.WriteReport{Rows: len(updates)}
	if len(updates) == 0 {
		return report, nil
	}

	perRow := make([][]ports.ValueRange, 0, len(updates))
	var all []ports.ValueRange
	for _, u := range updates {
		for c := range u.Values {
			if !stage.Owns(c) {
				return report, fmt.Errorf("stage %s row %d column %s: %w", stage, u.Row, c.Letter(), domain.ErrColumnOwnership)
			}
		}
		ranges := rowRanges(u)
		perRow = append(perRow, ranges)
		all = append(all, ranges...)
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.WriteAttempts; attempt++ {
		if lastErr = s.update(ctx, all); lastErr == nil {
			report.Written = len(updates)
			s.debug("batch written", "stage", stage, "rows", len(updates), "ranges", len(all), "attempt", attempt)
			return report, nil
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		s.warn("batch write failed", "stage", stage, "rows", len(updates), "attempt", attempt, "error", lastErr)
		if attempt < s.opts.WriteAttempts {
			if err := wait.For(ctx, s.opts.RetryBackoff); err != nil {
				return report, err
			}
		}
	}

	report.Degraded = true
	s.warn("falling back to row-by-row writes", "stage", stage, "rows", len(updates), "error", lastErr)
	for i, ranges := range perRow {
		if i > 0 {
			if err := wait.For(ctx, s.opts.RowDelay); err != nil {
				return report, err
			}
		}
		if err := s.update(ctx, ranges); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			s.warn("row write failed", "stage", stage, "row", updates[i].Row, "error", err)
			continue
		}
		report.Written++
	}

	if report.Failed() > 0 {
		s.warn("batch partially written", "stage", stage, "written", report.Written, "failed", report.Failed())
	}
	return report, nil
}

// Deduplicate keeps the first row of every repeated RUC and rewrites the body.
// Rows without a valid RUC are preserved. It returns the number of rows removed.
func (s *Store) Deduplicate(ctx context.Context) (int, error) {
	rows, err := s.readAll(ctx)
	if err != nil {
		return 0, err
	}
	data := body(rows)

	seen := make(map[string]struct{}, len(data))
	kept := make([][]string, 0, len(data))
	width := domain.ColumnCount()
	for _, cells := range data {
		if len(cells) > width {
			width = len(cells)
		}
		if ruc, ok := domain.NormalizeRUC(cellAt(cells, domain.ColRUC)); ok {
			if _, dup := seen[ruc]; dup {
				continue
			}
			seen[ruc] = struct{}{}
		}
		kept = append(kept, cells)
	}

	removed := len(data) - len(kept)
	if removed == 0 {
		s.info("no duplicates found", "rows", len(data))
		return 0, nil
	}

	last := domain.Column(width - 1)
	for start := 0; start < len(kept); start += s.opts.ChunkRows {
		end := start + s.opts.ChunkRows
		if end > len(kept) {
			end = len(kept)
		}
		chunk := make([][]string, 0, end-start)
		for _, cells := range kept[start:end] {
			chunk = append(chunk, pad(cells, width))
		}
		block := []ports.ValueRange{{Range: blockRange(start+2, end+1, last), Values: chunk}}
		if err := s.updateWithRetry(ctx, block); err != nil {
			return 0, fmt.Errorf("rewrite rows %d-%d: %w", start+2, end+1, err)
		}
	}

	tail := blockRange(len(kept)+2, len(data)+1, last)
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	if err := s.sheet.BatchClear(ctx, []string{tail}); err != nil {
		return 0, fmt.Errorf("clear tail %s: %w", tail, err)
	}

	s.info("duplicates removed", "removed", removed, "remaining", len(kept))
	return removed, nil
}

// NextSequenceID returns max(ID column)+1, or 1 when no numeric ID exists.
func (s *Store) NextSequenceID(ctx context.Context) (int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	values, err := s.sheet.Values(ctx, "A2:A")
	if err != nil {
		return 0, fmt.Errorf("read ids: %w", err)
	}

	highest := 0
	for _, row := range values {
		if n, ok := domain.ParseSequence(cellAt(row, domain.ColID)); ok && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

func (s *Store) readAll(ctx context.Context) ([][]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sheet.Values(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	return rows, nil
}

func (s *Store) update(ctx context.Context, ranges []ports.ValueRange) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.sheet.BatchUpdate(ctx, ranges)
}

func (s *Store) updateWithRetry(ctx context.Context, ranges []ports.ValueRange) error {
	var err error
	for attempt := 1; attempt <= s.opts.WriteAttempts; attempt++ {
		if err = s.update(ctx, ranges); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < s.opts.WriteAttempts {
			if serr := wait.For(ctx, s.opts.RetryBackoff); serr != nil {
				return serr
			}
		}
	}
	return err
}

func (s *Store) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Store) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Store) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func body(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func cellAt(cells []string, c domain.Column) string {
	if int(c) < len(cells) {
		return cells[c]
	}
	return ""
}

func pad(cells []string, width int) []string {
	out := make([]string, width)
	copy(out, cells)
	return out
}

