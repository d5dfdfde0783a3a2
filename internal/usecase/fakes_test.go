package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"RucFilter/internal/domain"
)

type fakeSession struct {
	mu       sync.Mutex
	loginErr error
	results  map[string]error
	lookups  []string
	closed   int
	panicOn  string
	onLookup func(key string)
}

func (f *fakeSession) Login(context.Context) error { return f.loginErr }

func (f *fakeSession) IsAlive(context.Context) bool { return true }

func (f *fakeSession) Lookup(_ context.Context, key domain.Key) (domain.Result, error) {
	f.mu.Lock()
	f.lookups = append(f.lookups, key.ID)
	hook := f.onLookup
	f.mu.Unlock()

	if hook != nil {
		hook(key.ID)
	}
	if key.ID == f.panicOn && f.panicOn != "" {
		panic("driver crashed")
	}
	if err, ok := f.results[key.ID]; ok {
		return domain.Result{}, err
	}
	return domain.Result{Phone: "987654321"}, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]domain.Update
	fail    bool
}

func (f *fakeWriter) WriteBatch(_ context.Context, _ domain.Stage, updates []domain.Update) (domain.WriteReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return domain.WriteReport{Rows: len(updates)}, errors.New("sheet unavailable")
	}
	f.batches = append(f.batches, append([]domain.Update(nil), updates...))
	return domain.WriteReport{Rows: len(updates), Written: len(updates)}, nil
}

func (f *fakeWriter) sizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.batches))
	for i, b := range f.batches {
		out[i] = len(b)
	}
	return out
}

type fakeReader struct {
	records []domain.Record
}

func (f *fakeReader) EnsureHeaders(context.Context) (bool, error) { return false, nil }

func (f *fakeReader) ReadPending(context.Context, domain.Stage, domain.PendingFilter) ([]domain.Record, error) {
	return f.records, nil
}

type fakeOperator struct {
	answer  bool
	prompts []string
}

func (f *fakeOperator) Confirm(_ context.Context, prompt string) bool {
	f.prompts = append(f.prompts, prompt)
	return f.answer
}

func (f *fakeOperator) AwaitResume(context.Context, string) error { return nil }

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) PublishSummary(_ context.Context, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

type fakeLedger struct {
	runs []domain.RunSummary
}

func (f *fakeLedger) RecordRun(_ context.Context, s domain.RunSummary) error {
	f.runs = append(f.runs, s)
	return nil
}

type fakeTicker struct {
	job     func(time.Time)
	stopped bool
}

func (f *fakeTicker) Start(_ context.Context, job func(time.Time)) error {
	f.job = job
	return nil
}

func (f *fakeTicker) Stop(context.Context) error {
	f.stopped = true
	return nil
}

func makeRecords(n int) []domain.Record {
	out := make([]domain.Record, 0, n)
	for i := 0; i < n; i++ {
		ruc := "20" + padNumber(i, 9)
		rec, _ := domain.NewRecord(i+2, []string{"", ruc})
		out = append(out, rec)
	}
	return out
}

func padNumber(n, width int) string {
	b := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b)
}

func itemsOf(records []domain.Record, stage domain.Stage) []domain.WorkItem {
	items := make([]domain.WorkItem, len(records))
	for i, r := range records {
		items[i] = domain.WorkItem{Record: r, Stage: stage}
	}
	return items
}
