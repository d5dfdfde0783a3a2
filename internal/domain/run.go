package domain

import "time"

// WriteReport describes how much of a batch reached the dataset.
type WriteReport struct {
	Rows     int
	Written  int
	Degraded bool
}

// Failed is the number of rows that could not be written.
func (r WriteReport) Failed() int {
	return r.Rows - r.Written
}

// WorkerStats are the counters of one worker.
type WorkerStats struct {
	Worker      int
	Assigned    int
	Processed   int
	Found       int
	NotFound    int
	Errors      int
	Saved       int
	Unsaved     int
	LoginFailed bool
	Panic       string
}

// Record counts one classified outcome.
func (w *WorkerStats) Record(kind OutcomeKind) {
	w.Processed++
	switch kind {
	case OutcomeFound:
		w.Found++
	case OutcomeNotFound:
		w.NotFound++
	default:
		w.Errors++
	}
}

// RunSummary is the acceptance artifact of one stage run.
type RunSummary struct {
	RunID     string
	Stage     Stage
	Pending   int
	Processed int
	Found     int
	NotFound  int
	Errors    int
	Unsaved   int
	Workers   []WorkerStats
	StartedAt time.Time
	Elapsed   time.Duration
}

// Add folds a worker's counters into the summary.
func (s *RunSummary) Add(w WorkerStats) {
	s.Processed += w.Processed
	s.Found += w.Found
	s.NotFound += w.NotFound
	s.Errors += w.Errors
	s.Unsaved += w.Unsaved
	s.Workers = append(s.Workers, w)
}

// Success counts lookups that completed with a definitive answer.
func (s RunSummary) Success() int {
	return s.Found + s.NotFound
}

// SuccessRate is Success over Processed, in percent.
func (s RunSummary) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Success()) * 100 / float64(s.Processed)
}

// SecondsPerItem is the average wall time per processed record.
func (s RunSummary) SecondsPerItem() float64 {
	if s.Processed == 0 {
		return 0
	}
	return s.Elapsed.Seconds() / float64(s.Processed)
}

// FailedWorkers counts workers that could not log in or crashed.
func (s RunSummary) FailedWorkers() int {
	n := 0
	for _, w := range s.Workers {
		if w.LoginFailed || w.Panic != "" {
			n++
		}
	}
	return n
}
