package cli

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"RucFilter/internal/domain"
)

// progress adapts the coordinator callbacks to a terminal progress bar.
type progress struct {
	out     io.Writer
	enabled bool

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgress(out io.Writer, enabled bool) *progress {
	return &progress{out: out, enabled: enabled}
}

func (p *progress) start(stage domain.Stage) func(int) {
	return func(total int) {
		if !p.enabled || total == 0 {
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(string(stage)),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("reg"),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(p.out, "\n") }),
		)
	}
}

func (p *progress) outcome(domain.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
