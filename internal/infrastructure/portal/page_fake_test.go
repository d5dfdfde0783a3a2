package portal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// fakePage serves scripted HTML snapshots; the last one repeats.
type fakePage struct {
	mu      sync.Mutex
	url     string
	title   string
	pages   []string
	reads   int
	present map[string]bool
	visible map[string]bool
	failOn  map[string]error
	actions []string
	closed  bool
	// redirect replaces every navigation target, like an expired session
	// bouncing to the login form.
	redirect string
	// onClick runs after a successful Click or ClickText.
	onClick func(p *fakePage, selector string)
}

func newFakePage(pages ...string) *fakePage {
	return &fakePage{
		pages:   pages,
		present: map[string]bool{},
		visible: map[string]bool{},
		failOn:  map[string]error{},
	}
}

func (p *fakePage) record(action string) error {
	p.actions = append(p.actions, action)
	for marker, err := range p.failOn {
		if strings.Contains(action, marker) {
			return err
		}
	}
	return nil
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("navigate " + url); err != nil {
		return err
	}
	if p.redirect != "" {
		p.url = p.redirect
		return nil
	}
	p.url = url
	return nil
}

func (p *fakePage) Location(context.Context) (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, p.title, nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pages) == 0 {
		return "<html><body></body></html>", nil
	}
	i := p.reads
	if i >= len(p.pages) {
		i = len(p.pages) - 1
	}
	p.reads++
	return p.pages[i], nil
}

func (p *fakePage) Has(_ context.Context, selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[selector]
}

func (p *fakePage) Visible(_ context.Context, selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[selector]
}

func (p *fakePage) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record("wait " + selector)
}

func (p *fakePage) Input(_ context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record(fmt.Sprintf("input %s=%s", selector, value))
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	err := p.record("click " + selector)
	hook := p.onClick
	p.mu.Unlock()
	if err == nil && hook != nil {
		hook(p, selector)
	}
	return err
}

func (p *fakePage) ClickText(_ context.Context, selector, text string) error {
	p.mu.Lock()
	err := p.record("clicktext " + text)
	hook := p.onClick
	p.mu.Unlock()
	if err == nil && hook != nil {
		hook(p, text)
	}
	return err
}

func (p *fakePage) Submit(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record("submit " + selector)
}

func (p *fakePage) Eval(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record("eval")
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) did(action string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.actions {
		if a == action {
			return true
		}
	}
	return false
}

func testDeps(page *fakePage) Deps {
	return Deps{Page: page, Tick: time.Millisecond}
}
