// Package browser drives Chrome through the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"RucFilter/internal/infrastructure/portal"
)

// Options control how Chrome is launched.
type Options struct {
	Headless  bool
	Bin       string
	NoSandbox bool
	// Timeout bounds each element lookup.
	Timeout time.Duration
}

// Browser is one launched Chrome shared by every session; each page gets
// its own incognito context so cookies never leak between workers.
type Browser struct {
	rod     *rod.Browser
	timeout time.Duration
}

// Launch starts Chrome and connects to it.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox).
		Set("ignore-certificate-errors").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", "1400,900")
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect chrome: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("ignore cert errors: %w", err)
	}
	return &Browser{rod: b, timeout: opts.Timeout}, nil
}

// NewPage opens a blank tab in a fresh incognito context.
func (b *Browser) NewPage(ctx context.Context) (portal.Page, error) {
	incognito, err := b.rod.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	p, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &Page{page: p, incognito: incognito, timeout: b.timeout}, nil
}

func (b *Browser) Close() error {
	return b.rod.Close()
}

// Page adapts a rod page to portal.Page.
type Page struct {
	page      *rod.Page
	incognito *rod.Browser
	timeout   time.Duration
}

var _ portal.Page = (*Page)(nil)

func (p *Page) on(ctx context.Context) *rod.Page {
	return p.page.Context(ctx)
}

func (p *Page) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := p.on(ctx).Timeout(p.timeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", selector, err)
	}
	return el.Context(ctx), nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.on(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.Timeout(3 * p.timeout).WaitLoad()
}

func (p *Page) Location(ctx context.Context) (string, string, error) {
	info, err := p.on(ctx).Info()
	if err != nil {
		return "", "", err
	}
	return info.URL, info.Title, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.on(ctx).HTML()
}

func (p *Page) Has(ctx context.Context, selector string) bool {
	ok, _, err := p.on(ctx).Has(selector)
	return err == nil && ok
}

func (p *Page) Visible(ctx context.Context, selector string) bool {
	ok, el, err := p.on(ctx).Has(selector)
	if err != nil || !ok {
		return false
	}
	visible, err := el.Visible()
	return err == nil && visible
}

func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := p.on(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("wait %s: %w", selector, err)
	}
	return el.Timeout(timeout).WaitVisible()
}

func (p *Page) Input(ctx context.Context, selector, value string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

func (p *Page) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// ClickText clicks the first element matching selector whose text contains text.
func (p *Page) ClickText(ctx context.Context, selector, text string) error {
	el, err := p.on(ctx).Timeout(p.timeout).ElementR(selector, regexp.QuoteMeta(text))
	if err != nil {
		return fmt.Errorf("element %s %q: %w", selector, text, err)
	}
	return el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (p *Page) Submit(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Type(input.Enter)
}

func (p *Page) Eval(ctx context.Context, js string) error {
	_, err := p.on(ctx).Eval(js)
	return err
}

func (p *Page) Close() error {
	return errors.Join(p.page.Close(), p.incognito.Close())
}
