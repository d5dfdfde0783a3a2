// Package portal holds one Site Session variant per external portal.
package portal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"RucFilter/internal/ports"
	"RucFilter/internal/wait"
)

// Page is the browser capability the portals need.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (url, title string, err error)
	HTML(ctx context.Context) (string, error)
	Has(ctx context.Context, selector string) bool
	Visible(ctx context.Context, selector string) bool
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Input(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	ClickText(ctx context.Context, selector, text string) error
	Submit(ctx context.Context, selector string) error
	Eval(ctx context.Context, js string) error
	Close() error
}

// Deps are shared by every browser-driven portal.
type Deps struct {
	Page     Page
	Operator ports.Operator
	Logger   *slog.Logger
	// Tick is the polling interval used while waiting for results.
	Tick time.Duration
}

type base struct {
	page     Page
	operator ports.Operator
	logger   *slog.Logger
	tick     time.Duration
}

func newBase(deps Deps) base {
	tick := deps.Tick
	if tick <= 0 {
		tick = 300 * time.Millisecond
	}
	return base{page: deps.Page, operator: deps.Operator, logger: deps.Logger, tick: tick}
}

func (b base) Close() error {
	if b.page == nil {
		return nil
	}
	return b.page.Close()
}

func (b base) document(ctx context.Context) (*goquery.Document, string, error) {
	html, err := b.page.HTML(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("read page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("parse page: %w", err)
	}
	return doc, html, nil
}

// poll re-reads the page up to attempts times until check reports done.
func (b base) poll(ctx context.Context, attempts int, check func(doc *goquery.Document, html string) (bool, error)) error {
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := wait.For(ctx, b.tick); err != nil {
				return err
			}
		}
		doc, html, err := b.document(ctx)
		if err != nil {
			return err
		}
		done, err := check(doc, html)
		if err != nil || done {
			return err
		}
	}
	return errWaitExhausted
}

// challenge blocks until the operator resolves a human verification on the page.
func (b base) challenge(ctx context.Context, prompt string) error {
	if b.operator == nil {
		return fmt.Errorf("%s: no operator attached", prompt)
	}
	b.debug("waiting for operator", "prompt", prompt)
	return b.operator.AwaitResume(ctx, prompt)
}

func (b base) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

