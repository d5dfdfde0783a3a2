package portal

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"RucFilter/internal/domain"
	"RucFilter/internal/session"
)

var totalsExpr = regexp.MustCompile(`(?i)de\s+(\d+)\s+totales`)

// OsiptelConfig points at the public line-count service.
type OsiptelConfig struct {
	URL         string
	FormTimeout time.Duration
}

// Osiptel counts the mobile lines registered to a RUC.
type Osiptel struct {
	base
	cfg OsiptelConfig
}

var _ session.Portal = (*Osiptel)(nil)

// NewOsiptel wires the line-count portal.
func NewOsiptel(cfg OsiptelConfig, deps Deps) *Osiptel {
	if cfg.FormTimeout <= 0 {
		cfg.FormTimeout = 15 * time.Second
	}
	return &Osiptel{base: newBase(deps), cfg: cfg}
}

func (o *Osiptel) Name() string {
	return string(domain.StageLines)
}

// Login opens the form; the service is anonymous.
func (o *Osiptel) Login(ctx context.Context) error {
	if err := o.page.Navigate(ctx, o.cfg.URL); err != nil {
		return err
	}
	return o.page.WaitFor(ctx, "#IdTipoDoc", o.cfg.FormTimeout)
}

func (o *Osiptel) Expired(context.Context) (bool, error) {
	return false, nil
}

func (o *Osiptel) Query(ctx context.Context, key domain.Key) (domain.Result, error) {
	p := o.page
	if err := p.Navigate(ctx, o.cfg.URL); err != nil {
		return domain.Result{}, transient("open form: %v", err)
	}
	if err := p.WaitFor(ctx, "#IdTipoDoc", o.cfg.FormTimeout); err != nil {
		return domain.Result{}, transient("form did not load: %v", err)
	}
	if err := p.Eval(ctx, `() => { document.getElementById('IdTipoDoc').value = '2'; }`); err != nil {
		return domain.Result{}, transient("select document type: %v", err)
	}
	if err := p.Input(ctx, "#NumeroDocumento", key.ID); err != nil {
		return domain.Result{}, transient("type ruc: %v", err)
	}
	if err := p.Click(ctx, "#btnBuscar"); err != nil {
		return domain.Result{}, transient("search: %v", err)
	}

	var (
		count   int
		outcome lineOutcome
	)
	err := o.poll(ctx, 30, func(doc *goquery.Document, html string) (bool, error) {
		count, outcome = parseLineCount(doc, html)
		return outcome != linesPending, nil
	})
	if err != nil {
		if isWaitExhausted(err) {
			return domain.Result{}, transient("result grid did not load")
		}
		return domain.Result{}, err
	}

	switch outcome {
	case linesThrottled:
		return domain.Result{}, domain.ErrThrottled
	case linesNone:
		return domain.Result{}, notFound("lines for " + key.ID)
	}
	return domain.Result{Lines: domain.LineCount(count)}, nil
}

type lineOutcome int

const (
	linesPending lineOutcome = iota
	linesCounted
	linesNone
	linesThrottled
)

func parseLineCount(doc *goquery.Document, html string) (int, lineOutcome) {
	lower := strings.ToLower(html)
	if strings.Contains(lower, "no se pudo procesar") || strings.Contains(lower, "inténtelo más tarde") ||
		strings.Contains(lower, "intentelo mas tarde") {
		return 0, linesThrottled
	}
	if strings.Contains(html, "No se encontraron resultados") {
		return 0, linesNone
	}

	info := text(doc.Find("#GridConsulta_info"))
	if m := totalsExpr.FindStringSubmatch(info); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, linesCounted
		}
	}
	return 0, linesPending
}
