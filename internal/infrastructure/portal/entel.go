package portal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"RucFilter/internal/domain"
	"RucFilter/internal/session"
)

const entelOperationsLink = "a[href='/entelid-portal/Operation']"

var emptyTableExpr = regexp.MustCompile(`\b0 to 0\b|\bof 0 entries|^0 entries`)

// EntelConfig holds the partner portal credentials.
type EntelConfig struct {
	LoginURL      string
	OperationsURL string
	Username      string
	Password      string
	LoginTimeout  time.Duration
}

// Entel looks up the registered phone of a RUC.
type Entel struct {
	base
	cfg EntelConfig
}

var _ session.Portal = (*Entel)(nil)

// NewEntel wires the phone portal.
func NewEntel(cfg EntelConfig, deps Deps) *Entel {
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 15 * time.Second
	}
	return &Entel{base: newBase(deps), cfg: cfg}
}

func (e *Entel) Name() string {
	return string(domain.StagePhone)
}

func (e *Entel) Login(ctx context.Context) error {
	if e.cfg.Username == "" || e.cfg.Password == "" {
		return fmt.Errorf("entel credentials are not configured")
	}

	p := e.page
	if err := p.Navigate(ctx, e.cfg.LoginURL); err != nil {
		return fmt.Errorf("open login: %w", err)
	}
	if p.Has(ctx, entelOperationsLink) {
		return p.Navigate(ctx, e.cfg.OperationsURL)
	}

	if err := p.Input(ctx, "#Email", e.cfg.Username); err != nil {
		return fmt.Errorf("type email: %w", err)
	}
	if err := p.Input(ctx, "#Password", e.cfg.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if p.Has(ctx, "#RememberMe") {
		_ = p.Click(ctx, "#RememberMe")
	}
	if p.Visible(ctx, "#recaptcha iframe") {
		if err := e.challenge(ctx, "ENTEL: resuelva el reCAPTCHA en el navegador y presione ENTER"); err != nil {
			return err
		}
	}
	if err := p.Click(ctx, "#btnLgn"); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if err := p.WaitFor(ctx, entelOperationsLink, e.cfg.LoginTimeout); err != nil {
		return fmt.Errorf("operations menu not shown: %w", err)
	}
	return p.Navigate(ctx, e.cfg.OperationsURL)
}

// Expired reports whether the current page is the login form.
func (e *Entel) Expired(ctx context.Context) (bool, error) {
	url, _, err := e.page.Location(ctx)
	if err != nil {
		return false, err
	}
	return isLoginRoute(url), nil
}

func (e *Entel) Query(ctx context.Context, key domain.Key) (domain.Result, error) {
	p := e.page
	if err := p.Navigate(ctx, e.cfg.OperationsURL); err != nil {
		return domain.Result{}, transient("open operations: %v", err)
	}
	if url, _, err := p.Location(ctx); err == nil && isLoginRoute(url) {
		return domain.Result{}, domain.ErrSessionExpired
	}
	if err := p.Input(ctx, "#ruc", key.ID); err != nil {
		return domain.Result{}, transient("type ruc: %v", err)
	}
	if err := p.Click(ctx, "#filter"); err != nil {
		return domain.Result{}, transient("filter: %v", err)
	}

	var phone string
	var empty bool
	err := e.poll(ctx, 15, func(doc *goquery.Document, _ string) (bool, error) {
		var done bool
		phone, empty, done = parsePhoneTable(doc)
		return done, nil
	})
	if err != nil {
		if isWaitExhausted(err) {
			return domain.Result{}, transient("operations table did not load")
		}
		return domain.Result{}, err
	}
	if empty || !domain.ValidPhone(phone) {
		return domain.Result{}, notFound("phone for " + key.ID)
	}
	return domain.Result{Phone: phone}, nil
}

// parsePhoneTable inspects the operations table. done is false while the
// table is still loading.
func parsePhoneTable(doc *goquery.Document) (phone string, empty, done bool) {
	info := text(doc.Find("#data-table_info"))
	if emptyTableExpr.MatchString(info) {
		return "", true, true
	}

	cells := doc.Find("#data-table tbody tr").First().Find("td")
	if cells.Length() < 5 {
		return "", false, false
	}
	raw := text(cells.Eq(4))
	if raw == "" {
		return "", false, false
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String(), false, true
}

func isLoginRoute(url string) bool {
	return strings.Contains(strings.ToLower(url), "login")
}
