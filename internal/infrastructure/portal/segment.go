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

const (
	segmentSearchBox = "input[placeholder='Search...']"
	segmentNoResults = "No se han encontrado resultados"
)

var (
	knownSegments = []string{"PYME", "Mayores", "SOHO", "Corporativo", "Gobierno", "Micro"}
	segmentExpr   = regexp.MustCompile(`(?s)PE Tipo de Cliente.{0,800}?<lightning-formatted-text[^>]*>([^<]+)</lightning-formatted-text>`)
)

// SegmentConfig holds the Salesforce community settings.
type SegmentConfig struct {
	LoginURL     string
	HomeURL      string
	Username     string
	Password     string
	LoginTimeout time.Duration
}

// Segment reads the customer segment ("PE Tipo de Cliente") of a RUC.
type Segment struct {
	base
	cfg SegmentConfig
}

var _ session.Portal = (*Segment)(nil)

// NewSegment wires the segmentation portal.
func NewSegment(cfg SegmentConfig, deps Deps) *Segment {
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 20 * time.Second
	}
	if deps.Tick <= 0 {
		deps.Tick = time.Second
	}
	return &Segment{base: newBase(deps), cfg: cfg}
}

func (s *Segment) Name() string {
	return string(domain.StageSegment)
}

func (s *Segment) Login(ctx context.Context) error {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return fmt.Errorf("segmentation credentials are not configured")
	}

	p := s.page
	if err := p.Navigate(ctx, s.cfg.LoginURL); err != nil {
		return fmt.Errorf("open login: %w", err)
	}
	if err := p.Input(ctx, "input[placeholder='Usuario']", s.cfg.Username); err != nil {
		return fmt.Errorf("type user: %w", err)
	}
	if err := p.Input(ctx, "input[placeholder='Contraseña']", s.cfg.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if err := p.Click(ctx, "button.loginButton"); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if err := p.WaitFor(ctx, segmentSearchBox, s.cfg.LoginTimeout); err != nil {
		return fmt.Errorf("search box not shown: %w", err)
	}
	return nil
}

func (s *Segment) Expired(ctx context.Context) (bool, error) {
	url, _, err := s.page.Location(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(url), "/login"), nil
}

func (s *Segment) Query(ctx context.Context, key domain.Key) (domain.Result, error) {
	p := s.page
	if err := p.Navigate(ctx, s.cfg.HomeURL); err != nil {
		return domain.Result{}, transient("open home: %v", err)
	}
	if expired, err := s.Expired(ctx); err == nil && expired {
		return domain.Result{}, domain.ErrSessionExpired
	}
	if err := p.Input(ctx, segmentSearchBox, key.ID); err != nil {
		return domain.Result{}, transient("type ruc: %v", err)
	}
	if err := p.Submit(ctx, segmentSearchBox); err != nil {
		return domain.Result{}, transient("search: %v", err)
	}

	var missing bool
	err := s.poll(ctx, 10, func(doc *goquery.Document, html string) (bool, error) {
		missing = strings.Contains(html, segmentNoResults)
		return missing || doc.Find("a.outputLookupLink").Length() > 0, nil
	})
	if err != nil {
		if isWaitExhausted(err) {
			return domain.Result{}, transient("search results did not load")
		}
		return domain.Result{}, err
	}
	if missing {
		return domain.Result{}, notFound("segment for " + key.ID)
	}

	if err := p.Click(ctx, "a.outputLookupLink"); err != nil {
		return domain.Result{}, transient("open account: %v", err)
	}

	var segment string
	err = s.poll(ctx, 15, func(_ *goquery.Document, html string) (bool, error) {
		segment = extractSegment(html)
		return segment != "", nil
	})
	if err != nil {
		if isWaitExhausted(err) {
			return domain.Result{}, transient("segment field did not load")
		}
		return domain.Result{}, err
	}
	return domain.Result{Segment: segment}, nil
}

// extractSegment finds a known segment label or the value rendered after
// the "PE Tipo de Cliente" field label.
func extractSegment(html string) string {
	for _, seg := range knownSegments {
		if strings.Contains(html, ">"+seg+"<") || strings.Contains(html, ">"+strings.ToUpper(seg)+"<") {
			return seg
		}
	}
	if m := segmentExpr.FindStringSubmatch(html); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
