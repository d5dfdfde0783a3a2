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
	"RucFilter/internal/wait"
)

var (
	planoExpr     = regexp.MustCompile(`PLANO\s+([A-Z0-9\-]+)`)
	velocidadExpr = regexp.MustCompile(`VELOCIDAD[^\d]*(\d+\s*MB)`)
	zonaTOAExpr   = regexp.MustCompile(`ZONA[_\s]*TOA\s+(\d+)`)
	coberturaExpr = regexp.MustCompile(`CON COBERTURA\s*\(([^)]+)\)`)

	technologies = []string{"FTTH", "HFC", "IFI 5G", "IFI LIMITADO", "COBRE"}
	vendors      = []string{"HUAWEI", "ZTE", "NOKIA", "CALIX"}
	colours      = []string{"AZUL", "CELESTE", "VERDE", "AMARILLO", "ROJO", "NARANJA"}
)

// CoverageConfig holds the feasibility portal settings.
type CoverageConfig struct {
	BaseURL     string
	Username    string
	Password    string
	SettleDelay time.Duration
}

// Coverage answers internet and delivery feasibility for a coordinate.
type Coverage struct {
	base
	cfg CoverageConfig
}

var _ session.Portal = (*Coverage)(nil)

// NewCoverage wires the feasibility portal.
func NewCoverage(cfg CoverageConfig, deps Deps) *Coverage {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 3 * time.Second
	}
	return &Coverage{base: newBase(deps), cfg: cfg}
}

func (c *Coverage) Name() string {
	return string(domain.StageCoverage)
}

func (c *Coverage) Login(ctx context.Context) error {
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return fmt.Errorf("feasibility credentials are not configured")
	}

	p := c.page
	if err := p.Navigate(ctx, c.cfg.BaseURL+"/login"); err != nil {
		return fmt.Errorf("open login: %w", err)
	}
	if err := p.Input(ctx, "input[type=text]", c.cfg.Username); err != nil {
		return fmt.Errorf("type user: %w", err)
	}
	if err := p.Input(ctx, "#inputPass", c.cfg.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if err := p.Click(ctx, "button[type=submit]"); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if err := wait.For(ctx, c.cfg.SettleDelay); err != nil {
		return err
	}
	_ = p.ClickText(ctx, "button", "Continuar")

	expired, err := c.Expired(ctx)
	if err != nil {
		return err
	}
	if expired {
		return fmt.Errorf("still on login page")
	}
	return nil
}

// Expired matches the login route or a login page title.
func (c *Coverage) Expired(ctx context.Context) (bool, error) {
	url, title, err := c.page.Location(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(url, "/login") || strings.Contains(title, "Login"), nil
}

func (c *Coverage) Query(ctx context.Context, key domain.Key) (domain.Result, error) {
	if key.Point == nil {
		return domain.Result{}, fmt.Errorf("coverage lookup needs a coordinate")
	}
	switch key.Coverage {
	case domain.CoverageDelivery:
		return c.delivery(ctx, *key.Point)
	default:
		return c.internet(ctx, *key.Point)
	}
}

func (c *Coverage) internet(ctx context.Context, point domain.Coordinate) (domain.Result, error) {
	p := c.page
	if err := c.open(ctx, "/buscar-casa-coordenada/31"); err != nil {
		return domain.Result{}, err
	}
	if err := p.Input(ctx, "#input_lat_lon", point.String()); err != nil {
		return domain.Result{}, transient("type coordinate: %v", err)
	}
	if err := p.ClickText(ctx, "button", "Buscar"); err != nil {
		return domain.Result{}, transient("search: %v", err)
	}
	if err := wait.For(ctx, c.cfg.SettleDelay); err != nil {
		return domain.Result{}, err
	}
	_ = p.ClickText(ctx, "button", "Confirmar")
	if err := wait.For(ctx, c.cfg.SettleDelay); err != nil {
		return domain.Result{}, err
	}

	doc, _, err := c.document(ctx)
	if err != nil {
		return domain.Result{}, transient("%v", err)
	}
	cov := parseInternet(doc)
	return domain.Result{Internet: &cov}, nil
}

func (c *Coverage) delivery(ctx context.Context, point domain.Coordinate) (domain.Result, error) {
	p := c.page
	if err := c.open(ctx, "/cobertura-delivery"); err != nil {
		return domain.Result{}, err
	}
	steps := []struct {
		what string
		run  func() error
	}{
		{"open address search", func() error { return p.Click(ctx, "#btn_search_dir") }},
		{"coordinates tab", func() error { return p.ClickText(ctx, "a, button, li", "Coordenadas") }},
		{"type coordinate", func() error { return p.Input(ctx, "#input_coordenadas", point.String()) }},
		{"search", func() error { return p.Click(ctx, "#btn_search") }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return domain.Result{}, transient("%s: %v", step.what, err)
		}
	}
	if err := wait.For(ctx, c.cfg.SettleDelay); err != nil {
		return domain.Result{}, err
	}
	_ = p.Click(ctx, "#btn_confirmar")
	if err := wait.For(ctx, c.cfg.SettleDelay); err != nil {
		return domain.Result{}, err
	}

	doc, _, err := c.document(ctx)
	if err != nil {
		return domain.Result{}, transient("%v", err)
	}
	cov := parseDelivery(doc)
	return domain.Result{Delivery: &cov}, nil
}

func (c *Coverage) open(ctx context.Context, path string) error {
	if err := c.page.Navigate(ctx, c.cfg.BaseURL+path); err != nil {
		return transient("open %s: %v", path, err)
	}
	expired, err := c.Expired(ctx)
	if err != nil {
		return transient("read location: %v", err)
	}
	if expired {
		return domain.ErrSessionExpired
	}
	return nil
}

// labelled walks two-column table rows of the result modal.
func labelled(doc *goquery.Document, fn func(label, value string)) {
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToUpper(text(cells.Eq(0)))
		value := text(cells.Eq(1))
		if value != "" {
			fn(label, value)
		}
	})
}

func parseInternet(doc *goquery.Document) domain.InternetCoverage {
	res := domain.InternetCoverage{
		Tecnologia: "---", Plano: "---", Velocidad: "---", Vendor: "---",
		Estado: domain.StatusSinCobertura,
	}

	labelled(doc, func(label, value string) {
		switch {
		case strings.Contains(label, "PLANO"):
			res.Plano = value
		case strings.Contains(label, "TECNOLOG"):
			res.Tecnologia = strings.ToUpper(value)
		case strings.Contains(label, "VELOCIDAD"):
			res.Velocidad = value
		case strings.Contains(label, "VENDOR"):
			res.Vendor = strings.ToUpper(value)
		}
	})

	page := strings.ToUpper(text(doc.Find("body")))
	// Any positive banner counts as wired coverage unless it says otherwise.
	if strings.Contains(page, "CON COBERTURA") {
		res.Alambrica = true
	}
	if strings.Contains(page, "CON COBERTURA INALÁMBRICA") || strings.Contains(page, "CON COBERTURA INALAMBRICA") {
		res.Inalambrica = true
	}

	if res.Plano == "---" {
		if m := planoExpr.FindStringSubmatch(page); m != nil {
			res.Plano = m[1]
		}
	}
	if res.Tecnologia == "---" {
		res.Tecnologia = firstIn(page, technologies, "---")
	}
	if res.Velocidad == "---" {
		if m := velocidadExpr.FindStringSubmatch(page); m != nil {
			res.Velocidad = m[1]
		}
	}
	if res.Vendor == "---" {
		res.Vendor = firstIn(page, vendors, "---")
	}
	if res.Alambrica || res.Inalambrica {
		res.Estado = domain.StatusConCobertura
	}
	return res
}

func parseDelivery(doc *goquery.Document) domain.DeliveryCoverage {
	res := domain.DeliveryCoverage{
		Distrito: "---", Plano: "---", ZonaTOA: "---", Color: "---", Condicion: "---",
		Estado: domain.StatusSinCobertura,
	}

	labelled(doc, func(label, value string) {
		switch {
		case strings.Contains(label, "DISTRITO"):
			res.Distrito = value
		case strings.Contains(label, "PLANO"):
			res.Plano = value
		case strings.Contains(label, "ZONA") && strings.Contains(label, "TOA"):
			res.ZonaTOA = value
		case strings.Contains(label, "COLOR"):
			res.Color = strings.ToUpper(value)
		case strings.Contains(label, "ESTADO"):
			res.Estado = strings.ToUpper(value)
		case strings.Contains(label, "CONDICION"):
			res.Condicion = strings.ToUpper(value)
		}
	})

	page := strings.ToUpper(text(doc.Find("body")))
	if res.Plano == "---" {
		if m := planoExpr.FindStringSubmatch(page); m != nil {
			res.Plano = m[1]
		}
	}
	if res.ZonaTOA == "---" {
		if m := zonaTOAExpr.FindStringSubmatch(page); m != nil {
			res.ZonaTOA = m[1]
		}
	}
	if res.Color == "---" {
		res.Color = firstIn(page, colours, "---")
	}
	if strings.Contains(page, "CON COBERTURA") {
		res.Covered = true
		if m := coberturaExpr.FindStringSubmatch(page); m != nil {
			res.Estado = "CON COBERTURA (" + strings.TrimSpace(m[1]) + ")"
		} else if !strings.HasPrefix(res.Estado, "CON COBERTURA") {
			res.Estado = domain.StatusConCobertura
		}
	}
	if res.Condicion == "---" {
		res.Condicion = firstIn(page, []string{"LUNES A DOMINGO", "LUNES A VIERNES"}, "---")
	}
	return res
}

func firstIn(page string, options []string, fallback string) string {
	for _, o := range options {
		if strings.Contains(page, o) {
			return o
		}
	}
	return fallback
}
