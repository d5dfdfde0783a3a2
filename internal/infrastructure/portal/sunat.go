package portal

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"RucFilter/internal/domain"
	"RucFilter/internal/session"
)

// SunatConfig points at the public RUC search.
type SunatConfig struct {
	URL           string
	ResultTimeout time.Duration
}

// Sunat queries the tax registry; it needs no login.
type Sunat struct {
	base
	cfg SunatConfig
}

var _ session.Portal = (*Sunat)(nil)

var departments = func() []string {
	list := []string{
		"AMAZONAS", "ANCASH", "APURIMAC", "AREQUIPA", "AYACUCHO", "CAJAMARCA",
		"CALLAO", "CUSCO", "HUANCAVELICA", "HUANUCO", "ICA", "JUNIN", "LA LIBERTAD",
		"LAMBAYEQUE", "LIMA", "LORETO", "MADRE DE DIOS", "MOQUEGUA", "PASCO",
		"PIURA", "PUNO", "SAN MARTIN", "TACNA", "TUMBES", "UCAYALI",
		"CALLAO (PROVINCIA CONSTITUCIONAL)",
	}
	sort.Slice(list, func(i, j int) bool { return len(list[i]) > len(list[j]) })
	return list
}()

var sunatMissing = []string{"no existe", "no es válido", "no es valido", "no se encontr"}

// NewSunat wires the registry portal.
func NewSunat(cfg SunatConfig, deps Deps) *Sunat {
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = 10 * time.Second
	}
	return &Sunat{base: newBase(deps), cfg: cfg}
}

func (s *Sunat) Name() string {
	return string(domain.StageRegistry)
}

// Login only opens the search page.
func (s *Sunat) Login(ctx context.Context) error {
	return s.page.Navigate(ctx, s.cfg.URL)
}

func (s *Sunat) Expired(context.Context) (bool, error) {
	return false, nil
}

// Query searches by RUC; when the representative table fails to load the
// whole query is repeated once.
func (s *Sunat) Query(ctx context.Context, key domain.Key) (domain.Result, error) {
	var company domain.Company
	for attempt := 1; attempt <= 2; attempt++ {
		c, repeat, err := s.query(ctx, key.ID)
		if err != nil {
			return domain.Result{}, err
		}
		company = c
		if !repeat {
			break
		}
		s.debug("representative table missing, repeating query", "ruc", key.ID, "attempt", attempt)
	}
	return domain.Result{Company: &company}, nil
}

func (s *Sunat) query(ctx context.Context, ruc string) (domain.Company, bool, error) {
	p := s.page
	if err := p.Navigate(ctx, s.cfg.URL); err != nil {
		return domain.Company{}, false, transient("open search: %v", err)
	}
	if err := p.Click(ctx, "#btnPorRuc"); err != nil {
		return domain.Company{}, false, transient("select search by ruc: %v", err)
	}
	if err := p.Input(ctx, "#txtRuc", ruc); err != nil {
		return domain.Company{}, false, transient("type ruc: %v", err)
	}
	if p.Visible(ctx, "#txtCodigo") {
		if err := s.challenge(ctx, "SUNAT: resuelva el captcha en el navegador y presione ENTER"); err != nil {
			return domain.Company{}, false, err
		}
	}
	if err := p.Click(ctx, "#btnAceptar"); err != nil {
		return domain.Company{}, false, transient("submit search: %v", err)
	}

	if err := p.WaitFor(ctx, "h4.list-group-item-heading", s.cfg.ResultTimeout); err != nil {
		if html, herr := p.HTML(ctx); herr == nil && sunatNoRecord(html) {
			return domain.Company{}, false, notFound("ruc " + ruc)
		}
		return domain.Company{}, false, transient("result did not load: %v", err)
	}

	doc, _, err := s.document(ctx)
	if err != nil {
		return domain.Company{}, false, err
	}
	company := parseCompany(doc)
	if company.RazonSocial == "" {
		return domain.Company{}, false, transient("result without business name")
	}

	if !p.Has(ctx, "button.btnInfRepLeg") {
		return company, false, nil
	}
	if err := p.Click(ctx, "button.btnInfRepLeg"); err != nil {
		return company, true, nil
	}
	if err := p.WaitFor(ctx, "tbody tr", 5*time.Second); err != nil {
		return company, true, nil
	}

	doc, _, err = s.document(ctx)
	if err != nil {
		return company, true, nil
	}
	name, document, ok := parseRepresentative(doc)
	if !ok {
		return company, true, nil
	}
	company.Representante = name
	company.Documento = document
	return company, false, nil
}

func sunatNoRecord(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range sunatMissing {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// parseCompany reads the result cards of the RUC search.
func parseCompany(doc *goquery.Document) domain.Company {
	var c domain.Company

	doc.Find("h4.list-group-item-heading").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		t := text(h)
		if _, name, ok := strings.Cut(t, " - "); ok && startsWithDigit(t) {
			c.RazonSocial = strings.TrimSpace(name)
			return false
		}
		return true
	})

	doc.Find(".list-group-item").Each(func(_ int, item *goquery.Selection) {
		label := text(item)
		value := text(item.Find("p.list-group-item-text").First())
		switch {
		case strings.Contains(label, "Domicilio Fiscal:") && c.Direccion == "":
			c.Direccion, c.Departamento, c.Provincia, c.Distrito = splitFiscalAddress(value)
		case strings.Contains(label, "Estado del Contribuyente:") && c.Estado == "":
			c.Estado = strings.ToUpper(value)
		}
	})

	return c
}

// splitFiscalAddress splits "AV. X 123 LIMA - LIMA - MIRAFLORES" into its parts.
func splitFiscalAddress(full string) (direccion, departamento, provincia, distrito string) {
	parts := strings.Split(full, " - ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 {
		return strings.TrimSpace(full), "", "", ""
	}

	distrito = parts[len(parts)-1]
	provincia = parts[len(parts)-2]
	rest := strings.TrimSpace(strings.Join(parts[:len(parts)-2], " - "))
	upper := strings.ToUpper(rest)

	for _, dep := range departments {
		if strings.HasSuffix(upper, dep) {
			direccion = strings.TrimRight(rest[:len(rest)-len(dep)], " -")
			return direccion, dep, provincia, distrito
		}
	}

	if len(parts) >= 4 {
		return strings.Join(parts[:len(parts)-3], " - "), parts[len(parts)-3], provincia, distrito
	}
	return rest, "", provincia, distrito
}

// parseRepresentative takes the first row of the legal representatives table.
func parseRepresentative(doc *goquery.Document) (name, document string, ok bool) {
	doc.Find("tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() < 3 {
			return true
		}
		tipo := text(cells.Eq(0))
		num := text(cells.Eq(1))
		name = text(cells.Eq(2))
		document = strings.TrimSpace(tipo + " " + num)
		ok = name != ""
		return !ok
	})
	return name, document, ok
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
