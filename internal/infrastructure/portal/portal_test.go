package portal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"RucFilter/internal/domain"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc
}

const sunatResult = `
<div class="list-group">
  <div class="list-group-item">
    <h4 class="list-group-item-heading">Número de RUC:</h4>
    <h4 class="list-group-item-heading">20123456789 - ACME PERU S.A.C.</h4>
  </div>
  <div class="list-group-item">
    <h4 class="list-group-item-heading">Estado del Contribuyente:</h4>
    <p class="list-group-item-text">activo</p>
  </div>
  <div class="list-group-item">
    <h4 class="list-group-item-heading">Domicilio Fiscal:</h4>
    <p class="list-group-item-text">AV. AREQUIPA NRO. 123 LIMA - LIMA - MIRAFLORES</p>
  </div>
  <button class="btnInfRepLeg">Representantes</button>
</div>`

const sunatRepresentatives = `
<table><tbody>
  <tr><td>DNI</td><td>12345678</td><td>PEREZ GOMEZ JUAN</td><td>GERENTE</td></tr>
</tbody></table>`

func TestParseCompany(t *testing.T) {
	t.Parallel()

	c := parseCompany(mustDoc(t, sunatResult))
	if c.RazonSocial != "ACME PERU S.A.C." {
		t.Fatalf("unexpected razon social: %q", c.RazonSocial)
	}
	if c.Estado != "ACTIVO" {
		t.Fatalf("unexpected estado: %q", c.Estado)
	}
	if c.Direccion != "AV. AREQUIPA NRO. 123" || c.Departamento != "LIMA" ||
		c.Provincia != "LIMA" || c.Distrito != "MIRAFLORES" {
		t.Fatalf("unexpected address split: %+v", c)
	}
}

func TestSplitFiscalAddress(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in                   string
		dir, dep, prov, dist string
	}{
		{"JR. UNION 456 LA LIBERTAD - TRUJILLO - TRUJILLO", "JR. UNION 456", "LA LIBERTAD", "TRUJILLO", "TRUJILLO"},
		{"CAL. LOS PINOS 12 MADRE DE DIOS - TAMBOPATA - TAMBOPATA", "CAL. LOS PINOS 12", "MADRE DE DIOS", "TAMBOPATA", "TAMBOPATA"},
		{"SIN DATOS", "SIN DATOS", "", "", ""},
	}
	for _, tc := range cases {
		dir, dep, prov, dist := splitFiscalAddress(tc.in)
		if dir != tc.dir || dep != tc.dep || prov != tc.prov || dist != tc.dist {
			t.Fatalf("splitFiscalAddress(%q) = %q %q %q %q", tc.in, dir, dep, prov, dist)
		}
	}
}

func TestSunatQueryWithRepresentative(t *testing.T) {
	t.Parallel()

	page := newFakePage(sunatResult, sunatRepresentatives)
	page.present["button.btnInfRepLeg"] = true
	s := NewSunat(SunatConfig{URL: "https://sunat.test/buscar"}, testDeps(page))

	res, err := s.Query(context.Background(), domain.IDKey("20123456789"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Company == nil || res.Company.Representante != "PEREZ GOMEZ JUAN" {
		t.Fatalf("unexpected company: %+v", res.Company)
	}
	if res.Company.Documento != "DNI 12345678" {
		t.Fatalf("unexpected documento: %q", res.Company.Documento)
	}
	if !page.did("input #txtRuc=20123456789") {
		t.Fatalf("ruc was not typed: %v", page.actions)
	}
}

func TestSunatQueryNoRecord(t *testing.T) {
	t.Parallel()

	page := newFakePage(`<div class="alert">El número de RUC no existe</div>`)
	page.failOn["wait h4.list-group-item-heading"] = errors.New("timeout")
	s := NewSunat(SunatConfig{URL: "https://sunat.test/buscar"}, testDeps(page))

	_, err := s.Query(context.Background(), domain.IDKey("20123456789"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParsePhoneTable(t *testing.T) {
	t.Parallel()

	loaded := `<table id="data-table"><tbody><tr>
		<td>1</td><td>x</td><td>y</td><td>z</td><td> 987-654-321 </td>
	</tr></tbody></table>`
	phone, empty, done := parsePhoneTable(mustDoc(t, loaded))
	if !done || empty || phone != "987654321" {
		t.Fatalf("unexpected parse: %q %v %v", phone, empty, done)
	}

	none := `<div id="data-table_info">Showing 0 to 0 of 0 entries</div>`
	if _, empty, done := parsePhoneTable(mustDoc(t, none)); !done || !empty {
		t.Fatalf("expected empty table, got empty=%v done=%v", empty, done)
	}

	if _, _, done := parsePhoneTable(mustDoc(t, `<table id="data-table"><tbody></tbody></table>`)); done {
		t.Fatal("loading table reported done")
	}
}

func TestEntelQueryExpiredSession(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	page.redirect = "https://entel.test/Account/Login"
	e := NewEntel(EntelConfig{OperationsURL: "https://entel.test/Operation"}, testDeps(page))

	_, err := e.Query(context.Background(), domain.IDKey("20123456789"))
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestEntelQueryInvalidPhoneIsNotFound(t *testing.T) {
	t.Parallel()

	page := newFakePage(`<table id="data-table"><tbody><tr>
		<td>1</td><td>x</td><td>y</td><td>z</td><td>0123</td>
	</tr></tbody></table>`)
	e := NewEntel(EntelConfig{OperationsURL: "https://entel.test/Operation"}, testDeps(page))

	_, err := e.Query(context.Background(), domain.IDKey("20123456789"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEntelLoginNeedsCredentials(t *testing.T) {
	t.Parallel()

	e := NewEntel(EntelConfig{}, testDeps(newFakePage()))
	if err := e.Login(context.Background()); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestParseLineCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		html    string
		count   int
		outcome lineOutcome
	}{
		{"counted", `<div id="GridConsulta_info">Mostrando 1 a 10 de 42 totales</div>`, 42, linesCounted},
		{"none", `<td>No se encontraron resultados</td>`, 0, linesNone},
		{"throttled", `<div>No se pudo procesar su solicitud, inténtelo más tarde</div>`, 0, linesThrottled},
		{"pending", `<div id="GridConsulta_info"></div>`, 0, linesPending},
	}
	for _, tc := range cases {
		count, outcome := parseLineCount(mustDoc(t, tc.html), tc.html)
		if count != tc.count || outcome != tc.outcome {
			t.Fatalf("%s: got %d/%d", tc.name, count, outcome)
		}
	}
}

func TestOsiptelQueryOutcomes(t *testing.T) {
	t.Parallel()

	cfg := OsiptelConfig{URL: "https://osiptel.test/consulta"}

	page := newFakePage(`<div id="GridConsulta_info"></div>`, `<div id="GridConsulta_info">Mostrando 1 a 3 de 3 totales</div>`)
	res, err := NewOsiptel(cfg, testDeps(page)).Query(context.Background(), domain.IDKey("20123456789"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Lines == nil || *res.Lines != 3 {
		t.Fatalf("unexpected lines: %v", res.Lines)
	}

	page = newFakePage(`<div>inténtelo más tarde</div>`)
	_, err = NewOsiptel(cfg, testDeps(page)).Query(context.Background(), domain.IDKey("20123456789"))
	if !errors.Is(err, domain.ErrThrottled) {
		t.Fatalf("expected throttled, got %v", err)
	}

	page = newFakePage(`<p>No se encontraron resultados</p>`)
	_, err = NewOsiptel(cfg, testDeps(page)).Query(context.Background(), domain.IDKey("20123456789"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExtractSegment(t *testing.T) {
	t.Parallel()

	if got := extractSegment(`<span>PYME</span>`); got != "PYME" {
		t.Fatalf("unexpected known segment: %q", got)
	}
	html := `<span>PE Tipo de Cliente</span><div><lightning-formatted-text slot="output"> Emprendedor </lightning-formatted-text></div>`
	if got := extractSegment(html); got != "Emprendedor" {
		t.Fatalf("unexpected labelled segment: %q", got)
	}
	if got := extractSegment(`<div>loading</div>`); got != "" {
		t.Fatalf("expected empty segment, got %q", got)
	}
}

func TestSegmentQueryNoResults(t *testing.T) {
	t.Parallel()

	page := newFakePage(`<div>No se han encontrado resultados</div>`)
	s := NewSegment(SegmentConfig{HomeURL: "https://sf.test/s/"}, testDeps(page))

	_, err := s.Query(context.Background(), domain.IDKey("20123456789"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !page.did("submit " + segmentSearchBox) {
		t.Fatalf("search was not submitted: %v", page.actions)
	}
}

func TestSegmentQueryOpensAccount(t *testing.T) {
	t.Parallel()

	page := newFakePage(`<a class="outputLookupLink">ACME</a>`, `<span>Corporativo</span>`)
	s := NewSegment(SegmentConfig{HomeURL: "https://sf.test/s/"}, testDeps(page))

	res, err := s.Query(context.Background(), domain.IDKey("20123456789"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Segment != "Corporativo" {
		t.Fatalf("unexpected segment: %q", res.Segment)
	}
}

func TestParseInternet(t *testing.T) {
	t.Parallel()

	html := `<body>
	  <div class="modal-body">CON COBERTURA INALÁMBRICA
	    <table>
	      <tr><td>Plano</td><td>LIM-0042</td></tr>
	      <tr><td>Tecnología</td><td>ftth</td></tr>
	    </table>
	    VELOCIDAD MAXIMA 200 MB  HUAWEI
	  </div></body>`
	cov := parseInternet(mustDoc(t, html))
	if !cov.Alambrica || !cov.Inalambrica {
		t.Fatalf("expected both coverages: %+v", cov)
	}
	if cov.Plano != "LIM-0042" || cov.Tecnologia != "FTTH" {
		t.Fatalf("unexpected table fields: %+v", cov)
	}
	if cov.Velocidad != "200 MB" || cov.Vendor != "HUAWEI" {
		t.Fatalf("unexpected text fields: %+v", cov)
	}
	if cov.Estado != domain.StatusConCobertura {
		t.Fatalf("unexpected estado: %q", cov.Estado)
	}

	none := parseInternet(mustDoc(t, `<body>SIN COBERTURA</body>`))
	if none.Covered() || none.Estado != domain.StatusSinCobertura || none.Plano != "---" {
		t.Fatalf("unexpected empty coverage: %+v", none)
	}
}

func TestParseDelivery(t *testing.T) {
	t.Parallel()

	html := `<body>
	  <table>
	    <tr><td>Distrito</td><td>SURCO</td></tr>
	    <tr><td>Color</td><td>verde</td></tr>
	  </table>
	  ZONA TOA 12 PLANO SUR-7 CON COBERTURA (PARCIAL) LUNES A VIERNES
	</body>`
	cov := parseDelivery(mustDoc(t, html))
	if !cov.Covered || cov.Estado != "CON COBERTURA (PARCIAL)" {
		t.Fatalf("unexpected estado: %+v", cov)
	}
	if cov.Distrito != "SURCO" || cov.Color != "VERDE" || cov.ZonaTOA != "12" || cov.Plano != "SUR-7" {
		t.Fatalf("unexpected fields: %+v", cov)
	}
	if cov.Condicion != "LUNES A VIERNES" {
		t.Fatalf("unexpected condicion: %q", cov.Condicion)
	}
}

func TestCoverageQueryNeedsPoint(t *testing.T) {
	t.Parallel()

	c := NewCoverage(CoverageConfig{BaseURL: "https://claro.test"}, testDeps(newFakePage()))
	if _, err := c.Query(context.Background(), domain.IDKey("x")); err == nil {
		t.Fatal("expected error for key without coordinate")
	}
}

func TestCoverageExpiredOnLoginTitle(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	page.url = "https://claro.test/home"
	page.title = "Login - Factibilidad"
	c := NewCoverage(CoverageConfig{BaseURL: "https://claro.test"}, testDeps(page))

	expired, err := c.Expired(context.Background())
	if err != nil || !expired {
		t.Fatalf("expected expired, got %v %v", expired, err)
	}
}

func TestParsePhoneTablePagedInfoIsNotEmpty(t *testing.T) {
	t.Parallel()

	html := `<div id="data-table_info">Showing 1 to 10 of 10 entries</div>
	<table id="data-table"><tbody><tr>
		<td>1</td><td>x</td><td>y</td><td>z</td><td>51987654321</td>
	</tr></tbody></table>`
	phone, empty, done := parsePhoneTable(mustDoc(t, html))
	if !done || empty || phone != "51987654321" {
		t.Fatalf("unexpected parse: %q %v %v", phone, empty, done)
	}
}
