package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"RucFilter/internal/domain"
	"RucFilter/internal/session"
)

// DNIConfig holds the two REST providers merged by the document lookup.
type DNIConfig struct {
	AddressURL   string
	AddressToken string
	PersonURL    string
	PersonKey    string
	Timeout      time.Duration
}

// DNI merges personal data and registered address from two REST APIs.
type DNI struct {
	cfg  DNIConfig
	http *http.Client
	now  func() time.Time
}

var _ session.Portal = (*DNI)(nil)

// NewDNI creates a reusable HTTP client.
func NewDNI(cfg DNIConfig) *DNI {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &DNI{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
}

func (d *DNI) Name() string {
	return "dni"
}

func (d *DNI) Login(context.Context) error {
	return nil
}

func (d *DNI) Expired(context.Context) (bool, error) {
	return false, nil
}

func (d *DNI) Close() error {
	d.http.CloseIdleConnections()
	return nil
}

// Query asks both providers; a provider that fails is skipped and the lookup
// only reports NotFound when neither answered.
func (d *DNI) Query(ctx context.Context, key domain.Key) (domain.Result, error) {
	dni, ok := domain.NormalizeDNI(key.ID)
	if !ok {
		return domain.Result{}, notFound("dni " + key.ID)
	}

	person := domain.Person{DNI: dni}
	gotPerson, errPerson := d.person(ctx, dni, &person)
	gotAddress, errAddress := d.address(ctx, dni, &person)
	if ctx.Err() != nil {
		return domain.Result{}, ctx.Err()
	}
	if !gotPerson && !gotAddress {
		if errPerson != nil && errAddress != nil {
			return domain.Result{}, transient("person: %v; address: %v", errPerson, errAddress)
		}
		return domain.Result{}, notFound("dni " + dni)
	}
	return domain.Result{Person: &person}, nil
}

func (d *DNI) person(ctx context.Context, dni string, p *domain.Person) (bool, error) {
	if d.cfg.PersonURL == "" {
		return false, nil
	}
	q := url.Values{"document": {dni}, "key": {d.cfg.PersonKey}}

	var resp struct {
		Estado    bool `json:"estado"`
		Resultado struct {
			Nombres         string `json:"nombres"`
			ApellidoPaterno string `json:"apellido_paterno"`
			ApellidoMaterno string `json:"apellido_materno"`
			NombreCompleto  string `json:"nombre_completo"`
			FechaNacimiento string `json:"fecha_nacimiento"`
			Genero          string `json:"genero"`
			Codigo          string `json:"codigo_verificacion"`
		} `json:"resultado"`
	}
	if err := d.get(ctx, d.cfg.PersonURL+"?"+q.Encode(), "", &resp); err != nil {
		return false, err
	}
	if !resp.Estado {
		return false, nil
	}

	r := resp.Resultado
	p.Nombres = r.Nombres
	p.ApellidoPaterno = r.ApellidoPaterno
	p.ApellidoMaterno = r.ApellidoMaterno
	p.NombreCompleto = r.NombreCompleto
	p.FechaNacimiento = r.FechaNacimiento
	p.Edad = age(r.FechaNacimiento, d.now())
	p.Genero = gender(r.Genero)
	p.Verificacion = r.Codigo
	return true, nil
}

func (d *DNI) address(ctx context.Context, dni string, p *domain.Person) (bool, error) {
	if d.cfg.AddressURL == "" {
		return false, nil
	}

	var resp struct {
		Success bool `json:"success"`
		Datos   struct {
			Domiciliado struct {
				Direccion    string `json:"direccion"`
				Distrito     string `json:"distrito"`
				Provincia    string `json:"provincia"`
				Departamento string `json:"departamento"`
				Ubigeo       string `json:"ubigeo"`
			} `json:"domiciliado"`
		} `json:"datos"`
	}
	endpoint := strings.TrimRight(d.cfg.AddressURL, "/") + "/" + dni
	if err := d.get(ctx, endpoint, d.cfg.AddressToken, &resp); err != nil {
		return false, err
	}
	if !resp.Success {
		return false, nil
	}

	a := resp.Datos.Domiciliado
	p.Direccion = a.Direccion
	p.Distrito = a.Distrito
	p.Provincia = a.Provincia
	p.Departamento = a.Departamento
	p.Ubigeo = a.Ubigeo
	return true, nil
}

func (d *DNI) get(ctx context.Context, endpoint, token string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// age counts whole years from a DD/MM/YYYY birth date; unparsable dates give 0.
func age(birth string, now time.Time) int {
	t, err := time.Parse("02/01/2006", birth)
	if err != nil {
		return 0
	}
	years := now.Year() - t.Year()
	if now.Month() < t.Month() || (now.Month() == t.Month() && now.Day() < t.Day()) {
		years--
	}
	return years
}

func gender(code string) string {
	switch code {
	case "M":
		return "Masculino"
	case "F":
		return "Femenino"
	default:
		return code
	}
}
