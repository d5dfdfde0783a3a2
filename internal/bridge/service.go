// Package bridge answers single chat-style lookups over HTTP while keeping
// portal sessions open between requests.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"RucFilter/internal/domain"
	"RucFilter/internal/ports"
)

// Portal names the bridge asks for.
const (
	PortalRegistry = string(domain.StageRegistry)
	PortalPhone    = string(domain.StagePhone)
	PortalCoverage = string(domain.StageCoverage)
	PortalDNI      = "dni"
)

// Opener builds a logged-out session for a portal name.
type Opener func(ctx context.Context, portal string) (ports.SiteSession, error)

// Service dispatches commands to lazily opened, long-lived sessions.
type Service struct {
	open   Opener
	warm   domain.Coordinate
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]ports.SiteSession
}

// NewService returns a service; warm is the coordinate used to keep the
// coverage session alive.
func NewService(open Opener, warm domain.Coordinate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		open:     open,
		warm:     warm,
		logger:   logger.With("component", "bridge"),
		sessions: map[string]ports.SiteSession{},
	}
}

// Execute runs one command and renders the reply text.
func (s *Service) Execute(ctx context.Context, command, args string) string {
	switch strings.ToLower(strings.TrimSpace(command)) {
	case "ruc":
		return s.ruc(ctx, args)
	case "dni":
		return s.dni(ctx, args)
	case "internet":
		return s.internet(ctx, args)
	case "delivery":
		return s.delivery(ctx, args)
	default:
		return "Comando desconocido: " + command
	}
}

// Warm opens and logs in the coverage session ahead of the first request.
func (s *Service) Warm(ctx context.Context) error {
	sess, err := s.session(ctx, PortalCoverage)
	if err != nil {
		return err
	}
	return sess.Login(ctx)
}

// Touch runs a cheap coverage lookup so the portal does not expire the session.
func (s *Service) Touch(ctx context.Context) error {
	s.mu.Lock()
	sess, ok := s.sessions[PortalCoverage]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := sess.Lookup(ctx, domain.PointKey(domain.CoverageInternet, s.warm))
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// Close ends every open session.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, sess := range s.sessions {
		if err := sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(s.sessions, name)
	}
	return errors.Join(errs...)
}

func (s *Service) session(ctx context.Context, portal string) (ports.SiteSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[portal]; ok {
		return sess, nil
	}
	sess, err := s.open(ctx, portal)
	if err != nil {
		return nil, err
	}
	s.sessions[portal] = sess
	return sess, nil
}

func (s *Service) lookup(ctx context.Context, portal string, key domain.Key) (domain.Result, error) {
	sess, err := s.session(ctx, portal)
	if err != nil {
		return domain.Result{}, err
	}
	res, err := sess.Lookup(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("lookup failed", "portal", portal, "key", key.String(), "error", err)
	}
	return res, err
}

func (s *Service) ruc(ctx context.Context, args string) string {
	ruc, ok := domain.NormalizeRUC(args)
	if !ok || len(strings.Map(keepDigit, args)) != 11 {
		return "Formato incorrecto\n\nUso: .ruc NUMERO_RUC\nEjemplo: .ruc 20123456789"
	}

	company, companyErr := s.lookup(ctx, PortalRegistry, domain.IDKey(ruc))
	phone, phoneErr := s.lookup(ctx, PortalPhone, domain.IDKey(ruc))

	var b strings.Builder
	fmt.Fprintf(&b, "Consulta RUC: %s\n\n", ruc)
	if companyErr == nil && company.Company != nil {
		c := company.Company
		fmt.Fprintf(&b, "DATOS SUNAT:\nRazon Social: %s\nEstado: %s\nRepresentante: %s\nDNI: %s\n"+
			"Direccion: %s\nDistrito: %s\nProvincia: %s\nDepartamento: %s\n\n",
			orDash(c.RazonSocial), or(c.Estado, "ACTIVO"), orDash(c.Representante), orDash(c.Documento),
			orDash(c.Direccion), orDash(c.Distrito), orDash(c.Provincia), orDash(c.Departamento))
	} else {
		b.WriteString("DATOS SUNAT: No disponible\n\n")
	}
	telefono := "Sin registro"
	if phoneErr == nil && phone.Phone != "" {
		telefono = phone.Phone
	}
	b.WriteString("TELEFONO ENTEL: " + telefono)
	return b.String()
}

func (s *Service) dni(ctx context.Context, args string) string {
	dni, ok := domain.NormalizeDNI(args)
	if !ok {
		return "Formato incorrecto\n\nUso: .dni NUMERO_DNI\nEjemplo: .dni 12345678"
	}

	res, err := s.lookup(ctx, PortalDNI, domain.IDKey(dni))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "DNI " + dni + ": sin resultados"
	case err != nil || res.Person == nil:
		return "Error consultando DNI " + dni
	}

	p := res.Person
	edad := "---"
	if p.Edad > 0 {
		edad = fmt.Sprintf("%d años", p.Edad)
	}
	doc := p.DNI
	if p.Verificacion != "" {
		doc += "-" + p.Verificacion
	}
	return fmt.Sprintf("Consulta DNI: %s\n\nNombre: %s\nFecha de nacimiento: %s\nEdad: %s\nGenero: %s\n\n"+
		"Direccion: %s\nDistrito: %s\nProvincia: %s\nDepartamento: %s\nUbigeo: %s",
		doc, orDash(p.NombreCompleto), orDash(p.FechaNacimiento), edad, orDash(p.Genero),
		orDash(p.Direccion), orDash(p.Distrito), orDash(p.Provincia), orDash(p.Departamento), orDash(p.Ubigeo))
}

func (s *Service) internet(ctx context.Context, args string) string {
	point, ok := domain.ParseCoordinate(args)
	if !ok {
		return "Formato incorrecto\n\nUso: .internet lat, lng\nEjemplo: .internet -12.046, -77.042"
	}

	res, err := s.lookup(ctx, PortalCoverage, domain.PointKey(domain.CoverageInternet, point))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return noCoverage("Cobertura de Internet", err.Error(), point)
	}
	if res.Internet == nil {
		return noCoverage("Cobertura de Internet", "Sin cobertura", point)
	}

	c := res.Internet
	return fmt.Sprintf("Resultado de cobertura:\nCobertura de Internet: %s\n\nPLANO: %s\nTECNOLOGIA: %s\n"+
		"VELOCIDAD: %s\nVENDOR: %s\nESTADO: %s\n\n%s",
		yesNo(c.Estado == domain.StatusConCobertura), c.Plano, c.Tecnologia, c.Velocidad, c.Vendor, c.Estado,
		footer(point))
}

func (s *Service) delivery(ctx context.Context, args string) string {
	point, ok := domain.ParseCoordinate(args)
	if !ok {
		return "Formato incorrecto\n\nUso: .delivery lat, lng\nEjemplo: .delivery -12.046, -77.042"
	}

	res, err := s.lookup(ctx, PortalCoverage, domain.PointKey(domain.CoverageDelivery, point))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return noCoverage("Cobertura por Delivery", err.Error(), point)
	}
	if res.Delivery == nil {
		return noCoverage("Cobertura por Delivery", "Sin cobertura", point)
	}

	c := res.Delivery
	return fmt.Sprintf("Resultado de cobertura:\nCobertura por Delivery: %s\n\nDISTRITO: %s\nPLANO: %s\n"+
		"ZONA_TOA: %s\nCOLOR: %s\nESTADO: %s\nCONDICION: %s\n\n%s",
		yesNo(strings.Contains(c.Estado, domain.StatusConCobertura)), c.Distrito, c.Plano, c.ZonaTOA,
		c.Color, c.Estado, c.Condicion, footer(point))
}

func noCoverage(title, reason string, point domain.Coordinate) string {
	return fmt.Sprintf("Resultado de cobertura:\n%s: NO\n\n%s\n\nCoord: %s\n\nFACC", title, reason, point)
}

func footer(point domain.Coordinate) string {
	return fmt.Sprintf("Coordenadas:\nLat: %v\nLng: %v\n\nFACC", point.Lat, point.Lng)
}

func yesNo(ok bool) string {
	if ok {
		return "SI"
	}
	return "NO"
}

func orDash(v string) string {
	return or(v, "---")
}

func or(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func keepDigit(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}
