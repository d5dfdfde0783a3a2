package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CoverageKind selects one of the coverage queries of the feasibility portal.
type CoverageKind string

const (
	CoverageInternet CoverageKind = "internet"
	CoverageDelivery CoverageKind = "delivery"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lng float64
}

func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// Key identifies one lookup: a document number, or a coordinate for coverage portals.
type Key struct {
	ID       string
	Point    *Coordinate
	Coverage CoverageKind
}

// IDKey builds a key for identifier-based portals.
func IDKey(id string) Key {
	return Key{ID: id}
}

// PointKey builds a key for coverage queries.
func PointKey(kind CoverageKind, point Coordinate) Key {
	return Key{Point: &point, Coverage: kind}
}

func (k Key) String() string {
	if k.Point != nil {
		return fmt.Sprintf("%s(%s)", k.Coverage, k.Point)
	}
	return k.ID
}

// Company holds the tax-registry fields of a RUC.
type Company struct {
	RazonSocial   string
	Representante string
	Documento     string
	Departamento  string
	Provincia     string
	Distrito      string
	Direccion     string
	Estado        string
}

// Person is the merged result of the document-number lookup.
type Person struct {
	DNI             string
	Nombres         string
	ApellidoPaterno string
	ApellidoMaterno string
	NombreCompleto  string
	FechaNacimiento string
	Edad            int
	Genero          string
	Verificacion    string
	Direccion       string
	Distrito        string
	Provincia       string
	Departamento    string
	Ubigeo          string
}

// InternetCoverage is the result of a fixed-internet feasibility query.
type InternetCoverage struct {
	Alambrica   bool
	Inalambrica bool
	Tecnologia  string
	Plano       string
	Velocidad   string
	Vendor      string
	Estado      string
}

// Covered reports whether any access technology is available.
func (c InternetCoverage) Covered() bool {
	return c.Alambrica || c.Inalambrica || c.Estado == StatusConCobertura
}

// DeliveryCoverage is the result of a delivery feasibility query.
type DeliveryCoverage struct {
	Distrito  string
	Plano     string
	ZonaTOA   string
	Color     string
	Estado    string
	Condicion string
	Covered   bool
}

// Result carries the portal-specific payload of a successful lookup.
// Only the fields of the queried portal are set.
type Result struct {
	Company  *Company
	Phone    string
	Lines    *int
	Segment  string
	Internet *InternetCoverage
	Delivery *DeliveryCoverage
	Person   *Person
}

// LineCount wraps n for Result.Lines.
func LineCount(n int) *int {
	return &n
}

var (
	coordMarkers = strings.NewReplacer("📍", "", "Lat:", "", "Lng:", "")
	coordNoise   = regexp.MustCompile(`[^\d\-.,\s]`)
	coordPair    = regexp.MustCompile(`(-?\d+\.?\d*)\s*[,\s]\s*(-?\d+\.?\d*)`)
)

// ParseCoordinate extracts a "lat, lng" pair from free text such as
// "📍Lat: -12.046, Lng: -77.042".
func ParseCoordinate(text string) (Coordinate, bool) {
	cleaned := coordMarkers.Replace(text)
	cleaned = coordNoise.ReplaceAllString(cleaned, "")

	m := coordPair.FindStringSubmatch(cleaned)
	if m == nil {
		return Coordinate{}, false
	}

	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Coordinate{}, false
	}
	return Coordinate{Lat: lat, Lng: lng}, true
}

// ValidPhone accepts 9-digit mobile numbers starting with 9 and
// 11-digit numbers with the 519 country prefix.
func ValidPhone(phone string) bool {
	if phone != onlyDigits(phone) {
		return false
	}
	switch len(phone) {
	case 9:
		return strings.HasPrefix(phone, "9")
	case 11:
		return strings.HasPrefix(phone, "519")
	default:
		return false
	}
}
