package domain

import (
	"strconv"
	"strings"
)

// Column is a zero-based column index of the dataset layout.
type Column int

const (
	ColID Column = iota
	ColRUC
	ColRazonSocial
	ColRepresentante
	ColTelefono
	ColDocumento
	ColDepartamento
	ColProvincia
	ColDistrito
	ColDireccion
	ColEstado
	ColEstadoEntel
	ColLineas
	ColSegmento
	ColCoordenadas
	ColCobertura
	ColEstadoCobertura

	columnCount
)

// HeaderID is the expected content of cell A1.
const HeaderID = "ID REGISTRO"

var headers = [columnCount]string{
	HeaderID,
	"RUC",
	"Razón Social",
	"Representante Legal",
	"Teléfonos",
	"Documento Identidad",
	"DEPARTAMENTO",
	"PROVINCIA",
	"DISTRITO",
	"DIRECCION",
	"ESTADO",
	"ESTADO ENTEL",
	"LINEAS",
	"SEGMENTO",
	"COORDENADAS",
	"COBERTURA",
	"ESTADO COBERTURA",
}

// ColumnCount returns the width of the dataset layout.
func ColumnCount() int {
	return int(columnCount)
}

// LastColumn is the right-most column of the layout.
func LastColumn() Column {
	return columnCount - 1
}

// Headers returns the header row in column order.
func Headers() []string {
	out := make([]string, len(headers))
	copy(out, headers[:])
	return out
}

// Header returns the header label of the column.
func (c Column) Header() string {
	if c < 0 || c >= columnCount {
		return ""
	}
	return headers[c]
}

// Letter renders the column in A1 notation (A, B, ..., Z, AA, ...).
func (c Column) Letter() string {
	n := int(c) + 1
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// Record is one data row of the dataset.
type Record struct {
	Row    int
	RUC    string
	Fields []string
}

// NewRecord builds a record from raw cells; ok is false when the RUC cell
// does not normalize to a valid identifier.
func NewRecord(row int, cells []string) (Record, bool) {
	fields := make([]string, ColumnCount())
	for i := 0; i < len(cells) && i < len(fields); i++ {
		fields[i] = strings.TrimSpace(cells[i])
	}

	ruc, ok := NormalizeRUC(fields[ColRUC])
	if !ok {
		return Record{}, false
	}

	return Record{Row: row, RUC: ruc, Fields: fields}, true
}

// Get returns the trimmed cell value or "" when absent.
func (r Record) Get(c Column) string {
	if c < 0 || int(c) >= len(r.Fields) {
		return ""
	}
	return r.Fields[c]
}

// NormalizeRUC strips every non-digit, keeps the first 11 digits and rejects shorter values.
func NormalizeRUC(raw string) (string, bool) {
	digits := onlyDigits(raw)
	if len(digits) < 11 {
		return "", false
	}
	return digits[:11], true
}

// NormalizeDNI strips every non-digit and accepts exactly 8 digits.
func NormalizeDNI(raw string) (string, bool) {
	digits := onlyDigits(raw)
	if len(digits) != 8 {
		return "", false
	}
	return digits, true
}

// ParseSequence reads a display ID cell; ok is false for non-numeric cells.
func ParseSequence(cell string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil {
		return 0, false
	}
	return n, true
}

func onlyDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
