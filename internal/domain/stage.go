package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Stage is one lookup pipeline with its own portal and owned columns.
type Stage string

const (
	StageRegistry Stage = "sunat"
	StagePhone    Stage = "entel"
	StageSegment  Stage = "segmentacion"
	StageLines    Stage = "osiptel"
	StageCoverage Stage = "cobertura"
)

// Status values written by the stages.
const (
	StatusOK           = "OK"
	StatusSinRegistro  = "SIN REGISTRO"
	StatusDesconocido  = "DESCONOCIDO"
	StatusSinSegmento  = "Sin Segmento"
	StatusConCobertura = "CON COBERTURA"
	StatusSinCobertura = "SIN COBERTURA"
	StatusErrorPrefix  = "ERROR"
)

const maxReasonLen = 60

var stageColumns = map[Stage][]Column{
	StageRegistry: {ColID, ColRUC, ColRazonSocial, ColRepresentante, ColDocumento,
		ColDepartamento, ColProvincia, ColDistrito, ColDireccion, ColEstado},
	StagePhone:    {ColTelefono, ColEstadoEntel},
	StageLines:    {ColLineas},
	StageSegment:  {ColSegmento},
	StageCoverage: {ColCobertura, ColEstadoCobertura},
}

var stageStatus = map[Stage]Column{
	StageRegistry: ColEstado,
	StagePhone:    ColEstadoEntel,
	StageLines:    ColLineas,
	StageSegment:  ColSegmento,
	StageCoverage: ColEstadoCobertura,
}

// Stages lists every stage in pipeline order.
func Stages() []Stage {
	return []Stage{StageRegistry, StagePhone, StageSegment, StageLines, StageCoverage}
}

// ParseStage resolves a stage by name.
func ParseStage(name string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := stageColumns[s]; !ok {
		return "", fmt.Errorf("unknown stage %q", name)
	}
	return s, nil
}

// Columns returns the columns the stage may write, in column order.
func (s Stage) Columns() []Column {
	cols := stageColumns[s]
	out := make([]Column, len(cols))
	copy(out, cols)
	return out
}

// Owns reports whether the stage may write column c.
func (s Stage) Owns(c Column) bool {
	for _, col := range stageColumns[s] {
		if col == c {
			return true
		}
	}
	return false
}

// StatusColumn is the column whose emptiness makes a record pending.
func (s Stage) StatusColumn() Column {
	return stageStatus[s]
}

// PendingFilter tunes the pending rule.
type PendingFilter struct {
	RetryErrors bool
}

// Pending reports whether the record still needs this stage.
func (s Stage) Pending(r Record, f PendingFilter) bool {
	status := r.Get(s.StatusColumn())
	if status != "" && !(f.RetryErrors && IsErrorStatus(status)) {
		return false
	}

	switch s {
	case StagePhone:
		if r.Get(ColTelefono) != "" {
			return false
		}
		return !IsInactive(r.Get(ColEstado))
	case StageSegment, StageLines:
		return !IsInactive(r.Get(ColEstado))
	case StageCoverage:
		_, ok := ParseCoordinate(r.Get(ColCoordenadas))
		return ok
	}
	return true
}

// Key builds the lookup key of the record for this stage.
func (s Stage) Key(r Record) (Key, bool) {
	if s == StageCoverage {
		point, ok := ParseCoordinate(r.Get(ColCoordenadas))
		if !ok {
			return Key{}, false
		}
		return PointKey(CoverageInternet, point), true
	}
	return IDKey(r.RUC), r.RUC != ""
}

// IsInactive reports whether a registry status marks the company as closed or suspended.
func IsInactive(estado string) bool {
	e := strings.ToUpper(strings.TrimSpace(estado))
	return strings.HasPrefix(e, "BAJA") || strings.HasPrefix(e, "SUSPENSI")
}

// IsErrorStatus reports whether a status cell holds an error marker.
func IsErrorStatus(status string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(status)), StatusErrorPrefix)
}

// OutcomeKind classifies a lookup outcome.
type OutcomeKind int

const (
	OutcomeFound OutcomeKind = iota
	OutcomeNotFound
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// Outcome is the classified result of one work item, ready to be buffered.
type Outcome struct {
	Kind   OutcomeKind
	Record Record
	Values map[Column]string
	Reason string
}

// Update returns the row update carried by the outcome.
func (o Outcome) Update() Update {
	return Update{Row: o.Record.Row, Values: o.Values}
}

// Update is one column-scoped row write.
type Update struct {
	Row    int
	Values map[Column]string
}

// WorkItem pairs a record with the stage that processes it.
type WorkItem struct {
	Record Record
	Stage  Stage
}

// Apply maps a lookup result (or its error) to the stage's owned columns.
func (s Stage) Apply(r Record, res Result, err error) Outcome {
	out := Outcome{Record: r, Values: map[Column]string{}}
	status := s.StatusColumn()

	switch {
	case errors.Is(err, ErrNotFound):
		out.Kind = OutcomeNotFound
		out.Values[status] = s.notFoundStatus()
		return out
	case err != nil:
		out.Kind = OutcomeFailed
		out.Reason = truncate(err.Error(), maxReasonLen)
		out.Values[status] = StatusErrorPrefix + ": " + out.Reason
		return out
	}

	out.Kind = OutcomeFound
	switch s {
	case StageRegistry:
		if res.Company == nil {
			return s.Apply(r, res, fmt.Errorf("%w: empty registry result", ErrTransient))
		}
		c := res.Company
		id := r.Get(ColID)
		if id == "" {
			id = strconv.Itoa(r.Row - 1)
		}
		estado := c.Estado
		if estado == "" {
			estado = StatusDesconocido
		}
		out.Values[ColID] = id
		out.Values[ColRUC] = r.RUC
		out.Values[ColRazonSocial] = c.RazonSocial
		out.Values[ColRepresentante] = c.Representante
		out.Values[ColDocumento] = c.Documento
		out.Values[ColDepartamento] = c.Departamento
		out.Values[ColProvincia] = c.Provincia
		out.Values[ColDistrito] = c.Distrito
		out.Values[ColDireccion] = c.Direccion
		out.Values[ColEstado] = estado
	case StagePhone:
		if !ValidPhone(res.Phone) {
			return s.Apply(r, res, ErrNotFound)
		}
		out.Values[ColTelefono] = res.Phone
		out.Values[ColEstadoEntel] = StatusOK
	case StageLines:
		if res.Lines == nil {
			return s.Apply(r, res, fmt.Errorf("%w: empty line count", ErrTransient))
		}
		out.Values[ColLineas] = strconv.Itoa(*res.Lines)
	case StageSegment:
		if res.Segment == "" {
			return s.Apply(r, res, ErrNotFound)
		}
		out.Values[ColSegmento] = res.Segment
	case StageCoverage:
		if res.Internet == nil {
			return s.Apply(r, res, fmt.Errorf("%w: empty coverage result", ErrTransient))
		}
		out.Values[ColCobertura] = CoverageSummary(*res.Internet)
		out.Values[ColEstadoCobertura] = res.Internet.Estado
		if !res.Internet.Covered() {
			out.Kind = OutcomeNotFound
		}
	}
	return out
}

func (s Stage) notFoundStatus() string {
	switch s {
	case StageLines:
		return "0"
	case StageSegment:
		return StatusSinSegmento
	case StageCoverage:
		return StatusSinCobertura
	default:
		return StatusSinRegistro
	}
}

// CoverageSummary renders the internet coverage attributes for one cell.
func CoverageSummary(c InternetCoverage) string {
	parts := make([]string, 0, 4)
	for _, v := range []string{c.Tecnologia, c.Velocidad, c.Vendor, c.Plano} {
		if v != "" && v != "---" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "---"
	}
	return strings.Join(parts, " / ")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
