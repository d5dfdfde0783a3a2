package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"RucFilter/internal/domain"
)

// Theme holds the colors of the run report and menu.
type Theme struct {
	Title   lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Title:   lipgloss.Color("#5FAFD7"),
	Success: lipgloss.Color("#00D787"),
	Error:   lipgloss.Color("#FF005F"),
	Hint:    lipgloss.Color("#6C6C6C"),
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) boxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Title).
		Padding(0, 2)
}

// renderSummary draws the end-of-run report.
func renderSummary(t Theme, s domain.RunSummary) string {
	var b strings.Builder
	b.WriteString(t.titleStyle().Render("RESUMEN " + strings.ToUpper(string(s.Stage))))
	b.WriteString("\n\n")

	row := func(label, value string) {
		fmt.Fprintf(&b, "%-20s %s\n", label, value)
	}
	row("Pendientes:", fmt.Sprintf("%d", s.Pending))
	row("Procesados:", fmt.Sprintf("%d", s.Processed))
	row("Encontrados:", t.successStyle().Render(fmt.Sprintf("%d", s.Found)))
	row("Sin registro:", fmt.Sprintf("%d", s.NotFound))
	if s.Errors > 0 {
		row("Errores:", t.errorStyle().Render(fmt.Sprintf("%d", s.Errors)))
	} else {
		row("Errores:", "0")
	}
	row("Tasa de éxito:", fmt.Sprintf("%.2f%%", s.SuccessRate()))
	row("Tiempo total:", s.Elapsed.Round(time.Second).String())
	row("Segundos por item:", fmt.Sprintf("%.2f", s.SecondsPerItem()))
	if s.Unsaved > 0 {
		row("Sin guardar:", t.errorStyle().Render(fmt.Sprintf("%d", s.Unsaved)))
	}

	if len(s.Workers) > 1 || s.FailedWorkers() > 0 {
		b.WriteString("\n")
		for _, w := range s.Workers {
			line := fmt.Sprintf("worker %d: %d/%d procesados, %d guardados", w.Worker, w.Processed, w.Assigned, w.Saved)
			switch {
			case w.Panic != "":
				line = t.errorStyle().Render(line + " (panic: " + w.Panic + ")")
			case w.LoginFailed:
				line = t.errorStyle().Render(line + " (login fallido)")
			}
			b.WriteString(line + "\n")
		}
	}
	if s.RunID != "" {
		b.WriteString("\n" + t.hintStyle().Render("run "+s.RunID))
	}
	return t.boxStyle().Render(strings.TrimRight(b.String(), "\n"))
}

func renderHistory(t Theme, runs []domain.RunSummary) string {
	if len(runs) == 0 {
		return t.hintStyle().Render("Sin ejecuciones registradas.")
	}
	var b strings.Builder
	b.WriteString(t.titleStyle().Render(fmt.Sprintf("%-20s %-13s %9s %9s %7s %10s", "INICIO", "ETAPA", "PROCESADOS", "EXITOSOS", "ERRORES", "DURACION")))
	b.WriteString("\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "%-20s %-13s %9d %9d %7d %10s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Stage, r.Processed, r.Success(), r.Errors, r.Elapsed.Round(time.Second))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMenu(t Theme, items []menuItem) string {
	var b strings.Builder
	b.WriteString(t.titleStyle().Render("FILTRADOR MASIVO DE RUCs - MENU PRINCIPAL"))
	b.WriteString("\n\n")
	for _, item := range items {
		fmt.Fprintf(&b, "  [%s] %s\n", item.key, item.label)
	}
	return t.boxStyle().Render(strings.TrimRight(b.String(), "\n"))
}
