package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RucFilter/internal/app"
	"RucFilter/internal/domain"
)

func TestConsoleConfirm(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{"s\n": true, "SI\n": true, "yes\n": true, "n\n": false, "\n": false, "": false}
	for input, want := range cases {
		var out bytes.Buffer
		c := NewConsole(strings.NewReader(input), &out, true)
		assert.Equal(t, want, c.Confirm(context.Background(), "¿Procesar?"), "input %q", input)
		assert.Contains(t, out.String(), "¿Procesar? (s/n): ")
	}
}

func TestConsoleAwaitResume(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	c := NewConsole(strings.NewReader("\n"), &out, true)
	require.NoError(t, c.AwaitResume(context.Background(), "Resuelve el captcha"))
	assert.Contains(t, out.String(), "Resuelve el captcha")
	assert.Contains(t, out.String(), "ENTER")
}

func TestConsoleAwaitResumeNonInteractive(t *testing.T) {
	t.Parallel()

	c := NewConsole(strings.NewReader("\n"), io.Discard, false)
	err := c.AwaitResume(context.Background(), "captcha")
	assert.ErrorIs(t, err, domain.ErrChallenge)
}

func TestConsoleReadLineHonoursContext(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()

	c := NewConsole(pr, io.Discard, true)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.ReadLine(ctx, "> ")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMenuLoop(t *testing.T) {
	t.Parallel()

	var calls []string
	items := []menuItem{
		{key: "1", label: "Uno", run: func(context.Context, io.Writer) error {
			calls = append(calls, "uno")
			return nil
		}},
		{key: "2", label: "Falla", run: func(context.Context, io.Writer) error {
			calls = append(calls, "falla")
			return errors.New("boom")
		}},
		{key: "9", label: "Salir"},
	}

	var out bytes.Buffer
	con := NewConsole(strings.NewReader("1\n\n7\n2\n\n9\n"), &out, true)
	require.NoError(t, menuLoop(context.Background(), con, &out, items))

	assert.Equal(t, []string{"uno", "falla"}, calls)
	text := out.String()
	assert.Contains(t, text, "[1] Uno")
	assert.Contains(t, text, "Opcion invalida: 7")
	assert.Contains(t, text, "Error: boom")
	assert.Contains(t, text, "Hasta luego.")
}

func TestMenuLoopEndsOnEOF(t *testing.T) {
	t.Parallel()

	con := NewConsole(strings.NewReader(""), io.Discard, true)
	assert.NoError(t, menuLoop(context.Background(), con, io.Discard, menuItems))
}

func TestMenuListsEveryStage(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		_, ok := findMenuItem(menuItems, key)
		assert.True(t, ok, "menu entry %s", key)
	}
	exit, _ := findMenuItem(menuItems, "8")
	assert.Nil(t, exit.run)
}

type stubRunner struct {
	summary domain.RunSummary
	err     error
	params  app.RunParams
}

func (s *stubRunner) RunStage(_ context.Context, _ domain.Stage, params app.RunParams) (domain.RunSummary, error) {
	s.params = params
	if params.OnStart != nil {
		params.OnStart(s.summary.Pending)
	}
	for i := 0; i < s.summary.Processed; i++ {
		params.OnOutcome(domain.Outcome{Kind: domain.OutcomeFound})
	}
	return s.summary, s.err
}

func TestExecuteStageRendersSummary(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{summary: domain.RunSummary{
		RunID: "run-1", Stage: domain.StageRegistry, Pending: 4, Processed: 4, Found: 3, NotFound: 1,
		Elapsed: 8 * time.Second,
		Workers: []domain.WorkerStats{{Worker: 1, Assigned: 2, Processed: 2, Saved: 2}, {Worker: 2, Assigned: 2, Processed: 2, Saved: 2}},
	}}

	var out bytes.Buffer
	err := executeStage(context.Background(), runner, &out, true, domain.StageRegistry, app.RunParams{Limit: 4, SkipConfirm: true})
	require.NoError(t, err)

	assert.Equal(t, 4, runner.params.Limit)
	assert.True(t, runner.params.SkipConfirm)
	text := out.String()
	assert.Contains(t, text, "RESUMEN SUNAT")
	assert.Contains(t, text, "100.00%")
	assert.Contains(t, text, "worker 2: 2/2 procesados")
	assert.Contains(t, text, "run run-1")
}

func TestExecuteStageCancelledAndEmpty(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cancelled := &stubRunner{err: domain.ErrRunCancelled}
	require.NoError(t, executeStage(context.Background(), cancelled, &out, false, domain.StagePhone, app.RunParams{}))
	assert.Contains(t, out.String(), "Proceso cancelado.")

	out.Reset()
	empty := &stubRunner{summary: domain.RunSummary{Stage: domain.StagePhone}}
	require.NoError(t, executeStage(context.Background(), empty, &out, false, domain.StagePhone, app.RunParams{}))
	assert.Contains(t, out.String(), "No hay registros pendientes para ENTEL.")

	failing := &stubRunner{err: errors.New("open store: no credentials")}
	assert.EqualError(t, executeStage(context.Background(), failing, io.Discard, false, domain.StagePhone, app.RunParams{}), "open store: no credentials")
}

func TestRenderSummaryFlagsFailedWorkers(t *testing.T) {
	t.Parallel()

	text := renderSummary(defaultTheme, domain.RunSummary{
		Stage: domain.StageLines, Pending: 3, Processed: 1, Errors: 1, Unsaved: 2,
		Workers: []domain.WorkerStats{{Worker: 1, Assigned: 3, Processed: 1, LoginFailed: true}},
	})
	assert.Contains(t, text, "login fallido")
	assert.Contains(t, text, "Sin guardar:")
}

func TestRenderHistory(t *testing.T) {
	t.Parallel()

	assert.Contains(t, renderHistory(defaultTheme, nil), "Sin ejecuciones")

	text := renderHistory(defaultTheme, []domain.RunSummary{{
		Stage: domain.StageSegment, Processed: 10, Found: 7, NotFound: 2, Errors: 1,
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), Elapsed: 90 * time.Second,
	}})
	assert.Contains(t, text, "segmentacion")
	assert.Contains(t, text, "1m30s")
}
