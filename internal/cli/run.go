package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"RucFilter/internal/app"
	"RucFilter/internal/domain"
)

var (
	runWorkers     int
	runFlush       int
	runLimit       int
	runYes         bool
	runRetryErrors bool
)

var runCmd = &cobra.Command{
	Use:   "run <stage>",
	Short: "Process every pending row of one stage",
	Long: `Process the pending rows of a stage with a pool of parallel browser workers.

Stages: ` + strings.Join(stageNames(), ", ") + `

A row is pending when the stage status column is empty. Results are written
in batches; a final flush also runs on Ctrl+C.

Examples:
  rucfilter run sunat
  rucfilter run entel --workers 3
  rucfilter run osiptel --limit 5 --yes
  rucfilter run sunat --retry-errors`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: stageNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, err := domain.ParseStage(args[0])
		if err != nil {
			return err
		}

		ctx, stop := interruptContext(cmd.Context())
		defer stop()

		return runStage(ctx, cmd.OutOrStdout(), stage, app.RunParams{
			Workers:     runWorkers,
			FlushEvery:  runFlush,
			Limit:       runLimit,
			SkipConfirm: runYes,
			RetryErrors: runRetryErrors,
		})
	},
}

func init() {
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "parallel workers (default from config)")
	runCmd.Flags().IntVar(&runFlush, "flush", 0, "results buffered before each write (default from config)")
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 0, "process only the first N pending rows")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "skip the confirmation prompt")
	runCmd.Flags().BoolVar(&runRetryErrors, "retry-errors", false, "also reprocess rows whose status is ERROR")
}

func stageNames() []string {
	stages := domain.Stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return names
}

// stageRunner runs one stage; *app.Application satisfies it.
type stageRunner interface {
	RunStage(ctx context.Context, stage domain.Stage, params app.RunParams) (domain.RunSummary, error)
}

func runStage(ctx context.Context, out io.Writer, stage domain.Stage, params app.RunParams) error {
	return executeStage(ctx, application, out, isTerminal(out), stage, params)
}

func executeStage(ctx context.Context, runner stageRunner, out io.Writer, showProgress bool, stage domain.Stage, params app.RunParams) error {
	fmt.Fprintf(out, "\nIniciando %s...\n", strings.ToUpper(string(stage)))

	bar := newProgress(out, showProgress)
	params.OnStart = bar.start(stage)
	params.OnOutcome = bar.outcome

	summary, err := runner.RunStage(ctx, stage, params)
	bar.finish()

	switch {
	case errors.Is(err, domain.ErrRunCancelled):
		fmt.Fprintln(out, defaultTheme.hintStyle().Render("Proceso cancelado."))
		return nil
	case err != nil:
		return err
	case summary.Pending == 0:
		fmt.Fprintln(out, defaultTheme.successStyle().Render("No hay registros pendientes para "+strings.ToUpper(string(stage))+"."))
		return nil
	}

	fmt.Fprintln(out, renderSummary(defaultTheme, summary))
	if ctx.Err() != nil {
		fmt.Fprintln(out, defaultTheme.hintStyle().Render("Interrumpido por el usuario; los resultados procesados fueron guardados."))
	}
	return nil
}
