// Package cli provides the command-line interface for rucfilter.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"RucFilter/internal/app"
	"RucFilter/internal/config"
	"RucFilter/internal/logging"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	logLevel string

	cfg         config.Config
	application *app.Application
	console     *Console
	closeLog    = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rucfilter",
	Short: "Bulk RUC enrichment against SUNAT, Entel, OSIPTEL and Claro portals",
	Long: `rucfilter fills a shared spreadsheet of companies by driving browser
sessions against the tax registry and carrier portals.

Every stage owns a fixed set of columns and only picks up rows whose status
column is still empty, so stages can run in any order and can be resumed.

Run without arguments to open the interactive menu.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger, closer, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
		if err != nil {
			logger.Warn("file logging disabled", "error", err)
		}
		closeLog = closer

		console = NewConsole(cmd.InOrStdin(), cmd.OutOrStdout(), isTerminal(os.Stdin))
		application = app.New(cfg, logger, console)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			if err := application.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to release resources: %v\n", err)
			}
		}
		_ = closeLog()
	},
	RunE: runMenu,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(nextIDCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(bridgeCmd)
}

// interruptContext is cancelled on Ctrl+C or SIGTERM; stop restores the default handling.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printError(out io.Writer, err error) {
	fmt.Fprintln(out, defaultTheme.errorStyle().Render("Error: "+err.Error()))
}
