package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"RucFilter/internal/domain"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Remove rows with a repeated RUC, keeping the first occurrence",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := interruptContext(cmd.Context())
		defer stop()

		removed, err := application.Deduplicate(ctx)
		if err != nil {
			return fmt.Errorf("deduplicate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Duplicados eliminados: %d\n", removed)
		return nil
	},
}

var nextIDCmd = &cobra.Command{
	Use:   "next-id",
	Short: "Print the next free ID REGISTRO",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := application.NextSequenceID(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var (
	historyStage string
	historyLimit uint64
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs stored in the Postgres ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var stage domain.Stage
		if historyStage != "" {
			s, err := domain.ParseStage(historyStage)
			if err != nil {
				return err
			}
			stage = s
		}

		runs, err := application.History(cmd.Context(), stage, historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderHistory(defaultTheme, runs))
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyStage, "stage", "s", "", "only runs of this stage")
	historyCmd.Flags().Uint64VarP(&historyLimit, "limit", "n", 20, "maximum runs to list")
}
