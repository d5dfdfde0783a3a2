package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var bridgeAddr string

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve ad-hoc ruc/dni/internet/delivery lookups over local HTTP",
	Long: `Start the lookup server used by the chat bot.

POST / with {"comando": "ruc", "args": "20100047218"} returns {"resultado": "..."}.
Commands: ruc, dni, internet, delivery. The coverage session is logged in at
start and kept alive in the background.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := interruptContext(cmd.Context())
		defer stop()

		addr := bridgeAddr
		if addr == "" {
			addr = cfg.Bridge.Addr
		}
		fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.hintStyle().Render("Servidor de consultas en http://"+addr+" (Ctrl+C para detener)"))
		return application.ServeBridge(ctx, addr)
	},
}

func init() {
	bridgeCmd.Flags().StringVar(&bridgeAddr, "addr", "", "listen address (default from config, localhost:5555)")
}
