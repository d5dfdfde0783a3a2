package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"RucFilter/internal/app"
	"RucFilter/internal/domain"
)

type menuItem struct {
	key   string
	label string
	// run is nil for the exit entry.
	run func(ctx context.Context, out io.Writer) error
}

var menuItems = []menuItem{
	{key: "1", label: "Ejecutar SUNAT (Datos de empresas)", run: stageAction(domain.StageRegistry)},
	{key: "2", label: "Ejecutar NUMEROS (Telefonos Entel)", run: stageAction(domain.StagePhone)},
	{key: "3", label: "Ejecutar SEGMENTACION (Tipo de cliente)", run: stageAction(domain.StageSegment)},
	{key: "4", label: "Ejecutar OSIPTEL (Cantidad de lineas)", run: stageAction(domain.StageLines)},
	{key: "5", label: "Ejecutar COBERTURA (Factibilidad Claro)", run: stageAction(domain.StageCoverage)},
	{key: "6", label: "Deduplicar RUCs", run: dedupAction},
	{key: "7", label: "Bot (servidor de consultas)", run: bridgeAction},
	{key: "8", label: "Salir"},
}

func stageAction(stage domain.Stage) func(context.Context, io.Writer) error {
	return func(ctx context.Context, out io.Writer) error {
		return runStage(ctx, out, stage, app.RunParams{})
	}
}

func dedupAction(ctx context.Context, out io.Writer) error {
	removed, err := application.Deduplicate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Duplicados eliminados: %d\n", removed)
	return nil
}

func bridgeAction(ctx context.Context, out io.Writer) error {
	fmt.Fprintln(out, defaultTheme.hintStyle().Render("Servidor de consultas en http://"+cfg.Bridge.Addr+" (Ctrl+C para volver al menu)"))
	return application.ServeBridge(ctx, cfg.Bridge.Addr)
}

func runMenu(cmd *cobra.Command, _ []string) error {
	return menuLoop(cmd.Context(), console, cmd.OutOrStdout(), menuItems)
}

// menuLoop shows the menu until the exit entry is chosen or input ends.
// Every action gets its own interrupt context so Ctrl+C returns here.
func menuLoop(ctx context.Context, con *Console, out io.Writer, items []menuItem) error {
	for {
		fmt.Fprintln(out, renderMenu(defaultTheme, items))

		choice, err := con.ReadLine(ctx, "\nSelecciona una opcion: ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		item, ok := findMenuItem(items, choice)
		if !ok {
			fmt.Fprintln(out, defaultTheme.errorStyle().Render("Opcion invalida: "+choice))
			continue
		}
		if item.run == nil {
			fmt.Fprintln(out, "Hasta luego.")
			return nil
		}

		actionCtx, stop := interruptContext(ctx)
		err = item.run(actionCtx, out)
		stop()
		if err != nil && !errors.Is(err, context.Canceled) {
			printError(out, err)
		}

		if _, err := con.ReadLine(ctx, "\nPresiona ENTER para volver al menu..."); errors.Is(err, io.EOF) {
			return nil
		}
	}
}

func findMenuItem(items []menuItem, key string) (menuItem, bool) {
	for _, item := range items {
		if item.key == key {
			return item, true
		}
	}
	return menuItem{}, false
}
