// Package sheets provides the Sheet adapters: Google Sheets for shared runs
// and a local workbook for offline work.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"RucFilter/internal/ports"
)

// Google is the Sheet backed by one tab of a Google spreadsheet.
type Google struct {
	values        *gsheets.SpreadsheetsValuesService
	spreadsheetID string
	tab           string
}

var _ ports.Sheet = (*Google)(nil)

// NewGoogle authenticates with a service-account credentials file.
func NewGoogle(ctx context.Context, credentialsFile, spreadsheetID, tab string, opts ...option.ClientOption) (*Google, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(gsheets.SpreadsheetsScope))

	srv, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Google{values: srv.Spreadsheets.Values, spreadsheetID: spreadsheetID, tab: tab}, nil
}

// qualify prefixes a1 with the quoted tab name.
func (g *Google) qualify(a1 string) string {
	tab := "'" + strings.ReplaceAll(g.tab, "'", "''") + "'"
	if a1 == "" {
		return tab
	}
	return tab + "!" + a1
}

func (g *Google) Values(ctx context.Context, a1 string) ([][]string, error) {
	resp, err := g.values.Get(g.spreadsheetID, g.qualify(a1)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", a1, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			rows[i][j] = fmt.Sprint(cell)
		}
	}
	return rows, nil
}

func (g *Google) BatchUpdate(ctx context.Context, ranges []ports.ValueRange) error {
	if len(ranges) == 0 {
		return nil
	}
	req := &gsheets.BatchUpdateValuesRequest{ValueInputOption: "RAW"}
	for _, vr := range ranges {
		values := make([][]interface{}, len(vr.Values))
		for i, row := range vr.Values {
			values[i] = make([]interface{}, len(row))
			for j, cell := range row {
				values[i][j] = cell
			}
		}
		req.Data = append(req.Data, &gsheets.ValueRange{Range: g.qualify(vr.Range), Values: values})
	}

	if _, err := g.values.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch update %d ranges: %w", len(ranges), err)
	}
	return nil
}

func (g *Google) BatchClear(ctx context.Context, ranges []string) error {
	if len(ranges) == 0 {
		return nil
	}
	req := &gsheets.BatchClearValuesRequest{}
	for _, a1 := range ranges {
		req.Ranges = append(req.Ranges, g.qualify(a1))
	}
	if _, err := g.values.BatchClear(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch clear: %w", err)
	}
	return nil
}
