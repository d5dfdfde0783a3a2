package sheets

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"RucFilter/internal/ports"
)

func TestWorkbookRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "datos.xlsx")
	w, err := OpenWorkbook(path, "Datos_Filtrados")
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	err = w.BatchUpdate(ctx, []ports.ValueRange{
		{Range: "A1:C1", Values: [][]string{{"ID", "RUC", "Razón Social"}}},
		{Range: "A2:C3", Values: [][]string{{"1", "20123456789", "ACME"}, {"2", "20987654321", "BETA"}}},
	})
	if err != nil {
		t.Fatalf("batch update: %v", err)
	}

	got, err := w.Values(ctx, "A2:A")
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if want := [][]string{{"1"}, {"2"}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected ids: %v", got)
	}

	if err := w.BatchClear(ctx, []string{"A3:C3"}); err != nil {
		t.Fatalf("batch clear: %v", err)
	}

	reopened, err := OpenWorkbook(path, "Datos_Filtrados")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	all, err := reopened.Values(ctx, "")
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if len(all) < 2 || all[1][2] != "ACME" {
		t.Fatalf("unexpected sheet after clear: %v", all)
	}
	for _, row := range all[2:] {
		for _, cell := range row {
			if cell != "" {
				t.Fatalf("cleared row still has data: %v", all)
			}
		}
	}
}

func TestParseBlock(t *testing.T) {
	t.Parallel()

	cases := map[string]block{
		"B2":        {2, 2, 2, 2},
		"A2:Q9":     {1, 2, 17, 9},
		"AA10:AB11": {27, 10, 28, 11},
	}
	for in, want := range cases {
		got, err := parseBlock(in)
		if err != nil {
			t.Fatalf("parseBlock(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("parseBlock(%q) = %+v, want %+v", in, got, want)
		}
	}

	open, err := parseBlock("A2:A")
	if err != nil || open.row2 <= 2 {
		t.Fatalf("open-ended range: %+v %v", open, err)
	}
	if _, err := parseBlock("2:3"); err == nil {
		t.Fatal("expected error for range without column")
	}
}

func TestGoogleQualify(t *testing.T) {
	t.Parallel()

	g := &Google{tab: "Datos O'Brien"}
	if got := g.qualify("A1:Q1"); got != "'Datos O''Brien'!A1:Q1" {
		t.Fatalf("unexpected range: %s", got)
	}
	if got := g.qualify(""); got != "'Datos O''Brien'" {
		t.Fatalf("unexpected whole-sheet range: %s", got)
	}
}
