package csv

import (
	"context"
	stdcsv "encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"telematch/pkg/contract"
)

func result() *contract.Result {
	return &contract.Result{
		Outcome:       contract.OutcomeMatched,
		Complementary: []string{"name", "timestamp"},
		Records: []contract.Record{
			{Value: "+5581991234567", Type: contract.Phone, Tier: contract.High, Block: "A", File: "a.csv", Raw: "81 99123-4567", Complementary: map[string]string{"name": "Ana; Silva"}},
		},
		Matches: []contract.CrossMatch{{
			Value: "+5581991234567", Type: contract.Phone, Tier: contract.Medium,
			Blocks: []contract.BlockID{"A", "B"}, Occurrences: 3,
			Complementary: map[string][]string{"name": {"Ana", "Bia"}},
		}},
	}
}

func readAll(t *testing.T, a contract.Artifact, comma rune) [][]string {
	t.Helper()
	b, err := io.ReadAll(a.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	r := stdcsv.NewReader(strings.NewReader(strings.TrimPrefix(string(b), "\ufeff")))
	r.Comma = comma
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return rows
}

func TestExportDefault(t *testing.T) {
	e, err := New(&Options{Prefix: "op_"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	arts, err := e.Export(context.Background(), result())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(arts) != 2 || arts[0].ID != "op_cruzamentos_telematicos.csv" || arts[1].ID != "op_todos_registros_extraidos.csv" {
		t.Fatalf("artifacts: %+v", arts)
	}
	want := [][]string{
		{"valor", "tipo", "confianca", "blocos", "ocorrencias", "name", "timestamp"},
		{"+5581991234567", "phone", "média", "A; B", "3", "Ana; Bia", ""},
	}
	if d := cmp.Diff(want, readAll(t, arts[0], ';')); d != "" {
		t.Fatalf("matches (-want +got):\n%s", d)
	}
	recs := readAll(t, arts[1], ';')
	// 含分隔符的值需被引号包裹后原样还原
	if recs[1][6] != "Ana; Silva" || recs[1][7] != "" {
		t.Fatalf("record row: %v", recs[1])
	}
}

func TestExportBOMAndTab(t *testing.T) {
	e, err := New(&Options{Delimiter: "tab", BOM: true, SkipRecords: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	arts, err := e.Export(context.Background(), result())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(arts) != 1 {
		t.Fatalf("want 1 artifact, got %d", len(arts))
	}
	b, _ := io.ReadAll(arts[0].Body)
	if !strings.HasPrefix(string(b), "\ufeffvalor\ttipo\t") {
		t.Fatalf("unexpected head: %q", string(b[:20]))
	}
}

func TestNewRejectsDelimiter(t *testing.T) {
	for _, d := range []string{";;", "\"", "\n"} {
		if _, err := New(&Options{Delimiter: d}); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("delimiter %q: want ErrInvalidInput, got %v", d, err)
		}
	}
}

func TestExportCanceled(t *testing.T) {
	e, _ := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Export(ctx, result()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
}
