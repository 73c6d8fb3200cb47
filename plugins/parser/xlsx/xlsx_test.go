package xlsx

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"telematch/pkg/contract"
)

func workbook(t *testing.T, sheets map[string][][]any, order ...string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			vals := row
			require.NoError(t, f.SetSheetRow(name, cell, &vals))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseFirstSheet(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"ERB": {
			{"Relatório de chamadas"},
			{"Telefone", "IMEI", "Nome"},
			{"81991234567", "352099001761481", "Ana"},
		},
		"Outra": {{"x"}},
	}, "ERB", "Outra")

	g, err := New(nil).Parse(context.Background(), "a.xlsx", buf)
	require.NoError(t, err)
	require.Len(t, g, 3)
	assert.Equal(t, []string{"Relatório de chamadas"}, g[0])
	assert.Equal(t, []string{"81991234567", "352099001761481", "Ana"}, g[2])
}

func TestParseNamedSheet(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"A": {{"a"}},
		"B": {{"email", "hash"}, {"x@y.com", "abc"}},
	}, "A", "B")
	g, err := New(&Options{Sheet: "B"}).Parse(context.Background(), "b.xlsx", buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"x@y.com", "abc"}, g[1])
}

func TestParseRawNumbers(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"S": {{"imei"}, {int64(352099001761481)}},
	}, "S")
	g, err := New(nil).Parse(context.Background(), "n.xlsx", buf)
	require.NoError(t, err)
	assert.Equal(t, "352099001761481", g[1][0])
}

func TestParseMissingSheet(t *testing.T) {
	buf := workbook(t, map[string][][]any{"A": {{"a"}}}, "A")
	_, err := New(&Options{Sheet: "Nope"}).Parse(context.Background(), "c.xlsx", buf)
	assert.ErrorIs(t, err, contract.ErrMalformedTable)
}

func TestParseEmptySheet(t *testing.T) {
	buf := workbook(t, map[string][][]any{"A": nil}, "A")
	_, err := New(nil).Parse(context.Background(), "d.xlsx", buf)
	assert.ErrorIs(t, err, contract.ErrMalformedTable)
}

func TestParseNotAWorkbook(t *testing.T) {
	_, err := New(nil).Parse(context.Background(), "e.xlsx", strings.NewReader("telefone,imei\n"))
	assert.ErrorIs(t, err, contract.ErrMalformedTable)
}

func TestExts(t *testing.T) {
	assert.Contains(t, New(nil).Exts(), ".xlsx")
}
