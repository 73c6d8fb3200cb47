package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telematch/internal/heuristics"
	"telematch/pkg/contract"
)

func table(file contract.FileID, block contract.BlockID, cols []string, rows ...[]string) contract.Table {
	t := contract.Table{File: file, Block: block, Columns: cols}
	for _, r := range rows {
		row := contract.Row{}
		for i, c := range cols {
			if i < len(r) {
				row[c] = r[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func TestRunCellTower(t *testing.T) {
	blocks := []contract.Block{{
		ID: "A",
		Tables: []contract.Table{table("a.csv", "A",
			[]string{"telefone", "imei", "nome"},
			[]string{"81 99123-4567", "352099001761481", "Fulano"},
			[]string{"123", "", "Ciclano"},
		)},
	}}
	recs := Run(blocks, Settings{Kind: contract.CellTowerExtract, Complementary: []string{heuristics.Name}})
	require.Len(t, recs, 2)

	assert.Equal(t, contract.Record{
		Value: "+5581991234567", Type: contract.Phone, Tier: contract.High,
		Block: "A", File: "a.csv", Raw: "81 99123-4567",
		Complementary: map[string]string{heuristics.Name: "Fulano"},
	}, recs[0])
	assert.Equal(t, contract.IMEI, recs[1].Type)
	assert.Equal(t, "352099001761481", recs[1].Value)
}

func TestRunOverExtraction(t *testing.T) {
	// "terminal_id" 同时命中 phone 与 imei；两个电话列都被使用
	tbl := table("f.xlsx", "B", []string{"telefone origem", "telefone destino", "terminal_id"},
		[]string{"8133334444", "8144445555", "352099001761481"})
	recs := Table(tbl, Settings{Kind: contract.CellTowerExtract})

	var phones, imeis int
	for _, r := range recs {
		switch r.Type {
		case contract.Phone:
			phones++
		case contract.IMEI:
			imeis++
		}
	}
	// terminal_id 的 15 位数字作为电话是 baixa，作为 IMEI 是 alta
	assert.Equal(t, 3, phones)
	assert.Equal(t, 1, imeis)
	for _, r := range recs {
		if r.Raw == "352099001761481" && r.Type == contract.Phone {
			assert.Equal(t, contract.Low, r.Tier)
		}
	}
}

func TestRunComplementaryOmittedWhenNoColumn(t *testing.T) {
	tbl := table("g.csv", "G", []string{"email", "data"}, []string{"a+b@x.com", "2024-01-01"})
	recs := Table(tbl, Settings{
		Kind:          contract.OnlineAccount,
		Complementary: []string{heuristics.Name, heuristics.Timestamp},
	})
	require.Len(t, recs, 1)
	assert.Equal(t, "a@x.com", recs[0].Value)
	assert.Equal(t, map[string]string{heuristics.Timestamp: "2024-01-01"}, recs[0].Complementary)
	_, has := recs[0].Complementary[heuristics.Name]
	assert.False(t, has)
}

func TestRunStrictDropsLowTier(t *testing.T) {
	tbl := table("h.csv", "H", []string{"imei"}, []string{"20240131"})
	assert.Len(t, Table(tbl, Settings{Kind: contract.CellTowerExtract}), 1)
	assert.Empty(t, Table(tbl, Settings{Kind: contract.CellTowerExtract, Strict: true}))
}

func TestRunNoMatchingColumns(t *testing.T) {
	tbl := table("x.csv", "X", []string{"foo", "bar"}, []string{"81991234567", "1"})
	assert.Empty(t, Table(tbl, Settings{Kind: contract.CellTowerExtract}))
	assert.Empty(t, Run(nil, Settings{Kind: contract.CellTowerExtract}))
}

func TestRunKindSelectsFields(t *testing.T) {
	tbl := table("y.csv", "Y", []string{"telefone", "email"}, []string{"81991234567", "a@x.com"})
	recs := Table(tbl, Settings{Kind: contract.OnlineAccount})
	require.Len(t, recs, 1)
	assert.Equal(t, contract.Email, recs[0].Type)
}
