package match

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telematch/internal/confidence"
	"telematch/internal/extract"
	"telematch/internal/heuristics"
	"telematch/pkg/contract"
)

func rec(v string, ft contract.FieldType, tier contract.Tier, b contract.BlockID, comp map[string]string) contract.Record {
	return contract.Record{Value: v, Type: ft, Tier: tier, Block: b, File: contract.FileID(string(b) + ".csv"), Raw: v, Complementary: comp}
}

func TestCrossEndToEnd(t *testing.T) {
	blocks := []contract.Block{
		{ID: "A", Tables: []contract.Table{{
			File: "a.csv", Block: "A", Columns: []string{"telefone"},
			Rows: []contract.Row{{"telefone": "81 99123-4567"}},
		}}},
		{ID: "B", Tables: []contract.Table{{
			File: "b.xlsx", Block: "B", Columns: []string{"msisdn"},
			Rows: []contract.Row{{"msisdn": "5581991234567"}},
		}}},
	}
	recs := extract.Run(blocks, extract.Settings{Kind: contract.CellTowerExtract})
	got := Cross(recs, confidence.Default(), nil)
	want := []contract.CrossMatch{{
		Value:       "+5581991234567",
		Type:        contract.Phone,
		Tier:        contract.High,
		Blocks:      []contract.BlockID{"A", "B"},
		Occurrences: 2,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("matches mismatch (-want +got):\n%s", diff)
	}
}

func TestCrossSameBlockDiscarded(t *testing.T) {
	recs := []contract.Record{
		rec("+5581991234567", contract.Phone, contract.High, "A", nil),
		rec("+5581991234567", contract.Phone, contract.High, "A", nil),
	}
	assert.Empty(t, Cross(recs, confidence.Default(), nil))
}

func TestCrossTypeIsPartOfKey(t *testing.T) {
	recs := []contract.Record{
		rec("352099001761481", contract.IMEI, contract.High, "A", nil),
		rec("352099001761481", contract.Phone, contract.Low, "B", nil),
	}
	assert.Empty(t, Cross(recs, confidence.Default(), nil))
}

func TestCrossTierResolution(t *testing.T) {
	recs := []contract.Record{
		rec("x@y.com", contract.Email, contract.Medium, "A", nil),
		rec("x@y.com", contract.Email, contract.High, "B", nil),
	}
	got := Cross(recs, confidence.Default(), nil)
	require.Len(t, got, 1)
	assert.Equal(t, contract.Medium, got[0].Tier)

	highest := confidence.Policy{Enabled: contract.AllTiers, Resolution: confidence.Highest}
	got = Cross(recs, highest, nil)
	require.Len(t, got, 1)
	assert.Equal(t, contract.High, got[0].Tier)
}

func TestCrossEnabledTiersFilter(t *testing.T) {
	recs := []contract.Record{
		rec("ABCD", contract.LocationID, contract.High, "A", nil),
		rec("ABCD", contract.LocationID, contract.High, "B", nil),
		rec("AB", contract.LocationID, contract.Low, "A", nil),
		rec("AB", contract.LocationID, contract.Low, "B", nil),
	}
	p := confidence.Policy{Enabled: contract.NewTierSet(contract.High, contract.Medium), Resolution: confidence.First}
	got := Cross(recs, p, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "ABCD", got[0].Value)
}

func TestCrossComplementaryDistinctNonEmpty(t *testing.T) {
	recs := []contract.Record{
		rec("v1", contract.Hash, contract.Low, "A", map[string]string{heuristics.Name: "Ana", heuristics.Document: ""}),
		rec("v1", contract.Hash, contract.Low, "B", map[string]string{heuristics.Name: "Ana"}),
		rec("v1", contract.Hash, contract.Low, "C", map[string]string{heuristics.Name: "Bia", heuristics.Document: "123"}),
		rec("v1", contract.Hash, contract.Low, "B", nil),
	}
	got := Cross(recs, confidence.Default(), []string{heuristics.Name, heuristics.Document})
	require.Len(t, got, 1)
	m := got[0]
	assert.Equal(t, 4, m.Occurrences)
	assert.Equal(t, []contract.BlockID{"A", "B", "C"}, m.Blocks)
	assert.Equal(t, map[string][]string{
		heuristics.Name:     {"Ana", "Bia"},
		heuristics.Document: {"123"},
	}, m.Complementary)
}

func TestCrossSortedByValueThenType(t *testing.T) {
	recs := []contract.Record{
		rec("b", contract.Hash, contract.Low, "A", nil),
		rec("b", contract.Hash, contract.Low, "B", nil),
		rec("a", contract.LocationID, contract.Low, "A", nil),
		rec("a", contract.LocationID, contract.Low, "B", nil),
		rec("a", contract.Email, contract.Low, "A", nil),
		rec("a", contract.Email, contract.Low, "B", nil),
	}
	got := Cross(recs, confidence.Default(), nil)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a/email", "a/location_id", "b/hash"}, []string{
		got[0].Value + "/" + string(got[0].Type),
		got[1].Value + "/" + string(got[1].Type),
		got[2].Value + "/" + string(got[2].Type),
	})
}

// 随机输入下结构不变量恒成立，且出现次数之和不超过记录数。
func TestCrossInvariantsRandomized(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	blocks := []contract.BlockID{"A", "B", "C", "D"}
	tiers := []contract.Tier{contract.Low, contract.Medium, contract.High}
	types := []contract.FieldType{contract.Phone, contract.IMEI}
	var recs []contract.Record
	for i := 0; i < 2000; i++ {
		recs = append(recs, rec(
			fmt.Sprintf("v%03d", r.Intn(300)),
			types[r.Intn(len(types))],
			tiers[r.Intn(len(tiers))],
			blocks[r.Intn(len(blocks))],
			nil,
		))
	}
	got := Cross(recs, confidence.Default(), nil)
	require.NoError(t, Verify(got))
	total := 0
	for _, m := range got {
		assert.GreaterOrEqual(t, m.Occurrences, len(m.Blocks))
		total += m.Occurrences
	}
	assert.LessOrEqual(t, total, len(recs))
}

func TestVerify(t *testing.T) {
	assert.NoError(t, Verify(nil))
	err := Verify([]contract.CrossMatch{{Value: "x", Type: contract.Hash, Blocks: []contract.BlockID{"A"}}})
	assert.ErrorIs(t, err, contract.ErrInvariantViolation)
	dup := contract.CrossMatch{Value: "x", Type: contract.Hash, Blocks: []contract.BlockID{"A", "B"}}
	assert.ErrorIs(t, Verify([]contract.CrossMatch{dup, dup}), contract.ErrInvariantViolation)
}
