package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"telematch/pkg/contract"
)

func TestMatchRow(t *testing.T) {
	comp := []string{"name", "document"}
	m := contract.CrossMatch{
		Value: "+5581991234567", Type: contract.Phone, Tier: contract.Medium,
		Blocks: []contract.BlockID{"A", "B"}, Occurrences: 3,
		Complementary: map[string][]string{"name": {"Ana", "Bia"}},
	}
	assert.Equal(t, []string{"valor", "tipo", "confianca", "blocos", "ocorrencias", "name", "document"}, MatchHeader(comp))
	assert.Equal(t, []string{"+5581991234567", "phone", "média", "A; B", "3", "Ana; Bia", ""}, MatchRow(m, comp))
	assert.Equal(t, "confianca", MatchHeader(nil)[TierColumn])
}

func TestRecordRow(t *testing.T) {
	r := contract.Record{
		Value: "a@x.com", Type: contract.Email, Tier: contract.High, Block: "B", File: "dir/b.csv",
		Raw: "A+tag@X.com", Complementary: map[string]string{"timestamp": "2024-01-01"},
	}
	comp := []string{"timestamp", "location"}
	assert.Equal(t, "confianca", RecordHeader(comp)[TierColumn])
	assert.Equal(t, []string{"a@x.com", "email", "alta", "B", "dir/b.csv", "A+tag@X.com", "2024-01-01", ""}, RecordRow(r, comp))
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, contract.ArtifactID("caso1_cruzamentos_telematicos.xlsx"), ArtifactName("caso1_", MatchesName, ".xlsx"))
}
