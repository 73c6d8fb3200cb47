package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telematch/pkg/contract"
)

func TestDefault(t *testing.T) {
	p := Default()
	assert.False(t, p.Strict)
	assert.Equal(t, First, p.Resolution)
	for _, tier := range []contract.Tier{contract.Low, contract.Medium, contract.High} {
		assert.True(t, p.Allows(tier))
	}
	assert.False(t, p.Allows(contract.TierNone))
}

func TestParseTiers(t *testing.T) {
	set, err := ParseTiers(nil)
	require.NoError(t, err)
	assert.Equal(t, contract.AllTiers, set)

	set, err = ParseTiers([]string{"alta", "média", ""})
	require.NoError(t, err)
	assert.True(t, set.Has(contract.High))
	assert.True(t, set.Has(contract.Medium))
	assert.False(t, set.Has(contract.Low))

	set, err = ParseTiers([]string{" "})
	require.NoError(t, err)
	assert.Equal(t, contract.AllTiers, set)

	_, err = ParseTiers([]string{"top"})
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}

func TestResolve(t *testing.T) {
	first := Default()
	assert.Equal(t, contract.Low, first.Resolve(contract.TierNone, contract.Low))
	assert.Equal(t, contract.Low, first.Resolve(contract.Low, contract.High))

	highest := Policy{Enabled: contract.AllTiers, Resolution: Highest}
	assert.Equal(t, contract.High, highest.Resolve(contract.Low, contract.High))
	assert.Equal(t, contract.High, highest.Resolve(contract.High, contract.Medium))
}

func TestParseResolution(t *testing.T) {
	r, err := ParseResolution("")
	require.NoError(t, err)
	assert.Equal(t, First, r)
	r, err = ParseResolution("HIGHEST")
	require.NoError(t, err)
	assert.Equal(t, Highest, r)
	_, err = ParseResolution("average")
	assert.ErrorIs(t, err, contract.ErrInvalidInput)
}
