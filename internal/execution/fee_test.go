package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

func TestEncodeFee_ConstantProductSentinelIsFullWidth(t *testing.T) {
	fee, err := EncodeFee(pool.FamilyConstantProduct, 0)
	require.NoError(t, err)
	assert.Equal(t, "16777215", fee.String())
	assert.Equal(t, "ffffff", fee.Text(16))
}

func TestEncodeFee_ConcentratedLiquidityUsesTier(t *testing.T) {
	fee, err := EncodeFee(pool.FamilyConcentratedLiquidity, 3000)
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), fee.Uint64())
}

func TestEncodeFee_ZeroTierUsesDynamicFeeSentinel(t *testing.T) {
	fee, err := EncodeFee(pool.FamilyConcentratedLiquidity, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(DynamicFeeSentinel), fee.Uint64())
}

func TestEncodeFee_RejectsOutOfRangeTier(t *testing.T) {
	_, err := EncodeFee(pool.FamilyConcentratedLiquidity, 1<<24)
	assert.Error(t, err)
}
