package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/xchainarb/types"
)

const (
	SourcePoolAddress = "0x1111111111111111111111111111111111111111"
	TargetPoolAddress = "0x2222222222222222222222222222222222222222"
)

// Pool creates a USDC/CQT pool snapshot
func Pool(address, network, price string, liquidity uint64) types.PoolInfo {
	return types.PoolInfo{
		Address:   address,
		Network:   network,
		Token0:    "USDC",
		Token1:    "CQT",
		Price:     decimal.RequireFromString(price),
		Liquidity: uint256.NewInt(liquidity),
		FeeTier:   3000,
	}
}

// Opportunity creates a polygon to base opportunity that passes validation
// with the default config. mutate, when set, is applied before returning.
func Opportunity(mutate func(*types.ArbitrageOpportunity)) types.ArbitrageOpportunity {
	opp := types.ArbitrageOpportunity{
		SourcePool:      Pool(SourcePoolAddress, "polygon", "1.00", 100000),
		TargetPool:      Pool(TargetPoolAddress, "base", "1.05", 80000),
		ProfitPotential: decimal.RequireFromString("25"),
		RequiredAmount:  decimal.RequireFromString("500"),
		ExecutionCost:   decimal.RequireFromString("15"),
		NetProfit:       decimal.RequireFromString("10"),
		Confidence:      0.95,
		Timestamp:       1700000000,
	}
	if mutate != nil {
		mutate(&opp)
	}
	return opp
}

// OpportunityRecord serializes Opportunity(mutate)
func OpportunityRecord(t testing.TB, mutate func(*types.ArbitrageOpportunity)) []byte {
	t.Helper()
	data, err := types.EncodeOpportunity(Opportunity(mutate))
	require.NoError(t, err)
	return data
}

// WriteOpportunityRecord writes OpportunityRecord(mutate) to a temporary
// file and returns its path
func WriteOpportunityRecord(t testing.TB, mutate func(*types.ArbitrageOpportunity)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opportunity.json")
	require.NoError(t, os.WriteFile(path, OpportunityRecord(t, mutate), 0o600))
	return path
}
