package types

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRecord = `{
	"source_pool": {"address": "0x1111111111111111111111111111111111111111", "network": "polygon",
		"token0": "USDC", "token1": "WETH", "price": "1.00", "liquidity": "100000", "fee_tier": 3000},
	"target_pool": {"address": "0x2222222222222222222222222222222222222222", "network": "base",
		"token0": "USDC", "token1": "WETH", "price": "1.05", "liquidity": "0x13880", "fee_tier": 500},
	"profit_potential": "25",
	"required_amount": "500",
	"execution_cost": "15",
	"net_profit": "10",
	"confidence": 0.95,
	"timestamp": 1700000000
}`

func TestDecodeOpportunity(t *testing.T) {
	opp, err := DecodeOpportunity([]byte(validRecord))
	require.NoError(t, err)

	assert.Equal(t, "polygon", opp.SourcePool.Network)
	assert.Equal(t, uint64(100000), opp.SourcePool.Liquidity.Uint64())
	assert.Equal(t, uint64(80000), opp.TargetPool.Liquidity.Uint64(), "hex liquidity")
	assert.Equal(t, "500", opp.RequiredAmount.String())
	assert.Equal(t, "10", opp.NetProfit.String())
	assert.Equal(t, 0.95, opp.Confidence)
	assert.Equal(t, uint64(1700000000), opp.Timestamp)
	assert.Equal(t, uint32(500), opp.TargetPool.FeeTier)
}

func TestOpportunityRoundTrip(t *testing.T) {
	opp := sampleOpportunity()
	data, err := EncodeOpportunity(opp)
	require.NoError(t, err)

	decoded, err := DecodeOpportunity(data)
	require.NoError(t, err)
	assert.Equal(t, opp.Fingerprint(), decoded.Fingerprint())
	assert.True(t, opp.NetProfit.Equal(decoded.NetProfit))
	assert.True(t, opp.TargetPool.Price.Equal(decoded.TargetPool.Price))
}

func TestDecodeOpportunityRejects(t *testing.T) {
	tests := []struct {
		name    string
		old     string
		new     string
		message string
	}{
		{"binary float amount", `"required_amount": "500"`, `"required_amount": 500.5`, "required_amount"},
		{"negative liquidity", `"liquidity": "100000"`, `"liquidity": "-5"`, "liquidity"},
		{"non numeric liquidity", `"liquidity": "100000"`, `"liquidity": "lots"`, "liquidity"},
		{"fractional liquidity", `"liquidity": "100000"`, `"liquidity": "1.5"`, "liquidity"},
		{"zero price", `"price": "1.00"`, `"price": "0"`, "price"},
		{"missing net profit", `"net_profit": "10",`, ``, "net_profit"},
		{"confidence above one", `"confidence": 0.95`, `"confidence": 1.5`, "confidence"},
		{"negative amount", `"required_amount": "500"`, `"required_amount": "-1"`, "required_amount"},
		{"not json", validRecord, `{"source_pool": `, "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := strings.Replace(validRecord, tt.old, tt.new, 1)
			require.NotEqual(t, validRecord, record)

			_, err := DecodeOpportunity([]byte(record))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.ErrorIs(t, err, ErrMalformedRecord)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" 115792089237316195423570985008687907853269984665640564039457584007913129639935 ")
	require.NoError(t, err)
	assert.Equal(t, new(uint256.Int).SetAllOne(), v)

	v, err = ParseAmount("0X10")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), v.Uint64())

	for _, bad := range []string{"", "-1", "0x", "1e18", "115792089237316195423570985008687907853269984665640564039457584007913129639936"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrMalformedRecord, "input %q", bad)
	}
}

func TestNewTransactionRecord(t *testing.T) {
	tx := NewSecureTransaction(common.HexToAddress("0x1234567890123456789012345678901234567890"),
		uint256.NewInt(1), uint256.NewInt(21000), uint256.NewInt(2), uint256.NewInt(3), []byte{0xab})

	rec := NewTransactionRecord(tx)
	assert.Equal(t, "0x1234567890123456789012345678901234567890", strings.ToLower(rec.To))
	assert.Equal(t, "21000", rec.GasLimit)
	assert.Equal(t, "3", rec.Nonce)
	assert.Equal(t, "0xab", rec.Data.String())
}
