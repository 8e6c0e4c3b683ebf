package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// PoolRecord is the wire form of PoolInfo. Price and liquidity travel as
// strings so no precision is lost across the process boundary.
type PoolRecord struct {
	Address   string `json:"address"`
	Network   string `json:"network"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Price     string `json:"price"`
	Liquidity string `json:"liquidity"`
	FeeTier   uint32 `json:"fee_tier"`
}

// OpportunityRecord is the wire form of ArbitrageOpportunity
type OpportunityRecord struct {
	SourcePool      PoolRecord `json:"source_pool"`
	TargetPool      PoolRecord `json:"target_pool"`
	ProfitPotential string     `json:"profit_potential"`
	RequiredAmount  string     `json:"required_amount"`
	ExecutionCost   string     `json:"execution_cost"`
	NetProfit       string     `json:"net_profit"`
	Confidence      float64    `json:"confidence"`
	Timestamp       uint64     `json:"timestamp"`
}

// TransactionRecord is the wire form of SecureTransaction
type TransactionRecord struct {
	To       string        `json:"to"`
	Value    string        `json:"value"`
	GasLimit string        `json:"gas_limit"`
	GasPrice string        `json:"gas_price"`
	Data     hexutil.Bytes `json:"data"`
	Nonce    string        `json:"nonce"`
}

// DecodeOpportunity parses a serialized opportunity record. Numeric amounts
// given as JSON numbers are rejected.
func DecodeOpportunity(data []byte) (ArbitrageOpportunity, error) {
	var rec OpportunityRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rec); err != nil {
		return ArbitrageOpportunity{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return rec.Opportunity()
}

// EncodeOpportunity serializes an opportunity into its record form
func EncodeOpportunity(opp ArbitrageOpportunity) ([]byte, error) {
	return json.Marshal(NewOpportunityRecord(opp))
}

// NewOpportunityRecord converts an opportunity into its wire form
func NewOpportunityRecord(opp ArbitrageOpportunity) OpportunityRecord {
	return OpportunityRecord{
		SourcePool:      NewPoolRecord(opp.SourcePool),
		TargetPool:      NewPoolRecord(opp.TargetPool),
		ProfitPotential: opp.ProfitPotential.String(),
		RequiredAmount:  opp.RequiredAmount.String(),
		ExecutionCost:   opp.ExecutionCost.String(),
		NetProfit:       opp.NetProfit.String(),
		Confidence:      opp.Confidence,
		Timestamp:       opp.Timestamp,
	}
}

// NewPoolRecord converts a pool snapshot into its wire form
func NewPoolRecord(p PoolInfo) PoolRecord {
	liquidity := "0"
	if p.Liquidity != nil {
		liquidity = p.Liquidity.Dec()
	}
	return PoolRecord{
		Address:   p.Address,
		Network:   p.Network,
		Token0:    p.Token0,
		Token1:    p.Token1,
		Price:     p.Price.String(),
		Liquidity: liquidity,
		FeeTier:   p.FeeTier,
	}
}

// Opportunity validates the record and converts it into the domain type
func (r OpportunityRecord) Opportunity() (ArbitrageOpportunity, error) {
	src, err := r.SourcePool.Pool()
	if err != nil {
		return ArbitrageOpportunity{}, fmt.Errorf("source_pool: %w", err)
	}
	dst, err := r.TargetPool.Pool()
	if err != nil {
		return ArbitrageOpportunity{}, fmt.Errorf("target_pool: %w", err)
	}

	opp := ArbitrageOpportunity{
		SourcePool: src,
		TargetPool: dst,
		Confidence: r.Confidence,
		Timestamp:  r.Timestamp,
	}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"profit_potential", r.ProfitPotential, &opp.ProfitPotential},
		{"required_amount", r.RequiredAmount, &opp.RequiredAmount},
		{"execution_cost", r.ExecutionCost, &opp.ExecutionCost},
		{"net_profit", r.NetProfit, &opp.NetProfit},
	}
	for _, f := range fields {
		v, err := parseDecimal(f.name, f.raw)
		if err != nil {
			return ArbitrageOpportunity{}, err
		}
		*f.dst = v
	}
	if opp.RequiredAmount.IsNegative() {
		return ArbitrageOpportunity{}, fmt.Errorf("%w: required_amount must not be negative", ErrMalformedRecord)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return ArbitrageOpportunity{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedRecord, r.Confidence)
	}
	return opp, nil
}

// Pool validates the record and converts it into the domain type
func (r PoolRecord) Pool() (PoolInfo, error) {
	price, err := parseDecimal("price", r.Price)
	if err != nil {
		return PoolInfo{}, err
	}
	if !price.IsPositive() {
		return PoolInfo{}, fmt.Errorf("%w: price must be positive", ErrMalformedRecord)
	}
	liquidity, err := ParseAmount(r.Liquidity)
	if err != nil {
		return PoolInfo{}, fmt.Errorf("liquidity: %w", err)
	}
	return PoolInfo{
		Address:   r.Address,
		Network:   r.Network,
		Token0:    r.Token0,
		Token1:    r.Token1,
		Price:     price,
		Liquidity: liquidity,
		FeeTier:   r.FeeTier,
	}, nil
}

// NewTransactionRecord converts a transaction into its wire form
func NewTransactionRecord(tx *SecureTransaction) TransactionRecord {
	return TransactionRecord{
		To:       tx.To().Hex(),
		Value:    tx.value.Dec(),
		GasLimit: tx.gasLimit.Dec(),
		GasPrice: tx.gasPrice.Dec(),
		Data:     tx.Data(),
		Nonce:    tx.nonce.Dec(),
	}
}

// ParseAmount parses a non-negative integer given in decimal or 0x-hex form
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, fmt.Errorf("%w: empty amount", ErrMalformedRecord)
	case strings.HasPrefix(s, "-"):
		return nil, fmt.Errorf("%w: negative amount %q", ErrMalformedRecord, s)
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err := uint256.FromHex("0x" + s[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedRecord, s, err)
		}
		return v, nil
	default:
		v, err := uint256.FromDecimal(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedRecord, s, err)
		}
		return v, nil
	}
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrMalformedRecord, field)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, field, err)
	}
	return v, nil
}
