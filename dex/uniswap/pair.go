package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/michaelpento.lv/xchainarb/types"
)

// Pair contract ABI
const pairABIJson = `[{
	"constant": true,
	"inputs": [],
	"name": "getReserves",
	"outputs": [
		{"name": "reserve0", "type": "uint112"},
		{"name": "reserve1", "type": "uint112"},
		{"name": "blockTimestampLast", "type": "uint32"}
	],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token0",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}, {
	"constant": true,
	"inputs": [],
	"name": "token1",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

// V2FeeTier is the fixed 0.3% fee of V2 pairs, in hundredths of a basis point
const V2FeeTier = 3000

// PairABI returns the parsed pair ABI
func PairABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(pairABIJson))
}

// Pair reads the state of a Uniswap V2 style pair contract
type Pair struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewPair binds the pair at address. *ethclient.Client satisfies caller.
func NewPair(address common.Address, caller bind.ContractCaller) (*Pair, error) {
	parsedABI, err := PairABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}
	return &Pair{
		address:  address,
		contract: bind.NewBoundContract(address, parsedABI, caller, nil, nil),
	}, nil
}

// Reserves returns the current reserves of the pair
func (p *Pair) Reserves(ctx context.Context) (reserve0, reserve1 *uint256.Int, err error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getReserves"); err != nil {
		return nil, nil, fmt.Errorf("failed to get reserves: %w", err)
	}
	if len(out) < 2 {
		return nil, nil, fmt.Errorf("unexpected getReserves output length %d", len(out))
	}

	r0, ok := out[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("failed to parse reserve0")
	}
	r1, ok := out[1].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("failed to parse reserve1")
	}
	// uint112 always fits
	reserve0, _ = uint256.FromBig(r0)
	reserve1, _ = uint256.FromBig(r1)
	return reserve0, reserve1, nil
}

// Tokens returns the addresses of token0 and token1
func (p *Pair) Tokens(ctx context.Context) (token0, token1 common.Address, err error) {
	if token0, err = p.token(ctx, "token0"); err != nil {
		return common.Address{}, common.Address{}, err
	}
	if token1, err = p.token(ctx, "token1"); err != nil {
		return common.Address{}, common.Address{}, err
	}
	return token0, token1, nil
}

func (p *Pair) token(ctx context.Context, method string) (common.Address, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return common.Address{}, fmt.Errorf("failed to get %s: %w", method, err)
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("empty %s output", method)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to parse %s address", method)
	}
	return addr, nil
}

// Snapshot captures the pair as a PoolInfo on network. Price is token1 per
// token0 adjusted for token decimals; liquidity is the raw token0 reserve.
func (p *Pair) Snapshot(ctx context.Context, network string, decimals0, decimals1 int32) (types.PoolInfo, error) {
	token0, token1, err := p.Tokens(ctx)
	if err != nil {
		return types.PoolInfo{}, err
	}
	reserve0, reserve1, err := p.Reserves(ctx)
	if err != nil {
		return types.PoolInfo{}, err
	}
	if reserve0.IsZero() || reserve1.IsZero() {
		return types.PoolInfo{}, fmt.Errorf("pair %s has no liquidity", p.address.Hex())
	}

	r0 := decimal.NewFromBigInt(reserve0.ToBig(), -decimals0)
	r1 := decimal.NewFromBigInt(reserve1.ToBig(), -decimals1)

	return types.PoolInfo{
		Address:   p.address.Hex(),
		Network:   network,
		Token0:    token0.Hex(),
		Token1:    token1.Hex(),
		Price:     r1.Div(r0),
		Liquidity: reserve0,
		FeeTier:   V2FeeTier,
	}, nil
}
