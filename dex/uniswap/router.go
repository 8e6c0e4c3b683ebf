package uniswap

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/michaelpento.lv/xchainarb/types"
)

const routerABIJson = `[{"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}]`

const swapMethod = "swapExactTokensForTokens"

// SwapParams are the arguments of a V2 router swapExactTokensForTokens call
type SwapParams struct {
	AmountIn     *uint256.Int
	AmountOutMin *uint256.Int
	Path         []common.Address
	To           common.Address
	Deadline     uint64
}

// TokenIn is the first token of the path
func (p SwapParams) TokenIn() common.Address { return p.Path[0] }

// TokenOut is the last token of the path
func (p SwapParams) TokenOut() common.Address { return p.Path[len(p.Path)-1] }

// Router encodes and decodes V2 router swap calldata
type Router struct {
	abi abi.ABI
}

func NewRouter() (*Router, error) {
	parsed, err := abi.JSON(strings.NewReader(routerABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}
	return &Router{abi: parsed}, nil
}

// EncodeSwap packs p into calldata for the transaction builder
func (r *Router) EncodeSwap(p SwapParams) ([]byte, error) {
	if len(p.Path) < 2 {
		return nil, fmt.Errorf("%w: swap path needs at least two tokens", types.ErrInvalidInput)
	}
	if p.AmountIn == nil || p.AmountIn.IsZero() {
		return nil, fmt.Errorf("%w: swap amount must be positive", types.ErrInvalidInput)
	}
	minOut := p.AmountOutMin
	if minOut == nil {
		minOut = new(uint256.Int)
	}
	return r.abi.Pack(swapMethod,
		p.AmountIn.ToBig(),
		minOut.ToBig(),
		p.Path,
		p.To,
		new(big.Int).SetUint64(p.Deadline),
	)
}

// DecodeSwap unpacks swapExactTokensForTokens calldata
func (r *Router) DecodeSwap(data []byte) (SwapParams, error) {
	if len(data) < 4 {
		return SwapParams{}, fmt.Errorf("%w: calldata too short", types.ErrInvalidInput)
	}
	method, err := r.abi.MethodById(data[:4])
	if err != nil {
		return SwapParams{}, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}

	args := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return SwapParams{}, fmt.Errorf("failed to decode swap: %w", err)
	}

	path, ok := args["path"].([]common.Address)
	if !ok || len(path) < 2 {
		return SwapParams{}, fmt.Errorf("%w: invalid path", types.ErrInvalidInput)
	}
	to, _ := args["to"].(common.Address)

	var amounts [3]*uint256.Int
	for i, name := range []string{"amountIn", "amountOutMin", "deadline"} {
		v, ok := args[name].(*big.Int)
		if !ok {
			return SwapParams{}, fmt.Errorf("%w: invalid %s", types.ErrInvalidInput, name)
		}
		amounts[i], _ = uint256.FromBig(v)
	}
	if !amounts[2].IsUint64() {
		return SwapParams{}, fmt.Errorf("%w: deadline exceeds 64 bits", types.ErrInvalidInput)
	}

	return SwapParams{
		AmountIn:     amounts[0],
		AmountOutMin: amounts[1],
		Path:         path,
		To:           to,
		Deadline:     amounts[2].Uint64(),
	}, nil
}
