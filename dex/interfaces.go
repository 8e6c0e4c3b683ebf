package dex

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade on a venue
type Side int

const (
	Sell Side = iota
	Buy
)

func (s Side) String() string {
	switch s {
	case Sell:
		return "sell"
	case Buy:
		return "buy"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// TradeVenue executes trades against a pool. Implementations must be safe for
// concurrent use; the engine never serializes calls.
type TradeVenue interface {
	// Execute submits a trade of amount against pool on network and returns
	// the transaction reference.
	Execute(ctx context.Context, network, pool string, amount decimal.Decimal, side Side) (string, error)
}
