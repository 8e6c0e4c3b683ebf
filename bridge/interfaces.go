package bridge

import (
	"context"

	"github.com/shopspring/decimal"
)

// Service moves funds between networks. Transfer returns a reference that a
// chain observer can later report as finalized.
type Service interface {
	Transfer(ctx context.Context, sourceNetwork, targetNetwork string, amount decimal.Decimal) (string, error)
}
