package simulator

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/bridge"
	"github.com/michaelpento.lv/xchainarb/chain"
	"github.com/michaelpento.lv/xchainarb/dex"
	"github.com/michaelpento.lv/xchainarb/utils"
)

// Trade is one call recorded by a paper venue
type Trade struct {
	Network   string
	Pool      string
	Amount    decimal.Decimal
	Side      dex.Side
	Reference string
}

// Venue is a paper trade venue. Every trade succeeds unless the error for
// its side is set. References are deterministic transaction-hash strings.
type Venue struct {
	SellErr error
	BuyErr  error

	logger *zap.Logger
	mu     sync.Mutex
	trades []Trade
}

func NewVenue(logger *zap.Logger) *Venue {
	return &Venue{logger: utils.OrNop(logger)}
}

func (v *Venue) Execute(ctx context.Context, network, pool string, amount decimal.Decimal, side dex.Side) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if side == dex.Sell && v.SellErr != nil {
		return "", v.SellErr
	}
	if side == dex.Buy && v.BuyErr != nil {
		return "", v.BuyErr
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	ref := reference(len(v.trades), "trade", network, pool, amount.String(), side.String())
	v.trades = append(v.trades, Trade{Network: network, Pool: pool, Amount: amount, Side: side, Reference: ref})

	v.logger.Info("Paper trade",
		zap.String("network", network),
		zap.String("pool", pool),
		zap.String("amount", amount.String()),
		zap.Stringer("side", side),
		zap.String("reference", ref))
	return ref, nil
}

// Trades returns a copy of every recorded trade in submission order
func (v *Venue) Trades() []Trade {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Trade(nil), v.trades...)
}

// Transfer is one call recorded by a paper bridge
type Transfer struct {
	SourceNetwork string
	TargetNetwork string
	Amount        decimal.Decimal
	Reference     string
}

// Bridge is a paper bridge service
type Bridge struct {
	Err error

	logger    *zap.Logger
	mu        sync.Mutex
	transfers []Transfer
}

func NewBridge(logger *zap.Logger) *Bridge {
	return &Bridge{logger: utils.OrNop(logger)}
}

func (b *Bridge) Transfer(ctx context.Context, sourceNetwork, targetNetwork string, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if b.Err != nil {
		return "", b.Err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	ref := reference(len(b.transfers), "bridge", sourceNetwork, targetNetwork, amount.String())
	b.transfers = append(b.transfers, Transfer{
		SourceNetwork: sourceNetwork,
		TargetNetwork: targetNetwork,
		Amount:        amount,
		Reference:     ref,
	})

	b.logger.Info("Paper bridge transfer",
		zap.String("source_network", sourceNetwork),
		zap.String("target_network", targetNetwork),
		zap.String("amount", amount.String()),
		zap.String("reference", ref))
	return ref, nil
}

// Transfers returns a copy of every recorded transfer in submission order
func (b *Bridge) Transfers() []Transfer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Transfer(nil), b.transfers...)
}

// Observer is a paper chain observer. A reference becomes final on its
// PollsToFinality-th poll; a negative value means never.
type Observer struct {
	PollsToFinality int
	Err             error

	mu    sync.Mutex
	polls map[string]int
}

func NewObserver(pollsToFinality int) *Observer {
	return &Observer{
		PollsToFinality: pollsToFinality,
		polls:           make(map[string]int),
	}
}

func (o *Observer) IsFinalized(ctx context.Context, reference string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.polls[reference]++
	if o.Err != nil {
		return false, o.Err
	}
	return o.PollsToFinality >= 0 && o.polls[reference] >= o.PollsToFinality, nil
}

// Polls returns how many times reference has been polled
func (o *Observer) Polls(reference string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.polls[reference]
}

func reference(seq int, parts ...string) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(seq))
	data := [][]byte{buf[:]}
	for _, p := range parts {
		data = append(data, []byte(p), []byte{0})
	}
	return crypto.Keccak256Hash(data...).Hex()
}

var (
	_ dex.TradeVenue = (*Venue)(nil)
	_ bridge.Service = (*Bridge)(nil)
	_ chain.Observer = (*Observer)(nil)
)
