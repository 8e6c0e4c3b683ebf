package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/dex/uniswap"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
)

var snapshotFlags struct {
	rpc       string
	pair      string
	network   string
	decimals0 int32
	decimals1 int32
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Snapshot a Uniswap V2 style pair as a pool record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, err := loadConfig()
		if err != nil {
			return err
		}
		if !utils.IsValidAddress(snapshotFlags.pair) {
			return fmt.Errorf("%w: --pair %q", types.ErrInvalidAddress, snapshotFlags.pair)
		}

		ctx := cmd.Context()
		client, err := ethclient.DialContext(ctx, snapshotFlags.rpc)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", snapshotFlags.rpc, err)
		}
		defer client.Close()

		source, err := newPairSource(client, snapshotFlags.pair, snapshotFlags.network, snapshotFlags.decimals0, snapshotFlags.decimals1)
		if err != nil {
			return err
		}
		pool, err := source.Snapshot(ctx)
		if err != nil {
			return err
		}
		log.Debug("Snapshot taken", zap.String("pair", snapshotFlags.pair), zap.String("price", pool.Price.String()))
		return writeJSON(cmd, types.NewPoolRecord(pool))
	},
}

// pairSource snapshots one pair on one network
type pairSource struct {
	pair      *uniswap.Pair
	network   string
	decimals0 int32
	decimals1 int32
}

func newPairSource(client *ethclient.Client, address, network string, decimals0, decimals1 int32) (*pairSource, error) {
	pair, err := uniswap.NewPair(common.HexToAddress(address), client)
	if err != nil {
		return nil, err
	}
	return &pairSource{pair: pair, network: network, decimals0: decimals0, decimals1: decimals1}, nil
}

func (s *pairSource) Snapshot(ctx context.Context) (types.PoolInfo, error) {
	return s.pair.Snapshot(ctx, s.network, s.decimals0, s.decimals1)
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	f := snapshotCmd.Flags()
	f.StringVar(&snapshotFlags.rpc, "rpc", "", "RPC endpoint of the pair's network")
	f.StringVar(&snapshotFlags.pair, "pair", "", "pair contract address")
	f.StringVar(&snapshotFlags.network, "network", "", "network name recorded in the snapshot")
	f.Int32Var(&snapshotFlags.decimals0, "decimals0", 18, "token0 decimals")
	f.Int32Var(&snapshotFlags.decimals1, "decimals1", 18, "token1 decimals")
	_ = snapshotCmd.MarkFlagRequired("rpc")
	_ = snapshotCmd.MarkFlagRequired("pair")
	_ = snapshotCmd.MarkFlagRequired("network")
}
