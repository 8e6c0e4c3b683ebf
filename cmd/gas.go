package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/gas"
)

var (
	gasNetwork string
	gasTarget  string
	gasRPC     string
)

type gasReport struct {
	Network     string `json:"network"`
	Target      string `json:"target,omitempty"`
	GasLimit    string `json:"gas_limit"`
	GasPriceWei string `json:"gas_price_wei,omitempty"`
	CostWei     string `json:"cost_wei,omitempty"`
}

var gasCmd = &cobra.Command{
	Use:   "gas",
	Short: "Estimate the gas limit for a trade",
	Long: `Gas prints the padded gas limit for a trade on --network, or for both legs
of an arbitrage when --target is set. With --rpc the node's current gas price
is used to price the estimate.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		est, err := gas.NewEstimator(cfg.Engine.HomeNetwork, cfg.Gas, log)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		report := gasReport{Network: gasNetwork, Target: gasTarget}
		var limit *uint256.Int
		if gasTarget != "" {
			limit, err = est.EstimateArbitrageGas(ctx, gasNetwork, gasTarget)
		} else {
			limit, err = est.Estimate(ctx, gasNetwork, nil)
		}
		if err != nil {
			return err
		}
		report.GasLimit = limit.Dec()

		if gasRPC != "" {
			client, err := ethclient.DialContext(ctx, gasRPC)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", gasRPC, err)
			}
			defer client.Close()

			price, err := gas.NewOracle(client, log).SuggestGasPrice(ctx)
			if err != nil {
				return err
			}
			report.GasPriceWei = price.Dec()
			report.CostWei = gas.EstimateCost(limit, price).Dec()
			log.Debug("Priced gas estimate", zap.String("rpc", gasRPC), zap.String("cost_wei", report.CostWei))
		}
		return writeJSON(cmd, report)
	},
}

func init() {
	rootCmd.AddCommand(gasCmd)
	gasCmd.Flags().StringVar(&gasNetwork, "network", "", "network the trade runs on")
	gasCmd.Flags().StringVar(&gasTarget, "target", "", "target network of a cross-chain arbitrage")
	gasCmd.Flags().StringVar(&gasRPC, "rpc", "", "RPC endpoint used to price the estimate")
}
