package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/xchainarb/types"
)

var detectGasPrice string

var detectCmd = &cobra.Command{
	Use:   "detect [pools]",
	Short: "Find opportunities in a set of pool snapshots",
	Long: `Detect reads a JSON array of pool records from the given file, or stdin,
and prints the profitable cross-chain opportunities as opportunity records,
best net profit first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		var name string
		if len(args) > 0 {
			name = args[0]
		}
		data, err := readInput(cmd, name)
		if err != nil {
			return fmt.Errorf("failed to read pools: %w", err)
		}
		var records []types.PoolRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("%w: %v", types.ErrMalformedRecord, err)
		}
		pools := make([]types.PoolInfo, 0, len(records))
		for i, r := range records {
			p, err := r.Pool()
			if err != nil {
				return fmt.Errorf("pool %d: %w", i, err)
			}
			pools = append(pools, p)
		}

		gasPrice := uint256.NewInt(cfg.Detection.GasPriceWei)
		if detectGasPrice != "" {
			if gasPrice, err = types.ParseAmount(detectGasPrice); err != nil {
				return fmt.Errorf("--gas-price: %w", err)
			}
		}

		eng, err := newPaperEngine(cfg, 1, log)
		if err != nil {
			return err
		}
		defer eng.Close()

		opps, err := eng.Detect(cmd.Context(), pools, gasPrice)
		if err != nil {
			return err
		}
		out := make([]types.OpportunityRecord, 0, len(opps))
		for _, o := range opps {
			out = append(out, types.NewOpportunityRecord(o))
		}
		return writeJSON(cmd, out)
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().StringVar(&detectGasPrice, "gas-price", "", "gas price in wei (default detection.gas_price_wei)")
}
