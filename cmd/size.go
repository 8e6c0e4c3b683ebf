package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils/math"
)

var (
	sourceLiquidity string
	targetLiquidity string
	priceDiff       float64
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Compute the trade size for a pair of pools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		src, err := types.ParseAmount(sourceLiquidity)
		if err != nil {
			return fmt.Errorf("source liquidity: %w", err)
		}
		dst, err := types.ParseAmount(targetLiquidity)
		if err != nil {
			return fmt.Errorf("target liquidity: %w", err)
		}

		sizer := math.Sizer{
			BaseFraction:  cfg.Sizing.BaseFraction,
			DiffScale:     cfg.Sizing.DiffScale,
			MinMultiplier: cfg.Sizing.MinMultiplier,
			MaxMultiplier: cfg.Sizing.MaxMultiplier,
		}
		return writeJSON(cmd, map[string]float64{
			"amount":     sizer.OptimalAmount(src, dst, priceDiff),
			"multiplier": sizer.Multiplier(priceDiff),
		})
	},
}

func init() {
	rootCmd.AddCommand(sizeCmd)
	sizeCmd.Flags().StringVar(&sourceLiquidity, "source-liquidity", "", "source pool liquidity (decimal or 0x-hex)")
	sizeCmd.Flags().StringVar(&targetLiquidity, "target-liquidity", "", "target pool liquidity (decimal or 0x-hex)")
	sizeCmd.Flags().Float64Var(&priceDiff, "price-diff", 0, "absolute price difference between the pools")
	_ = sizeCmd.MarkFlagRequired("source-liquidity")
	_ = sizeCmd.MarkFlagRequired("target-liquidity")
	_ = sizeCmd.MarkFlagRequired("price-diff")
}
