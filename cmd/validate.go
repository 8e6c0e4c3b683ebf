package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/xchainarb/strategies/arbitrage"
	"github.com/michaelpento.lv/xchainarb/types"
)

type validationReport struct {
	Opportunity string   `json:"opportunity"`
	Valid       bool     `json:"valid"`
	Reason      string   `json:"reason,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate [record]",
	Short: "Validate a serialized opportunity record",
	Long:  "Validate reads an opportunity record from the given file, or stdin, and reports whether it would be executed.",
	Args:  cobra.MaximumNArgs(1),
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
			return fmt.Errorf("failed to read record: %w", err)
		}
		opp, err := types.DecodeOpportunity(data)
		if err != nil {
			return err
		}

		v := arbitrage.NewValidator(cfg.Validation, log)
		reason, err := v.Check(opp)
		if err != nil {
			return err
		}
		return writeJSON(cmd, validationReport{
			Opportunity: opp.Fingerprint(),
			Valid:       reason == arbitrage.ReasonNone,
			Reason:      string(reason),
			Warnings:    v.Warnings(opp),
		})
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
