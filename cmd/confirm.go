package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/xchainarb/chain"
)

var confirmRPC string

type confirmation struct {
	Reference string `json:"reference"`
	Finalized bool   `json:"finalized"`
	Error     string `json:"error,omitempty"`
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <reference>...",
	Short: "Check whether transactions are final on a network",
	Long: `Confirm asks the node at --rpc whether each transaction reference has a
successful receipt with observer.min_confirmations blocks on top. Use it to
reconcile the references listed by "journal pending".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		client, err := ethclient.DialContext(ctx, confirmRPC)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", confirmRPC, err)
		}
		defer client.Close()

		observer, err := chain.NewReceiptObserver(client, cfg.Observer, log)
		if err != nil {
			return err
		}

		out := make([]confirmation, 0, len(args))
		for _, ref := range args {
			c := confirmation{Reference: ref}
			if c.Finalized, err = observer.IsFinalized(ctx, ref); err != nil {
				c.Error = err.Error()
			}
			out = append(out, c)
		}
		return writeJSON(cmd, out)
	},
}

func init() {
	rootCmd.AddCommand(confirmCmd)
	confirmCmd.Flags().StringVar(&confirmRPC, "rpc", "", "RPC endpoint of the network the references live on")
	_ = confirmCmd.MarkFlagRequired("rpc")
}
