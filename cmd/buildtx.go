package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/xchainarb/dex/uniswap"
	"github.com/michaelpento.lv/xchainarb/gas"
	"github.com/michaelpento.lv/xchainarb/simulator"
	"github.com/michaelpento.lv/xchainarb/transaction"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
)

var txFlags struct {
	to       string
	value    string
	data     string
	gasLimit string
	gasPrice string
	nonce    string
	rpc      string
	from     string

	swapPath      []string
	swapAmountIn  string
	swapMinOut    string
	swapRecipient string
	swapDeadline  uint64
}

type simulationReport struct {
	Success    bool          `json:"success"`
	GasUsed    uint64        `json:"gas_used"`
	ReturnData hexutil.Bytes `json:"return_data,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type buildReport struct {
	Transaction types.TransactionRecord `json:"transaction"`
	Unsigned    hexutil.Bytes           `json:"unsigned"`
	Simulation  *simulationReport       `json:"simulation,omitempty"`
}

var buildTxCmd = &cobra.Command{
	Use:   "build-tx",
	Short: "Build and check an unsigned transaction",
	Long: `Build-tx validates transaction parameters and prints the resulting unsigned
legacy transaction. With --rpc the gas price defaults to the node's current
quote and the transaction is dry-run from --from.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		amounts := map[string]*uint256.Int{}
		for name, raw := range map[string]string{
			"value":     txFlags.value,
			"gas-limit": txFlags.gasLimit,
			"gas-price": txFlags.gasPrice,
			"nonce":     txFlags.nonce,
		} {
			if raw == "" {
				continue
			}
			v, err := types.ParseAmount(raw)
			if err != nil {
				return fmt.Errorf("--%s: %w", name, err)
			}
			amounts[name] = v
		}
		data, err := hexutil.Decode(orDefault(txFlags.data, "0x"))
		if err != nil {
			return fmt.Errorf("--data: %w", err)
		}
		if len(txFlags.swapPath) > 0 {
			if txFlags.data != "" {
				return fmt.Errorf("%w: --data and --swap-path are exclusive", types.ErrInvalidInput)
			}
			if data, err = encodeSwap(); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		var client *ethclient.Client
		if txFlags.rpc != "" {
			if client, err = ethclient.DialContext(ctx, txFlags.rpc); err != nil {
				return fmt.Errorf("failed to connect to %s: %w", txFlags.rpc, err)
			}
			defer client.Close()

			if amounts["gas-price"] == nil {
				if amounts["gas-price"], err = gas.NewOracle(client, log).SuggestGasPrice(ctx); err != nil {
					return err
				}
			}
		}

		tx, err := transaction.NewBuilder(cfg.Gas, log).Build(txFlags.to,
			amounts["value"], data, amounts["gas-limit"], amounts["gas-price"], amounts["nonce"])
		if err != nil {
			return err
		}
		raw, err := tx.MarshalUnsigned()
		if err != nil {
			return err
		}
		report := buildReport{Transaction: types.NewTransactionRecord(tx), Unsigned: raw}

		if client != nil {
			if !utils.IsValidAddress(txFlags.from) {
				return fmt.Errorf("%w: --from %q", types.ErrInvalidAddress, txFlags.from)
			}
			res, err := simulator.NewSimulator(client, log).SimulateTransaction(ctx, common.HexToAddress(txFlags.from), tx)
			if err != nil {
				return err
			}
			report.Simulation = &simulationReport{Success: res.Success, GasUsed: res.GasUsed, ReturnData: res.ReturnData}
			if res.Error != nil {
				report.Simulation.Error = res.Error.Error()
			}
		}
		return writeJSON(cmd, report)
	},
}

func encodeSwap() ([]byte, error) {
	params := uniswap.SwapParams{Deadline: txFlags.swapDeadline}
	for _, token := range txFlags.swapPath {
		if !utils.IsValidAddress(token) {
			return nil, fmt.Errorf("%w: swap token %q", types.ErrInvalidAddress, token)
		}
		params.Path = append(params.Path, common.HexToAddress(token))
	}
	recipient := orDefault(txFlags.swapRecipient, txFlags.from)
	if !utils.IsValidAddress(recipient) {
		return nil, fmt.Errorf("%w: swap recipient %q", types.ErrInvalidAddress, recipient)
	}
	params.To = common.HexToAddress(recipient)

	var err error
	if params.AmountIn, err = types.ParseAmount(txFlags.swapAmountIn); err != nil {
		return nil, fmt.Errorf("--swap-amount-in: %w", err)
	}
	if params.AmountOutMin, err = types.ParseAmount(orDefault(txFlags.swapMinOut, "0")); err != nil {
		return nil, fmt.Errorf("--swap-min-out: %w", err)
	}

	router, err := uniswap.NewRouter()
	if err != nil {
		return nil, err
	}
	return router.EncodeSwap(params)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func init() {
	rootCmd.AddCommand(buildTxCmd)
	f := buildTxCmd.Flags()
	f.StringVar(&txFlags.to, "to", "", "destination address")
	f.StringVar(&txFlags.value, "value", "0", "value in wei")
	f.StringVar(&txFlags.data, "data", "", "hex-encoded call data")
	f.StringVar(&txFlags.gasLimit, "gas-limit", "21000", "gas limit")
	f.StringVar(&txFlags.gasPrice, "gas-price", "", "gas price in wei (default from --rpc, else zero)")
	f.StringVar(&txFlags.nonce, "nonce", "0", "account nonce")
	f.StringVar(&txFlags.rpc, "rpc", "", "RPC endpoint for gas pricing and a dry run")
	f.StringVar(&txFlags.from, "from", "", "sender address for the dry run")
	f.StringSliceVar(&txFlags.swapPath, "swap-path", nil, "encode a V2 router swap through these token addresses as the call data")
	f.StringVar(&txFlags.swapAmountIn, "swap-amount-in", "", "swap input amount")
	f.StringVar(&txFlags.swapMinOut, "swap-min-out", "0", "minimum swap output")
	f.StringVar(&txFlags.swapRecipient, "swap-recipient", "", "swap output recipient (default --from)")
	f.Uint64Var(&txFlags.swapDeadline, "swap-deadline", 0, "swap deadline as a unix timestamp")
	_ = buildTxCmd.MarkFlagRequired("to")
}
