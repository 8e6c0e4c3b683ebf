package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/utils"
)

var (
	cfgFile string
	debug   bool
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "xchainarb",
	Short: "A cross-chain arbitrage execution engine",
	Long: `xchainarb validates, sizes and executes arbitrage opportunities between
liquidity pools on different networks. A trade sells on the source network,
bridges the proceeds and buys on the target network once the bridge transfer
is final.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus environment)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file (env "+config.EnvLogFile+")")
}

func initConfig() {
	opts := utils.LogOptions{
		Debug: debug,
		File:  config.GetEnvWithDefault(config.EnvLogFile, ""),
	}
	if logFile != "" {
		opts.File = logFile
	}
	if _, err := utils.InitLogger(opts); err != nil {
		fmt.Fprintf(os.Stderr, "log file disabled: %v\n", err)
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	log := utils.GetLogger()
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, log, err
	}
	log.Debug("Loaded configuration", zap.String("file", cfgFile))
	return cfg, log, nil
}

// readInput reads the named file, or stdin when name is empty or "-"
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
