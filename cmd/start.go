package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/cmd/bot"
	"github.com/michaelpento.lv/xchainarb/engine"
	"github.com/michaelpento.lv/xchainarb/gas"
	"github.com/michaelpento.lv/xchainarb/simulator"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
)

var startFlags struct {
	sourcePair    string
	targetPair    string
	sourceNetwork string
	targetNetwork string
	decimals0     int32
	decimals1     int32
	interval      time.Duration
	metricsAddr   string
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Watch two pairs and paper-trade the spread between them",
	Long: `Start snapshots one pair on the source network and one on the target
network every --interval, detects cross-chain opportunities between them and
paper-executes the profitable ones. Gas is priced from the source network.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if journalDSN != "" {
			cfg.Journal.DSN = journalDSN
		}
		if startFlags.sourceNetwork == "" {
			startFlags.sourceNetwork = cfg.Engine.HomeNetwork
		}
		for _, addr := range []string{startFlags.sourcePair, startFlags.targetPair} {
			if !utils.IsValidAddress(addr) {
				return fmt.Errorf("%w: pair %q", types.ErrInvalidAddress, addr)
			}
		}
		ctx := cmd.Context()

		sourceClient, err := ethclient.DialContext(ctx, cfg.Engine.SourceRPC)
		if err != nil {
			return fmt.Errorf("failed to connect to source network: %w", err)
		}
		defer sourceClient.Close()
		targetClient, err := ethclient.DialContext(ctx, cfg.Engine.TargetRPC)
		if err != nil {
			return fmt.Errorf("failed to connect to target network: %w", err)
		}
		defer targetClient.Close()

		sourcePool, err := newPairSource(sourceClient, startFlags.sourcePair, startFlags.sourceNetwork, startFlags.decimals0, startFlags.decimals1)
		if err != nil {
			return err
		}
		targetPool, err := newPairSource(targetClient, startFlags.targetPair, startFlags.targetNetwork, startFlags.decimals0, startFlags.decimals1)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		eng, err := engine.New(cfg.Engine.SourceRPC, cfg.Engine.TargetRPC, cfg, engine.Dependencies{
			Venue:      simulator.NewVenue(log),
			Bridge:     simulator.NewBridge(log),
			Observer:   simulator.NewObserver(paperPolls),
			Registerer: reg,
		}, log)
		if err != nil {
			return err
		}
		defer eng.Close()

		if startFlags.metricsAddr != "" {
			srv := &http.Server{
				Addr:              startFlags.metricsAddr,
				Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Metrics server failed", zap.Error(err))
				}
			}()
			defer srv.Close()
			log.Info("Serving metrics", zap.String("addr", startFlags.metricsAddr))
		}

		b, err := bot.New(eng, []bot.PoolSource{sourcePool, targetPool},
			gas.NewOracle(sourceClient, log), uint256.NewInt(cfg.Detection.GasPriceWei),
			startFlags.interval, log)
		if err != nil {
			return err
		}

		b.Start(ctx)
		<-ctx.Done()
		log.Info("Shutting down gracefully...")
		b.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	f := startCmd.Flags()
	f.StringVar(&startFlags.sourcePair, "source-pair", "", "pair address on the source network")
	f.StringVar(&startFlags.targetPair, "target-pair", "", "pair address on the target network")
	f.StringVar(&startFlags.sourceNetwork, "source-network", "", "source network name (default engine.home_network)")
	f.StringVar(&startFlags.targetNetwork, "target-network", "", "target network name")
	f.Int32Var(&startFlags.decimals0, "decimals0", 18, "token0 decimals")
	f.Int32Var(&startFlags.decimals1, "decimals1", 18, "token1 decimals")
	f.DurationVar(&startFlags.interval, "interval", 15*time.Second, "time between scans")
	f.StringVar(&startFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.IntVar(&paperPolls, "polls", 1, "observer polls until a paper bridge transfer is final (negative: never)")
	f.StringVar(&journalDSN, "journal", "", "SQLite journal DSN (overrides journal.dsn)")
	_ = startCmd.MarkFlagRequired("source-pair")
	_ = startCmd.MarkFlagRequired("target-pair")
	_ = startCmd.MarkFlagRequired("target-network")
}
