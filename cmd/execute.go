package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/engine"
	"github.com/michaelpento.lv/xchainarb/simulator"
	"github.com/michaelpento.lv/xchainarb/types"
)

var (
	paperPolls int
	journalDSN string
)

type executionReport struct {
	Record    string      `json:"record"`
	Reference string      `json:"reference,omitempty"`
	Error     string      `json:"error,omitempty"`
	Stage     types.Stage `json:"stage,omitempty"`
	Reconcile bool        `json:"reconcile,omitempty"`
}

var executeCmd = &cobra.Command{
	Use:   "execute [record...]",
	Short: "Paper-execute serialized opportunity records",
	Long: `Execute runs each opportunity record through the full cross-chain flow
against paper collaborators. Trades and bridge transfers are recorded but never
broadcast; bridge transfers become final after --polls observer polls.
Records are read from the given files, or stdin when none are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if journalDSN != "" {
			cfg.Journal.DSN = journalDSN
		}

		if len(args) == 0 {
			args = []string{"-"}
		}
		records := make([][]byte, 0, len(args))
		for _, name := range args {
			data, err := readInput(cmd, name)
			if err != nil {
				return fmt.Errorf("failed to read record %s: %w", name, err)
			}
			records = append(records, data)
		}

		eng, err := newPaperEngine(cfg, paperPolls, log)
		if err != nil {
			return err
		}
		defer eng.Close()

		failed := 0
		reports := make([]executionReport, 0, len(records))
		for _, r := range eng.ExecuteBatch(cmd.Context(), records) {
			report := executionReport{Record: args[r.Index], Reference: r.Reference}
			if r.Err != nil {
				failed++
				report.Error = r.Err.Error()
				var se *types.StageError
				if errors.As(r.Err, &se) {
					report.Stage = se.Stage
					report.Reconcile = se.RequiresReconciliation()
				}
			}
			reports = append(reports, report)
		}
		if err := writeJSON(cmd, reports); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d executions failed", failed, len(records))
		}
		return nil
	},
}

func newPaperEngine(cfg *config.Config, polls int, log *zap.Logger) (*engine.Engine, error) {
	return engine.New(cfg.Engine.SourceRPC, cfg.Engine.TargetRPC, cfg, engine.Dependencies{
		Venue:    simulator.NewVenue(log),
		Bridge:   simulator.NewBridge(log),
		Observer: simulator.NewObserver(polls),
	}, log)
}

func init() {
	rootCmd.AddCommand(executeCmd)
	executeCmd.Flags().IntVar(&paperPolls, "polls", 1, "observer polls until a paper bridge transfer is final (negative: never)")
	executeCmd.Flags().StringVar(&journalDSN, "journal", "", "SQLite journal DSN (overrides journal.dsn)")
}
