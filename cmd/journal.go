package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/xchainarb/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the execution journal",
}

var journalPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List executions that may have stranded funds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openJournal()
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.Unreconciled(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd, events)
	},
}

var journalEventsCmd = &cobra.Command{
	Use:   "events <execution-id>",
	Short: "Show the stage history of one execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openJournal()
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.Events(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd, events)
	},
}

func openJournal() (*journal.SQLiteStore, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dsn := journalDSN
	if dsn == "" {
		dsn = cfg.Journal.DSN
	}
	if dsn == "" {
		return nil, fmt.Errorf("no journal configured: set journal.dsn or --journal")
	}
	return journal.NewSQLiteStore(dsn)
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalPendingCmd, journalEventsCmd)
	journalCmd.PersistentFlags().StringVar(&journalDSN, "journal", "", "SQLite journal DSN (overrides journal.dsn)")
}
