package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/positions/config"
	"github.com/rustyeddy/positions/identity"
	"github.com/rustyeddy/positions/journal"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "positions",
	Short: "Rebuild trading positions and P/L from a brokerage trade log",
	Long: `Positions reconstructs closed trades and open positions from an
append-only log of brokerage executions using FIFO lot matching, and keeps a
stable identity on every position episode so journal tags survive
recomputation.

It provides tools for:
  - Importing broker trade exports into the journal
  - Recalculating position keys after imports or deletions
  - Pruning tags left behind by deleted positions
  - Reporting realized trades and open positions with filters`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	cfgFile string
	dbFlag  string
	cfg     *config.Config
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "database DSN, overrides the config file")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if dbFlag != "" {
		c.Database.DSN = dbFlag
	}

	lvl, err := c.Log.SlogLevel()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})))

	cfg = c
	return nil
}

func openStore(ctx context.Context) (*journal.Store, error) {
	s, err := journal.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return s, nil
}

func newAssigner(s *journal.Store) (*identity.Assigner, error) {
	backoff, err := cfg.Recalc.BackoffDuration()
	if err != nil {
		return nil, err
	}
	return identity.New(s,
		identity.WithLogger(slog.Default()),
		identity.WithRetry(cfg.Recalc.Retries, backoff),
	), nil
}
