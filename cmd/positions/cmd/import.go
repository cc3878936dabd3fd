package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rustyeddy/positions/journal"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <trades.csv>...",
	Short: "Import broker trade exports into the journal",
	Long: `Read CSV trade exports and store them in the journal. Trades whose
(account_id, external_id) are already stored are ignored, so exports can be
re-imported safely. Required columns: account_id, symbol, action, quantity,
price, executed_at (RFC3339). Optional: external_id, broker, asset_type,
instrument_id, fees, multiplier.

Position keys are recalculated afterwards unless --no-recalc is given.

Example:
  positions import --db ./positions.db ibkr-2024.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var importNoRecalc bool

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importNoRecalc, "no-recalc", false, "skip position key recalculation")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		records, bad, err := journal.ReadTradesCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		n, err := s.InsertTrades(ctx, records)
		if err != nil {
			return fmt.Errorf("store %s: %w", path, err)
		}
		slog.Info("imported trades", "file", path, "rows", len(records), "inserted", n, "bad", bad)
		fmt.Fprintf(out, "%s: %d inserted, %d already present, %d unreadable\n", path, n, len(records)-n, bad)
	}

	if importNoRecalc {
		return nil
	}
	a, err := newAssigner(s)
	if err != nil {
		return err
	}
	sum, err := a.RecalculateAll(ctx)
	fmt.Fprintf(out, "position keys: %d groups, %d trades updated\n", sum.Groups, sum.Updated)
	return err
}
