package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/positions/trade"
	"github.com/spf13/cobra"
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Inspect or delete stored trades",
	Long: `Query the raw trade log.

Subcommands:
  show   - Show one trade by internal id
  day    - List trades executed on a specific day
  delete - Delete trades by internal id and prune orphaned tags

Examples:
  positions trades show 01HV3K6Y0M3V7Y4Q8R2ZB7D6XW
  positions trades day 2024-01-15
  positions trades delete 01HV3K6Y0M3V7Y4Q8R2ZB7D6XW`,
}

var tradesShowCmd = &cobra.Command{
	Use:   "show <trade-id>",
	Short: "Show one trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradesShow,
}

var tradesDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades executed on a specific day (UTC)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradesDay,
}

var tradesDeleteCmd = &cobra.Command{
	Use:   "delete <trade-id>...",
	Short: "Delete trades and recalculate position keys",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTradesDelete,
}

func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.AddCommand(tradesShowCmd)
	tradesCmd.AddCommand(tradesDayCmd)
	tradesCmd.AddCommand(tradesDeleteCmd)
}

func runTradesShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.GetTrade(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}
	printTrade(cmd.OutOrStdout(), r)
	return nil
}

func runTradesDay(cmd *cobra.Command, args []string) error {
	start, end, err := dayBounds(time.UTC, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	recs, err := s.ListTradesBetween(ctx, start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	for _, r := range recs {
		printTrade(cmd.OutOrStdout(), r)
	}
	return nil
}

// runTradesDelete removes trades, then rebuilds keys and drops tag links
// whose position disappeared with them.
func runTradesDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.DeleteTrades(ctx, args...)
	if err != nil {
		return fmt.Errorf("delete trades: %w", err)
	}

	a, err := newAssigner(s)
	if err != nil {
		return err
	}
	sum, err := a.RecalculateAll(ctx)
	if err != nil {
		return err
	}
	pruned, err := a.PruneOrphanTags(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d trades, %d keys updated, %d tag links pruned\n", n, sum.Updated, pruned)
	return nil
}

func printTrade(w io.Writer, r trade.Record) {
	fmt.Fprintf(w, "%s %s %s %-6s %-4s %s @ %s fees %s key=%s\n",
		r.ID,
		r.Timestamp.UTC().Format(time.RFC3339),
		r.AccountID,
		r.Symbol,
		r.Side,
		r.Quantity,
		r.Price,
		r.Fees,
		r.PositionKey,
	)
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)
	return start, end, nil
}
