package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/positions/filter"
	"github.com/rustyeddy/positions/journal"
	"github.com/rustyeddy/positions/report"
	"github.com/rustyeddy/positions/trade"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report closed trades and open positions",
	Long: `Rebuild positions from the full trade log and print the realized
trades and open positions that match the filters. The date window applies to
the close time of trades and the open time of positions; both ends are
inclusive days in UTC.

Examples:
  positions report --from 2024-01-01 --to 2024-03-31
  positions report --symbol aapl --tag t1 --tag t2 --tag-mode any
  positions report --format csv > closed.csv`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var (
	reportFrom    string
	reportTo      string
	reportSymbol  string
	reportAccount string
	reportAsset   string
	reportTags    []string
	reportTagMode string
	reportFormat  string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	f := reportCmd.Flags()
	f.StringVar(&reportFrom, "from", "", "first day (YYYY-MM-DD)")
	f.StringVar(&reportTo, "to", "", "last day (YYYY-MM-DD)")
	f.StringVar(&reportSymbol, "symbol", "", "symbol substring, case-insensitive")
	f.StringVar(&reportAccount, "account", "", "account id")
	f.StringVar(&reportAsset, "asset", "", "asset type (stock or option)")
	f.StringSliceVar(&reportTags, "tag", nil, "tag id (repeatable)")
	f.StringVar(&reportTagMode, "tag-mode", "all", "tag match mode: all or any")
	f.StringVar(&reportFormat, "format", "org", "output format: org or csv")
}

func reportOptions() (filter.Options, error) {
	mode, err := filter.ParseTagMode(reportTagMode)
	if err != nil {
		return filter.Options{}, fmt.Errorf("--tag-mode: %w", err)
	}
	o := filter.Options{
		Symbol:    reportSymbol,
		AccountID: reportAccount,
		TagIDs:    reportTags,
		TagMode:   mode,
	}
	if reportAsset != "" {
		o.AssetType = trade.ParseAssetType(reportAsset)
	}
	if reportFrom != "" {
		start, _, err := dayBounds(time.UTC, reportFrom)
		if err != nil {
			return o, fmt.Errorf("--from: %w", err)
		}
		o.From = &start
	}
	if reportTo != "" {
		_, end, err := dayBounds(time.UTC, reportTo)
		if err != nil {
			return o, fmt.Errorf("--to: %w", err)
		}
		last := end.Add(-time.Nanosecond)
		o.To = &last
	}
	return o, nil
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportFormat != "org" && reportFormat != "csv" {
		return fmt.Errorf("unknown format %q", reportFormat)
	}
	opts, err := reportOptions()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := report.NewService(s, slog.Default()).Report(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reportFormat == "csv" {
		return journal.WriteClosedCSV(out, res.ClosedTrades)
	}

	fmt.Fprintln(out, "* Closed trades")
	fmt.Fprint(out, journal.FormatClosedTradesOrg(res.ClosedTrades))
	fmt.Fprintln(out, "\n* Open positions")
	fmt.Fprint(out, journal.FormatOpenOrg(res.OpenPositions, res.UnrealizedCost))
	if res.Skipped > 0 || res.Suppressed > 0 {
		fmt.Fprintf(out, "# %d trades skipped, %d phantom short lots hidden\n", res.Skipped, res.Suppressed)
	}
	return nil
}
