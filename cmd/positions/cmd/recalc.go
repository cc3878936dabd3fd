package cmd

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/positions/trade"
	"github.com/spf13/cobra"
)

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate position keys",
	Long: `Replay every (account, instrument) stream and write position keys
where they are missing or stale. Existing keys are reused, so running this
twice changes nothing the second time.

Examples:
  positions recalc
  positions recalc --account U123 --instrument AAPL`,
	Args: cobra.NoArgs,
	RunE: runRecalc,
}

var (
	recalcAccount    string
	recalcInstrument string
)

func init() {
	rootCmd.AddCommand(recalcCmd)
	recalcCmd.Flags().StringVar(&recalcAccount, "account", "", "only this account (requires --instrument)")
	recalcCmd.Flags().StringVar(&recalcInstrument, "instrument", "", "instrument id, or symbol when trades carry none")
}

func runRecalc(cmd *cobra.Command, args []string) error {
	if (recalcAccount == "") != (recalcInstrument == "") {
		return errors.New("--account and --instrument must be given together")
	}

	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := newAssigner(s)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if recalcAccount != "" {
		g := trade.Group{AccountID: recalcAccount, Instrument: recalcInstrument}
		n, err := a.Recalculate(ctx, g)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d trades updated\n", g.Key(), n)
		return nil
	}

	sum, err := a.RecalculateAll(ctx)
	fmt.Fprintf(out, "position keys: %d groups, %d trades updated, %d failed\n", sum.Groups, sum.Updated, sum.Failed)
	return err
}
