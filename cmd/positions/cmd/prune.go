package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneTagsCmd = &cobra.Command{
	Use:   "prune-tags",
	Short: "Delete tag links of positions that no longer exist",
	Args:  cobra.NoArgs,
	RunE:  runPruneTags,
}

func init() {
	rootCmd.AddCommand(pruneTagsCmd)
}

func runPruneTags(cmd *cobra.Command, args []string) error {
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
	n, err := a.PruneOrphanTags(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d tag links\n", n)
	return nil
}
