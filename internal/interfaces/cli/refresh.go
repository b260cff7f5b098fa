package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "refresh <search-context-id>",
		Short: "Re-extract the stale jobs of a search context",
		Long:  "Detects jobs whose claim hash or parser version is out of date and supersedes them with fresh extractions. With --dry-run only the stale job IDs are listed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			if dryRun {
				stale, err := c.Refresh().StaleJobs(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"staleJobIds": stale, "total": len(stale)})
			}

			refreshed, err := c.Refresh().Refresh(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"refreshed": refreshed, "total": len(refreshed)})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list stale jobs without refreshing them")
	return cmd
}
