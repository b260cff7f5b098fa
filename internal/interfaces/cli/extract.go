package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clausehound/citex/pkg/client"
)

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var (
		referenceNumber string
		wait            bool
		pollInterval    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "extract <search-context-id>",
		Short: "Queue a citation extraction for a search context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			j, err := c.Jobs().Queue(ctx, client.QueueJobRequest{
				SearchContextID: args[0],
				ReferenceNumber: referenceNumber,
			})
			if err != nil {
				return err
			}

			if wait {
				done, err := c.Jobs().Wait(ctx, j.ID, client.WaitOptions{Interval: pollInterval})
				if err != nil {
					return fmt.Errorf("job %s queued but waiting failed: %w", j.ID, err)
				}
				j = done
			}
			return printJSON(j)
		},
	}

	cmd.Flags().StringVar(&referenceNumber, "reference", "", "prior-art reference number to scope the search to")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job reaches a terminal status")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "polling interval with --wait")
	return cmd
}
