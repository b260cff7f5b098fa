package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clausehound/citex/internal/app"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background worker consuming extraction requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			logger, err := app.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			logging.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			consumer, err := a.Consumer()
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- consumer.Start(ctx) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			return consumer.Stop()
		},
	}
}
