// Command worker consumes extraction requests from Kafka and runs the
// citation pipeline for each, so the API can enqueue work without doing it
// in-process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clausehound/citex/internal/app"
	"github.com/clausehound/citex/internal/config"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
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

	logger.Info("worker consuming extraction requests",
		logging.String("group", cfg.Kafka.GroupID))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}
	return consumer.Stop()
}
