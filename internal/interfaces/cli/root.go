// Package cli implements the citex command tree: serve, worker, extract,
// refresh and migrate. The serve and worker commands run in-process against
// the assembled dependency graph; extract and refresh talk to a running API
// server through the SDK client.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clausehound/citex/internal/config"
	"github.com/clausehound/citex/pkg/client"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath string
	serverAddr string
	timeout    time.Duration
}

// NewRootCommand builds the citex root command with all subcommands mounted.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "citex",
		Short:         "Citation extraction and analysis pipeline",
		Long:          "citex drives prior-art citation extraction and AI deep analysis for patent claims.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (serve, worker, migrate)")
	cmd.PersistentFlags().StringVar(&opts.serverAddr, "server", "http://localhost:8080", "citex API server address (extract, refresh)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall timeout for client commands")

	cmd.AddCommand(
		newServeCmd(opts),
		newWorkerCmd(opts),
		newExtractCmd(opts),
		newRefreshCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}

// loadConfig loads configuration from the --config file or, when none is
// given, from CITEX_ environment variables over defaults.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.configPath != "" {
		return config.Load(opts.configPath)
	}
	return config.LoadFromEnv()
}

// newClient builds the SDK client for the server-facing commands.
func newClient(opts *rootOptions) (*client.Client, error) {
	return client.NewClient(opts.serverAddr, client.WithTimeout(opts.timeout))
}

// printJSON renders a command result as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
