// Package cli is the payflow command line: one binary, one subcommand per
// service.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/punchamoorthee/payflow/internal/client"
	"github.com/punchamoorthee/payflow/internal/config"
	"github.com/punchamoorthee/payflow/internal/logging"
)

var (
	configFile string
	port       int
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "payflow",
		Short: "Payment workflow, notification and log sink services",
		Long: `payflow runs the three services of the payment platform:

  payment   service catalog, payments and payment applications
  mailer    templated email notifications
  logsink   central log ingestion and queries

Configuration comes from the environment and an optional YAML or TOML file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (overrides PAYFLOW_CONFIG)")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "listen port (overrides the configured port)")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(paymentCmd)
	rootCmd.AddCommand(mailerCmd)
	rootCmd.AddCommand(logsinkCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		os.Setenv("PAYFLOW_CONFIG", configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func listenPort(configured int) int {
	if port > 0 {
		return port
	}
	return configured
}

// newLogger builds the service logger. When remote shipping is on, the
// returned wait func drains records still in flight to the sink.
func newLogger(service string, cfg *config.Config, remote bool) (*slog.Logger, func()) {
	local := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if !remote || !cfg.Logging.Remote {
		return logging.New(service, local, os.Stderr, nil), func() {}
	}
	sink := client.NewLogSinkClient(cfg.Logging.SinkURL, 0)
	rh := logging.NewRemoteHandler(service, sink, logging.ParseLevel(cfg.Logging.Level), 0)
	return logging.New(service, local, os.Stderr, rh), rh.Wait
}
