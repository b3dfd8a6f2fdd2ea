// Command server runs the nxgate OpenAI-compatible gateway.
//
// Configuration is read from a YAML file (--config, NXGATE_CONFIG,
// ./config.yaml or /etc/nxgate/config.yaml), then a .env file, then
// environment variables. Later sources win.
//
//	server serve --config config.yaml
//	server models
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nxgate/nxgate/pkg/config"
	"github.com/nxgate/nxgate/pkg/debug"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "server",
		Short:         "OpenAI-compatible gateway for chat completions and images",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Without a subcommand the gateway is served.
		RunE: serve.RunE,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	root.AddCommand(serve, newModelsCmd())
	return root
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	debug.Init(debug.Options{
		Categories: cfg.Logging.Debug,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
	})
	return cfg, nil
}
