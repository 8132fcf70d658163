// Package main provides the tripsync binary: a bridge server exposing trip
// flight proposals and one-shot commands to list, vote on and cancel them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rongwang/tripsync/internal/config"
	"github.com/rongwang/tripsync/internal/gateway"
	"github.com/rongwang/tripsync/internal/utils"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "tripsync"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Collaborative trip flight proposals client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(flags))
	cmd.AddCommand(proposalsCmd(flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

// setup loads configuration and builds the logger and gateway. A gateway
// that cannot be configured is reported and left nil so every operation
// surfaces a configuration error.
func setup(flags *globalFlags) (*config.Config, *slog.Logger, gateway.Gateway, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	logger := utils.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	var gw gateway.Gateway
	httpGateway, err := gateway.NewHTTPGateway(cfg.Gateway.BaseURL, cfg.Gateway.SessionToken, cfg.Gateway.Timeout)
	if err != nil {
		logger.Warn("trips API gateway unavailable", "error", err)
	} else {
		gw = httpGateway
	}

	return cfg, logger, gw, nil
}
