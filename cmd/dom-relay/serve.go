// ABOUTME: serve command: loads .env and config, prints the banner and runs the gateway
// ABOUTME: Blocks until SIGINT or SIGTERM, then shuts down gracefully

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/2389/dom-relay/internal/config"
	"github.com/2389/dom-relay/internal/gateway"
	"github.com/2389/dom-relay/internal/logging"
)

const banner = `
     _                                  _
  __| | ___  _ __ ___        _ __ ___| | __ _ _   _
 / _' |/ _ \| '_ ' _ \ _____| '__/ _ \ |/ _' | | | |
| (_| | (_) | | | | | |_____| | |  __/ | (_| | |_| |
 \__,_|\___/|_| |_| |_|     |_|  \___|_|\__,_|\__, |
                                              |___/
`

func newServeCmd(opts *globalOptions) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading %s: %w", envFile, err)
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			printBanner(cmd.OutOrStdout(), opts.resolvedConfigPath(), cfg)

			logger := logging.New(cmd.OutOrStdout(), cfg.Logging.Level, cfg.Logging.Format)
			logger.Info("starting dom-relay",
				"config", opts.resolvedConfigPath(),
				"http_addr", cfg.Server.HTTPAddr,
				"ws_addr", cfg.Server.WSAddr,
			)

			gw, err := gateway.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating gateway: %w", err)
			}
			return gw.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file with BRIDGE_PORT, WEBSOCKET_PORT, LOG_LEVEL or DEBUG")
	return cmd
}

func printBanner(w io.Writer, configPath string, cfg *config.Config) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", version)

	line := func(label, value string) {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "%-10s %s\n", label, value)
	}
	line("Config:", configPath)
	line("HTTP:", cfg.Server.HTTPAddr)
	line("WebSocket:", cfg.Server.WSAddr)
	if cfg.Server.GRPCAddr != "" {
		line("gRPC:", cfg.Server.GRPCAddr)
	}
	if cfg.Database.Path != "" {
		line("History:", cfg.Database.Path)
	}
	if cfg.Auth.JWTSecret == "" {
		yellow.Fprint(w, "    ! ")
		fmt.Fprintln(w, "agent API auth disabled")
	}
	fmt.Fprintln(w)
}
