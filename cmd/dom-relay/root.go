// ABOUTME: Root cobra command with the flags shared by every subcommand
// ABOUTME: Resolves the config path, relay URL and bearer token for client commands

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/dom-relay/internal/client"
	"github.com/2389/dom-relay/internal/config"
)

// globalOptions are the persistent flags.
type globalOptions struct {
	configPath string
	url        string
	token      string
	json       bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "dom-relay",
		Short:         "Relay browser actions from agents to a browser extension",
		Long:          "dom-relay accepts read, write and click requests over HTTP and forwards them to a connected browser extension over WebSocket, returning each reply to the agent that asked.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $DOM_RELAY_CONFIG or ~/.config/dom-relay/relay.yaml)")
	flags.StringVar(&opts.url, "url", "", "relay base URL (default $DOM_RELAY_URL or the configured http_addr)")
	flags.StringVar(&opts.token, "token", "", "bearer token for the agent API (default $DOM_RELAY_TOKEN)")
	flags.BoolVar(&opts.json, "json", false, "print JSON output")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newInitCmd(opts),
		newTokenCmd(opts),
		newHealthCmd(opts),
		newStatusCmd(opts),
		newReadCmd(opts),
		newWriteCmd(opts),
		newClickCmd(opts),
		newHistoryCmd(opts),
		newSessionsCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// resolvedConfigPath returns --config or the default location.
func (o *globalOptions) resolvedConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultPath()
}

// loadConfig loads the config file if present and applies environment overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.resolvedConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}
	return cfg, nil
}

// baseURL picks --url, then $DOM_RELAY_URL, then the configured HTTP address.
func (o *globalOptions) baseURL() (string, error) {
	if o.url != "" {
		return o.url, nil
	}
	if env := os.Getenv("DOM_RELAY_URL"); env != "" {
		return env, nil
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return "", err
	}
	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr, nil
}

// newClient builds an API client from the global options.
func (o *globalOptions) newClient() (*client.Client, error) {
	base, err := o.baseURL()
	if err != nil {
		return nil, err
	}
	token := o.token
	if token == "" {
		token = os.Getenv("DOM_RELAY_TOKEN")
	}
	var copts []client.Option
	if token != "" {
		copts = append(copts, client.WithToken(token))
	}
	return client.New(base, copts...), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
