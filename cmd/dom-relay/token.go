// ABOUTME: token command: mints agent bearer tokens from the configured JWT secret

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/dom-relay/internal/auth"
)

func newTokenCmd(opts *globalOptions) *cobra.Command {
	var (
		agent   string
		expires time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}

			verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
			if err != nil {
				return err
			}
			token, err := verifier.Generate(agent, expires)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "agent name recorded in history")
	cmd.Flags().DurationVar(&expires, "expires", 30*24*time.Hour, "token lifetime, 0 for no expiry")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}
