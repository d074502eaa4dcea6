// ABOUTME: read, write, click, health and status commands backed by the agent API client
// ABOUTME: Action commands exit non-zero when the browser reports a failure

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/dom-relay/internal/client"
	"github.com/2389/dom-relay/internal/relay"
)

// errActionFailed is returned when the relay produced a success:false result.
var errActionFailed = errors.New("action failed")

// actionFlags are shared by read, write and click.
type actionFlags struct {
	page           string
	timeout        time.Duration
	idempotencyKey string
	wait           time.Duration
}

func (f *actionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.page, "page", "", "URL of the tab the action targets")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "relay-side timeout (default from server config)")
	cmd.Flags().StringVar(&f.idempotencyKey, "idempotency-key", "", "replay the result of an earlier call with this key")
	cmd.Flags().DurationVar(&f.wait, "wait", 0, "wait up to this long for the extension to connect first")
}

func newReadCmd(opts *globalOptions) *cobra.Command {
	flags := &actionFlags{}
	cmd := &cobra.Command{
		Use:   "read <selector>",
		Short: "Read the value or text of an element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, flags, relay.ActionRequest{Action: relay.ActionRead, Selector: args[0]})
		},
	}
	flags.register(cmd)
	return cmd
}

func newWriteCmd(opts *globalOptions) *cobra.Command {
	flags := &actionFlags{}
	cmd := &cobra.Command{
		Use:   "write <selector> <value>",
		Short: "Set the value of an element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := args[1]
			return runAction(cmd, opts, flags, relay.ActionRequest{Action: relay.ActionWrite, Selector: args[0], Value: &value})
		},
	}
	flags.register(cmd)
	return cmd
}

func newClickCmd(opts *globalOptions) *cobra.Command {
	flags := &actionFlags{}
	cmd := &cobra.Command{
		Use:   "click <selector>",
		Short: "Click an element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, flags, relay.ActionRequest{Action: relay.ActionClick, Selector: args[0]})
		},
	}
	flags.register(cmd)
	return cmd
}

func runAction(cmd *cobra.Command, opts *globalOptions, flags *actionFlags, req relay.ActionRequest) error {
	c, err := opts.newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	req.URL = flags.page

	if flags.wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, flags.wait)
		err := c.WaitForExtension(waitCtx, 250*time.Millisecond)
		cancel()
		if err != nil {
			return fmt.Errorf("extension did not connect within %s", flags.wait)
		}
	}

	res, err := c.Execute(ctx, req, client.ExecuteOptions{
		Timeout:        flags.timeout,
		IdempotencyKey: flags.idempotencyKey,
	})
	if err != nil {
		return err
	}

	if err := printResult(cmd.OutOrStdout(), opts.json, res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", errActionFailed, res.Error)
	}
	return nil
}

func printResult(w io.Writer, asJSON bool, res *relay.Result) error {
	if asJSON {
		return writeJSON(w, res)
	}
	if !res.Success {
		color.New(color.FgRed).Fprint(w, "✗ ")
		_, err := fmt.Fprintln(w, res.Error)
		return err
	}
	color.New(color.FgGreen).Fprint(w, "✓ ")
	if res.ElementType != "" {
		color.New(color.FgHiBlack).Fprintf(w, "<%s> ", res.ElementType)
	}
	_, err := fmt.Fprintln(w, res.Data)
	return err
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check relay health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(w, h)
			}
			fmt.Fprintf(w, "status:     %s\n", h.Status)
			fmt.Fprint(w, "extension:  ")
			if h.ExtensionConnected {
				color.New(color.FgGreen).Fprintln(w, "connected")
			} else {
				color.New(color.FgYellow).Fprintln(w, "not connected")
			}
			fmt.Fprintf(w, "pending:    %d\n", h.PendingRequests)
			fmt.Fprintf(w, "uptime:     %s\n", time.Duration(h.Uptime*float64(time.Second)).Round(time.Second))
			return nil
		},
	}
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show relay counters and extension state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(w, st)
			}
			connected := "no"
			if st.ConnectedSince != nil {
				connected = "since " + st.ConnectedSince.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "extension connected: %s\n", connected)
			fmt.Fprintf(w, "pending requests:    %d\n", st.PendingRequestCount)
			fmt.Fprintf(w, "history enabled:     %t\n", st.HistoryEnabled)
			fmt.Fprintf(w, "auth enabled:        %t\n", st.AuthEnabled)
			fmt.Fprintln(w)
			s := st.Stats
			fmt.Fprintf(w, "submitted %d  succeeded %d  failed %d  rejected %d\n", s.Submitted, s.Succeeded, s.Failed, s.Rejected)
			fmt.Fprintf(w, "timed out %d  disconnected %d  send failed %d\n", s.TimedOut, s.Disconnected, s.SendFailed)
			fmt.Fprintf(w, "late replies %d  dropped %d\n", s.LateReplies, s.Dropped)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
