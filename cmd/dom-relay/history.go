// ABOUTME: history and sessions commands for relays running with a database

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/dom-relay/internal/client"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var q client.HistoryQuery

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded actions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			recs, err := c.History(cmd.Context(), q)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), recs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tACTION\tSELECTOR\tOUTCOME\tDURATION\tAGENT")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\t%s\n",
					r.CreatedAt.Local().Format(time.DateTime), r.Action, r.Selector, r.Outcome, r.DurationMS, r.Agent)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&q.Action, "action", "", "only this action (read, write, click)")
	cmd.Flags().StringVar(&q.Outcome, "outcome", "", "only this outcome (success, error, timeout, ...)")
	cmd.Flags().StringVar(&q.Agent, "agent", "", "only actions by this agent")
	cmd.Flags().DurationVar(&q.Since, "since", 0, "only actions newer than this")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "maximum records")

	cmd.AddCommand(newHistoryPruneCmd(opts))
	return cmd
}

func newHistoryPruneCmd(opts *globalOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded actions older than --older-than",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			n, err := c.PruneHistory(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records\n", n)
			return err
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the oldest record to keep")
	return cmd
}

func newSessionsCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded extension connections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			sessions, err := c.Sessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), sessions)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CONNECTED\tDISCONNECTED\tREMOTE\tDRAINED\tREASON")
			for _, s := range sessions {
				ended := "-"
				if s.DisconnectedAt != nil {
					ended = s.DisconnectedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					s.ConnectedAt.Local().Format(time.DateTime), ended, s.RemoteAddr, s.Drained, s.Reason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions")
	return cmd
}
