// ABOUTME: Fake browser extension for end-to-end testing without a browser
// ABOUTME: Connects to the relay over WebSocket and executes commands against an in-memory page

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/2389/dom-relay/internal/fakedom"
	"github.com/2389/dom-relay/internal/logging"
)

type options struct {
	url       string
	htmlPath  string
	origin    string
	reconnect time.Duration
	logLevel  string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "fake-extension",
		Short:        "Answer relay commands from an in-memory HTML page",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := loadDocument(opts.htmlPath)
			if err != nil {
				return err
			}
			logger := logging.New(cmd.ErrOrStderr(), opts.logLevel, "text")
			return run(cmd.Context(), opts, doc, logger)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "ws://127.0.0.1:6790", "relay WebSocket URL")
	cmd.Flags().StringVar(&opts.htmlPath, "html", "", "HTML page to serve (default: built-in test page)")
	cmd.Flags().StringVar(&opts.origin, "origin", "chrome-extension://dom-relay-fake", "Origin header to send")
	cmd.Flags().DurationVar(&opts.reconnect, "reconnect", 2*time.Second, "delay between reconnect attempts, 0 to exit on disconnect")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level")
	return cmd
}

func loadDocument(path string) (*fakedom.Document, error) {
	if path == "" {
		return fakedom.TestPage(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	defer f.Close()
	return fakedom.Parse(f)
}

// run keeps a connection to the relay until ctx ends.
func run(ctx context.Context, opts *options, doc *fakedom.Document, logger *slog.Logger) error {
	for {
		err := serveOnce(ctx, opts, doc, logger)
		if ctx.Err() != nil {
			return nil
		}
		if opts.reconnect <= 0 {
			return err
		}
		logger.Warn("connection lost, reconnecting", "error", err, "delay", opts.reconnect)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(opts.reconnect):
		}
	}
}

// serveOnce dials the relay and answers commands until the connection ends.
func serveOnce(ctx context.Context, opts *options, doc *fakedom.Document, logger *slog.Logger) error {
	header := http.Header{}
	if opts.origin != "" {
		header.Set("Origin", opts.origin)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, opts.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dialing %s: %w", opts.url, err)
	}
	defer conn.Close()
	logger.Info("connected to relay", "url", opts.url)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("relay closed the connection")
			}
			return err
		}

		out := doc.HandleRaw(msg)
		if out == nil {
			logger.Debug("ignoring non-command message", "bytes", len(msg))
			continue
		}
		logger.Debug("command handled", "command", string(msg), "reply", string(out))
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return fmt.Errorf("writing reply: %w", err)
		}
	}
}
