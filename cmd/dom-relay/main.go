// ABOUTME: Entry point for dom-relay, the agent-to-browser action relay
// ABOUTME: Runs the server or talks to a running one through its HTTP API

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
