// ABOUTME: Gateway orchestrator that coordinates the agent HTTP API, extension WebSocket and gRPC health
// ABOUTME: Owns the relay, history store and idempotency cache and manages their lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/2389/dom-relay/internal/auth"
	"github.com/2389/dom-relay/internal/config"
	"github.com/2389/dom-relay/internal/dedupe"
	"github.com/2389/dom-relay/internal/extension"
	"github.com/2389/dom-relay/internal/relay"
	"github.com/2389/dom-relay/internal/selector"
	"github.com/2389/dom-relay/internal/store"
)

// idempotencyCacheSize bounds remembered Idempotency-Key results.
const idempotencyCacheSize = 10_000

// Gateway orchestrates the dom-relay server components.
type Gateway struct {
	config    *config.Config
	relay     *relay.Relay
	extension *extension.Handler
	store     store.Store // nil when history is disabled
	verifier  *auth.JWTVerifier
	logger    *slog.Logger

	// idempotency replays results for retried POST /execute calls
	idempotency *dedupe.Cache[relay.Result]

	httpServer *http.Server
	wsServer   *http.Server // nil when ws_addr equals http_addr
	grpcServer *grpc.Server // nil when grpc_addr is empty
	health     *health.Server
	healthMu   sync.Mutex

	// sessions maps attached peers to their history session IDs
	sessionsMu sync.Mutex
	sessions   map[relay.Peer]string

	// pending tracks history writes still in flight at shutdown
	pending sync.WaitGroup
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithStore uses s for history instead of opening database.path.
func WithStore(s store.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		config:   cfg,
		logger:   logger.With("component", "gateway"),
		sessions: make(map[relay.Peer]string),
	}
	for _, opt := range opts {
		opt(gw)
	}

	if gw.store == nil && cfg.Database.Path != "" {
		s, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening history store: %w", err)
		}
		gw.store = s
	}

	if cfg.Auth.JWTSecret != "" {
		verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			gw.closeStore()
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		gw.verifier = verifier
		logger.Info("agent API auth enabled")
	} else {
		logger.Warn("auth disabled - no jwt_secret configured")
	}

	relayOpts := relay.Options{
		DefaultTimeout: cfg.Relay.RequestTimeout,
		MaxTimeout:     cfg.Relay.MaxTimeout,
		Logger:         logger.With("component", "relay"),
	}
	if cfg.Relay.ValidateSelectors {
		relayOpts.Selectors = selector.New(selector.DefaultCacheSize)
	}
	gw.relay = relay.New(relayOpts)

	gw.extension = extension.NewHandler(gw.relay, extension.Options{
		PingInterval:   cfg.Extension.PingInterval,
		WriteTimeout:   cfg.Extension.WriteTimeout,
		AllowedOrigins: cfg.Extension.AllowedOrigins,
		Logger:         logger.With("component", "extension"),
	})

	if cfg.Relay.IdempotencyTTL > 0 {
		gw.idempotency = dedupe.New[relay.Result](cfg.Relay.IdempotencyTTL, idempotencyCacheSize)
	}

	gw.health = newHealthServer()
	gw.relay.Hub().Subscribe(gw.onHubEvent)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.WSAddr != "" && cfg.Server.WSAddr != cfg.Server.HTTPAddr {
		mux := http.NewServeMux()
		mux.Handle("/", gw.extension)
		gw.wsServer = &http.Server{
			Addr:              cfg.Server.WSAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	if cfg.Server.GRPCAddr != "" {
		gw.grpcServer = newGRPCServer(gw.health)
	}

	return gw, nil
}

// Relay returns the correlation engine.
func (g *Gateway) Relay() *relay.Relay {
	return g.relay
}

// Handler returns the agent HTTP API handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

type listeners struct {
	http, ws, grpc net.Listener
}

func (l *listeners) close() {
	for _, ln := range []net.Listener{l.http, l.ws, l.grpc} {
		if ln != nil {
			_ = ln.Close()
		}
	}
}

// setupListeners creates TCP listeners for every configured server.
func (g *Gateway) setupListeners() (*listeners, error) {
	g.logger.Info("starting gateway",
		"http_addr", g.config.Server.HTTPAddr,
		"ws_addr", g.config.Server.WSAddr,
		"grpc_addr", g.config.Server.GRPCAddr,
	)

	var (
		ls  listeners
		err error
	)
	ls.http, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	if g.wsServer != nil {
		ls.ws, err = net.Listen("tcp", g.config.Server.WSAddr)
		if err != nil {
			ls.close()
			return nil, fmt.Errorf("listening on WebSocket address: %w", err)
		}
	}

	if g.grpcServer != nil {
		ls.grpc, err = net.Listen("tcp", g.config.Server.GRPCAddr)
		if err != nil {
			ls.close()
			return nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	return &ls, nil
}

// startServers starts every server in its own goroutine, returning the error channel.
func (g *Gateway) startServers(ls *listeners) chan error {
	errCh := make(chan error, 3)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ls.http.Addr().String())
		if err := g.httpServer.Serve(ls.http); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if ls.ws != nil {
		go func() {
			g.logger.Info("extension WebSocket listening", "addr", ls.ws.Addr().String())
			if err := g.wsServer.Serve(ls.ws); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("WebSocket server: %w", err)
			}
		}()
	}

	if ls.grpc != nil {
		go func() {
			g.logger.Info("gRPC health listening", "addr", ls.grpc.Addr().String())
			if err := g.grpcServer.Serve(ls.grpc); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the servers and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ls, err := g.setupListeners()
	if err != nil {
		g.closeStore()
		return err
	}

	errCh := g.startServers(ls)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	if g.grpcServer == nil {
		return
	}
	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting agents, fails in-flight requests, and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	g.health.Shutdown()

	// Detaching first resolves every blocked /execute handler, so the
	// HTTP shutdown below does not wait on executor replies.
	g.relay.Close()

	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	if g.wsServer != nil {
		errs = appendCloseError(errs, "WebSocket shutdown", g.wsServer.Shutdown(ctx))
	}
	g.shutdownGRPCServer(ctx)
	g.extension.Wait()

	if g.idempotency != nil {
		g.idempotency.Close()
	}

	g.pending.Wait()
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

func (g *Gateway) closeStore() {
	if g.store != nil {
		_ = g.store.Close()
	}
}
