// ABOUTME: HTTP handler that upgrades extension connections and pumps messages into the relay.
// ABOUTME: Enforces loopback-only access and extension origins before upgrading.

package extension

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/dom-relay/internal/relay"
)

// Defaults for Options fields left zero.
const (
	DefaultPingInterval = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	maxMessageSize      = 4 << 20
)

var extensionSchemes = []string{
	"chrome-extension://",
	"moz-extension://",
	"safari-web-extension://",
}

// Options configures the transport.
type Options struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	// ReadTimeout drops a silent peer. Defaults to three ping intervals.
	ReadTimeout time.Duration
	// AllowedOrigins are accepted in addition to extension origins.
	AllowedOrigins []string
	// AllowRemote disables the loopback-only check.
	AllowRemote bool
	Logger      *slog.Logger
}

// Handler accepts extension WebSocket connections for one relay.
type Handler struct {
	relay    *relay.Relay
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewHandler creates a Handler feeding r.
func NewHandler(r *relay.Relay, opts Options) *Handler {
	if opts.PingInterval == 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.ReadTimeout <= 0 && opts.PingInterval > 0 {
		opts.ReadTimeout = 3 * opts.PingInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		relay:  r,
		opts:   opts,
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeHTTP upgrades the request and serves the connection until it ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !h.opts.AllowRemote && !isLoopbackAddr(req.RemoteAddr) {
		h.logger.Warn("rejecting non-loopback extension connection", "remote", req.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("extension upgrade failed",
			"remote", req.RemoteAddr,
			"origin", req.Header.Get("Origin"),
			"error", err,
		)
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()
	h.serve(conn, req.RemoteAddr)
}

// Wait blocks until every connection served by h has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) serve(conn *websocket.Conn, addr string) {
	peer := newPeer(conn, addr, h.opts.WriteTimeout)
	conn.SetReadLimit(maxMessageSize)
	h.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		h.extendReadDeadline(conn)
		return nil
	})

	hub := h.relay.Hub()
	hub.Attach(peer)

	if h.opts.PingInterval > 0 {
		go h.pingLoop(peer)
	}

	err := h.readLoop(conn)
	if !hub.Detach(peer, err) {
		// Replaced by a newer connection; the hub already failed our requests.
		_ = peer.Close()
	}
}

func (h *Handler) readLoop(conn *websocket.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("closed by extension")
			}
			return err
		}
		h.extendReadDeadline(conn)
		h.relay.HandleMessage(msg)
	}
}

func (h *Handler) pingLoop(p *wsPeer) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				h.logger.Debug("ping failed", "peer", p.addr, "error", err)
				return
			}
		}
	}
}

func (h *Handler) extendReadDeadline(conn *websocket.Conn) {
	if h.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	}
}

func (h *Handler) checkOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, scheme := range extensionSchemes {
		if strings.HasPrefix(origin, scheme) {
			return true
		}
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func isLoopbackAddr(remote string) bool {
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
