// ABOUTME: Reacts to extension attach and detach events from the relay hub
// ABOUTME: Flips the gRPC extension health status and records extension sessions in history

package gateway

import (
	"context"

	"github.com/google/uuid"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/2389/dom-relay/internal/relay"
	"github.com/2389/dom-relay/internal/store"
)

// onHubEvent runs after every hub transition.
func (g *Gateway) onHubEvent(evt relay.Event) {
	g.syncHealth()

	switch evt.Kind {
	case relay.EventConnected:
		g.logger.Info("extension connected", "remote_addr", evt.Peer.RemoteAddr())
		g.openSession(evt)

	case relay.EventDisconnected:
		reason := "replaced"
		if evt.Reason != nil {
			reason = evt.Reason.Error()
		}
		g.logger.Info("extension disconnected",
			"remote_addr", evt.Peer.RemoteAddr(),
			"drained", evt.Drained,
			"reason", reason,
		)
		g.closeSession(evt, reason)
	}
}

// syncHealth sets the extension health status from the hub's current state.
// Events can be delivered out of order across goroutines, so the status is
// read from the hub rather than taken from the event.
func (g *Gateway) syncHealth() {
	g.healthMu.Lock()
	defer g.healthMu.Unlock()

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if g.relay.Hub().State() == relay.StateConnected {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(ExtensionHealthService, status)
}

func (g *Gateway) openSession(evt relay.Event) {
	if g.store == nil {
		return
	}
	sess := &store.ExtensionSession{
		ID:          uuid.NewString(),
		RemoteAddr:  evt.Peer.RemoteAddr(),
		ConnectedAt: evt.At.UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	if err := g.store.OpenSession(ctx, sess); err != nil {
		g.logger.Error("failed to record extension session", "error", err)
		return
	}

	g.sessionsMu.Lock()
	g.sessions[evt.Peer] = sess.ID
	g.sessionsMu.Unlock()
}

func (g *Gateway) closeSession(evt relay.Event, reason string) {
	if g.store == nil {
		return
	}
	g.sessionsMu.Lock()
	id, ok := g.sessions[evt.Peer]
	delete(g.sessions, evt.Peer)
	g.sessionsMu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	if err := g.store.CloseSession(ctx, id, evt.At.UTC(), evt.Drained, reason); err != nil {
		g.logger.Error("failed to close extension session", "error", err)
	}
}
