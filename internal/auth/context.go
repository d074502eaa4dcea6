// ABOUTME: Authentication context for tracking the calling agent through request handlers
// ABOUTME: Provides WithAgent/AgentFromContext for propagating identity via context

package auth

import (
	"context"
)

type agentContextKey struct{}

// WithAgent returns a new context carrying the authenticated agent name.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentContextKey{}, agent)
}

// AgentFromContext returns the authenticated agent, or "" for anonymous requests.
func AgentFromContext(ctx context.Context) string {
	agent, _ := ctx.Value(agentContextKey{}).(string)
	return agent
}
