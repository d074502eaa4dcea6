// ABOUTME: gRPC server exposing the standard health service for supervisors
// ABOUTME: The extension service reports SERVING only while an extension is attached

package gateway

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// ExtensionHealthService is the health service name tracking the extension link.
const ExtensionHealthService = "dom-relay.extension"

// newHealthServer returns a health server with the process serving and no extension yet.
func newHealthServer() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ExtensionHealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// newGRPCServer creates a gRPC server with keepalive settings and the health service registered.
func newGRPCServer(hs *health.Server) *grpc.Server {
	srv := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv
}
