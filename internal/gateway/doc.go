// Package gateway orchestrates the dom-relay server components.
//
// # Overview
//
// The gateway owns the relay, the extension WebSocket handler, the optional
// history store, the idempotency cache and every listener. It is the only
// package that knows about all of them.
//
// # HTTP API
//
// The agent API is served on http_addr by a chi router:
//
//   - POST /execute - Run one read, write or click and wait for its result
//   - GET /health - Liveness with extension state
//   - GET /health/ready - 200 only while an extension is attached
//   - GET /status - Relay snapshot with cumulative counters
//   - GET /history - Recorded actions (when database.path is set)
//   - GET /history/{id} - One recorded action
//   - DELETE /history?before= - Prune old records
//   - GET /sessions - Recorded extension connections
//   - GET /extension - WebSocket upgrade for the extension
//
// POST /execute answers 200 with a result body for every terminal outcome,
// including failures. Malformed or invalid requests get 400 with the same
// result shape. An Idempotency-Key header replays the cached result of an
// earlier identical call, or 409 while that call is still waiting.
//
// # Listeners
//
// The extension may also connect to ws_addr, where the handler is mounted at
// every path. When grpc_addr is set, a gRPC server exposes the standard
// health service; "dom-relay.extension" reports SERVING while attached.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//	...
//	cancel()
//
// Run performs a graceful shutdown when ctx ends: in-flight requests fail
// with "Extension disconnected" and the history store is closed last.
package gateway
