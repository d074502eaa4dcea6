// Package extension is the WebSocket transport between the relay and the
// browser extension that executes actions.
//
// # Overview
//
// The extension dials the relay and keeps one WebSocket open. Handler
// upgrades the request, attaches the connection to the relay's hub as the
// current executor, and runs a read loop that feeds every message to the
// relay's demultiplexer. When the read loop ends, for any reason, the
// connection is detached and its pending requests fail.
//
// # Access control
//
// Only loopback clients are accepted. The Origin header must be empty, a
// browser extension origin (chrome-extension://, moz-extension://,
// safari-web-extension://), or one of the configured extra origins.
//
// # Liveness
//
// The relay sends WebSocket ping frames every PingInterval. Any inbound
// frame, including the pong, extends the read deadline; a peer that stays
// silent for ReadTimeout is dropped.
package extension
