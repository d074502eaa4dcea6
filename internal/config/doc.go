// Package config handles configuration loading for dom-relay.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Missing files fall back to Default, which listens on the ports
// the browser extension expects (HTTP 6789, WebSocket 6790).
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from DOM_RELAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/dom-relay/relay.yaml
//  3. ~/.config/dom-relay/relay.yaml
//
// A .toml extension selects the TOML decoder.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${DOM_RELAY_JWT_SECRET}"
//
// # Legacy Variables
//
// ApplyEnv honours the variables written by the original bridge setup
// script, typically loaded from a .env file:
//
//	BRIDGE_PORT=6789      overrides the port of server.http_addr
//	WEBSOCKET_PORT=6790   overrides the port of server.ws_addr
//	LOG_LEVEL=info        overrides logging.level
//	DEBUG=true            forces logging.level to debug
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	relay:
//	  request_timeout: "30s"
//	  max_timeout: "5m"
//	extension:
//	  ping_interval: "5s"
//
// # Example
//
//	server:
//	  http_addr: "127.0.0.1:6789"
//	  ws_addr: "127.0.0.1:6790"
//	  grpc_addr: ""
//	relay:
//	  request_timeout: "30s"
//	  validate_selectors: true
//	database:
//	  path: "./history.db"
//	logging:
//	  level: "info"
//	  format: "text"
package config
