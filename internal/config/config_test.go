// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, legacy env overrides

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "relay.yaml", `
server:
  http_addr: "127.0.0.1:7000"
  ws_addr: "127.0.0.1:7001"
  grpc_addr: "127.0.0.1:7002"

relay:
  request_timeout: "10s"
  max_timeout: "2m"
  idempotency_ttl: "1m"
  validate_selectors: false

extension:
  ping_interval: "2s"
  write_timeout: "3s"
  allowed_origins:
    - "http://localhost:3000"

database:
  path: "./history.db"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:7000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:7000")
	}
	if cfg.Server.WSAddr != "127.0.0.1:7001" {
		t.Errorf("Server.WSAddr = %q, want %q", cfg.Server.WSAddr, "127.0.0.1:7001")
	}
	if cfg.Server.GRPCAddr != "127.0.0.1:7002" {
		t.Errorf("Server.GRPCAddr = %q, want %q", cfg.Server.GRPCAddr, "127.0.0.1:7002")
	}

	if cfg.Relay.RequestTimeout != 10*time.Second {
		t.Errorf("Relay.RequestTimeout = %v, want %v", cfg.Relay.RequestTimeout, 10*time.Second)
	}
	if cfg.Relay.MaxTimeout != 2*time.Minute {
		t.Errorf("Relay.MaxTimeout = %v, want %v", cfg.Relay.MaxTimeout, 2*time.Minute)
	}
	if cfg.Relay.IdempotencyTTL != time.Minute {
		t.Errorf("Relay.IdempotencyTTL = %v, want %v", cfg.Relay.IdempotencyTTL, time.Minute)
	}
	if cfg.Relay.ValidateSelectors {
		t.Error("Relay.ValidateSelectors = true, want false")
	}

	if cfg.Extension.PingInterval != 2*time.Second {
		t.Errorf("Extension.PingInterval = %v, want %v", cfg.Extension.PingInterval, 2*time.Second)
	}
	if cfg.Extension.WriteTimeout != 3*time.Second {
		t.Errorf("Extension.WriteTimeout = %v, want %v", cfg.Extension.WriteTimeout, 3*time.Second)
	}
	if len(cfg.Extension.AllowedOrigins) != 1 || cfg.Extension.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("Extension.AllowedOrigins = %v, want [http://localhost:3000]", cfg.Extension.AllowedOrigins)
	}

	if cfg.Database.Path != "./history.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./history.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	configPath := writeConfig(t, "relay.yaml", `
relay:
  request_timeout: "45s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := Default()
	if cfg.Server.HTTPAddr != def.Server.HTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want default %q", cfg.Server.HTTPAddr, def.Server.HTTPAddr)
	}
	if cfg.Relay.RequestTimeout != 45*time.Second {
		t.Errorf("Relay.RequestTimeout = %v, want %v", cfg.Relay.RequestTimeout, 45*time.Second)
	}
	if cfg.Relay.MaxTimeout != def.Relay.MaxTimeout {
		t.Errorf("Relay.MaxTimeout = %v, want default %v", cfg.Relay.MaxTimeout, def.Relay.MaxTimeout)
	}
	if !cfg.Relay.ValidateSelectors {
		t.Error("Relay.ValidateSelectors = false, want default true")
	}
	if cfg.Extension.PingInterval != 5*time.Second {
		t.Errorf("Extension.PingInterval = %v, want %v", cfg.Extension.PingInterval, 5*time.Second)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "relay.toml", `
[server]
http_addr = "127.0.0.1:8000"
ws_addr = "127.0.0.1:8001"

[relay]
request_timeout = "15s"

[logging]
level = "warn"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:8000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8000")
	}
	if cfg.Relay.RequestTimeout != 15*time.Second {
		t.Errorf("Relay.RequestTimeout = %v, want %v", cfg.Relay.RequestTimeout, 15*time.Second)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_RELAY_SECRET", "super-secret")
	t.Setenv("TEST_RELAY_DB", "/tmp/relay.db")

	configPath := writeConfig(t, "relay.yaml", `
database:
  path: "${TEST_RELAY_DB}"
auth:
  jwt_secret: "${TEST_RELAY_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "super-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "super-secret")
	}
	if cfg.Database.Path != "/tmp/relay.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/relay.db")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid duration",
			content: "relay:\n  request_timeout: \"soon\"\n",
			wantErr: "relay.request_timeout",
		},
		{
			name:    "max below default",
			content: "relay:\n  request_timeout: \"1m\"\n  max_timeout: \"10s\"\n",
			wantErr: "relay.max_timeout",
		},
		{
			name:    "bad log level",
			content: "logging:\n  level: \"chatty\"\n",
			wantErr: "logging.level",
		},
		{
			name:    "empty http addr",
			content: "server:\n  http_addr: \"\"\n",
			wantErr: "server.http_addr",
		},
		{
			name:    "malformed yaml",
			content: "server: [unclosed\n",
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "relay.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:6789" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:6789")
	}
	if cfg.Server.WSAddr != "127.0.0.1:6790" {
		t.Errorf("Server.WSAddr = %q, want %q", cfg.Server.WSAddr, "127.0.0.1:6790")
	}
	if cfg.Relay.RequestTimeout != 30*time.Second {
		t.Errorf("Relay.RequestTimeout = %v, want %v", cfg.Relay.RequestTimeout, 30*time.Second)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BRIDGE_PORT", "9100")
	t.Setenv("WEBSOCKET_PORT", "9101")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("DEBUG", "")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:9100" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9100")
	}
	if cfg.Server.WSAddr != "127.0.0.1:9101" {
		t.Errorf("Server.WSAddr = %q, want %q", cfg.Server.WSAddr, "127.0.0.1:9101")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}

	t.Setenv("DEBUG", "true")
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	t.Setenv("BRIDGE_PORT", "not-a-port")
	if err := Default().ApplyEnv(); err == nil {
		t.Error("ApplyEnv() expected error for invalid BRIDGE_PORT")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("DOM_RELAY_CONFIG", "/etc/relay.yaml")
	if got := DefaultPath(); got != "/etc/relay.yaml" {
		t.Errorf("DefaultPath() = %q, want %q", got, "/etc/relay.yaml")
	}

	t.Setenv("DOM_RELAY_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "dom-relay", "relay.yaml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	for _, name := range []string{"relay.yaml", "relay.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := Default()
			cfg.Relay.RequestTimeout = 12 * time.Second
			cfg.Auth.JWTSecret = "s3cret"
			if err := cfg.Save(path); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded.Relay.RequestTimeout != 12*time.Second {
				t.Errorf("Relay.RequestTimeout = %v, want %v", loaded.Relay.RequestTimeout, 12*time.Second)
			}
			if loaded.Auth.JWTSecret != "s3cret" {
				t.Errorf("Auth.JWTSecret = %q, want %q", loaded.Auth.JWTSecret, "s3cret")
			}
			if loaded.Server.WSAddr != cfg.Server.WSAddr {
				t.Errorf("Server.WSAddr = %q, want %q", loaded.Server.WSAddr, cfg.Server.WSAddr)
			}
		})
	}
}
