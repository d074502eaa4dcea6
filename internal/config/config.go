// ABOUTME: Configuration loading and parsing for dom-relay
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete dom-relay configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Relay     RelayConfig     `yaml:"relay" toml:"relay"`
	Extension ExtensionConfig `yaml:"extension" toml:"extension"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds listener addresses
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	WSAddr   string `yaml:"ws_addr" toml:"ws_addr"`
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"` // empty disables gRPC health
}

// RelayConfig holds request correlation settings
type RelayConfig struct {
	RequestTimeout    time.Duration `yaml:"-" toml:"-"`
	MaxTimeout        time.Duration `yaml:"-" toml:"-"`
	IdempotencyTTL    time.Duration `yaml:"-" toml:"-"`
	ValidateSelectors bool          `yaml:"validate_selectors" toml:"validate_selectors"`

	// Raw string values for unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout" toml:"request_timeout"`
	MaxTimeoutRaw     string `yaml:"max_timeout" toml:"max_timeout"`
	IdempotencyTTLRaw string `yaml:"idempotency_ttl" toml:"idempotency_ttl"`
}

// ExtensionConfig holds executor transport settings
type ExtensionConfig struct {
	PingInterval   time.Duration `yaml:"-" toml:"-"`
	WriteTimeout   time.Duration `yaml:"-" toml:"-"`
	AllowedOrigins []string      `yaml:"allowed_origins" toml:"allowed_origins"`

	PingIntervalRaw string `yaml:"ping_interval" toml:"ping_interval"`
	WriteTimeoutRaw string `yaml:"write_timeout" toml:"write_timeout"`
}

// DatabaseConfig holds action history storage configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"` // empty disables history
}

// AuthConfig holds agent API authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"` // empty disables auth
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file exists.
// The ports match the browser extension's defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:6789",
			WSAddr:   "127.0.0.1:6790",
		},
		Relay: RelayConfig{
			RequestTimeout:    30 * time.Second,
			MaxTimeout:        5 * time.Minute,
			IdempotencyTTL:    5 * time.Minute,
			ValidateSelectors: true,
		},
		Extension: ExtensionConfig{
			PingInterval: 5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Unset fields keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	cfg.clearRaw()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// DefaultPath returns where the config file lives.
// Priority: DOM_RELAY_CONFIG env var > XDG_CONFIG_HOME/dom-relay/relay.yaml > ~/.config/dom-relay/relay.yaml
func DefaultPath() string {
	if envPath := os.Getenv("DOM_RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "dom-relay", "relay.yaml")
}

// ApplyEnv applies the legacy bridge environment variables on top of the
// loaded configuration: BRIDGE_PORT, WEBSOCKET_PORT, DEBUG and LOG_LEVEL.
func (c *Config) ApplyEnv() error {
	if port := os.Getenv("BRIDGE_PORT"); port != "" {
		addr, err := withPort(c.Server.HTTPAddr, port)
		if err != nil {
			return fmt.Errorf("BRIDGE_PORT: %w", err)
		}
		c.Server.HTTPAddr = addr
	}
	if port := os.Getenv("WEBSOCKET_PORT"); port != "" {
		addr, err := withPort(c.Server.WSAddr, port)
		if err != nil {
			return fmt.Errorf("WEBSOCKET_PORT: %w", err)
		}
		c.Server.WSAddr = addr
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if debug, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && debug {
		c.Logging.Level = "debug"
	}
	return c.Validate()
}

func withPort(addr, port string) (string, error) {
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return "", fmt.Errorf("invalid port %q", port)
	}
	host := "127.0.0.1"
	if addr != "" {
		if h, _, err := net.SplitHostPort(addr); err == nil {
			host = h
		}
	}
	return net.JoinHostPort(host, port), nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.WSAddr == "" {
		return fmt.Errorf("server.ws_addr is required")
	}
	if c.Relay.RequestTimeout <= 0 {
		return fmt.Errorf("relay.request_timeout must be positive")
	}
	if c.Relay.MaxTimeout > 0 && c.Relay.MaxTimeout < c.Relay.RequestTimeout {
		return fmt.Errorf("relay.max_timeout (%s) is less than relay.request_timeout (%s)",
			c.Relay.MaxTimeout, c.Relay.RequestTimeout)
	}
	if c.Extension.PingInterval < 0 {
		return fmt.Errorf("extension.ping_interval must not be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

func (c *Config) clearRaw() {
	c.Relay.RequestTimeoutRaw = ""
	c.Relay.MaxTimeoutRaw = ""
	c.Relay.IdempotencyTTLRaw = ""
	c.Extension.PingIntervalRaw = ""
	c.Extension.WriteTimeoutRaw = ""
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"relay.request_timeout", cfg.Relay.RequestTimeoutRaw, &cfg.Relay.RequestTimeout},
		{"relay.max_timeout", cfg.Relay.MaxTimeoutRaw, &cfg.Relay.MaxTimeout},
		{"relay.idempotency_ttl", cfg.Relay.IdempotencyTTLRaw, &cfg.Relay.IdempotencyTTL},
		{"extension.ping_interval", cfg.Extension.PingIntervalRaw, &cfg.Extension.PingInterval},
		{"extension.write_timeout", cfg.Extension.WriteTimeoutRaw, &cfg.Extension.WriteTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

// Save writes c to path as YAML (or TOML for .toml paths), creating parent
// directories. Durations are written in time.Duration string form.
func (c *Config) Save(path string) error {
	out := *c
	out.Relay.RequestTimeoutRaw = c.Relay.RequestTimeout.String()
	out.Relay.MaxTimeoutRaw = c.Relay.MaxTimeout.String()
	out.Relay.IdempotencyTTLRaw = c.Relay.IdempotencyTTL.String()
	out.Extension.PingIntervalRaw = c.Extension.PingInterval.String()
	out.Extension.WriteTimeoutRaw = c.Extension.WriteTimeout.String()

	var buf strings.Builder
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.NewEncoder(&buf).Encode(&out); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	} else {
		data, err := yaml.Marshal(&out)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		buf.Write(data)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(buf.String()), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
