// ABOUTME: Configuration loading and parsing for switchboard
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete switchboard configuration
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RegistryConfig holds the server-record store location
type RegistryConfig struct {
	Path string `yaml:"path"`

	// Bootstrap settings for the seeded embedded ai server
	AgentCommand string   `yaml:"agent_command"`
	AgentArgs    []string `yaml:"agent_args"`
	Model        string   `yaml:"model"`
}

// ProtocolConfig holds protocol client timing configuration
type ProtocolConfig struct {
	HandshakeTimeout time.Duration `yaml:"-"`
	AskTimeout       time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HandshakeTimeoutRaw string `yaml:"handshake_timeout"`
	AskTimeoutRaw       string `yaml:"ask_timeout"`
}

// BridgeConfig holds bridge creation configuration
type BridgeConfig struct {
	// ForceDirect skips the manager-proxy attempt entirely
	ForceDirect bool `yaml:"force_direct"`
}

// AuditConfig holds audit sink configuration
type AuditConfig struct {
	Path     string `yaml:"path"`     // JSONL file; empty disables the file sink
	Database string `yaml:"database"` // SQLite file; empty disables the database sink
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{Path: "switchboard.db"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
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
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path is required")
	}

	if c.Protocol.HandshakeTimeout < 0 {
		return fmt.Errorf("protocol.handshake_timeout must not be negative")
	}
	if c.Protocol.AskTimeout < 0 {
		return fmt.Errorf("protocol.ask_timeout must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Protocol.HandshakeTimeoutRaw != "" {
		cfg.Protocol.HandshakeTimeout, err = time.ParseDuration(cfg.Protocol.HandshakeTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing handshake_timeout %q: %w", cfg.Protocol.HandshakeTimeoutRaw, err)
		}
	}

	if cfg.Protocol.AskTimeoutRaw != "" {
		cfg.Protocol.AskTimeout, err = time.ParseDuration(cfg.Protocol.AskTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing ask_timeout %q: %w", cfg.Protocol.AskTimeoutRaw, err)
		}
	}

	return nil
}
