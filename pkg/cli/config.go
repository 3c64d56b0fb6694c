package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the configuration directory under the home directory.
	DefaultBaseDir = ".wstunnel"
	// DefaultConfigFile is the default configuration filename.
	DefaultConfigFile = "config.yaml"
	// DefaultListenHost is the host the client binds its HTTP endpoint to.
	DefaultListenHost = "localhost"
)

// Config holds the tunnel settings that are not positional arguments.
type Config struct {
	// ReconnectDelay is the pause between server reconnect attempts, in
	// time.ParseDuration syntax. Empty means the tunnel default.
	ReconnectDelay string `yaml:"reconnect_delay,omitempty" json:"reconnect_delay,omitempty"`

	// ReadBuffer is the chunk size used to read local connections.
	ReadBuffer int `yaml:"read_buffer,omitempty" json:"read_buffer,omitempty"`

	// ListenHost is the interface the client endpoint and TCP listener bind
	// to.
	ListenHost string `yaml:"listen_host,omitempty" json:"listen_host,omitempty"`

	path string
}

// DefaultConfigPath returns ~/.wstunnel/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cli: home directory: %w", err)
	}
	return filepath.Join(home, DefaultBaseDir, DefaultConfigFile), nil
}

// LoadConfig reads the configuration at path, or at DefaultConfigPath when
// path is empty. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	cfg := &Config{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg.withDefaults(), nil
		}
		return nil, fmt.Errorf("cli: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parse config %s: %w", path, err)
	}
	if _, err := cfg.Delay(); err != nil {
		return nil, err
	}
	if cfg.ReadBuffer < 0 {
		return nil, fmt.Errorf("cli: read_buffer must not be negative, got %d", cfg.ReadBuffer)
	}
	return cfg.withDefaults(), nil
}

func (c *Config) withDefaults() *Config {
	if c.ListenHost == "" {
		c.ListenHost = DefaultListenHost
	}
	return c
}

// Delay parses ReconnectDelay. It returns zero when unset.
func (c *Config) Delay() (time.Duration, error) {
	if c.ReconnectDelay == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ReconnectDelay)
	if err != nil {
		return 0, fmt.Errorf("cli: reconnect_delay: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("cli: reconnect_delay must not be negative, got %s", d)
	}
	return d, nil
}

// Keys lists the settings accepted by Set.
var Keys = []string{"reconnect_delay", "read_buffer", "listen_host"}

// Set validates and assigns one setting by its YAML key. An empty value
// resets the setting to its default.
func (c *Config) Set(key, value string) error {
	switch key {
	case "reconnect_delay":
		old := c.ReconnectDelay
		c.ReconnectDelay = value
		if _, err := c.Delay(); err != nil {
			c.ReconnectDelay = old
			return err
		}
	case "read_buffer":
		if value == "" {
			c.ReadBuffer = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("cli: read_buffer must be a non-negative integer, got %q", value)
		}
		c.ReadBuffer = n
	case "listen_host":
		c.ListenHost = value
		c.withDefaults()
	default:
		return fmt.Errorf("cli: unknown config key %q", key)
	}
	return nil
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cli: marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("cli: create config directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
