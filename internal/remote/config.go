package remote

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig describes one configured tool server.
type ServerConfig struct {
	// ID is the unique server identifier.
	ID string `yaml:"id"`
	// Prefix is prepended to every tool name from this server (prefix_name).
	// Empty means tools keep their bare names.
	Prefix string `yaml:"prefix,omitempty"`
	// Spec describes how to reach the server.
	Spec LaunchSpec `yaml:",inline"`
	// Enabled toggles whether the daemon connects this server at startup.
	Enabled bool `yaml:"enabled"`
}

// Config holds the configured tool servers.
type Config struct {
	Servers []ServerConfig `yaml:"servers"`
}

// DefaultConfig returns an empty server list.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads server configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromHome loads server configuration from ~/.relay/servers.yaml.
func LoadConfigFromHome() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	path := filepath.Join(home, ".relay", "servers.yaml")
	return LoadConfig(path)
}

// SaveConfig saves server configuration to a YAML file, creating parent
// directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// SaveConfigToHome saves server configuration to ~/.relay/servers.yaml.
func SaveConfigToHome(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("getting home dir: %w", err)
	}
	path := filepath.Join(home, ".relay", "servers.yaml")
	return SaveConfig(path, cfg)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, srv := range c.Servers {
		if srv.ID == "" {
			return fmt.Errorf("server %d: id cannot be empty", i)
		}
		if seen[srv.ID] {
			return fmt.Errorf("duplicate server id %q", srv.ID)
		}
		seen[srv.ID] = true

		if srv.Spec.Command == "" && srv.Spec.Endpoint == "" {
			return fmt.Errorf("server %q: either command or endpoint is required", srv.ID)
		}
	}
	return nil
}

// Find returns the config entry for id.
func (c *Config) Find(id string) (ServerConfig, bool) {
	for _, srv := range c.Servers {
		if srv.ID == id {
			return srv, true
		}
	}
	return ServerConfig{}, false
}

// Upsert adds or replaces the entry with the same id.
func (c *Config) Upsert(srv ServerConfig) {
	for i := range c.Servers {
		if c.Servers[i].ID == srv.ID {
			c.Servers[i] = srv
			return
		}
	}
	c.Servers = append(c.Servers, srv)
}

// Remove deletes the entry with the given id and reports whether it existed.
func (c *Config) Remove(id string) bool {
	for i := range c.Servers {
		if c.Servers[i].ID == id {
			c.Servers = append(c.Servers[:i], c.Servers[i+1:]...)
			return true
		}
	}
	return false
}
