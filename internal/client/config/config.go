package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the TabKeeper CLI.
//
// Intervals and timeouts are time.Duration values; the JSON file spells them
// as strings like "30s".
type Config struct {
	ServerURL    string
	DatabasePath string
	// AccessToken, when set, signs the client in on start.
	AccessToken string

	OnlineCheckInterval time.Duration
	ProbeTimeout        time.Duration
	RequestTimeout      time.Duration
	RetryMinDelay       time.Duration
	RetryMaxDelay       time.Duration
	SyncInterval        time.Duration

	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabasePath = "tabkeeper.db"
	c.OnlineCheckInterval = 30 * time.Second
	c.ProbeTimeout = 3 * time.Second
	c.RequestTimeout = 15 * time.Second
	c.RetryMinDelay = time.Second
	c.RetryMaxDelay = time.Minute
	c.SyncInterval = time.Minute
	c.LogLevel = "info"
}

// Validate rejects settings the sync engine cannot work with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server url must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"online check interval": c.OnlineCheckInterval,
		"probe timeout":         c.ProbeTimeout,
		"request timeout":       c.RequestTimeout,
		"retry min delay":       c.RetryMinDelay,
		"sync interval":         c.SyncInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.RetryMaxDelay < c.RetryMinDelay {
		return fmt.Errorf("retry max delay %s is below retry min delay %s", c.RetryMaxDelay, c.RetryMinDelay)
	}
	return nil
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config (if any), then command-line flags. Later sources take
// precedence. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
