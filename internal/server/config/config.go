// Package config loads the reference server's settings from flags, the
// environment and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "TABKEEPER"
	defaultHTTPAddress = "127.0.0.1:8080"
	defaultDataDir     = "data"
	defaultTokenTTL    = 30 * 24 * time.Hour
	defaultLogLevel    = "info"
	defaultMaxBodySize = 8 << 20
)

// Config keys shared by flag binding and environment lookup.
const (
	KeyHTTPAddress   = "http.address"
	KeyDataDir       = "database.dir"
	KeySigningSecret = "auth.signing_secret"
	KeyTokenTTL      = "token.ttl"
	KeyLogLevel      = "log.level"
	KeyMaxBodySize   = "http.max_body_bytes"
	KeyAllowedOrigin = "http.allowed_origins"
)

// AppConfig captures runtime configuration for the sync server.
type AppConfig struct {
	HTTPAddress    string
	DataDir        string
	SigningSecret  string
	TokenTTL       time.Duration
	LogLevel       string
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on v.
// TABKEEPER_AUTH_SIGNING_SECRET maps to auth.signing_secret and so on.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyHTTPAddress, defaultHTTPAddress)
	v.SetDefault(KeyDataDir, defaultDataDir)
	v.SetDefault(KeyTokenTTL, defaultTokenTTL)
	v.SetDefault(KeyLogLevel, defaultLogLevel)
	v.SetDefault(KeyMaxBodySize, defaultMaxBodySize)
	v.SetDefault(KeyAllowedOrigin, []string{})
}

// Load parses runtime configuration from v.
func Load(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    v.GetString(KeyHTTPAddress),
		DataDir:        v.GetString(KeyDataDir),
		SigningSecret:  v.GetString(KeySigningSecret),
		TokenTTL:       v.GetDuration(KeyTokenTTL),
		LogLevel:       v.GetString(KeyLogLevel),
		MaxBodyBytes:   v.GetInt64(KeyMaxBodySize),
		AllowedOrigins: v.GetStringSlice(KeyAllowedOrigin),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("%s is required", KeySigningSecret)
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("%s is required", KeyHTTPAddress)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%s must be positive", KeyTokenTTL)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%s must be positive", KeyMaxBodySize)
	}
	return nil
}
