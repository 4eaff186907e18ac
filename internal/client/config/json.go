package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/tabkeeper/internal/flagx"
	"github.com/dmitrijs2005/tabkeeper/internal/timex"
)

// JSONConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields tell "absent" from "zero", so a partial file only overrides what it
// names.
type JSONConfig struct {
	ServerURL           *string         `json:"server_url"`
	DatabasePath        *string         `json:"database_path"`
	AccessToken         *string         `json:"access_token"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	ProbeTimeout        *timex.Duration `json:"probe_timeout"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	RetryMinDelay       *timex.Duration `json:"retry_min_delay"`
	RetryMaxDelay       *timex.Duration `json:"retry_max_delay"`
	SyncInterval        *timex.Duration `json:"sync_interval"`
	LogLevel            *string         `json:"log_level"`
}

// parseJSON overlays cfg with the JSON file named by -c/-config in args.
// Without such a flag it does nothing.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.AccessToken, jc.AccessToken)
	setString(&cfg.LogLevel, jc.LogLevel)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.ProbeTimeout, jc.ProbeTimeout)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.RetryMinDelay, jc.RetryMinDelay)
	setDuration(&cfg.RetryMaxDelay, jc.RetryMaxDelay)
	setDuration(&cfg.SyncInterval, jc.SyncInterval)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
