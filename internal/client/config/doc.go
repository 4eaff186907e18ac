// Package config loads runtime configuration for the TabKeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the sync server
//	-d string   path to the local SQLite replica
//	-i int      online status check interval (seconds)
//	-t int      request timeout (seconds)
//	-l string   log level
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds. Every key is optional:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "database_path": "tabkeeper.db",
//	  "access_token": "",
//	  "online_check_interval": "30s",
//	  "probe_timeout": "3s",
//	  "request_timeout": "15s",
//	  "retry_min_delay": "1s",
//	  "retry_max_delay": "1m",
//	  "sync_interval": "1m",
//	  "log_level": "info"
//	}
package config
