// Package config loads runtime configuration for the embedded sync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c, -config or PLACESYNC_CONFIG.
//  3. Environment variables (PLACESYNC_*, LOG_*), read with cleanenv.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     base URL of the places service
//	-d string     path of the local SQLite database
//	-s duration   background sync interval
//	-t string     bearer access token
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "15m" or
// integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "http://127.0.0.1:8080",
//	  "database_path": "places.db",
//	  "sync_interval": "15m",
//	  "online_check_interval": "1m",
//	  "request_timeout": "30s",
//	  "purge_deleted": false,
//	  "backoff": {"max_attempts": 5, "initial_backoff": "2s", "multiplier": 2},
//	  "log": {"level": "info", "format": "json", "file": "sync.log"}
//	}
package config
