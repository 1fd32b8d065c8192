package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/placesync/internal/flagx"
	"github.com/dmitrijs2005/placesync/internal/logging"
	"github.com/dmitrijs2005/placesync/internal/timex"
)

// ConfigPathEnv names the variable consulted when no -c/-config flag is given.
const ConfigPathEnv = "PLACESYNC_CONFIG"

type JsonBackoff struct {
	MaxAttempts    int            `json:"max_attempts"`
	InitialBackoff timex.Duration `json:"initial_backoff"`
	Multiplier     float64        `json:"multiplier"`
}

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals may
// be strings like "15m" or integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	AccessToken         string         `json:"access_token"`
	DatabasePath        string         `json:"database_path"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	PurgeDeleted        bool           `json:"purge_deleted"`
	Backoff             JsonBackoff    `json:"backoff"`
	Log                 logging.Config `json:"log"`
}

// parseJson overlays Config with values loaded from a JSON file found via
// -c/-config or PLACESYNC_CONFIG. Keys missing from the file keep their
// current values. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(ConfigPathEnv)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	jc := JsonConfig{
		ServerEndpointAddr:  cfg.ServerEndpointAddr,
		AccessToken:         cfg.AccessToken,
		DatabasePath:        cfg.DatabasePath,
		SyncInterval:        timex.Duration{Duration: cfg.SyncInterval},
		OnlineCheckInterval: timex.Duration{Duration: cfg.OnlineCheckInterval},
		RequestTimeout:      timex.Duration{Duration: cfg.RequestTimeout},
		PurgeDeleted:        cfg.PurgeDeleted,
		Backoff: JsonBackoff{
			MaxAttempts:    cfg.Backoff.MaxAttempts,
			InitialBackoff: timex.Duration{Duration: cfg.Backoff.InitialBackoff},
			Multiplier:     cfg.Backoff.Multiplier,
		},
		Log: cfg.Log,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	cfg.AccessToken = jc.AccessToken
	cfg.DatabasePath = jc.DatabasePath
	cfg.SyncInterval = jc.SyncInterval.Duration
	cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	cfg.RequestTimeout = jc.RequestTimeout.Duration
	cfg.PurgeDeleted = jc.PurgeDeleted
	cfg.Backoff = BackoffConfig{
		MaxAttempts:    jc.Backoff.MaxAttempts,
		InitialBackoff: jc.Backoff.InitialBackoff.Duration,
		Multiplier:     jc.Backoff.Multiplier,
	}
	cfg.Log = jc.Log
}
