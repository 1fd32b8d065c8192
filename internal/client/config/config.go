package config

import (
	"time"

	"github.com/dmitrijs2005/placesync/internal/logging"
)

// BackoffConfig bounds the scheduler's retries of a failed sync pass.
type BackoffConfig struct {
	MaxAttempts    int           `env:"PLACESYNC_BACKOFF_MAX_ATTEMPTS"`
	InitialBackoff time.Duration `env:"PLACESYNC_BACKOFF_INITIAL"`
	Multiplier     float64       `env:"PLACESYNC_BACKOFF_MULTIPLIER"`
}

// Config holds runtime settings for the embedded sync client.
//
// Fields:
//   - ServerEndpointAddr: base URL of the places service, e.g. http://127.0.0.1:8080.
//   - AccessToken: bearer token sent with every places request.
//   - DatabasePath: SQLite file of the local store.
//   - SyncInterval: period of background sync passes.
//   - OnlineCheckInterval: how often an offline client checks whether the server is back.
//   - RequestTimeout: per-request HTTP timeout.
//   - PurgeDeleted: drop acknowledged tombstones after each pass.
type Config struct {
	ServerEndpointAddr  string        `env:"PLACESYNC_SERVER_ADDR"`
	AccessToken         string        `env:"PLACESYNC_ACCESS_TOKEN"`
	DatabasePath        string        `env:"PLACESYNC_DB_PATH"`
	SyncInterval        time.Duration `env:"PLACESYNC_SYNC_INTERVAL"`
	OnlineCheckInterval time.Duration `env:"PLACESYNC_ONLINE_CHECK_INTERVAL"`
	RequestTimeout      time.Duration `env:"PLACESYNC_REQUEST_TIMEOUT"`
	PurgeDeleted        bool          `env:"PLACESYNC_PURGE_DELETED"`
	Backoff             BackoffConfig
	Log                 logging.Config
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabasePath = "places.db"
	c.SyncInterval = 15 * time.Minute
	c.OnlineCheckInterval = time.Minute
	c.RequestTimeout = 30 * time.Second
	c.Backoff = BackoffConfig{MaxAttempts: 5, InitialBackoff: 2 * time.Second, Multiplier: 2}
	c.Log = logging.Config{Level: "info", Format: "json"}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
