package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/placesync/internal/flagx"
	"github.com/dmitrijs2005/placesync/internal/logging"
	"github.com/dmitrijs2005/placesync/internal/timex"
)

// ConfigPathEnv names the variable consulted when no -c/-config flag is given.
const ConfigPathEnv = "PLACESYNC_SERVER_CONFIG"

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Durations accept both strings such as "1s" and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	ShutdownTimeout             timex.Duration `json:"shutdown_timeout"`
	Log                         logging.Config `json:"log"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag, or by PLACESYNC_SERVER_CONFIG. Keys absent from the file keep
// their current values. If the file cannot be read or contains invalid JSON,
// the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(ConfigPathEnv)

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{
		EndpointAddrHTTP:            config.EndpointAddrHTTP,
		DatabaseDSN:                 config.DatabaseDSN,
		SecretKey:                   config.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: config.AccessTokenValidityDuration},
		ShutdownTimeout:             timex.Duration{Duration: config.ShutdownTimeout},
		Log:                         config.Log,
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.ShutdownTimeout = c.ShutdownTimeout.Duration
	config.Log = c.Log
}
