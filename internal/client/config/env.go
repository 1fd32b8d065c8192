package config

import "github.com/ilyakaznacheev/cleanenv"

// parseEnv overlays Config with the PLACESYNC_* and LOG_* variables that are
// set. Unset variables leave the field alone. Panics on malformed values.
func parseEnv(cfg *Config) {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		panic(err)
	}
}
