package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/placesync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string     base URL of the places service
//	-d string     path of the local SQLite database
//	-s duration   background sync interval (e.g. 15m)
//	-t string     bearer access token
//
// os.Args is filtered with flagx.FilterArgs so other layers' flags do not
// interfere. Panics on malformed values.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "base URL of the places service")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local database")
	fs.DurationVar(&cfg.SyncInterval, "s", cfg.SyncInterval, "background sync interval")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "bearer access token")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
