// Package cli defines the cobra command tree for wanderlust.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/wanderlust/internal/config"
	"github.com/evcraddock/wanderlust/internal/db"
	"github.com/evcraddock/wanderlust/internal/geocode"
)

var (
	flagConfig string
	flagFormat string
	flagDB     string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wl",
		Short:         "Wanderlust vacation rental listings",
		Long:          "Wanderlust is a vacation rental marketplace. Run the web server, manage users and inspect listings from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default: ~/.config/wanderlust/config.yaml)")
	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default: ~/.wanderlust/wanderlust.db)")

	root.AddCommand(
		newServeCmd(),
		newUserCmd(),
		newListingsCmd(),
		newGeocodeCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig loads the config from the --config flag or default path, with
// --db taking precedence over the configured database path.
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Database.Path = flagDB
	}
	return cfg, nil
}

// openDB opens the configured SQLite database.
func openDB(cfg *config.Config) (*sql.DB, error) {
	return db.Open(cfg.Database.Path)
}

// newGeocoder builds the geocoding client, wrapped in the Redis cache when
// one is configured. The returned func releases the cache connection.
func newGeocoder(ctx context.Context, cfg *config.Config) (geocode.Geocoder, func(), error) {
	client, err := geocode.NewClient(cfg.Geocode.APIKey, cfg.Geocode.BaseURL, cfg.Geocode.Timeout)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Redis.URL == "" {
		return client, func() {}, nil
	}

	rdb, err := geocode.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("geocode cache enabled", "ttl", cfg.Redis.CacheTTL)

	closeFn := func() {
		if err := rdb.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
	}
	return geocode.NewCache(client, rdb, cfg.Redis.CacheTTL), closeFn, nil
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
