// Package server parses item service flags and launches the service.
package server

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/plantworks/manufacturing/internal/app"
	entrypoint "github.com/plantworks/manufacturing/internal/platform/cmd"
	"github.com/plantworks/manufacturing/internal/platform/config"
)

// Config holds item service command configuration.
type Config struct {
	GRPCPort       int           `env:"MANUFACTURING_GRPC_PORT" envDefault:"8080" yaml:"grpc_port"`
	HTTPPort       int           `env:"MANUFACTURING_HTTP_PORT" envDefault:"8081" yaml:"http_port"`
	StorageDriver  string        `env:"MANUFACTURING_STORAGE_DRIVER" yaml:"storage_driver"`
	DBPath         string        `env:"MANUFACTURING_DB_PATH" envDefault:"data/items.db" yaml:"db_path"`
	DatabaseURL    string        `env:"MANUFACTURING_DATABASE_URL" yaml:"database_url"`
	SettleInterval time.Duration `env:"MANUFACTURING_SETTLE_INTERVAL" envDefault:"1s" yaml:"-"`
	ConfigFile     string        `env:"MANUFACTURING_CONFIG_FILE" yaml:"-"`
}

// ParseConfig parses environment, optional config file, and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if path := strings.TrimSpace(cfg.ConfigFile); path != "" {
		if err := config.ParseFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The item gRPC server port")
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The item HTTP server port")
	fs.StringVar(&cfg.StorageDriver, "storage-driver", cfg.StorageDriver, "Storage backend: sqlite or postgres")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection URL")
	fs.DurationVar(&cfg.SettleInterval, "settle-interval", cfg.SettleInterval, "Lifecycle settling cadence")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the item service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceItems, func(ctx context.Context) error {
		return app.Run(ctx, app.Config{
			GRPCPort:       cfg.GRPCPort,
			HTTPPort:       cfg.HTTPPort,
			StorageDriver:  cfg.StorageDriver,
			DBPath:         cfg.DBPath,
			DatabaseURL:    cfg.DatabaseURL,
			SettleInterval: cfg.SettleInterval,
		})
	})
}
