// Package healthcheck parses probe flags and checks item service health.
// It is intended as a container readiness probe for the gRPC surface.
package healthcheck

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	entrypoint "github.com/plantworks/manufacturing/internal/platform/cmd"
	platformgrpc "github.com/plantworks/manufacturing/internal/platform/grpc"
	"github.com/plantworks/manufacturing/internal/platform/timeouts"
)

// Config holds health probe configuration.
type Config struct {
	Addr    string        `env:"MANUFACTURING_GRPC_ADDR" envDefault:"localhost:8080"`
	Service string        `env:"MANUFACTURING_HEALTH_SERVICE" envDefault:"items.runtime"`
	Timeout time.Duration `env:"MANUFACTURING_HEALTH_TIMEOUT" envDefault:"2s"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The item gRPC server address")
	fs.StringVar(&cfg.Service, "service", cfg.Service, "Health service name to probe; empty probes overall health")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Probe timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run dials the item service and waits for a serving health status.
func Run(ctx context.Context, cfg Config, logf func(string, ...any)) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server address is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.GRPCDial
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := platformgrpc.DialWithHealth(
		ctx,
		cfg.Addr,
		cfg.Service,
		timeout,
		logf,
		platformgrpc.DefaultClientDialOptions()...,
	)
	if err != nil {
		return fmt.Errorf("dial item service: %w", err)
	}
	return conn.Close()
}
