// Package main probes item service health for container orchestration.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	healthcmd "github.com/plantworks/manufacturing/internal/cmd/healthcheck"
	"github.com/plantworks/manufacturing/internal/platform/config"
)

func main() {
	cfg, err := healthcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[HEALTHCHECK] ")

	if err := healthcmd.Run(context.Background(), cfg, log.Printf); err != nil {
		config.Exitf("health check failed: %v", err)
	}
}
