// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/hlsgate/internal/config"
	"github.com/ManuGH/hlsgate/internal/daemon"
	gatelog "github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until config is loaded
	gatelog.Configure(gatelog.Config{
		Level:   "info",
		Service: "hlsgate",
		Version: version.Version,
	})
	logger := gatelog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	if path == "" {
		path = strings.TrimSpace(config.ParseString("HLSGATE_CONFIG", ""))
	}

	// ENV > File > Defaults
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", path).
		Interface("config", cfg.Redacted()).
		Msg("configuration loaded")

	app, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.failed").
			Msg("Startup failed. Please verify configuration and permissions.")
	}

	logger = gatelog.WithComponent("daemon")
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str("event", "daemon.exit").Msg("daemon stopped with error")
		stop()
		os.Exit(1)
	}
	logger.Info().Str("event", "daemon.exit").Msg("daemon stopped")
}
