// SPDX-License-Identifier: MIT

// Command airwaved is the AirWave mission-control daemon. It ingests
// aviation message feeds, tracks live aircraft, records HFGCS voice
// traffic and detects Emergency Action Messages.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/airwaveio/airwave/internal/daemon"
	awlog "github.com/airwaveio/airwave/internal/log"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to overrides file (YAML)")
	dataDir := flag.String("data", "data", "data directory")
	opsAddr := flag.String("listen", ":8484", "ops listen address (health, metrics)")
	logLevel := flag.String("log-level", "", "override log level (debug|info|warn|error)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("airwaved %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until configuration is loaded.
	awlog.Configure(awlog.Config{Level: "info", Service: "airwave"})
	logger := awlog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("event", "startup.failed").Msg("cannot create data directory")
	}

	// Auto-load ${dataDir}/config.yaml when --config is not given, so a
	// UI-saved overrides file persists across restarts.
	effectiveConfig := *configPath
	if effectiveConfig == "" {
		autoPath := filepath.Join(*dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfig = autoPath
		}
	}

	d, err := daemon.New(daemon.Options{
		DBPath:     filepath.Join(*dataDir, "airwave.db"),
		ConfigFile: effectiveConfig,
		OpsAddr:    *opsAddr,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("event", "startup.failed").Msg("boot failed")
	}

	// Level precedence: --log-level flag, then configuration.
	level := *logLevel
	if level == "" {
		level = d.LogLevel()
	}
	awlog.Configure(awlog.Config{Level: level, Service: "airwave"})

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("data_dir", *dataDir).
		Str("config", effectiveConfig).
		Msg("starting airwaved")

	// SIGHUP re-reads the overrides file without a restart.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			logger.Info().Str("event", "config.sighup").Msg("reload requested")
			d.Reload()
		}
	}()

	if err := d.Run(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
	}
	logger.Info().Str("event", "shutdown.complete").Msg("goodbye")
}
