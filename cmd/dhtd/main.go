// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// dhtd polls DHT sensors and serves their readings over HTTP, optionally
// storing them in sqlite and publishing them to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GermanBionicSystems/dhtsense/internal/app"
	"github.com/GermanBionicSystems/dhtsense/internal/config"
	"github.com/GermanBionicSystems/dhtsense/internal/logging"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func mainImpl() error {
	path := flag.String("config", "/etc/dhtd.toml", "configuration file")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log, os.Stderr, version)
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	log.Info("starting", "version", version, "config", *path, "sensors", len(cfg.Sensors))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx, cfg, log, nil); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped")
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "dhtd: %s.\n", err)
		os.Exit(1)
	}
}
