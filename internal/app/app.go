// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package app wires the dhtd daemon together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/GermanBionicSystems/dhtsense/internal/backend"
	"github.com/GermanBionicSystems/dhtsense/internal/config"
	"github.com/GermanBionicSystems/dhtsense/internal/history"
	"github.com/GermanBionicSystems/dhtsense/internal/httpapi"
	"github.com/GermanBionicSystems/dhtsense/internal/monitor"
	"github.com/GermanBionicSystems/dhtsense/internal/mqttpub"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Run opens the sensors and outputs in cfg and serves until ctx is done.
// ready, if not nil, receives the HTTP listener address once serving.
func Run(ctx context.Context, cfg *config.App, log *slog.Logger, ready chan<- net.Addr) (err error) {
	var closers []func() error
	defer func() {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		err = errors.Join(append([]error{err}, errs...)...)
	}()

	sensors := make([]monitor.Sensor, 0, len(cfg.Sensors))
	for _, name := range cfg.Names() {
		s := cfg.Sensors[name]
		d, release, err := backend.Open(s.Backend, s.Pin, s.Type)
		if err != nil {
			return fmt.Errorf("sensor %s: %w", name, err)
		}
		closers = append(closers, release)
		log.Info("sensor opened", "sensor", name, "type", s.Type, "pin", string(s.Pin), "backend", string(s.Backend), "interval", s.Interval.Duration)
		sensors = append(sensors, monitor.Sensor{
			Name:     name,
			Reader:   d,
			Variant:  s.Type,
			Interval: s.Interval.Duration,
			Retries:  s.Retries,
		})
	}

	var sinks []monitor.Sink
	var hist httpapi.History
	if cfg.History.Enabled() {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		closers = append(closers, store.Close)
		sinks = append(sinks, store)
		hist = store
		log.Info("history enabled", "path", cfg.History.Path)
	}
	if cfg.MQTT.Enabled() {
		pub := mqttpub.New(cfg.MQTT, log)
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := pub.Connect(connectCtx); err != nil {
			// The client keeps retrying in the background.
			log.Warn("mqtt connection failed (continuing)", "error", err)
		}
		cancel()
		closers = append(closers, pub.Close)
		sinks = append(sinks, pub)
	}

	mon, err := monitor.New(log, sensors, sinks...)
	if err != nil {
		return err
	}

	srv := httpapi.NewServer(cfg.Listener.Addr(), httpapi.NewMux(mon, hist))
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("http listening", "addr", ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mon.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("http shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
