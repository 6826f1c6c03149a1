// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package httpapi serves the sensor state over HTTP.
//
//	GET /healthz
//	GET /sensors
//	GET /sensors/{name}
//	GET /sensors/{name}/history?limit=N
//	GET /stream                          websocket, one JSON sample per message
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/GermanBionicSystems/dhtsense/internal/monitor"
)

// Source is the live sensor state. *monitor.Monitor implements it.
type Source interface {
	Snapshot() []monitor.Status
	Get(name string) (monitor.Status, bool)
	Subscribe() (<-chan monitor.Sample, func())
}

// History is the sample store. *history.Store implements it.
type History interface {
	Recent(ctx context.Context, sensor string, limit int) ([]monitor.Sample, error)
}

// NewMux returns the API routes. hist may be nil when no history is kept.
func NewMux(src Source, hist History) *http.ServeMux {
	a := &api{src: src, hist: hist}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /sensors", a.handleSensors)
	mux.HandleFunc("GET /sensors/{name}", a.handleSensor)
	mux.HandleFunc("GET /sensors/{name}/history", a.handleHistory)
	mux.HandleFunc("GET /stream", a.handleStream)
	return mux
}

// NewServer returns a server for mux on addr, with request logging.
func NewServer(addr string, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           requestLogger(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type api struct {
	src  Source
	hist History
}
