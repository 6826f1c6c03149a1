// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 10000
	writeWait           = 10 * time.Second
)

// handleHealthz is unhealthy when no sensor has ever been read and every
// sensor's last poll failed.
func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := a.src.Snapshot()
	ok, failing := 0, 0
	for _, st := range snap {
		if !st.Time.IsZero() {
			ok++
		}
		if st.Err != nil {
			failing++
		}
	}
	if len(snap) != 0 && ok == 0 && failing == len(snap) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "failing", "sensors": len(snap)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sensors": len(snap)})
}

func (a *api) handleSensors(w http.ResponseWriter, r *http.Request) {
	snap := a.src.Snapshot()
	out := make([]sensorView, 0, len(snap))
	for _, st := range snap {
		out = append(out, newSensorView(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleSensor(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	st, ok := a.src.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown sensor "+strconv.Quote(name))
		return
	}
	writeJSON(w, http.StatusOK, newSensorView(st))
}

func (a *api) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := a.src.Get(name); !ok {
		writeError(w, http.StatusNotFound, "unknown sensor "+strconv.Quote(name))
		return
	}
	if a.hist == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}
	samples, err := a.hist.Recent(r.Context(), name, limit)
	if err != nil {
		slog.Error("failed to load history", "sensor", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	out := make([]sampleView, 0, len(samples))
	for _, s := range samples {
		out = append(out, newSampleView(s))
	}
	writeJSON(w, http.StatusOK, out)
}

var upgrader = websocket.Upgrader{}

// handleStream sends the last reading of every sensor, then every new
// sample, until the client goes away.
func (a *api) handleStream(w http.ResponseWriter, r *http.Request) {
	samples, unsubscribe := a.src.Subscribe()
	defer unsubscribe()
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer c.Close()

	// The client sends nothing; reading detects when it leaves.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.NextReader(); err != nil {
				return
			}
		}
	}()

	for _, st := range a.src.Snapshot() {
		if st.Time.IsZero() {
			continue
		}
		if err := send(c, newSampleView(monitorSample(st))); err != nil {
			return
		}
	}
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			if err := send(c, newSampleView(s)); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func send(c *websocket.Conn, v sampleView) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.WriteJSON(v)
}
