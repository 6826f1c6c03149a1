// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package httpapi

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/GermanBionicSystems/dhtsense/dht"
	"github.com/GermanBionicSystems/dhtsense/internal/monitor"
)

// values is a reading rounded to the sensor resolution.
type values struct {
	TemperatureC float64 `json:"temperature_c"`
	TemperatureF float64 `json:"temperature_f"`
	HumidityPct  float64 `json:"humidity_pct"`
}

func newValues(r dht.Reading) values {
	return values{
		TemperatureC: round(r.TemperatureCelsius(), 10),
		TemperatureF: round(r.TemperatureFahrenheit(), 100),
		HumidityPct:  round(r.HumidityPercent(), 10),
	}
}

func round(v float32, scale float64) float64 {
	return math.Round(float64(v)*scale) / scale
}

type sensorView struct {
	Name string `json:"name"`
	Type string `json:"type"`
	*values
	Time      *time.Time `json:"time,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorTime *time.Time `json:"error_time,omitempty"`
	Polls     uint64     `json:"polls"`
	Failures  uint64     `json:"failures"`
}

func newSensorView(st monitor.Status) sensorView {
	v := sensorView{
		Name:     st.Name,
		Type:     st.Variant.String(),
		Polls:    st.Polls,
		Failures: st.Failures,
	}
	if !st.Time.IsZero() {
		vals := newValues(st.Reading)
		v.values = &vals
		t := st.Time.UTC()
		v.Time = &t
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
		t := st.ErrTime.UTC()
		v.ErrorTime = &t
	}
	return v
}

type sampleView struct {
	Sensor string `json:"sensor"`
	values
	Time     time.Time `json:"time"`
	Attempts int       `json:"attempts,omitempty"`
}

func newSampleView(s monitor.Sample) sampleView {
	return sampleView{Sensor: s.Sensor, values: newValues(s.Reading), Time: s.Time.UTC(), Attempts: s.Attempts}
}

// monitorSample is the last reading of st as a sample.
func monitorSample(st monitor.Status) monitor.Sample {
	return monitor.Sample{Sensor: st.Name, Reading: st.Reading, Time: st.Time}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}
