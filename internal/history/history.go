// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package history stores samples in a sqlite database.
//
// The four data bytes of each reading are kept as sent by the sensor, next to
// the converted values, so a reading can be rebuilt exactly.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/GermanBionicSystems/dhtsense/common"
	"github.com/GermanBionicSystems/dhtsense/dht"
	"github.com/GermanBionicSystems/dhtsense/internal/monitor"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const insertSQL = `INSERT INTO readings (sensor, ts, variant, raw, temperature_c, humidity_pct, attempts) VALUES (?, ?, ?, ?, ?, ?, ?)`

const recentSQL = `SELECT sensor, ts, variant, raw, attempts FROM readings WHERE sensor = ? ORDER BY ts DESC, id DESC LIMIT ?`

// tsLayout is fixed width so that timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a sample database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" is an in-memory
// database.
func Open(path string) (*Store, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	// One writer; an in-memory database also exists only once per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &Store{db: db}, nil
}

func buildDSN(path string) (string, error) {
	if path == "" {
		return "", errors.New("history: path is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	if dir := filepath.Dir(strings.TrimPrefix(path, "file:")); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("history: mkdir %s: %w", dir, err)
		}
	}
	params := "_busy_timeout=5000&_journal_mode=WAL"
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + params, nil
	}
	return "file:" + path + "?" + params, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements monitor.Sink.
func (s *Store) Record(ctx context.Context, smp monitor.Sample) error {
	raw := smp.Reading.Bytes()
	_, err := s.db.ExecContext(ctx, insertSQL,
		smp.Sensor,
		smp.Time.UTC().Format(tsLayout),
		smp.Reading.Variant().String(),
		raw[:],
		smp.Reading.TemperatureCelsius(),
		smp.Reading.HumidityPercent(),
		smp.Attempts,
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit samples of sensor, newest first.
func (s *Store) Recent(ctx context.Context, sensor string, limit int) ([]monitor.Sample, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("history: invalid limit %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, recentSQL, sensor, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close history rows", "error", err)
		}
	}()
	var out []monitor.Sample
	for rows.Next() {
		var smp monitor.Sample
		var ts, variant string
		var raw []byte
		if err := rows.Scan(&smp.Sensor, &ts, &variant, &raw, &smp.Attempts); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if smp.Time, err = time.Parse(tsLayout, ts); err != nil {
			return nil, fmt.Errorf("history: parse timestamp %q: %w", ts, err)
		}
		if smp.Reading, err = rebuild(variant, raw); err != nil {
			return nil, err
		}
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}

// rebuild turns stored data bytes back into a Reading.
func rebuild(variant string, raw []byte) (dht.Reading, error) {
	v, err := dht.ParseVariant(variant)
	if err != nil {
		return dht.Reading{}, fmt.Errorf("history: %w", err)
	}
	if len(raw) != 4 {
		return dht.Reading{}, fmt.Errorf("history: invalid raw reading of %d bytes", len(raw))
	}
	return dht.Decode([5]byte{raw[0], raw[1], raw[2], raw[3], common.Sum8(raw)}, v)
}

var _ monitor.Sink = &Store{}
