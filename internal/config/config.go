// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the dhtd configuration file.
//
// The file is TOML:
//
//	[listener]
//	ip = "::1"
//	port = 9742
//
//	[sensors]
//	foo = { type = "DHT11", pin = 2 }
//	bar = { type = "DHT22", pin = "GPIO5", interval = "5s", backend = "rpio" }
//
// Only [sensors] is required.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/GermanBionicSystems/dhtsense/dht"
)

// Defaults.
const (
	DefaultPort     = 9742
	DefaultMQTTPort = 1883
	DefaultInterval = 10 * time.Second
	DefaultRetries  = 3
)

// App is the whole configuration.
type App struct {
	Listener Listener          `toml:"listener"`
	Log      Log               `toml:"log"`
	MQTT     MQTT              `toml:"mqtt"`
	History  History           `toml:"history"`
	Sensors  map[string]Sensor `toml:"sensors"`
}

// Listener is the address of the HTTP API.
type Listener struct {
	IP   netip.Addr `toml:"ip"`
	Port uint16     `toml:"port"`
}

// Addr returns the address to listen on, e.g. "[::1]:9742".
func (l Listener) Addr() string {
	return netip.AddrPortFrom(l.IP, l.Port).String()
}

// Log selects the log level and format.
type Log struct {
	// Level is one of debug, info, warn or error.
	Level string `toml:"level"`
	// Format is text or json.
	Format string `toml:"format"`
}

// MQTT is the broker readings are published to. Publishing is disabled when
// Broker is empty.
type MQTT struct {
	Broker   string `toml:"broker"`
	Port     uint16 `toml:"port"`
	ClientID string `toml:"client_id"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Topic    string `toml:"topic"`
}

// Enabled returns true if a broker is configured.
func (m MQTT) Enabled() bool {
	return m.Broker != ""
}

// URL returns the broker URL for the paho client.
func (m MQTT) URL() string {
	return "tcp://" + net.JoinHostPort(m.Broker, strconv.Itoa(int(m.Port)))
}

// History is the sqlite database readings are stored in. Disabled when Path
// is empty.
type History struct {
	Path string `toml:"path"`
}

// Enabled returns true if a database path is configured.
func (h History) Enabled() bool {
	return h.Path != ""
}

// Backend selects how a sensor's data line is driven.
type Backend string

// Backends.
const (
	// Periph uses periph.io's host drivers.
	Periph Backend = "periph"
	// RPIO maps the Raspberry Pi GPIO registers directly.
	RPIO Backend = "rpio"
	// Sim is a simulated sensor, for testing without hardware.
	Sim Backend = "sim"
)

// Sensor is one DHT sensor.
type Sensor struct {
	Type     dht.Variant `toml:"type"`
	Pin      Pin         `toml:"pin"`
	Backend  Backend     `toml:"backend"`
	Interval Duration    `toml:"interval"`
	Retries  int         `toml:"retries"`
}

// Pin is a GPIO name as known to periph's gpioreg, e.g. "GPIO4". A bare
// number in the file is the BCM number.
type Pin string

// UnmarshalTOML accepts an integer or a string.
func (p *Pin) UnmarshalTOML(v interface{}) error {
	switch v := v.(type) {
	case int64:
		if v < 0 {
			return fmt.Errorf("invalid pin %d", v)
		}
		*p = Pin(strconv.FormatInt(v, 10))
	case string:
		if v == "" {
			return errors.New("empty pin")
		}
		*p = Pin(v)
	default:
		return fmt.Errorf("invalid pin %v", v)
	}
	return nil
}

// BCM returns the BCM number of the pin, for names like "4", "GPIO4" or
// "BCM4".
func (p Pin) BCM() (int, error) {
	s := strings.ToUpper(string(p))
	for _, prefix := range []string{"GPIO", "BCM"} {
		s = strings.TrimPrefix(s, prefix)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("pin %q has no BCM number", string(p))
	}
	return n, nil
}

// Duration is a time.Duration written as a string, e.g. "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads and validates the file at path.
func Load(path string) (*App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(b)
}

// Parse parses and validates a configuration. DHTD_LOG_LEVEL, if set,
// overrides the log level.
func Parse(b []byte) (*App, error) {
	a := &App{}
	md, err := toml.Decode(string(b), a)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if u := md.Undecoded(); len(u) != 0 {
		keys := make([]string, len(u))
		for i, k := range u {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys %s", strings.Join(keys, ", "))
	}
	a.setDefaults(md)
	if lvl := strings.TrimSpace(os.Getenv("DHTD_LOG_LEVEL")); lvl != "" {
		a.Log.Level = lvl
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) setDefaults(md toml.MetaData) {
	if !md.IsDefined("listener", "ip") {
		a.Listener.IP = netip.IPv6Loopback()
	}
	if !md.IsDefined("listener", "port") {
		a.Listener.Port = DefaultPort
	}
	if a.Log.Level == "" {
		a.Log.Level = "info"
	}
	if a.Log.Format == "" {
		a.Log.Format = "text"
	}
	if a.MQTT.Port == 0 {
		a.MQTT.Port = DefaultMQTTPort
	}
	if a.MQTT.ClientID == "" {
		a.MQTT.ClientID = "dhtd"
	}
	if a.MQTT.Topic == "" {
		a.MQTT.Topic = "dht"
	}
	for name, s := range a.Sensors {
		if s.Backend == "" {
			s.Backend = Periph
		}
		if s.Interval.Duration == 0 {
			s.Interval.Duration = DefaultInterval
		}
		if !md.IsDefined("sensors", name, "retries") {
			s.Retries = DefaultRetries
		}
		a.Sensors[name] = s
	}
}

// Validate checks the configuration.
func (a *App) Validate() error {
	var errs []error
	if !a.Listener.IP.IsValid() {
		errs = append(errs, errors.New("listener: ip is required"))
	}
	if a.Listener.Port == 0 {
		errs = append(errs, errors.New("listener: port must not be 0"))
	}
	if _, err := ParseLevel(a.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if a.Log.Format != "text" && a.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log: invalid format %q (allowed: text, json)", a.Log.Format))
	}
	if len(a.Sensors) == 0 {
		errs = append(errs, errors.New("sensors: at least one sensor is required"))
	}
	for _, name := range a.Names() {
		s := a.Sensors[name]
		if s.Type != dht.DHT11 && s.Type != dht.DHT22 {
			errs = append(errs, fmt.Errorf("sensors.%s: type is required", name))
			continue
		}
		if s.Pin == "" {
			errs = append(errs, fmt.Errorf("sensors.%s: pin is required", name))
		}
		switch s.Backend {
		case Periph, Sim:
		case RPIO:
			if _, err := s.Pin.BCM(); err != nil {
				errs = append(errs, fmt.Errorf("sensors.%s: %w", name, err))
			}
		default:
			errs = append(errs, fmt.Errorf("sensors.%s: invalid backend %q (allowed: periph, rpio, sim)", name, s.Backend))
		}
		if minimum := s.Type.MinInterval(); s.Interval.Duration < minimum {
			errs = append(errs, fmt.Errorf("sensors.%s: interval %s is shorter than the %s minimum of %s", name, s.Interval, s.Type, minimum))
		}
		if s.Retries < 0 {
			errs = append(errs, fmt.Errorf("sensors.%s: retries must not be negative", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Names returns the sensor names, sorted.
func (a *App) Names() []string {
	names := make([]string, 0, len(a.Sensors))
	for name := range a.Sensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseLevel converts a log level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid level %q (allowed: debug, info, warn, error)", s)
	}
}
