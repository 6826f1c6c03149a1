// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package backend opens a DHT sensor through the configured line driver.
package backend

import (
	"fmt"

	"github.com/GermanBionicSystems/dhtsense/dht"
	"github.com/GermanBionicSystems/dhtsense/dht/dhttest"
	"github.com/GermanBionicSystems/dhtsense/internal/config"
	"github.com/GermanBionicSystems/dhtsense/rpioline"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Open returns the sensor of variant v on pin, and the function releasing
// its line.
func Open(b config.Backend, pin config.Pin, v dht.Variant) (*dht.Dev, func() error, error) {
	switch b {
	case config.Periph, "":
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("backend: periph host init: %w", err)
		}
		p := gpioreg.ByName(string(pin))
		if p == nil {
			return nil, nil, fmt.Errorf("backend: no GPIO named %q", string(pin))
		}
		d, err := dht.NewGPIO(p, v)
		if err != nil {
			return nil, nil, err
		}
		return d, p.Halt, nil
	case config.RPIO:
		n, err := pin.BCM()
		if err != nil {
			return nil, nil, fmt.Errorf("backend: %w", err)
		}
		l, err := rpioline.Open(n)
		if err != nil {
			return nil, nil, err
		}
		d, err := dht.New(l, dht.SpinDelay{}, v)
		if err != nil {
			_ = l.Close()
			return nil, nil, err
		}
		return d, l.Close, nil
	case config.Sim:
		s := Simulated(v)
		d, err := dht.New(s, s, v)
		if err != nil {
			return nil, nil, err
		}
		return d, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("backend: unknown backend %q", string(b))
	}
}

// Simulated returns a simulated sensor reporting 21.5°C and 45%RH, as
// precisely as v allows.
func Simulated(v dht.Variant) *dhttest.Sensor {
	if v == dht.DHT11 {
		return dhttest.New(v, [4]byte{45, 0, 21, 5})
	}
	// 450 tenths of %RH, 215 tenths of °C.
	return dhttest.New(v, [4]byte{0x01, 0xc2, 0x00, 0xd7})
}
