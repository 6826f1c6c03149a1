// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rpioline drives a DHT data line through the Raspberry Pi GPIO
// registers mapped from /dev/gpiomem, without periph's host drivers.
//
// Register access is a few nanoseconds per call which leaves plenty of
// headroom within the 1µs sampling tick.
package rpioline

import (
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/dhtsense/dht"
	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/gpio"
)

// The register mapping is shared by every open Line.
var (
	mu   sync.Mutex
	refs int
)

// Line is a BCM GPIO used as an open-drain DHT data line.
type Line struct {
	n   int
	pin rpio.Pin

	mu     sync.Mutex
	closed bool
}

// Open maps the GPIO registers, if needed, and returns BCM pin n. The line is
// released high.
func Open(n int) (*Line, error) {
	if n < 0 || n > 53 {
		return nil, fmt.Errorf("rpioline: invalid BCM pin %d", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if refs == 0 {
		if err := rpio.Open(); err != nil {
			return nil, fmt.Errorf("rpioline: map GPIO registers: %w", err)
		}
	}
	refs++
	l := &Line{n: n, pin: rpio.Pin(n)}
	l.release()
	return l, nil
}

// Level implements dht.Pin.
func (l *Line) Level() (gpio.Level, error) {
	return gpio.Level(l.pin.Read() == rpio.High), nil
}

// Out implements dht.Pin.
func (l *Line) Out(v gpio.Level) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return fmt.Errorf("rpioline: %s is closed", l)
	}
	if v == gpio.High {
		l.release()
		return nil
	}
	// Set the output latch before switching direction so the line never
	// glitches high.
	l.pin.Low()
	l.pin.Output()
	return nil
}

func (l *Line) release() {
	l.pin.Input()
	l.pin.PullUp()
}

// Close releases the line and unmaps the registers once no Line uses them.
func (l *Line) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.release()
	mu.Lock()
	defer mu.Unlock()
	refs--
	if refs == 0 {
		if err := rpio.Close(); err != nil {
			return fmt.Errorf("rpioline: unmap GPIO registers: %w", err)
		}
	}
	return nil
}

func (l *Line) String() string {
	return fmt.Sprintf("BCM%d", l.n)
}

var _ dht.Pin = &Line{}
