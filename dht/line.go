// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3/cpu"
)

// Pin is the data line of the sensor. The line is open-drain with a pull-up:
// Out(gpio.High) releases it and Out(gpio.Low) drives it to ground.
type Pin interface {
	Level() (gpio.Level, error)
	Out(l gpio.Level) error
}

// Delay blocks the caller. Microseconds must be accurate to a few
// microseconds.
type Delay interface {
	Microseconds(n uint16)
	Milliseconds(n uint16)
}

// GPIOLine is a Pin on top of a periph GPIO.
type GPIOLine struct {
	p gpio.PinIO
}

// GPIO returns p as a Pin. Releasing the line switches p to an input with its
// pull-up enabled.
func GPIO(p gpio.PinIO) *GPIOLine {
	return &GPIOLine{p: p}
}

// Level implements Pin.
func (g *GPIOLine) Level() (gpio.Level, error) {
	return g.p.Read(), nil
}

// Out implements Pin.
func (g *GPIOLine) Out(l gpio.Level) error {
	if l == gpio.High {
		return g.p.In(gpio.PullUp, gpio.NoEdge)
	}
	return g.p.Out(gpio.Low)
}

func (g *GPIOLine) String() string {
	return g.p.String()
}

// SpinDelay is a Delay that busy-loops for microsecond delays and sleeps for
// millisecond ones.
type SpinDelay struct{}

// Microseconds implements Delay.
func (SpinDelay) Microseconds(n uint16) {
	cpu.Nanospin(time.Duration(n) * time.Microsecond)
}

// Milliseconds implements Delay.
func (SpinDelay) Milliseconds(n uint16) {
	time.Sleep(time.Duration(n) * time.Millisecond)
}

var _ Pin = &GPIOLine{}
var _ Delay = SpinDelay{}
