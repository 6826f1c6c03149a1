// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Dev is a handle to a DHT sensor on a single data line.
type Dev struct {
	pin     Pin
	delay   Delay
	variant Variant

	mu sync.Mutex // held for the duration of a read

	stateMu sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New returns a sensor of variant v on pin p. d provides the delays of the
// protocol; SpinDelay is suitable for a Linux host.
func New(p Pin, d Delay, v Variant) (*Dev, error) {
	if p == nil || d == nil {
		return nil, errors.New("dht: pin and delay are required")
	}
	if !v.valid() {
		return nil, fmt.Errorf("dht: invalid variant %d", uint8(v))
	}
	return &Dev{pin: p, delay: d, variant: v}, nil
}

// NewGPIO returns a sensor of variant v on the periph GPIO p. The line is
// released high so the sensor is ready for the first read. Wait for
// v.MinInterval() after powering the sensor before reading it.
func NewGPIO(p gpio.PinIO, v Variant) (*Dev, error) {
	if p == nil {
		return nil, errors.New("dht: pin is nil")
	}
	l := GPIO(p)
	if err := l.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("dht: release %s: %w", p, err)
	}
	return New(l, SpinDelay{}, v)
}

// Variant returns the sensor model.
func (d *Dev) Variant() Variant {
	return d.variant
}

// Read does a single read of the sensor.
//
// The error, if any, is an *Error. Read does not retry and does not wait for
// the sensor's minimum interval since the last read.
func (d *Dev) Read() (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// The frame lives on the stack; nothing between the start signal and the
	// last bit allocates.
	var f frame
	leave := enterCritical()
	err := d.startSignal()
	if err == nil {
		err = d.sample(&f)
	}
	leave()
	if err != nil {
		return Reading{}, err
	}
	return decode(&f, d.variant)
}

// startSignal requests a reading and consumes the sensor's acknowledgement.
func (d *Dev) startSignal() error {
	// Let the pull-up settle.
	if err := d.pin.Out(gpio.High); err != nil {
		return ioError("release", err)
	}
	d.delay.Milliseconds(1)

	if err := d.pin.Out(gpio.Low); err != nil {
		return ioError("start low", err)
	}
	d.delay.Microseconds(d.variant.StartDelayMicros())
	if err := d.pin.Out(gpio.High); err != nil {
		return ioError("start high", err)
	}
	d.delay.Microseconds(40)

	// ~80µs low, then ~80µs high.
	if _, err := d.waitFor(gpio.High); err != nil {
		return sampleError("ack low", err)
	}
	if _, err := d.waitFor(gpio.Low); err != nil {
		return sampleError("ack high", err)
	}
	return nil
}

// Sense implements physic.SenseEnv. Pressure is always 0.
func (d *Dev) Sense(e *physic.Env) error {
	r, err := d.Read()
	if err != nil {
		return err
	}
	*e = r.Env()
	return nil
}

// SenseContinuous implements physic.SenseEnv. It reads the sensor every
// interval, which must be at least Variant().MinInterval(). Failed reads are
// skipped. Call Halt() to stop.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if minimum := d.variant.MinInterval(); interval < minimum {
		return nil, fmt.Errorf("dht: invalid interval %s, %s needs at least %s", interval, d.variant, minimum)
	}
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.stop != nil {
		return nil, errors.New("dht: sense continuous already running")
	}

	stop := make(chan struct{})
	d.stop = stop
	sensing := make(chan physic.Env)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(sensing)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				var e physic.Env
				if err := d.Sense(&e); err != nil {
					continue
				}
				select {
				case sensing <- e:
				case <-stop:
					return
				}
			}
		}
	}()
	return sensing, nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	d.variant.Precision(e)
}

// Halt stops a SenseContinuous() loop and waits for it to exit.
func (d *Dev) Halt() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.wg.Wait()
	d.stop = nil
	return nil
}

func (d *Dev) String() string {
	if s, ok := d.pin.(fmt.Stringer); ok {
		return d.variant.String() + "{" + s.String() + "}"
	}
	return d.variant.String()
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
