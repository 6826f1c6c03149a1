// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dhttest is meant to be used to test drivers over a fake DHT sensor.
//
// Sensor is both the data line and the delay provider of a dht.Dev. Time only
// moves when the driver delays, so a simulated read is deterministic and
// instantaneous.
package dhttest

import (
	"errors"
	"sync"
	"time"

	"github.com/GermanBionicSystems/dhtsense/common"
	"github.com/GermanBionicSystems/dhtsense/dht"
	"periph.io/x/conn/v3/gpio"
)

// Nominal pulse lengths of the simulated sensor.
const (
	ResponseDelay = 20 * time.Microsecond // release to acknowledgement
	AckLow        = 80 * time.Microsecond
	AckHigh       = 80 * time.Microsecond
	BitLow        = 50 * time.Microsecond
	ZeroHigh      = 26 * time.Microsecond
	OneHigh       = 70 * time.Microsecond
)

// Sensor simulates a DHT sensor and its pull-up.
//
// It answers a start signal at least as long as the datasheet minimum of its
// Variant by sending Data.
type Sensor struct {
	sync.Mutex
	Variant dht.Variant
	// Data is sent as is; Data[4] is the checksum byte.
	Data [5]byte
	// Silent makes the sensor ignore start signals.
	Silent bool
	// Stretch is added to every pulse the sensor sends.
	Stretch time.Duration
	// OutErr, if set, is returned by call number FailOut to Out, counting
	// from 1. FailOut 0 fails every call.
	OutErr  error
	FailOut int
	// LevelErr, if set, is returned by every call to Level.
	LevelErr error

	// Now is the virtual clock.
	Now time.Duration
	// Outs and Levels count the calls to Out and Level.
	Outs   int
	Levels int
	// Requests counts the start signals answered.
	Requests int

	driving   bool
	lowSince  time.Duration
	waveStart time.Duration
	wave      []segment
}

type segment struct {
	l gpio.Level
	d time.Duration
}

// New returns a Sensor of variant v that sends data followed by its valid
// checksum.
func New(v dht.Variant, data [4]byte) *Sensor {
	return &Sensor{Variant: v, Data: Frame(data)}
}

// Frame appends the checksum to data.
func Frame(data [4]byte) [5]byte {
	return [5]byte{data[0], data[1], data[2], data[3], common.Sum8(data[:])}
}

// Level implements dht.Pin.
func (s *Sensor) Level() (gpio.Level, error) {
	s.Lock()
	defer s.Unlock()
	s.Levels++
	if s.LevelErr != nil {
		return gpio.Low, s.LevelErr
	}
	if s.driving {
		return gpio.Low, nil
	}
	t := s.Now - s.waveStart
	if s.wave == nil || t < 0 {
		return gpio.High, nil
	}
	for _, seg := range s.wave {
		if t < seg.d {
			return seg.l, nil
		}
		t -= seg.d
	}
	return gpio.High, nil
}

// Out implements dht.Pin.
func (s *Sensor) Out(l gpio.Level) error {
	s.Lock()
	defer s.Unlock()
	s.Outs++
	if s.OutErr != nil && (s.FailOut == 0 || s.FailOut == s.Outs) {
		return s.OutErr
	}
	if l == gpio.Low {
		if !s.driving {
			s.driving = true
			s.lowSince = s.Now
		}
		s.wave = nil
		return nil
	}
	if !s.driving {
		return nil
	}
	s.driving = false
	if s.Silent || s.Now-s.lowSince < s.minStart() {
		return nil
	}
	s.Requests++
	s.waveStart = s.Now + ResponseDelay
	s.wave = s.transmission()
	return nil
}

// Microseconds implements dht.Delay.
func (s *Sensor) Microseconds(n uint16) {
	s.Lock()
	s.Now += time.Duration(n) * time.Microsecond
	s.Unlock()
}

// Milliseconds implements dht.Delay.
func (s *Sensor) Milliseconds(n uint16) {
	s.Lock()
	s.Now += time.Duration(n) * time.Millisecond
	s.Unlock()
}

func (s *Sensor) String() string {
	return "dhttest"
}

// minStart is the datasheet minimum length of the start signal.
func (s *Sensor) minStart() time.Duration {
	if s.Variant == dht.DHT11 {
		return 18 * time.Millisecond
	}
	return time.Millisecond
}

func (s *Sensor) transmission() []segment {
	w := make([]segment, 0, 2+2*40+1)
	w = append(w, segment{gpio.Low, AckLow + s.Stretch}, segment{gpio.High, AckHigh + s.Stretch})
	for _, b := range s.Data {
		for i := 7; i >= 0; i-- {
			hi := ZeroHigh
			if b&(1<<uint(i)) != 0 {
				hi = OneHigh
			}
			w = append(w, segment{gpio.Low, BitLow + s.Stretch}, segment{gpio.High, hi + s.Stretch})
		}
	}
	// The sensor ends the frame with a last low delimiter, then releases
	// the line.
	return append(w, segment{gpio.Low, BitLow})
}

// ErrPin is a convenience error for OutErr and LevelErr.
var ErrPin = errors.New("dhttest: pin failure")

var _ dht.Pin = &Sensor{}
var _ dht.Delay = &Sensor{}
