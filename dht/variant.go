// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Variant is the sensor model. It determines the start signal length and how
// the four data bytes of a frame map to physical values.
type Variant uint8

const (
	// DHT11 is the small blue sensor. Integer resolution, 0-50°C, 20-80%RH,
	// 1Hz sampling rate.
	DHT11 Variant = iota + 1
	// DHT22 is the white sensor. 0.1 resolution, -40-80°C, 0-100%RH, 0.5Hz
	// sampling rate.
	DHT22
	// AM2302 is the wired version of the DHT22.
	AM2302 = DHT22
)

// ParseVariant returns the Variant named s. It accepts "DHT11", "DHT22" and
// "AM2302", in any case.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DHT11":
		return DHT11, nil
	case "DHT22", "AM2302":
		return DHT22, nil
	}
	return 0, fmt.Errorf("dht: unknown sensor type %q", s)
}

func (v Variant) String() string {
	switch v {
	case DHT11:
		return "DHT11"
	case DHT22:
		return "DHT22"
	default:
		return "Variant(" + strconv.Itoa(int(v)) + ")"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	if !v.valid() {
		return nil, fmt.Errorf("dht: invalid variant %d", uint8(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(b []byte) error {
	p, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// StartDelayMicros is how long the host holds the line low to request a
// reading, in microseconds.
func (v Variant) StartDelayMicros() uint16 {
	if v == DHT11 {
		// Datasheet says at least 18ms.
		return 20 * 1000
	}
	// Datasheet says "at least" 1ms, so hold it for just over 1ms.
	return 1100
}

// StartDelay is StartDelayMicros as a time.Duration.
func (v Variant) StartDelay() time.Duration {
	return time.Duration(v.StartDelayMicros()) * time.Microsecond
}

// MinInterval is the shortest time between two reads the sensor supports.
func (v Variant) MinInterval() time.Duration {
	if v == DHT11 {
		return time.Second
	}
	return 2 * time.Second
}

// Temperature converts the temperature byte pair of a frame to °C.
func (v Variant) Temperature(integral, decimal byte) float32 {
	switch v {
	case DHT11:
		// Same as the Adafruit driver: bit 7 of the decimal byte is a sign
		// flag, and setting it also subtracts one degree.
		t := float32(integral)
		if decimal&0x80 != 0 {
			t = -1 - t
		}
		return t + float32(decimal&0x0F)*0.1
	case DHT22:
		t := float32(uint16(integral&0x7F)<<8|uint16(decimal)) * 0.1
		if integral&0x80 != 0 {
			t = -t
		}
		return t
	}
	return 0
}

// Humidity converts the humidity byte pair of a frame to %RH.
func (v Variant) Humidity(integral, decimal byte) float32 {
	switch v {
	case DHT11:
		return float32(integral) + float32(decimal)*0.1
	case DHT22:
		return float32(uint16(integral)<<8|uint16(decimal)) * 0.1
	}
	return 0
}

// Precision sets the resolution of the variant's measurements in e.
func (v Variant) Precision(e *physic.Env) {
	e.Pressure = 0
	if v == DHT11 {
		e.Temperature = physic.Kelvin
		e.Humidity = physic.PercentRH
		return
	}
	e.Temperature = 100 * physic.MilliKelvin
	e.Humidity = physic.MilliRH
}

func (v Variant) valid() bool {
	return v == DHT11 || v == DHT22
}
