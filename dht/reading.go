// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"fmt"
	"math"

	"periph.io/x/conn/v3/physic"
)

// Reading is a combined temperature and relative humidity reading. It holds
// the four data bytes of a frame with a valid checksum.
type Reading struct {
	variant Variant
	raw     [4]byte
}

// Variant returns the model that produced the reading.
func (r Reading) Variant() Variant {
	return r.variant
}

// Bytes returns the humidity integral, humidity decimal, temperature integral
// and temperature decimal bytes as sent by the sensor.
func (r Reading) Bytes() [4]byte {
	return r.raw
}

// TemperatureCelsius returns the temperature in °C.
func (r Reading) TemperatureCelsius() float32 {
	return r.variant.Temperature(r.raw[2], r.raw[3])
}

// TemperatureFahrenheit returns the temperature in °F.
func (r Reading) TemperatureFahrenheit() float32 {
	return CelsiusToFahrenheit(r.TemperatureCelsius())
}

// HumidityPercent returns the relative humidity in %.
func (r Reading) HumidityPercent() float32 {
	return r.variant.Humidity(r.raw[0], r.raw[1])
}

// Env returns the reading in periph units. Pressure is always 0.
func (r Reading) Env() physic.Env {
	return physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(tenths(r.TemperatureCelsius()))*100*physic.MilliKelvin,
		Humidity:    physic.RelativeHumidity(tenths(r.HumidityPercent())) * physic.MilliRH,
	}
}

func (r Reading) String() string {
	return fmt.Sprintf("%.1f°C %.1f%%RH", r.TemperatureCelsius(), r.HumidityPercent())
}

// CelsiusToFahrenheit converts c to °F.
func CelsiusToFahrenheit(c float32) float32 {
	return c*1.8 + 32
}

// tenths rounds v, which the sensors report at 0.1 resolution, to an integer
// count of tenths.
func tenths(v float32) int64 {
	return int64(math.Round(float64(v) * 10))
}
