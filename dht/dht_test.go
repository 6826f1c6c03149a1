// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// edgePin is a line that switches from `from` to `to` at tick `at`, and the
// delay that advances its clock. at < 0 never switches.
type edgePin struct {
	now      int
	at       int
	from, to gpio.Level
	err      error
}

func (p *edgePin) Level() (gpio.Level, error) {
	if p.err != nil {
		return gpio.Low, p.err
	}
	if p.at >= 0 && p.now >= p.at {
		return p.to, nil
	}
	return p.from, nil
}

func (p *edgePin) Out(gpio.Level) error  { return nil }
func (p *edgePin) Microseconds(n uint16) { p.now += int(n) }
func (p *edgePin) Milliseconds(n uint16) { p.now += 1000 * int(n) }

func TestWaitFor(t *testing.T) {
	for _, k := range []int{0, 1, 26, 50, 70, 80, 254, 255} {
		p := &edgePin{at: k, from: gpio.Low, to: gpio.High}
		d := &Dev{pin: p, delay: p, variant: DHT22}
		n, err := d.waitFor(gpio.High)
		if err != nil {
			t.Fatalf("waitFor() with edge at %d: %v", k, err)
		}
		if int(n) != k {
			t.Errorf("waitFor() = %d, expected %d", n, k)
		}
		if p.now != k {
			t.Errorf("waitFor() spent %dµs, expected %dµs", p.now, k)
		}
	}
}

func TestWaitFor_Low(t *testing.T) {
	p := &edgePin{at: 70, from: gpio.High, to: gpio.Low}
	d := &Dev{pin: p, delay: p, variant: DHT22}
	if n, err := d.waitFor(gpio.Low); err != nil || n != 70 {
		t.Fatalf("waitFor(Low) = %d, %v; expected 70", n, err)
	}
}

func TestWaitFor_Timeout(t *testing.T) {
	for _, at := range []int{256, 1000, -1} {
		p := &edgePin{at: at, from: gpio.Low, to: gpio.High}
		d := &Dev{pin: p, delay: p, variant: DHT22}
		if _, err := d.waitFor(gpio.High); err != ErrTimeout {
			t.Errorf("edge at %d: expected ErrTimeout, got %v", at, err)
		}
		if p.now != maxPulseTicks+1 {
			t.Errorf("edge at %d: timed out after %dµs", at, p.now)
		}
	}
}

func TestWaitFor_PinError(t *testing.T) {
	pinErr := errors.New("bus gone")
	p := &edgePin{at: 10, err: pinErr}
	d := &Dev{pin: p, delay: p, variant: DHT22}
	if _, err := d.waitFor(gpio.High); err != pinErr {
		t.Fatalf("expected pin error, got %v", err)
	}
	if err := sampleError("bit 3 low", pinErr); !IsIO(err) || err.(*Error).IO() != pinErr {
		t.Fatalf("sampleError() = %v", err)
	}
}

func TestWaitFor_Allocations(t *testing.T) {
	p := &edgePin{at: 50, from: gpio.Low, to: gpio.High}
	d := &Dev{pin: p, delay: p, variant: DHT22}
	allocs := testing.AllocsPerRun(100, func() {
		p.now = 0
		_, _ = d.waitFor(gpio.High)
	})
	if allocs != 0 {
		t.Fatalf("waitFor() allocates %.1f times", allocs)
	}
}

func TestFrame_BitDecision(t *testing.T) {
	tests := []struct {
		lo, hi uint8
		bit    byte
	}{
		{50, 70, 1},
		{50, 26, 0},
		{50, 50, 0},
		{50, 51, 1},
		{0, 1, 1},
		{0, 0, 0},
		{255, 255, 0},
		{254, 255, 1},
		{80, 40, 0},
	}
	for _, test := range tests {
		var f frame
		for i := range f {
			f[i] = pulse{lo: test.lo, hi: test.hi}
		}
		want := byte(0)
		if test.bit == 1 {
			want = 0xff
		}
		for i, b := range f.bytes() {
			if b != want {
				t.Errorf("pulse{%d, %d}: byte %d = 0x%02x, expected 0x%02x", test.lo, test.hi, i, b, want)
			}
		}
	}
}

// frameOf encodes raw as pulses, with jitter on every pulse.
func frameOf(r *rand.Rand, raw [5]byte) *frame {
	var f frame
	for i := range f {
		lo := uint8(40 + r.Intn(21))
		var hi uint8
		if raw[i/8]&(0x80>>uint(i%8)) != 0 {
			hi = lo + 1 + uint8(r.Intn(30))
		} else {
			hi = lo - uint8(r.Intn(31))
		}
		f[i] = pulse{lo: lo, hi: hi}
	}
	return &f
}

func TestDecode_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		var raw [5]byte
		for j := 0; j < 4; j++ {
			raw[j] = byte(r.Intn(256))
		}
		raw[4] = raw[0] + raw[1] + raw[2] + raw[3]
		v := DHT11
		if i%2 == 1 {
			v = DHT22
		}

		got, err := decode(frameOf(r, raw), v)
		if err != nil {
			t.Fatalf("decode(%#v): %v", raw, err)
		}
		if b := got.Bytes(); b != [4]byte{raw[0], raw[1], raw[2], raw[3]} {
			t.Fatalf("decode(%#v) = %#v", raw, b)
		}
		if got.Variant() != v {
			t.Fatalf("decode() variant %s, expected %s", got.Variant(), v)
		}

		bad := raw
		bad[4] += byte(1 + r.Intn(255))
		_, err = decode(frameOf(r, bad), v)
		var e *Error
		if !errors.As(err, &e) || !e.IsChecksum() {
			t.Fatalf("decode(%#v): expected checksum error, got %v", bad, err)
		}
		if e.Expected != raw[4] || e.Actual != bad[4] {
			t.Fatalf("checksum error expected=0x%02x actual=0x%02x; want 0x%02x 0x%02x", e.Expected, e.Actual, raw[4], bad[4])
		}
	}
}

func TestDecode_SumOfValues(t *testing.T) {
	// A checksum computed from byte positions (0+1+2+3) must not pass.
	if _, err := Decode([5]byte{0x02, 0x8c, 0x01, 0x5f, 6}, DHT22); !IsChecksum(err) {
		t.Fatalf("expected checksum error, got %v", err)
	}
	if _, err := Decode([5]byte{0x02, 0x8c, 0x01, 0x5f, 0xee}, DHT22); err != nil {
		t.Fatal(err)
	}
	// The sum wraps.
	if _, err := Decode([5]byte{0xff, 0xff, 0x01, 0x01, 0x00}, DHT22); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode([5]byte{}, 0); err == nil {
		t.Fatal("expected invalid variant error")
	}
}

func TestDecode_AllOnes(t *testing.T) {
	var f frame
	for i := range f {
		f[i] = pulse{lo: 50, hi: 70}
	}
	_, err := decode(&f, DHT22)
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindChecksum || e.Expected != 0xfc || e.Actual != 0xff {
		t.Fatalf("decode() = %#v", err)
	}
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestVariant_DHT22(t *testing.T) {
	if got := DHT22.Temperature(0x01, 0x90); got != 40 {
		t.Errorf("Temperature(0x01, 0x90) = %v", got)
	}
	if got := DHT22.Temperature(0x81, 0x90); got != -40 {
		t.Errorf("Temperature(0x81, 0x90) = %v", got)
	}
	if got := DHT22.Temperature(0x80, 0x65); !approx(got, -10.1) {
		t.Errorf("Temperature(0x80, 0x65) = %v", got)
	}
	if got := DHT22.Temperature(0, 0); got != 0 {
		t.Errorf("Temperature(0, 0) = %v", got)
	}
	if got := DHT22.Humidity(0x02, 0x8c); !approx(got, 65.2) {
		t.Errorf("Humidity(0x02, 0x8c) = %v", got)
	}
	if got := DHT22.Humidity(0x03, 0xe8); got != 100 {
		t.Errorf("Humidity(0x03, 0xe8) = %v", got)
	}
	// The humidity has no sign bit.
	if got := DHT22.Humidity(0x80, 0x00); !approx(got, 3276.8) {
		t.Errorf("Humidity(0x80, 0x00) = %v", got)
	}
}

func TestVariant_DHT11(t *testing.T) {
	if got := DHT11.Humidity(45, 0); got != 45 {
		t.Errorf("Humidity(45, 0) = %v", got)
	}
	if got := DHT11.Humidity(45, 3); !approx(got, 45.3) {
		t.Errorf("Humidity(45, 3) = %v", got)
	}
	if got := DHT11.Temperature(26, 0x85); got != -26.5 {
		t.Errorf("Temperature(26, 0x85) = %v", got)
	}
	if got := DHT11.Temperature(26, 0x05); got != 26.5 {
		t.Errorf("Temperature(26, 0x05) = %v", got)
	}
	if got := DHT11.Temperature(0, 0x80); got != -1 {
		t.Errorf("Temperature(0, 0x80) = %v", got)
	}
	// Only the low nibble of the decimal byte counts.
	if got := DHT11.Temperature(21, 0x72); !approx(got, 21.2) {
		t.Errorf("Temperature(21, 0x72) = %v", got)
	}
}

func TestVariant_Profile(t *testing.T) {
	tests := []struct {
		v        Variant
		name     string
		start    time.Duration
		interval time.Duration
	}{
		{DHT11, "DHT11", 20 * time.Millisecond, time.Second},
		{DHT22, "DHT22", 1100 * time.Microsecond, 2 * time.Second},
		{AM2302, "DHT22", 1100 * time.Microsecond, 2 * time.Second},
	}
	for _, test := range tests {
		if s := test.v.String(); s != test.name {
			t.Errorf("String() = %q, expected %q", s, test.name)
		}
		if d := test.v.StartDelay(); d != test.start {
			t.Errorf("%s: StartDelay() = %s, expected %s", test.v, d, test.start)
		}
		if d := test.v.MinInterval(); d != test.interval {
			t.Errorf("%s: MinInterval() = %s, expected %s", test.v, d, test.interval)
		}
	}
	if s := Variant(9).String(); s != "Variant(9)" {
		t.Errorf("String() = %q", s)
	}
	if got := Variant(9).Temperature(1, 2); got != 0 {
		t.Errorf("unknown variant Temperature() = %v", got)
	}
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in   string
		want Variant
		err  bool
	}{
		{"DHT11", DHT11, false},
		{"dht22", DHT22, false},
		{" am2302 ", DHT22, false},
		{"DHT12", 0, true},
		{"", 0, true},
	}
	for _, test := range tests {
		v, err := ParseVariant(test.in)
		if (err != nil) != test.err || v != test.want {
			t.Errorf("ParseVariant(%q) = %s, %v", test.in, v, err)
		}
	}

	var v Variant
	if err := v.UnmarshalText([]byte("DHT11")); err != nil || v != DHT11 {
		t.Fatalf("UnmarshalText() = %s, %v", v, err)
	}
	if b, err := DHT22.MarshalText(); err != nil || string(b) != "DHT22" {
		t.Fatalf("MarshalText() = %q, %v", b, err)
	}
	if _, err := Variant(0).MarshalText(); err == nil {
		t.Fatal("expected error")
	}
}

func TestPrecision(t *testing.T) {
	var e physic.Env
	DHT11.Precision(&e)
	if e.Temperature != physic.Kelvin || e.Humidity != physic.PercentRH {
		t.Errorf("DHT11 precision %s %s", e.Temperature, e.Humidity)
	}
	(&Dev{variant: DHT22}).Precision(&e)
	if 10*e.Temperature != physic.Kelvin || e.Humidity != physic.MilliRH || e.Pressure != 0 {
		t.Errorf("DHT22 precision %s %s", e.Temperature, e.Humidity)
	}
}

func TestCelsiusToFahrenheit(t *testing.T) {
	if f := CelsiusToFahrenheit(0); f != 32 {
		t.Errorf("CelsiusToFahrenheit(0) = %v", f)
	}
	if f := CelsiusToFahrenheit(100); f != 212 {
		t.Errorf("CelsiusToFahrenheit(100) = %v", f)
	}
	if f := CelsiusToFahrenheit(-40); !approx(f, -40) {
		t.Errorf("CelsiusToFahrenheit(-40) = %v", f)
	}
}

func TestReading(t *testing.T) {
	r, err := Decode([5]byte{0x02, 0x8c, 0x01, 0x5f, 0xee}, DHT22)
	if err != nil {
		t.Fatal(err)
	}
	if c := r.TemperatureCelsius(); !approx(c, 35.1) {
		t.Errorf("TemperatureCelsius() = %v", c)
	}
	if f := r.TemperatureFahrenheit(); !approx(f, 95.18) {
		t.Errorf("TemperatureFahrenheit() = %v", f)
	}
	if h := r.HumidityPercent(); !approx(h, 65.2) {
		t.Errorf("HumidityPercent() = %v", h)
	}
	e := r.Env()
	if expected := physic.ZeroCelsius + 35_100*physic.MilliKelvin; e.Temperature != expected {
		t.Errorf("temperature %s(%d) != %s(%d)", e.Temperature, e.Temperature, expected, expected)
	}
	if expected := 652 * physic.MilliRH; e.Humidity != expected {
		t.Errorf("humidity %s(%d) != %s(%d)", e.Humidity, e.Humidity, expected, expected)
	}
	if s := r.String(); s != "35.1°C 65.2%RH" {
		t.Errorf("String() = %q", s)
	}

	r, err = Decode([5]byte{45, 0, 26, 0x85, 45 + 26 + 0x85}, DHT11)
	if err != nil {
		t.Fatal(err)
	}
	e = r.Env()
	if expected := physic.ZeroCelsius - 26_500*physic.MilliKelvin; e.Temperature != expected {
		t.Errorf("temperature %s(%d) != %s(%d)", e.Temperature, e.Temperature, expected, expected)
	}
	if expected := 45 * physic.PercentRH; e.Humidity != expected {
		t.Errorf("humidity %s != %s", e.Humidity, expected)
	}
}

func TestError(t *testing.T) {
	pinErr := errors.New("EBUSY")
	tests := []struct {
		err                   *Error
		msg                   string
		timeout, io, checksum bool
		wrapped               error
	}{
		{&Error{Kind: KindIO, Op: "start low", Err: pinErr}, "dht: start low: EBUSY", false, true, false, pinErr},
		{&Error{Kind: KindTimeout, Op: "ack high"}, "dht: timeout waiting for ack high", true, false, false, nil},
		{&Error{Kind: KindChecksum, Expected: 0xee, Actual: 0x06}, "dht: checksum mismatch: expected 0xee, got 0x06", false, false, true, nil},
	}
	for _, test := range tests {
		if s := test.err.Error(); s != test.msg {
			t.Errorf("Error() = %q, expected %q", s, test.msg)
		}
		if test.err.IsTimeout() != test.timeout || test.err.IsIO() != test.io || test.err.IsChecksum() != test.checksum {
			t.Errorf("%s: wrong classification", test.err.Kind)
		}
		if test.err.IO() != test.wrapped {
			t.Errorf("%s: IO() = %v", test.err.Kind, test.err.IO())
		}
		wrapped := fmt.Errorf("sensor foo: %w", test.err)
		if IsTimeout(wrapped) != test.timeout || IsIO(wrapped) != test.io || IsChecksum(wrapped) != test.checksum {
			t.Errorf("%s: wrong classification once wrapped", test.err.Kind)
		}
		if errors.Is(wrapped, ErrTimeout) != test.timeout {
			t.Errorf("%s: errors.Is(ErrTimeout) != %t", test.err.Kind, test.timeout)
		}
	}
	if !errors.Is(tests[0].err, pinErr) {
		t.Error("IO error does not unwrap")
	}
	if IsIO(pinErr) || IsTimeout(nil) {
		t.Error("foreign errors must not classify")
	}
	if s := ErrTimeout.Error(); s != "dht: timeout" {
		t.Errorf("ErrTimeout = %q", s)
	}
}

func TestNew(t *testing.T) {
	p := &edgePin{}
	if _, err := New(nil, p, DHT22); err == nil {
		t.Error("expected error for nil pin")
	}
	if _, err := New(p, nil, DHT22); err == nil {
		t.Error("expected error for nil delay")
	}
	if _, err := New(p, p, 0); err == nil {
		t.Error("expected error for invalid variant")
	}
	d, err := New(p, p, DHT11)
	if err != nil {
		t.Fatal(err)
	}
	if d.Variant() != DHT11 || d.String() != "DHT11" {
		t.Errorf("unexpected dev %s", d)
	}
}
