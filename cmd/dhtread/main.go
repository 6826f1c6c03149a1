// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// dhtread reads a DHT11 or DHT22 sensor once.
//
// Timeouts and checksum errors are retried after the sensor's minimum
// interval between reads.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"github.com/GermanBionicSystems/dhtsense/dht"
	"github.com/GermanBionicSystems/dhtsense/gauge"
	"github.com/GermanBionicSystems/dhtsense/internal/backend"
	"github.com/GermanBionicSystems/dhtsense/internal/config"
	"github.com/GermanBionicSystems/dhtsense/render"
	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func mainImpl() (err error) {
	pin := flag.String("pin", "GPIO4", "data pin name, e.g. GPIO4, or BCM number")
	typ := flag.String("type", "DHT22", "sensor type: DHT11, DHT22 or AM2302")
	be := flag.String("backend", "periph", "line driver: periph, rpio or sim")
	retries := flag.Int("retries", 3, "retries after a timeout or a checksum error")
	fahrenheit := flag.Bool("f", false, "print the temperature in °F")
	png := flag.String("png", "", "also draw the reading to this PNG file")
	showGauge := flag.Bool("gauge", isatty.IsTerminal(os.Stdout.Fd()), "draw a gauge on the terminal")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	v, err := dht.ParseVariant(*typ)
	if err != nil {
		return err
	}
	d, release, err := backend.Open(config.Backend(*be), config.Pin(*pin), v)
	if err != nil {
		return err
	}
	defer func() {
		err = releaseLine(err, *pin, release)
	}()

	r, err := read(d, *retries)
	if err != nil {
		return err
	}

	if *showGauge {
		err = showGaugeLine(colorable.NewColorableStdout(), r, *fahrenheit)
	} else {
		printReading(os.Stdout, d, r, *fahrenheit)
	}
	if err != nil {
		return err
	}
	if *png != "" {
		img, err := render.Panel(r, d.String(), image.Point{X: 250, Y: 122})
		if err != nil {
			return err
		}
		if err := render.SavePNG(*png, img); err != nil {
			return err
		}
	}
	return nil
}

func read(d *dht.Dev, retries int) (dht.Reading, error) {
	if retries < 0 {
		return dht.Reading{}, errors.New("-retries must not be negative")
	}
	op := func() (dht.Reading, error) {
		r, err := d.Read()
		if err != nil && !dht.IsTimeout(err) && !dht.IsChecksum(err) {
			return r, backoff.Permanent(err)
		}
		return r, err
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(d.Variant().MinInterval()), uint64(retries))
	if retries == 0 {
		b = &backoff.StopBackOff{}
	}
	return backoff.RetryNotifyWithData(op, b, func(err error, wait time.Duration) {
		fmt.Fprintf(os.Stderr, "dhtread: %s, retrying in %s\n", err, wait)
	})
}

func printReading(w io.Writer, d *dht.Dev, r dht.Reading, fahrenheit bool) {
	if fahrenheit {
		fmt.Fprintf(w, "%s: %.1f°F %.1f%%RH\n", d, r.TemperatureFahrenheit(), r.HumidityPercent())
		return
	}
	fmt.Fprintf(w, "%s: %s\n", d, r)
}

// releaseLine calls release and joins its error, if any, to err.
func releaseLine(err error, pin string, release func() error) error {
	if err2 := release(); err2 != nil {
		return errors.Join(err, fmt.Errorf("release %s: %w", pin, err2))
	}
	return err
}

// showGaugeLine draws r as a gauge line on w.
func showGaugeLine(w io.Writer, r dht.Reading, fahrenheit bool) error {
	g := gauge.New(&gauge.Opts{W: w, Fahrenheit: fahrenheit})
	if err := g.Show(r); err != nil {
		return err
	}
	return g.Halt()
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "dhtread: %s.\n", err)
		os.Exit(1)
	}
}
