// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gauge shows DHT readings as a row of colored cells on a terminal
// using ANSI color codes.
//
// The row is a temperature bar, a blank cell and a humidity bar, followed by
// the values as text. Refreshing overwrites the same terminal line.
package gauge

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/GermanBionicSystems/dhtsense/dht"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

// Opts represents the options available for the gauge.
type Opts struct {
	// Width is the number of cells of each bar. Defaults to 20.
	Width   int
	Palette *ansi256.Palette
	// W defaults to stdout.
	W io.Writer
	// MinC and MaxC are the ends of the temperature bar in °C. Default to the
	// DHT22 range, -40 to 80.
	MinC, MaxC float32
	// Fahrenheit labels the temperature in °F. The bar is unchanged.
	Fahrenheit bool

	_ struct{}
}

// Dev is a terminal gauge.
type Dev struct {
	w          io.Writer
	width      int
	palette    ansi256.Palette
	minC, maxC float32
	fahrenheit bool

	pixels []byte
	label  string
	buf    bytes.Buffer
}

var (
	off  = color.NRGBA{0x30, 0x30, 0x30, 0xff}
	cold = color.NRGBA{0x00, 0x40, 0xff, 0xff}
	hot  = color.NRGBA{0xff, 0x20, 0x00, 0xff}
	dry  = color.NRGBA{0xe0, 0xe0, 0xc0, 0xff}
	wet  = color.NRGBA{0x00, 0x80, 0xff, 0xff}
)

// New returns a gauge.
func New(opts *Opts) *Dev {
	d := &Dev{width: 20, palette: *ansi256.Default, minC: -40, maxC: 80}
	if opts != nil {
		if opts.Width > 0 {
			d.width = opts.Width
		}
		if opts.Palette != nil {
			d.palette = *opts.Palette
		}
		if opts.W != nil {
			d.w = opts.W
		}
		if opts.MaxC > opts.MinC {
			d.minC, d.maxC = opts.MinC, opts.MaxC
		}
		d.fahrenheit = opts.Fahrenheit
	}
	if d.w == nil {
		d.w = colorable.NewColorableStdout()
	}
	d.pixels = make([]byte, 3*(2*d.width+1))
	return d
}

func (d *Dev) String() string {
	return "Gauge"
}

// Show draws r.
func (d *Dev) Show(r dht.Reading) error {
	img := image.NewNRGBA(d.Bounds())
	t := (r.TemperatureCelsius() - d.minC) / (d.maxC - d.minC)
	d.bar(img, 0, t, cold, hot)
	img.SetNRGBA(d.width, 0, color.NRGBA{})
	d.bar(img, d.width+1, r.HumidityPercent()/100, dry, wet)
	d.label = r.String()
	if d.fahrenheit {
		d.label = fmt.Sprintf("%.1f°F %.1f%%RH", r.TemperatureFahrenheit(), r.HumidityPercent())
	}
	return d.Draw(img.Bounds(), img, image.Point{})
}

// bar fills the fraction f of the width cells starting at x, each cell
// colored along the ramp from c0 to c1.
func (d *Dev) bar(img *image.NRGBA, x int, f float32, c0, c1 color.NRGBA) {
	n := int(math.Round(float64(f) * float64(d.width)))
	for i := 0; i < d.width; i++ {
		c := off
		if i < n && d.width > 1 {
			c = lerp(c0, c1, float32(i)/float32(d.width-1))
		} else if i < n {
			c = c1
		}
		img.SetNRGBA(x+i, 0, c)
	}
}

func lerp(a, b color.NRGBA, f float32) color.NRGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float32(x) + (float32(y)-float32(x))*f)
	}
	return color.NRGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 0xff}
}

// Halt implements conn.Resource.
//
// It moves to the next line and resets the colors so the terminal is not
// corrupted.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// Write accepts a stream of raw RGB pixels and writes it to the terminal.
func (d *Dev) Write(pixels []byte) (int, error) {
	if len(pixels)%3 != 0 {
		return 0, errors.New("gauge: invalid RGB stream length")
	}
	copy(d.pixels, pixels)
	return d.refresh()
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rectangle{Max: image.Point{X: 2*d.width + 1, Y: 1}}
}

// Draw implements display.Drawer. Only the first row of src is used.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.Bounds())
	if w := src.Bounds().Max.X - sp.X; r.Dx() > w {
		r.Max.X = r.Min.X + w
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		c := color.NRGBAModel.Convert(src.At(sp.X+x-r.Min.X, sp.Y)).(color.NRGBA)
		px := d.pixels[3*x : 3*x+3]
		px[0], px[1], px[2] = c.R, c.G, c.B
	}
	_, err := d.refresh()
	return err
}

// refresh redraws the whole line: every cell, then the label.
func (d *Dev) refresh() (int, error) {
	d.buf.Reset()
	d.buf.WriteString("\r\033[0m")
	for px := d.pixels; len(px) >= 3; px = px[3:] {
		d.buf.WriteString(d.palette.Block(color.NRGBA{px[0], px[1], px[2], 0xff}))
	}
	d.buf.WriteString("\033[0m ")
	d.buf.WriteString(d.label)
	_, err := d.buf.WriteTo(d.w)
	return len(d.pixels), err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
