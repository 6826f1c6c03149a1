// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package render draws DHT readings as images, for e-paper and OLED panels
// or as PNG files.
//
// Drawing is black on white so the result survives conversion to a 1 bit
// image.
package render

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/GermanBionicSystems/dhtsense/dht"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	once    sync.Once
	regular *truetype.Font
	errFont error
)

func goRegular() (*truetype.Font, error) {
	once.Do(func() {
		regular, errFont = truetype.Parse(goregular.TTF)
	})
	return regular, errFont
}

// Panel draws r on an image of the given size: the title on top, then the
// temperature and the relative humidity.
func Panel(r dht.Reading, title string, size image.Point) (image.Image, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("render: invalid size %s", size)
	}
	f, err := goRegular()
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	w, h := float64(size.X), float64(size.Y)
	dc := gg.NewContext(size.X, size.Y)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)

	padding := h / 20
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(padding, padding, w-2*padding, h-2*padding, padding)
	dc.Stroke()

	if title != "" {
		dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: h / 7}))
		dc.DrawStringAnchored(title, w/2, h*0.2, 0.5, 0.5)
	}
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: h / 4}))
	dc.DrawStringAnchored(fmt.Sprintf("%.1f°C", r.TemperatureCelsius()), w/2, h*0.48, 0.5, 0.5)
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: h / 6}))
	dc.DrawStringAnchored(fmt.Sprintf("%.1f%% RH", r.HumidityPercent()), w/2, h*0.78, 0.5, 0.5)
	return dc.Image(), nil
}

// SavePNG writes img to path.
func SavePNG(path string, img image.Image) error {
	if img == nil {
		return errors.New("render: nil image")
	}
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
