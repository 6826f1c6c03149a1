// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"fmt"

	"github.com/GermanBionicSystems/dhtsense/common"
)

// pulse is one bit as seen on the line: the low delimiter and the high data
// pulse, in ticks.
type pulse struct {
	lo, hi uint8
}

// frame is the 40 bits of a transmission, most significant bit of each byte
// first.
type frame [40]pulse

// bytes assembles the frame. A high pulse longer than the low pulse before it
// is a 1.
func (f *frame) bytes() [5]byte {
	var b [5]byte
	for i, p := range f {
		b[i/8] <<= 1
		if p.hi > p.lo {
			b[i/8] |= 1
		}
	}
	return b
}

func decode(f *frame, v Variant) (Reading, error) {
	return Decode(f.bytes(), v)
}

// Decode validates a raw 5-byte frame and returns the Reading it carries.
//
// It returns a KindChecksum *Error if raw[4] is not the low byte of the sum
// of the other four.
func Decode(raw [5]byte, v Variant) (Reading, error) {
	if !v.valid() {
		return Reading{}, fmt.Errorf("dht: invalid variant %d", uint8(v))
	}
	if sum := common.Sum8(raw[:4]); sum != raw[4] {
		return Reading{}, &Error{Kind: KindChecksum, Expected: sum, Actual: raw[4]}
	}
	return Reading{variant: v, raw: [4]byte{raw[0], raw[1], raw[2], raw[3]}}, nil
}
