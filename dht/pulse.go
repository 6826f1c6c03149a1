// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// maxPulseTicks bounds every pulse. The longest pulse of the protocol is the
// 80µs acknowledgement.
const maxPulseTicks = 255

// waitFor polls the line once per tick until it reads l and returns the
// number of ticks it spent at the other level. It fails with ErrTimeout if l
// is not seen within maxPulseTicks ticks.
//
// Timing-critical: nothing in the loop may allocate or block.
func (d *Dev) waitFor(l gpio.Level) (uint8, error) {
	for n := 0; n <= maxPulseTicks; n++ {
		v, err := d.pin.Level()
		if err != nil {
			return 0, err
		}
		if v == l {
			return uint8(n), nil
		}
		d.delay.Microseconds(1)
	}
	return 0, ErrTimeout
}

// sample reads the 40 bits following the acknowledgement into f. The bits
// are only decoded once the line is quiet.
func (d *Dev) sample(f *frame) error {
	for i := range f {
		lo, err := d.waitFor(gpio.High)
		if err != nil {
			return sampleError(bitOp(i, "low"), err)
		}
		hi, err := d.waitFor(gpio.Low)
		if err != nil {
			return sampleError(bitOp(i, "high"), err)
		}
		f[i] = pulse{lo: lo, hi: hi}
	}
	return nil
}

func bitOp(i int, half string) string {
	return "bit " + strconv.Itoa(i) + " " + half
}

// critical serializes critical sections; the GC percentage is process wide.
var critical sync.Mutex

// enterCritical pins the goroutine to its thread and stops the garbage
// collector so that no pause lands in the middle of a pulse. Call the
// returned function to leave.
func enterCritical() func() {
	critical.Lock()
	runtime.LockOSThread()
	pct := debug.SetGCPercent(-1)
	return func() {
		debug.SetGCPercent(pct)
		runtime.UnlockOSThread()
		critical.Unlock()
	}
}
