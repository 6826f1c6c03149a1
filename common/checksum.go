// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, the 8-bit additive checksum of the Aosong single-wire sensors.
package common

// Sum8 returns the low byte of the sum of the byte slice parameter. The DHT11
// and DHT22/AM2302 send it as the fifth byte of every frame.
func Sum8(bytes []byte) byte {
	var sum byte
	for _, val := range bytes {
		sum += val
	}
	return sum
}
