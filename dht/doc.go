// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dht controls the DHT11 and DHT22/AM2302 temperature and humidity
// sensors over their single-wire data line.
//
// The host pulls the line low to request a reading, the sensor acknowledges
// with an 80µs low and an 80µs high pulse and then sends 40 bits. Every bit is
// a ~50µs low delimiter followed by a high pulse that is ~26µs for a 0 and
// ~70µs for a 1. The driver busy-polls the line in 1µs ticks and decides each
// bit by comparing the high pulse to the low pulse preceding it, so a read
// tolerates a slow or fast host clock as long as it is consistent over a bit.
//
// The fifth byte is the low byte of the sum of the first four.
//
// The DHT11 may be read once per second, the DHT22 once every two seconds.
// Dev.Read does not enforce this; Dev.SenseContinuous does.
//
// A read takes about 5ms (DHT22) or 25ms (DHT11) and is timing critical. It is
// run with the calling goroutine locked to its OS thread and the garbage
// collector disabled. On a loaded Linux host expect occasional timeout or
// checksum errors; retry them.
//
// # Datasheets
//
// https://www.mouser.com/datasheet/2/758/DHT11-Technical-Data-Sheet-Translated-Version-1143054.pdf
//
// https://www.sparkfun.com/datasheets/Sensors/Temperature/DHT22.pdf
package dht
