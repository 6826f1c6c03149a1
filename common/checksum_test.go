// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "testing"

func TestSum8(t *testing.T) {
	var tests = []struct {
		bytes  []byte
		result byte
	}{
		{bytes: nil, result: 0},
		{bytes: []byte{0x02, 0x8c, 0x01, 0x5f}, result: 0xee},
		{bytes: []byte{0xff, 0x01}, result: 0x00},
		{bytes: []byte{0x80, 0x80, 0x80, 0x81}, result: 0x01},
	}
	for _, test := range tests {
		res := Sum8(test.bytes)
		if res != test.result {
			t.Errorf("Sum8(%#v)!=0x%02x received 0x%02x", test.bytes, test.result, res)
		}
	}
}
