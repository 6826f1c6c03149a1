// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dht

import (
	"errors"
	"fmt"
)

// Kind classifies a failed read.
type Kind uint8

const (
	// KindIO means an operation on the data pin failed.
	KindIO Kind = iota + 1
	// KindChecksum means a whole frame was received but its fifth byte does
	// not match the data.
	KindChecksum
	// KindTimeout means an expected edge did not come within 255µs. The sensor
	// is disconnected, on another pin, or the host missed an edge.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindChecksum:
		return "checksum"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is the error returned by Dev.Read and Decode.
type Error struct {
	Kind Kind
	// Op is the step that failed, e.g. "start low" or "bit 12 high". Set for
	// KindIO and KindTimeout.
	Op string
	// Err is the pin error. Set for KindIO.
	Err error
	// Expected is the checksum of the four data bytes and Actual the checksum
	// byte sent by the sensor. Set for KindChecksum.
	Expected byte
	Actual   byte
}

// ErrTimeout matches every KindTimeout Error with errors.Is.
var ErrTimeout error = &Error{Kind: KindTimeout}

func (e *Error) Error() string {
	switch e.Kind {
	case KindIO:
		return "dht: " + e.Op + ": " + e.Err.Error()
	case KindChecksum:
		return fmt.Sprintf("dht: checksum mismatch: expected 0x%02x, got 0x%02x", e.Expected, e.Actual)
	case KindTimeout:
		if e.Op == "" {
			return "dht: timeout"
		}
		return "dht: timeout waiting for " + e.Op
	default:
		return "dht: unknown error"
	}
}

// Unwrap returns the pin error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTimeout and e is a timeout.
func (e *Error) Is(target error) bool {
	return target == ErrTimeout && e.Kind == KindTimeout
}

// IsTimeout returns true if a pulse did not complete in time.
func (e *Error) IsTimeout() bool {
	return e.Kind == KindTimeout
}

// IsIO returns true if reading or writing the data pin failed.
func (e *Error) IsIO() bool {
	return e.Kind == KindIO
}

// IsChecksum returns true if the frame had a bad checksum.
func (e *Error) IsChecksum() bool {
	return e.Kind == KindChecksum
}

// IO returns the underlying pin error, or nil if the error was not caused by
// the pin.
func (e *Error) IO() error {
	if e.Kind != KindIO {
		return nil
	}
	return e.Err
}

// IsTimeout returns true if err is or wraps a timeout Error.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsTimeout()
}

// IsIO returns true if err is or wraps a pin IO Error.
func IsIO(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsIO()
}

// IsChecksum returns true if err is or wraps a checksum Error.
func IsChecksum(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsChecksum()
}

func ioError(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// sampleError converts an error from waitFor.
func sampleError(op string, err error) error {
	if err == ErrTimeout {
		return &Error{Kind: KindTimeout, Op: op}
	}
	return ioError(op, err)
}
