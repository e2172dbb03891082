// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

import (
	"errors"

	"golang.org/x/xerrors"
)

var (
	ErrBadMagic      = errors.New("pxd: bad magic")
	ErrEventType     = errors.New("pxd: unexpected event type")
	ErrDeviceType    = errors.New("pxd: unknown device type")
	ErrRawAndZS      = errors.New("pxd: event holds both raw and zero-suppressed data")
	ErrONSENScan     = errors.New("pxd: inconsistent ONSEN frame sizes")
	ErrTruncated     = errors.New("pxd: truncated buffer")
	ErrFrameTooSmall = errors.New("pxd: frame too small")
	ErrNoDHE         = errors.New("pxd: no DHE frames received")
)

// FatalError reports a buffer that could not be decoded at all.
// The whole buffer is discarded; no events are produced for it.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func fatalf(format string, args ...interface{}) error {
	return &FatalError{Err: xerrors.Errorf(format, args...)}
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
