// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

import (
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

// Envelope is the outer header of a raw buffer.
//
// Word 0 holds the event size in 32-bit words (bits 31..12), flags
// (11..10), the event type (9..8), the module number (7..4) and the
// device type (3..0). Word 1 holds the trigger number. Single-frame
// device types carry an extra link word.
type Envelope struct {
	Size    int // total size in bytes, header included
	Flags   uint8
	Type    EventType
	Module  uint8
	Device  DeviceType
	Trigger uint32
	Link    uint32
}

const envHdrLen = 8

// IsDHC reports whether frames are wrapped into DHC start/end of event.
func (dev DeviceType) IsDHC() bool {
	return dev == DevDHCMulti || dev == DevDHCSingle
}

// IsONSEN reports whether the device type uses the ONSEN container.
func (dev DeviceType) IsONSEN() bool {
	return dev == DevDHESingle || dev == DevDHCSingle
}

func (dev DeviceType) String() string {
	switch dev {
	case DevDHEMulti:
		return "DHE-multi"
	case DevDHESingle:
		return "DHE-single"
	case DevDHCMulti:
		return "DHC-multi"
	case DevDHCSingle:
		return "DHC-single"
	}
	return "unknown"
}

func (evt EventType) String() string {
	switch evt {
	case EvtData:
		return "data"
	case EvtSlowControl:
		return "slow-control"
	case EvtStatus:
		return "status"
	}
	return "unknown"
}

// HeaderLen returns the size of the envelope header in bytes.
func (env Envelope) HeaderLen() int {
	if env.Device.IsONSEN() {
		return envHdrLen + 4
	}
	return envHdrLen
}

// ParseEnvelope decodes the envelope header of raw.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if len(raw) < envHdrLen {
		return env, fatalf("pxd: envelope header too short (%d bytes): %w", len(raw), ErrTruncated)
	}

	w0 := binary.BigEndian.Uint32(raw)
	env.Size = int(w0>>12) * 4
	env.Flags = uint8(w0 >> 10 & 0x3)
	env.Type = EventType(w0 >> 8 & 0x3)
	env.Module = uint8(w0 >> 4 & 0xf)
	env.Device = DeviceType(w0 & 0xf)
	env.Trigger = binary.BigEndian.Uint32(raw[4:])

	hdr := env.HeaderLen()
	if env.Size < hdr || env.Size > len(raw) {
		return env, fatalf("pxd: invalid envelope size %d (header=%d, buffer=%d): %w",
			env.Size, hdr, len(raw), ErrTruncated,
		)
	}
	if hdr > envHdrLen {
		env.Link = binary.BigEndian.Uint32(raw[envHdrLen:])
	}
	return env, nil
}

// Reader reads a stream of envelopes.
type Reader struct {
	r   io.Reader
	buf []byte
	err error
}

// NewReader returns a reader of envelopes from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, 0, 64*1024)}
}

// Next returns the next raw envelope.
// The returned slice is only valid until the next call to Next.
// Next returns io.EOF when the stream ends on an envelope boundary.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}

	r.load(4)
	if r.err != nil {
		if xerrors.Is(r.err, io.ErrUnexpectedEOF) {
			r.err = xerrors.Errorf("pxd: could not read envelope header: %w", r.err)
		}
		return nil, r.err
	}
	size := int(binary.BigEndian.Uint32(r.buf)>>12) * 4
	if size < envHdrLen {
		r.err = xerrors.Errorf("pxd: invalid envelope size %d: %w", size, ErrTruncated)
		return nil, r.err
	}
	r.load(size)
	if r.err != nil {
		if r.err == io.EOF {
			r.err = io.ErrUnexpectedEOF
		}
		r.err = xerrors.Errorf("pxd: could not read envelope (%d bytes): %w", size, r.err)
		return nil, r.err
	}
	return r.buf, nil
}

// load reads the first n bytes of the current envelope into r.buf,
// keeping the bytes already read.
func (r *Reader) load(n int) {
	if r.err != nil {
		return
	}
	beg := len(r.buf)
	if n == 4 {
		beg = 0
	}
	if cap(r.buf) < n {
		buf := make([]byte, n)
		copy(buf, r.buf[:beg])
		r.buf = buf
	}
	r.buf = r.buf[:n]
	_, r.err = io.ReadFull(r.r, r.buf[beg:])
}
