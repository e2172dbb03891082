// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

import (
	"encoding/binary"

	"github.com/go-lpc/depfet/internal/crc32"
)

// Walker iterates over the frames of a container.
type Walker interface {
	// More reports whether the current position holds a frame.
	More() bool
	// Frame returns the current frame, or nil past the last frame.
	// The returned slice aliases the container buffer.
	Frame() []byte
	// Words returns the size of the current frame in 32-bit words.
	Words() int
	// HasCRC reports whether frames end with a CRC word.
	HasCRC() bool
	// Advance moves to the next frame.
	Advance()
	// Reset rewinds to the first frame.
	Reset()
	// NumFrames returns the number of frames in the container.
	NumFrames() int
	// Complete reports whether the container asserts that all frames
	// are present.
	Complete() bool
	// CRCValid reports whether the container-level checksum matched.
	CRCValid() bool
}

type span struct {
	beg, end int
}

type walker struct {
	buf  []byte
	fs   []span
	cur  int
	crcs bool
	full bool
	ok   bool
}

func (w *walker) More() bool { return w.cur < len(w.fs) }

func (w *walker) Frame() []byte {
	if !w.More() {
		return nil
	}
	f := w.fs[w.cur]
	return w.buf[f.beg:f.end:f.end]
}

func (w *walker) Words() int {
	if !w.More() {
		return 0
	}
	f := w.fs[w.cur]
	return (f.end - f.beg) / 4
}

func (w *walker) HasCRC() bool   { return w.crcs }
func (w *walker) NumFrames() int { return len(w.fs) }
func (w *walker) Complete() bool { return w.full }
func (w *walker) CRCValid() bool { return w.ok }
func (w *walker) Reset()         { w.cur = 0 }

func (w *walker) Advance() {
	if w.cur < len(w.fs) {
		w.cur++
	}
}

// DHHWalker walks over the frames of a DHH-DAQ container.
//
// The container starts with a header word holding the 0xDDAA marker,
// a small-fields flag, a no-CRC flag, an all-frames-present flag and,
// for small fields, the number of frames. A table of frame lengths
// follows, then a checksum of the table of contents and the frames.
// When the no-CRC flag is set, frames carry no CRC and the last word of
// the container holds the checksum of everything before it.
type DHHWalker struct {
	walker
}

// NewDHHWalker returns a walker over the DHH-DAQ container p.
// A buffer smaller than a header word yields zero frames.
func NewDHHWalker(p []byte) (*DHHWalker, error) {
	w := &DHHWalker{walker{buf: p, ok: true}}
	if len(p) < 4 {
		return w, nil
	}

	var (
		w0    = binary.BigEndian.Uint32(p)
		small = w0>>15&1 == 1
		nocrc = w0>>14&1 == 1
		pos   = 4
		n     int
	)
	if magic := w0 >> 16; magic != dhhMagic {
		return nil, fatalf("pxd: invalid DHH-DAQ marker (got=0x%04x, want=0x%04x): %w", magic, dhhMagic, ErrBadMagic)
	}
	w.crcs = !nocrc
	w.full = w0>>13&1 == 1

	switch {
	case small:
		n = int(w0 & 0x1fff)
	default:
		if len(p) < 8 {
			return nil, fatalf("pxd: DHH-DAQ frame count missing: %w", ErrTruncated)
		}
		n = int(binary.BigEndian.Uint32(p[4:]))
		pos = 8
	}

	esz := 4
	if small {
		esz = 2
	}
	if n > (len(p)-pos)/esz {
		return nil, fatalf("pxd: DHH-DAQ table of %d frames exceeds buffer (%d bytes): %w", n, len(p), ErrTruncated)
	}
	lens := make([]int, n)
	for i := range lens {
		switch {
		case small:
			lens[i] = int(binary.BigEndian.Uint16(p[pos+2*i:]))
		default:
			lens[i] = int(binary.BigEndian.Uint32(p[pos+4*i:]))
		}
	}
	pos += align4(n * esz)

	end := len(p)
	switch {
	case nocrc:
		if pos+4 > end {
			return nil, fatalf("pxd: DHH-DAQ container CRC missing: %w", ErrTruncated)
		}
		end -= 4
		w.ok = crc32.Checksum(p[:end]) == binary.BigEndian.Uint32(p[end:])
	default:
		if pos+4 > end {
			return nil, fatalf("pxd: DHH-DAQ table-of-contents CRC missing: %w", ErrTruncated)
		}
		w.ok = crc32.Checksum(p[:pos]) == binary.BigEndian.Uint32(p[pos:])
		pos += 4
	}

	w.fs = make([]span, n)
	for i, sz := range lens {
		if sz < 0 || pos+sz > end {
			return nil, fatalf("pxd: DHH-DAQ frame %d (%d bytes at offset %d) exceeds buffer (%d bytes): %w",
				i, sz, pos, end, ErrTruncated,
			)
		}
		w.fs[i] = span{pos, pos + sz}
		pos += align4(sz)
	}

	return w, nil
}

// ONSENWalker walks over the frames of a legacy ONSEN container.
//
// Each frame is preceded by a 0xCAFEBABE marker and its size in bytes.
// The frame sizes must add up exactly to the buffer size.
type ONSENWalker struct {
	walker
}

const onsenHdrLen = 8

// NewONSENWalker returns a walker over the ONSEN container p.
// The frames are counted up front: any marker mismatch or size
// inconsistency is a fatal error.
// A buffer smaller than a frame header yields zero frames.
func NewONSENWalker(p []byte) (*ONSENWalker, error) {
	w := &ONSENWalker{walker{buf: p, crcs: true, full: true, ok: true}}
	if len(p) < onsenHdrLen {
		return w, nil
	}

	pos := 0
	for pos < len(p) {
		if len(p)-pos < onsenHdrLen {
			return nil, fatalf("pxd: ONSEN frame %d header overruns buffer (offset=%d, size=%d): %w",
				len(w.fs), pos, len(p), ErrONSENScan,
			)
		}
		magic := binary.BigEndian.Uint32(p[pos:])
		if magic != onsenMagic {
			return nil, fatalf("pxd: invalid ONSEN marker at offset %d (got=0x%08x, want=0x%08x): %w",
				pos, magic, uint32(onsenMagic), ErrBadMagic,
			)
		}
		sz := int(binary.BigEndian.Uint32(p[pos+4:]))
		if sz%4 != 0 {
			return nil, fatalf("pxd: ONSEN frame %d has misaligned size %d: %w", len(w.fs), sz, ErrONSENScan)
		}
		beg := pos + onsenHdrLen
		if sz > len(p)-beg {
			return nil, fatalf("pxd: ONSEN frame %d (%d bytes at offset %d) overruns buffer (%d bytes): %w",
				len(w.fs), sz, beg, len(p), ErrONSENScan,
			)
		}
		w.fs = append(w.fs, span{beg, beg + sz})
		pos = beg + sz
	}

	return w, nil
}

var (
	_ Walker = (*DHHWalker)(nil)
	_ Walker = (*ONSENWalker)(nil)
)
