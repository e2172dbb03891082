// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

import (
	"encoding/binary"

	"github.com/go-lpc/depfet/internal/crc32"
)

// Fixed frame sizes in bytes, trailing CRC excluded.
const (
	szDHCStart = 12
	szDHEStart = 12
	szGhost    = 4
	szEnd      = 12
	szDataHdr  = 8 // ZS and raw frames: header, trigger, DHP header, DHP frame nr
	szCRC      = crc32.Size
)

// frame is a view of one frame, trailing CRC excluded.
// Contents are big-endian 16-bit half-words.
type frame []byte

func (f frame) hw(i int) uint16 { return binary.BigEndian.Uint16(f[2*i:]) }
func (f frame) nhw() int        { return len(f) / 2 }

// u32 returns the 32-bit value stored as two half-words, low half first.
func (f frame) u32(i int) uint32 { return uint32(f.hw(i)) | uint32(f.hw(i+1))<<16 }

func (f frame) typ() FrameType { return FrameType(f.hw(0) >> 11 & 0xf) }
func (f frame) errFlag() bool  { return f.hw(0)>>15 != 0 }
func (f frame) dheID() uint8   { return uint8(f.hw(0) >> 4 & 0x3f) }
func (f frame) dhcID() uint8   { return uint8(f.hw(0) >> 4 & 0xf) }
func (f frame) mask() uint8    { return uint8(f.hw(0) & 0xf) }
func (f frame) dhp() uint8     { return uint8(f.hw(0) & 0x3) }
func (f frame) trgLo() uint16  { return f.hw(1) }

// start of event/frame.

func (f frame) trigger() uint32 { return f.u32(1) }
func (f frame) time() uint32    { return f.u32(3) }
func (f frame) run() uint16     { return f.hw(5) }
func (f frame) offset() uint16  { return f.hw(5) & 0x3ff }
func (f frame) sfnr() uint8     { return uint8(f.hw(5) >> 10) }

// end of event/frame.

func (f frame) words() uint32   { return f.u32(2) }
func (f frame) errInfo() uint32 { return f.u32(4) }

// DHP header of ZS and raw frames.

func (f frame) dhpType() uint8  { return uint8(f.hw(2) >> 13) }
func (f frame) dhpDHEID() uint8 { return uint8(f.hw(2) >> 2 & 0x3f) }
func (f frame) dhpFrameNr() uint16 {
	return f.hw(3)
}

// checkCRC validates the trailing CRC word of a raw frame.
// The trailer is stored as two half-words, high half first.
func checkCRC(raw []byte) bool {
	if len(raw) < szCRC {
		return false
	}
	n := len(raw) - szCRC
	return crc32.Checksum(raw[:n]) == binary.BigEndian.Uint32(raw[n:])
}

func align4(n int) int { return (n + 3) &^ 3 }
