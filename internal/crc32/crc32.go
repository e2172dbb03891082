// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crc32 implements the 32-bit cyclic redundancy check used by
// the DHH/DHC firmware to protect its frames.
//
// The checksum uses the 0x04C11DB7 polynomial, MSB-first (no bit
// reflection), a zero initial value and no final XOR.
// This is not the IEEE variant provided by hash/crc32.
package crc32 // import "github.com/go-lpc/depfet/internal/crc32"

import (
	"hash"
)

// Size of a CRC-32 checksum in bytes.
const Size = 4

// DHH is the polynomial used by the DHH firmware.
const DHH = 0x04c11db7

// Table is a 256-word table representing the polynomial for efficient processing.
type Table [256]uint32

// MakeTable returns a Table constructed from the specified polynomial.
func MakeTable(poly uint32) *Table {
	t := new(Table)
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

var dhhTable = MakeTable(DHH)

// Update returns the result of adding the bytes in p to the crc.
func Update(crc uint32, tab *Table, p []byte) uint32 {
	for _, v := range p {
		crc = crc<<8 ^ tab[byte(crc>>24)^v]
	}
	return crc
}

// Checksum returns the DHH CRC-32 checksum of data.
func Checksum(data []byte) uint32 {
	return Update(0, dhhTable, data)
}

type digest struct {
	crc uint32
	tab *Table
}

// New creates a new hash.Hash32 computing the CRC-32 checksum using the
// polynomial represented by the Table.
// A nil table selects the DHH polynomial.
func New(tab *Table) hash.Hash32 {
	if tab == nil {
		tab = dhhTable
	}
	return &digest{tab: tab}
}

func (d *digest) Size() int      { return Size }
func (d *digest) BlockSize() int { return 1 }
func (d *digest) Reset()         { d.crc = 0 }

func (d *digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, d.tab, p)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return d.crc }

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum32()
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}
