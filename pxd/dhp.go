// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

// data handles ghost, zero-suppressed and raw frames of the open DHE.
func (it *interp) data(idx int, f frame, typ FrameType) {
	if len(f) < szGhost {
		it.errorf(ErrFrameSize, "frame %d (%v): %d bytes", idx, typ, len(f))
		return
	}
	id := it.evt.DHEID
	if got := f.dheID(); got != id {
		it.errorf(ErrDHEID, "frame %d (%v): DHE ID %d != %d", idx, typ, got, id)
		return
	}
	if trg := f.trgLo(); trg != uint16(it.evt.TriggerNr) {
		it.errorf(ErrDHETrigger, "frame %d (%v): trigger 0x%04x != 0x%04x",
			idx, typ, trg, uint16(it.evt.TriggerNr),
		)
	}

	key := infoKey(dheKey(id), frameKey(idx))
	it.info.set(infoKey(key, infoFrameType), float64(typ))
	if f.errFlag() {
		it.info.set(infoKey(key, infoErrorFlag), 1)
	}

	dhp := f.dhp()
	if it.cfg.dhpFilter >= 0 && int(dhp) != it.cfg.dhpFilter {
		it.skipped = true
		return
	}

	switch typ {
	case FrameGhost:
		if len(f) != szGhost {
			it.errorf(ErrFrameSize, "frame %d (%v): %d bytes", idx, typ, len(f))
			return
		}
		it.finished = true
		it.gotZS = true

	case FrameZS:
		if it.cfg.skipZS {
			it.skipped = true
			return
		}
		if len(f) < szDataHdr {
			it.errorf(ErrFrameSize, "frame %d (%v): %d bytes", idx, typ, len(f))
			return
		}
		it.dhpHeader(idx, f, dhpTypeZS)
		if it.zs(key, f, dhp) {
			it.finished = true
			it.gotZS = true
		}

	case FrameRaw:
		if it.cfg.skipRaw {
			it.skipped = true
			return
		}
		if len(f) < szDataHdr {
			it.errorf(ErrFrameSize, "frame %d (%v): %d bytes", idx, typ, len(f))
			return
		}
		it.dhpHeader(idx, f, dhpTypeRaw)
		if it.raw(key, f, dhp) {
			it.finished = true
			it.gotRaw = true
		}
	}
}

func (it *interp) dhpHeader(idx int, f frame, want uint8) {
	if got := f.dhpType(); got != want {
		it.errorf(ErrDHPHeaderType, "frame %d: DHP header type %d != %d", idx, got, want)
	}
	if got := f.dhpDHEID(); got != it.evt.DHEID {
		it.errorf(ErrDHPDHEID, "frame %d: DHP header DHE ID %d != %d", idx, got, it.evt.DHEID)
	}
}

// frameTag returns the DHP frame number of f relative to the first
// frame of the same DHP in the current event.
func (it *interp) frameTag(f frame, dhp uint8) uint16 {
	nr := f.dhpFrameNr()
	if it.cfg.absFrameNr {
		return nr
	}
	if it.frameNr0[dhp] < 0 {
		it.frameNr0[dhp] = int(nr)
	}
	return nr - uint16(it.frameNr0[dhp])
}

func isRowHeader(hw uint16) bool { return hw&0x8000 == 0 }

// zs decodes the hits of a zero-suppressed frame.
//
// The payload is a sequence of half-words: row headers (bit 15 clear)
// carry the upper bits of the row and the common-mode value, hits
// (bit 15 set) carry the row parity, the column and the ADC value.
// Frames with an odd number of half-words are padded with a copy of the
// last row header.
func (it *interp) zs(key string, f frame, dhp uint8) bool {
	const beg = szDataHdr / 2
	n := f.nhw()
	end := n

	if n > beg && isRowHeader(f.hw(n-1)) {
		last := f.hw(n - 1)
		j := n - 2
		for j >= beg && !isRowHeader(f.hw(j)) {
			j--
		}
		if j >= beg && f.hw(j) != last {
			if n-1-j < 2 {
				it.errorf(ErrDHPBadPadding, "%s: padding 0x%04x != row header 0x%04x", key, last, f.hw(j))
				return false
			}
			it.info.inc(ErrDHPPaddingMismatch)
		}
		end = n - 1
	}

	var (
		tag    = it.frameTag(f, dhp)
		colOff int16
		row    int16
		cm     uint16
		hasRow bool
		prvRow bool
		nhits  int
	)
	if it.cfg.dhpFilter < 0 {
		colOff = int16(dhp) * nDHPCols
	}

	for i := beg; i < end; i++ {
		hw := f.hw(i)
		if isRowHeader(hw) {
			if prvRow {
				it.errorf(ErrDHPDoubleRowHeader, "%s: half-word %d", key, i)
			}
			prvRow = true
			hasRow = true
			row = int16(hw&0xffc0) >> 5
			cm = hw & 0x3f
			if cm == 63 {
				it.info.inc(infoKey(key, infoDHPCMError))
			}
			continue
		}
		prvRow = false
		if !hasRow {
			it.errorf(ErrDHPHitWithoutRow, "%s: half-word %d", key, i)
			continue
		}
		aux := cm
		if it.cfg.dhpFrameNr {
			aux = tag
		}
		it.evt.ZSData = append(it.evt.ZSData, Hit{
			Col:   int16(hw>>8&0x3f) + colOff,
			Row:   row | int16(hw>>14&0x1),
			Value: int16(hw & 0xff),
			Aux:   aux,
		})
		nhits++
	}

	it.info.set(infoKey(key, infoDHPFrameNr), float64(f.dhpFrameNr()))
	it.info.add(infoKey(key, infoDHPHits), float64(nhits))
	return true
}

// raw unpacks a full-frame raw readout into the [col][row] grid of the
// current event.
//
// Pixels come in blocks of 256 bytes holding 4 rows of 64 columns,
// with rows interleaved as 2,3,0,1.
func (it *interp) raw(key string, f frame, dhp uint8) bool {
	p := f[szDataHdr:]
	if len(p) == 0 || len(p)%nDHPCols != 0 {
		it.errorf(ErrRawFrameSize, "%s: %d bytes", key, len(p))
		return false
	}

	var (
		ncols = nDHPCols
		off   = 0
		nrows = 4 * ((len(p) + nRawRowsBlk - 1) / nRawRowsBlk)
		lut   = [4]int{2, 3, 0, 1}
	)
	if it.cfg.dhpFilter < 0 {
		ncols = nDHP * nDHPCols
		off = int(dhp) * nDHPCols
	}
	it.evt.RawData = growGrid(it.evt.RawData, ncols, nrows)

	for i, v := range p {
		var (
			row = 4*(i/nRawRowsBlk) + lut[i%4]
			col = (i%nRawRowsBlk)/4 + off
		)
		it.evt.RawData[col][row] = v
	}

	it.info.set(infoKey(key, infoDHPFrameNr), float64(f.dhpFrameNr()))
	it.info.add(infoKey(key, infoRawBytes), float64(len(p)))
	return true
}

func growGrid(g [][]byte, ncols, nrows int) [][]byte {
	for len(g) < ncols {
		g = append(g, nil)
	}
	for i, col := range g {
		if len(col) < nrows {
			g[i] = append(col, make([]byte, nrows-len(col))...)
		}
	}
	return g
}
