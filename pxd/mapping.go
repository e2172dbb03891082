// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

const nDrains = nDHP * nDHPCols * 4

// Drain permutation tables, indexed by 4*col + row%4.
var (
	tabHybrid5 = makeTable([4]int16{0, 1, 2, 3}, false)
	tabPXD9IF  = makeTable([4]int16{1, 0, 3, 2}, false)
	tabPXD9OF  = makeTable([4]int16{2, 3, 0, 1}, false)
	tabPXD9IB  = makeTable([4]int16{1, 0, 3, 2}, true)
	tabPXD9OB  = makeTable([4]int16{2, 3, 0, 1}, true)
)

func makeTable(perm [4]int16, backward bool) []int16 {
	tab := make([]int16, nDrains)
	for d := range tab {
		col := d / 4
		if backward {
			col = nDrains/4 - 1 - col
		}
		tab[d] = int16(4*col) + perm[d%4]
	}
	return tab
}

// AutoMapping returns the mapping of the module read out by the DHE
// with the given ID.
//
// The DHE ID encodes the layer (bit 5), the ladder (bits 4..1) and the
// forward/backward half-ladder (bit 0). IDs outside of the PXD9 ladder
// ranges select the Hybrid5 test setup.
func AutoMapping(dheID uint8) Mapping {
	var (
		layer  = dheID >> 5 & 0x1
		ladder = dheID >> 1 & 0xf
		bwd    = dheID&0x1 == 1
	)
	switch {
	case ladder == 0, ladder > 12, layer == 0 && ladder > 8:
		return MappingHybrid5
	case layer == 0 && !bwd:
		return MappingPXD9IF
	case layer == 0 && bwd:
		return MappingPXD9IB
	case !bwd:
		return MappingPXD9OF
	default:
		return MappingPXD9OB
	}
}

func (m Mapping) table() []int16 {
	switch m {
	case MappingHybrid5:
		return tabHybrid5
	case MappingPXD9IF:
		return tabPXD9IF
	case MappingPXD9OF:
		return tabPXD9OF
	case MappingPXD9IB:
		return tabPXD9IB
	case MappingPXD9OB:
		return tabPXD9OB
	}
	return nil
}

// inverseGate reports whether gate numbering runs backward for m.
func (m Mapping) inverseGate() bool {
	return m == MappingPXD9IB || m == MappingPXD9OB
}

// remapHit converts the DHP column/row coordinates of h into sensor
// coordinates.
func remapHit(h Hit, tab []int16, inverse, swap bool) (Hit, bool) {
	drain := 4*int(h.Col) + int(h.Row)%4
	if drain < 0 || drain >= len(tab) {
		return h, false
	}
	v := tab[drain]
	col := v / 4
	row := h.Row&^3 + v%4
	if inverse {
		row = nGates - 4 - h.Row&^3 + v%4
	}
	if swap {
		col, row = row, col
	}
	h.Col = col
	h.Row = row
	return h, true
}

// remap converts the hits of evt into sensor coordinates.
// The mapping is resolved per event so that a Decoder can be shared.
func (dec *Decoder) remap(evt *Event, info Info) {
	m := dec.cfg.mapping
	if m == MappingNone || len(evt.ZSData) == 0 && len(evt.RawData) == 0 {
		return
	}
	if evt.IsRaw {
		if dec.cfg.debug > 0 {
			dec.msg.Printf("DHE %d: remapping of raw data is not supported", evt.DHEID)
		}
		return
	}
	if m == MappingAuto {
		m = AutoMapping(evt.DHEID)
	}
	var (
		tab = m.table()
		inv = m.inverseGate()
	)
	for i, h := range evt.ZSData {
		hit, ok := remapHit(h, tab, inv, dec.cfg.swapAxis)
		if !ok {
			info.inc(ErrMappingRange)
			if dec.cfg.debug > 0 {
				dec.msg.Printf("DHE %d: hit (%d,%d) out of mapping range", evt.DHEID, h.Col, h.Row)
			}
			continue
		}
		evt.ZSData[i] = hit
	}
}
