// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"github.com/go-lpc/depfet/pxd"
	"go-hep.org/x/hep/lcio"
)

// LCIO2PXD reads the PXD events stored in r and hands them to fct,
// one LCIO event at a time.
func LCIO2PXD(r *lcio.Reader, freq int, msg *log.Logger, fct func(evt *lcio.Event, evts []pxd.Event) error) error {
	i := 0
	for r.Next() {
		if freq > 0 && i%freq == 0 {
			msg.Printf("processing evt %d...", i)
		}
		evt := r.Event()
		evts, err := EventsFrom(&evt)
		if err != nil {
			return fmt.Errorf("could not decode LCIO event %d: %w", i, err)
		}
		err = fct(&evt, evts)
		if err != nil {
			return err
		}
		i++
	}

	err := r.Err()
	if err != nil && err != io.EOF {
		return fmt.Errorf("could not read LCIO file: %w", err)
	}
	return nil
}

// EventsFrom extracts the PXD events stored in an LCIO event.
func EventsFrom(evt *lcio.Event) ([]pxd.Event, error) {
	for _, name := range []string{HeadersName, DataName} {
		if !evt.Has(name) {
			return nil, fmt.Errorf("xcnv: missing %q collection", name)
		}
	}
	hdrs, ok := evt.Get(HeadersName).(*lcio.GenericObject)
	if !ok {
		return nil, fmt.Errorf("xcnv: invalid %q collection type %T", HeadersName, evt.Get(HeadersName))
	}
	data, ok := evt.Get(DataName).(*lcio.GenericObject)
	if !ok {
		return nil, fmt.Errorf("xcnv: invalid %q collection type %T", DataName, evt.Get(DataName))
	}
	if len(hdrs.Data) != len(data.Data) {
		return nil, fmt.Errorf(
			"xcnv: collections size mismatch (headers=%d, data=%d)",
			len(hdrs.Data), len(data.Data),
		)
	}

	evts := make([]pxd.Event, len(hdrs.Data))
	for i, hdr := range hdrs.Data {
		v := hdr.I32s
		if len(v) != nhdr {
			return nil, fmt.Errorf("xcnv: invalid header %d size (got=%d, want=%d)", i, len(v), nhdr)
		}
		evts[i] = pxd.Event{
			TriggerNr:     uint32(v[0]),
			TimeField:     uint32(v[1]),
			DHCTriggerNr:  uint32(v[2]),
			DHCTimeField:  uint32(v[3]),
			TriggerOffset: uint16(v[4]),
			DHEID:         uint8(v[5]),
			ModID:         uint8(v[6]),
			IsRaw:         v[7] != 0,
			IsGood:        v[8] != 0,
		}
		var err error
		switch {
		case evts[i].IsRaw:
			evts[i].RawData, err = rawFromI32s(data.Data[i].I32s)
		default:
			evts[i].ZSData, err = hitsFromI32s(data.Data[i].I32s)
		}
		if err != nil {
			return nil, fmt.Errorf("xcnv: could not decode data of event %d: %w", i, err)
		}
	}
	return evts, nil
}

func hitsFromI32s(v []int32) ([]pxd.Hit, error) {
	if len(v)%4 != 0 {
		return nil, fmt.Errorf("invalid hits payload size %d", len(v))
	}
	if len(v) == 0 {
		return nil, nil
	}
	hits := make([]pxd.Hit, len(v)/4)
	for i := range hits {
		hits[i] = pxd.Hit{
			Col:   int16(v[4*i+0]),
			Row:   int16(v[4*i+1]),
			Value: int16(v[4*i+2]),
			Aux:   uint16(v[4*i+3]),
		}
	}
	return hits, nil
}

func rawFromI32s(v []int32) ([][]byte, error) {
	if len(v) < 2 {
		return nil, fmt.Errorf("invalid raw payload size %d", len(v))
	}
	ncols, nrows := int(v[0]), int(v[1])
	if ncols < 0 || nrows < 0 || 4*(len(v)-2) < ncols*nrows {
		return nil, fmt.Errorf("invalid raw payload (cols=%d, rows=%d, size=%d)", ncols, nrows, len(v))
	}
	if ncols == 0 {
		return nil, nil
	}
	buf := make([]byte, 4*(len(v)-2))
	for i, w := range v[2:] {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(w))
	}
	grid := make([][]byte, ncols)
	for i := range grid {
		grid[i] = buf[i*nrows : (i+1)*nrows : (i+1)*nrows]
	}
	return grid, nil
}
