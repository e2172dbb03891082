// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/go-lpc/depfet/pxd"
	"go-hep.org/x/hep/lcio"
)

// PXD2LCIO decodes the envelopes read from r and writes one LCIO event
// per envelope to w.
// Envelopes that can not be decoded are reported and skipped.
func PXD2LCIO(w *lcio.Writer, r *pxd.Reader, dec *pxd.Decoder, run int32, info pxd.Info, msg *log.Logger) error {
	var evts []pxd.Event

	err := w.WriteRunHeader(&lcio.RunHeader{
		RunNumber: run,
		Detector:  detector,
		Descr:     "",
		Params: lcio.Params{
			Strings: map[string][]string{
				"Collections": {HeadersName, DataName},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("could not write run header: %w", err)
	}

loop:
	for i := 0; ; i++ {
		if i%100 == 0 {
			msg.Printf("processing evt %d...", i)
		}
		raw, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not read envelope %d: %w", i, err)
		}

		env, err := pxd.ParseEnvelope(raw)
		if err != nil {
			msg.Printf("could not parse envelope %d: %+v", i, err)
			continue
		}

		evts, err = dec.Decode(evts[:0], raw, info)
		if err != nil {
			if !pxd.IsFatal(err) {
				return fmt.Errorf("could not decode envelope %d: %w", i, err)
			}
			msg.Printf("could not decode envelope %d: %+v", i, err)
			continue
		}

		evt := lcio.Event{
			RunNumber:   run,
			EventNumber: int32(i),
			TimeStamp:   int64(env.Trigger),
			Detector:    detector,
		}
		hdrs, data := collectionsFrom(evts)
		evt.Add(HeadersName, hdrs)
		evt.Add(DataName, data)

		err = w.WriteEvent(&evt)
		if err != nil {
			return fmt.Errorf("could not write PXD event %d: %w", i, err)
		}
	}

	return nil
}

func collectionsFrom(evts []pxd.Event) (hdrs, data *lcio.GenericObject) {
	hdrs = &lcio.GenericObject{
		Data: make([]lcio.GenericObjectData, len(evts)),
	}
	data = &lcio.GenericObject{
		Data: make([]lcio.GenericObjectData, len(evts)),
	}
	for i := range evts {
		evt := &evts[i]
		hdrs.Data[i].I32s = []int32{
			int32(evt.TriggerNr),
			int32(evt.TimeField),
			int32(evt.DHCTriggerNr),
			int32(evt.DHCTimeField),
			int32(evt.TriggerOffset),
			int32(evt.DHEID),
			int32(evt.ModID),
			i32From(evt.IsRaw),
			i32From(evt.IsGood),
		}
		switch {
		case evt.IsRaw:
			data.Data[i].I32s = i32sFromRaw(evt.RawData)
		default:
			data.Data[i].I32s = i32sFromHits(evt.ZSData)
		}
	}
	return hdrs, data
}

func i32From(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

func i32sFromHits(hits []pxd.Hit) []int32 {
	o := make([]int32, 0, 4*len(hits))
	for _, hit := range hits {
		o = append(o,
			int32(hit.Col), int32(hit.Row),
			int32(hit.Value), int32(hit.Aux),
		)
	}
	return o
}

// i32sFromRaw packs a [col][row] grid as its dimensions followed by its
// column-major content, 4 bytes per int32.
func i32sFromRaw(grid [][]byte) []int32 {
	ncols := len(grid)
	nrows := 0
	if ncols > 0 {
		nrows = len(grid[0])
	}
	buf := make([]byte, 0, ncols*nrows+3)
	for _, col := range grid {
		buf = append(buf, col...)
	}
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}

	o := make([]int32, 2, 2+len(buf)/4)
	o[0] = int32(ncols)
	o[1] = int32(nrows)
	for i := 0; i < len(buf); i += 4 {
		o = append(o, int32(binary.LittleEndian.Uint32(buf[i:])))
	}
	return o
}
