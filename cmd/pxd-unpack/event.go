// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/depfet/pxd"
)

// eventBatch is the list of events decoded from one envelope, as
// published on the /pxd-evts output.
type eventBatch []pxd.Event

func (evts eventBatch) MarshalTDAQ() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU32(uint32(len(evts)))
	for i := range evts {
		evt := &evts[i]
		enc.WriteU32(evt.TriggerNr)
		enc.WriteU32(evt.TimeField)
		enc.WriteU32(evt.DHCTriggerNr)
		enc.WriteU32(evt.DHCTimeField)
		enc.WriteU16(evt.TriggerOffset)
		enc.WriteU8(evt.DHEID)
		enc.WriteU8(evt.ModID)
		enc.WriteBool(evt.IsRaw)
		enc.WriteBool(evt.IsGood)

		enc.WriteU32(uint32(len(evt.ZSData)))
		for _, hit := range evt.ZSData {
			enc.WriteI16(hit.Col)
			enc.WriteI16(hit.Row)
			enc.WriteI16(hit.Value)
			enc.WriteU16(hit.Aux)
		}

		enc.WriteU32(uint32(len(evt.RawData)))
		for _, col := range evt.RawData {
			enc.WriteU32(uint32(len(col)))
			for _, v := range col {
				enc.WriteU8(v)
			}
		}
	}
	return buf.Bytes(), enc.Err()
}

func (evts *eventBatch) UnmarshalTDAQ(p []byte) error {
	dec := tdaq.NewDecoder(bytes.NewReader(p))
	n := int(dec.ReadU32())
	if err := dec.Err(); err != nil {
		return fmt.Errorf("could not read number of events: %w", err)
	}
	if n > len(p) {
		return fmt.Errorf("invalid number of events %d", n)
	}

	o := make(eventBatch, n)
	for i := range o {
		evt := &o[i]
		evt.TriggerNr = dec.ReadU32()
		evt.TimeField = dec.ReadU32()
		evt.DHCTriggerNr = dec.ReadU32()
		evt.DHCTimeField = dec.ReadU32()
		evt.TriggerOffset = dec.ReadU16()
		evt.DHEID = dec.ReadU8()
		evt.ModID = dec.ReadU8()
		evt.IsRaw = dec.ReadBool()
		evt.IsGood = dec.ReadBool()

		nhits := int(dec.ReadU32())
		if nhits > len(p) {
			return fmt.Errorf("invalid number of hits %d for event %d", nhits, i)
		}
		if nhits > 0 {
			evt.ZSData = make([]pxd.Hit, nhits)
			for j := range evt.ZSData {
				hit := &evt.ZSData[j]
				hit.Col = dec.ReadI16()
				hit.Row = dec.ReadI16()
				hit.Value = dec.ReadI16()
				hit.Aux = dec.ReadU16()
			}
		}

		ncols := int(dec.ReadU32())
		if ncols > len(p) {
			return fmt.Errorf("invalid number of columns %d for event %d", ncols, i)
		}
		if ncols > 0 {
			evt.RawData = make([][]byte, ncols)
			for j := range evt.RawData {
				nrows := int(dec.ReadU32())
				if nrows > len(p) {
					return fmt.Errorf("invalid number of rows %d for event %d", nrows, i)
				}
				col := make([]byte, nrows)
				for k := range col {
					col[k] = dec.ReadU8()
				}
				evt.RawData[j] = col
			}
		}

		if err := dec.Err(); err != nil {
			return fmt.Errorf("could not decode event %d: %w", i, err)
		}
	}

	*evts = o
	return nil
}
