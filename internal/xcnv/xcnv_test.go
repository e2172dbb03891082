// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/depfet/pxd"
	"github.com/google/go-cmp/cmp"
	"go-hep.org/x/hep/lcio"
)

func TestPXD2LCIO(t *testing.T) {
	tmp, err := os.MkdirTemp("", "depfet-xcnv-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	var (
		buf = new(bytes.Buffer)
		enc = pxd.NewEncoder(buf, pxd.DevDHCMulti)
		raw = make([]byte, 256)
	)
	for i := range raw {
		raw[i] = byte(i)
	}

	for trg := uint32(1); trg <= 3; trg++ {
		enc.Trigger = trg
		enc.Module = 2
		enc.DHCStart(pxd.DHCHeader{ID: 1, Trigger: trg, Time: 10 * trg})
		enc.DHEStart(pxd.DHEHeader{ID: 2, Trigger: trg, TriggerOffset: 3})
		enc.ZS(pxd.DataHeader{DHE: 2, DHP: 1, Trigger: uint16(trg)}, []pxd.Hit{
			{Col: 1, Row: 2, Value: 3, Aux: 4},
			{Col: 5, Row: 6, Value: 7, Aux: 4},
		})
		enc.DHEEnd(pxd.EndHeader{ID: 2, Trigger: uint16(trg)})
		enc.DHEStart(pxd.DHEHeader{ID: 4, Trigger: trg})
		enc.Raw(pxd.DataHeader{DHE: 4, Trigger: uint16(trg)}, raw)
		enc.DHEEnd(pxd.EndHeader{ID: 4, Trigger: uint16(trg)})
		enc.DHEStart(pxd.DHEHeader{ID: 6, Trigger: trg})
		enc.DHEEnd(pxd.EndHeader{ID: 6, Trigger: uint16(trg)})
		enc.DHCEnd(pxd.EndHeader{ID: 1, Trigger: uint16(trg)})
		err := enc.Flush()
		if err != nil {
			t.Fatalf("could not write envelope: %+v", err)
		}
	}
	// a status envelope, which can not be decoded.
	_, _ = buf.Write([]byte{0x00, 0x00, 0x23, 0x01, 0, 0, 0, 0})

	var (
		msg   = log.New(io.Discard, "", 0)
		dec   = pxd.NewDecoder(pxd.WithLogger(msg))
		fname = filepath.Join(tmp, "pxd.slcio")
		info  = make(pxd.Info)
	)

	var want [][]pxd.Event
	{
		r := pxd.NewReader(bytes.NewReader(buf.Bytes()))
		for i := 0; i < 3; i++ {
			raw, err := r.Next()
			if err != nil {
				t.Fatalf("could not read envelope %d: %+v", i, err)
			}
			evts, err := dec.Decode(nil, raw, nil)
			if err != nil {
				t.Fatalf("could not decode envelope %d: %+v", i, err)
			}
			want = append(want, evts)
		}
	}

	lw, err := lcio.Create(fname)
	if err != nil {
		t.Fatalf("could not create LCIO file: %+v", err)
	}
	defer lw.Close()

	err = PXD2LCIO(lw, pxd.NewReader(bytes.NewReader(buf.Bytes())), dec, 42, info, msg)
	if err != nil {
		t.Fatalf("could not convert to LCIO: %+v", err)
	}
	err = lw.Close()
	if err != nil {
		t.Fatalf("could not close LCIO file: %+v", err)
	}

	if got, want := info[pxd.CntEvents], 9.0; got != want {
		t.Fatalf("invalid number of decoded events: got=%v, want=%v", got, want)
	}

	lr, err := lcio.Open(fname)
	if err != nil {
		t.Fatalf("could not open LCIO file: %+v", err)
	}
	defer lr.Close()

	var got [][]pxd.Event
	err = LCIO2PXD(lr, 1, msg, func(evt *lcio.Event, evts []pxd.Event) error {
		if evt.RunNumber != 42 {
			t.Errorf("invalid run number: got=%d, want=%d", evt.RunNumber, 42)
		}
		got = append(got, evts)
		return nil
	})
	if err != nil {
		t.Fatalf("could not convert from LCIO: %+v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round-trip failed: (-want +got)\n%s", diff)
	}
}

func TestRawRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		grid [][]byte
	}{
		{name: "empty"},
		{name: "1x1", grid: [][]byte{{42}}},
		{name: "3x3", grid: [][]byte{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := rawFromI32s(i32sFromRaw(tc.grid))
			if err != nil {
				t.Fatalf("could not decode raw grid: %+v", err)
			}
			if diff := cmp.Diff(tc.grid, got); diff != "" {
				t.Fatalf("round-trip failed: (-want +got)\n%s", diff)
			}
		})
	}

	_, err := rawFromI32s([]int32{4, 4, 0})
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestEventsFromErrors(t *testing.T) {
	var evt lcio.Event
	_, err := EventsFrom(&evt)
	if err == nil {
		t.Fatalf("expected an error for an event without PXD collections")
	}

	evt.Add(HeadersName, &lcio.GenericObject{
		Data: []lcio.GenericObjectData{{I32s: []int32{1, 2, 3}}},
	})
	evt.Add(DataName, &lcio.GenericObject{
		Data: []lcio.GenericObjectData{{I32s: nil}},
	})
	_, err = EventsFrom(&evt)
	if err == nil {
		t.Fatalf("expected an error for an invalid header")
	}
}
