// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/depfet/internal/xcnv"
	"github.com/go-lpc/depfet/pxd"
	"go-hep.org/x/hep/lcio"
)

func newTestDecoder() *pxd.Decoder {
	return pxd.NewDecoder(
		pxd.WithMapping(pxd.MappingNone),
		pxd.WithLogger(log.New(io.Discard, "", 0)),
	)
}

// rawData returns a DHE-only envelope with 3 hits followed by a
// status envelope.
func rawData() []byte {
	buf := new(bytes.Buffer)
	enc := pxd.NewEncoder(buf, pxd.DevDHEMulti)
	enc.Trigger = 42
	enc.DHEStart(pxd.DHEHeader{ID: 2, DHPMask: 0xf, Trigger: 42, Time: 1234, TriggerOffset: 5})
	enc.ZS(pxd.DataHeader{DHE: 2, DHP: 0, Trigger: 42, FrameNr: 7}, []pxd.Hit{
		{Col: 5, Row: 10, Value: 7},
		{Col: 6, Row: 11, Value: 8},
		{Col: 7, Row: 12, Value: 9},
	})
	enc.DHEEnd(pxd.EndHeader{ID: 2, Trigger: 42})
	err := enc.Flush()
	if err != nil {
		panic(err)
	}
	_, _ = buf.Write([]byte{0x00, 0x00, 0x23, 0x01, 0, 0, 0, 0})
	return buf.Bytes()
}

func TestDump(t *testing.T) {
	tmp, err := os.MkdirTemp("", "pxd-dump-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmp)

	var fnames []string
	for i := 0; i < 3; i++ {
		fname := filepath.Join(tmp, fmt.Sprintf("pxd_%03d.000.raw", i))
		err = os.WriteFile(fname, rawData(), 0644)
		if err != nil {
			t.Fatal(err)
		}
		fnames = append(fnames, fname)
	}

	xmain(io.Discard, append([]string{"-j", "2", "-info"}, fnames...))

	out := new(strings.Builder)
	xmain(out, []string{"-version"})
	if !strings.HasPrefix(out.String(), "pxd-dump ") {
		t.Fatalf("invalid version output: %q", out.String())
	}
}

func TestProcess(t *testing.T) {
	tmp, err := os.MkdirTemp("", "depfet-pxd-dump-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	for _, tc := range []struct {
		name string
		data []byte
		want string
		err  error
	}{
		{
			name: "simple",
			data: rawData(),
			want: `=== envelope 0 ===
Module:           0
Device:   DHE-multi
Trigger:         42
Events:           1
  DHE=0x02 trigger=42 time=1234 offset=5 kind=zs good=true
    col=   5 row=  10 adc=   7 aux=0
    col=   6 row=  11 adc=   8 aux=0
    col=   7 row=  12 adc=   9 aux=0
=== envelope 1 ===
Module:           0
Device:   DHE-multi
Trigger:          0
Error:   pxd: invalid event type 3: pxd: unexpected event type
`,
		},
		{
			name: "empty",
			data: nil,
			want: "",
		},
		{
			name: "truncated",
			data: []byte{0xaa, 0xbb},
			err:  fmt.Errorf("could not read envelope 0: pxd: could not read envelope header: %w", io.ErrUnexpectedEOF),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(tmp, tc.name+".raw")
			err := os.WriteFile(fname, tc.data, 0644)
			if err != nil {
				t.Fatalf("could not create raw PXD file: %+v", err)
			}

			out := new(strings.Builder)
			err = process(out, fname, newTestDecoder(), make(pxd.Info))
			switch {
			case err != nil && tc.err != nil:
				if got, want := err.Error(), tc.err.Error(); got != want {
					t.Fatalf("invalid error:\ngot= %v\nwant=%v\n", got, want)
				}
			case err != nil && tc.err == nil:
				t.Fatalf("could not pxd-dump: %+v", err)
			case err == nil && tc.err == nil:
				if got, want := out.String(), tc.want; got != want {
					t.Fatalf("invalid pxd-dump output:\ngot:\n%s\nwant:\n%s\n", got, want)
				}
			case err == nil && tc.err != nil:
				t.Fatalf("invalid error:\ngot= %v\nwant=%v\n", err, tc.err)
			}
		})
	}
}

func TestProcessLCIO(t *testing.T) {
	tmp, err := os.MkdirTemp("", "depfet-pxd-dump-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	fname := filepath.Join(tmp, "pxd.slcio")
	w, err := lcio.Create(fname)
	if err != nil {
		t.Fatalf("could not create LCIO file: %+v", err)
	}
	defer w.Close()

	var (
		msg = log.New(io.Discard, "", 0)
		r   = pxd.NewReader(bytes.NewReader(rawData()))
	)
	err = xcnv.PXD2LCIO(w, r, newTestDecoder(), 42, nil, msg)
	if err != nil {
		t.Fatalf("could not convert to LCIO: %+v", err)
	}
	err = w.Close()
	if err != nil {
		t.Fatalf("could not close LCIO file: %+v", err)
	}

	out := new(strings.Builder)
	err = processLCIO(out, fname)
	if err != nil {
		t.Fatalf("could not dump LCIO file: %+v", err)
	}

	want := `=== event 0 ===
Run:             42
Trigger:         42
Events:           1
  DHE=0x02 trigger=42 time=1234 offset=5 kind=zs good=true
    col=   5 row=  10 adc=   7 aux=0
    col=   6 row=  11 adc=   8 aux=0
    col=   7 row=  12 adc=   9 aux=0
`
	if got := out.String(); got != want {
		t.Fatalf("invalid pxd-dump output:\ngot:\n%s\nwant:\n%s\n", got, want)
	}
}

func TestDumpOrder(t *testing.T) {
	fnames := []string{"f0", "f1", "f2", "f3", "f4"}
	out := new(strings.Builder)
	infos, err := dump(out, fnames, 3, func(w io.Writer, fname string, info pxd.Info) error {
		info["EVENTS"] = float64(len(fname))
		_, err := fmt.Fprintf(w, "%s\n", fname)
		return err
	})
	if err != nil {
		t.Fatalf("could not run dump: %+v", err)
	}

	if got, want := out.String(), "f0\nf1\nf2\nf3\nf4\n"; got != want {
		t.Fatalf("invalid output:\ngot= %q\nwant=%q", got, want)
	}
	if got, want := len(infos), len(fnames); got != want {
		t.Fatalf("invalid number of infos: got=%d, want=%d", got, want)
	}
	for i, info := range infos {
		if got, want := info["EVENTS"], 2.0; got != want {
			t.Fatalf("invalid info[%d]: got=%v, want=%v", i, got, want)
		}
	}

	_, err = dump(io.Discard, fnames, 0, func(w io.Writer, fname string, info pxd.Info) error {
		if fname == "f3" {
			return io.ErrUnexpectedEOF
		}
		return nil
	})
	if got, want := fmt.Sprint(err), `could not dump file "f3": unexpected EOF`; got != want {
		t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
	}
}

func TestPrintInfo(t *testing.T) {
	info := make(pxd.Info)
	_, err := newTestDecoder().Decode(nil, rawData(), info)
	if err != nil {
		t.Fatalf("could not decode: %+v", err)
	}

	out := new(strings.Builder)
	printInfo(out, info)
	got := out.String()
	if !strings.HasPrefix(got, "=== counters ===\n") {
		t.Fatalf("invalid header:\n%s", got)
	}
	if !strings.Contains(got, fmt.Sprintf("%-40s %v\n", pxd.CntEvents, 1)) {
		t.Fatalf("missing events counter:\n%s", got)
	}
}
