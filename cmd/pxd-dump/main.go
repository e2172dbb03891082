// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pxd-dump decodes and displays PXD raw data files.
//
// Usage: pxd-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//  $> pxd-dump ./testdata/pxd_042.000.raw
//  === envelope 0 ===
//  Module:           2
//  Device:   DHC-multi
//  Trigger:          1
//  Events:           1
//    DHE=0x02 trigger=1 time=0 offset=3 kind=zs good=true
//      col=   1 row=   2 adc=   3 aux=4
//      col=   5 row=   6 adc=   7 aux=4
//  [...]
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-lpc/depfet"
	"github.com/go-lpc/depfet/internal/config"
	"github.com/go-lpc/depfet/internal/mmap"
	"github.com/go-lpc/depfet/internal/monitor"
	"github.com/go-lpc/depfet/internal/xcnv"
	"github.com/go-lpc/depfet/pxd"
	"go-hep.org/x/hep/lcio"
	"golang.org/x/sync/errgroup"
)

const usage = `pxd-dump decodes and displays PXD raw data files.

Usage: pxd-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> pxd-dump ./testdata/pxd_042.000.raw
 === envelope 0 ===
 Module:           2
 Device:   DHC-multi
 Trigger:          1
 Events:           1
   DHE=0x02 trigger=1 time=0 offset=3 kind=zs good=true
     col=   1 row=   2 adc=   3 aux=4
     col=   5 row=   6 adc=   7 aux=4
 [...]

`

func main() {
	xmain(os.Stdout, os.Args[1:])
}

func xmain(w io.Writer, args []string) {
	log.SetPrefix("pxd-dump: ")
	log.SetFlags(0)

	var (
		fset = flag.NewFlagSet("pxd-dump", flag.ExitOnError)

		fcfg   = fset.String("cfg", "", "path to a YAML decoder configuration file")
		inLCIO = fset.Bool("lcio", false, "read PXD events from LCIO files")
		stats  = fset.Bool("info", false, "display decoding counters")
		push   = fset.Bool("monitor", false, "push decoding counters to InfluxDB")
		njobs  = fset.Int("j", 1, "number of files decoded concurrently")
		vers   = fset.Bool("version", false, "print version and exit")
	)

	fset.Usage = func() {
		fmt.Print(usage)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if *vers {
		version, sum := depfet.Version()
		fmt.Fprintf(w, "pxd-dump %s %s\n", version, sum)
		return
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input PXD file")
	}

	cfg := config.Default()
	if *fcfg != "" {
		cfg, err = config.Load(*fcfg)
		if err != nil {
			log.Fatalf("could not load configuration: %+v", err)
		}
	}

	var (
		msg = log.New(os.Stderr, "pxd-dump: ", 0)
		dec = pxd.NewDecoder(cfg.Options(msg)...)
		fct = func(w io.Writer, fname string, info pxd.Info) error {
			if *inLCIO {
				return processLCIO(w, fname)
			}
			err := process(w, fname, dec, info)
			if err != nil {
				return err
			}
			if *stats {
				printInfo(w, info)
			}
			return nil
		}
	)

	infos, err := dump(w, fset.Args(), *njobs, fct)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	if !*push || *inLCIO {
		return
	}

	mon, err := monitor.FromEnv(cfg.Monitor.Env, cfg.Monitor.Bucket, cfg.Monitor.Measurement, nil)
	if err != nil {
		log.Fatalf("could not create monitor: %+v", err)
	}
	defer mon.Close()

	ts := time.Now().UTC()
	for i, fname := range fset.Args() {
		err = mon.Push(context.Background(), infos[i], ts)
		if err != nil {
			log.Fatalf("could not push counters of %q: %+v", filepath.Base(fname), err)
		}
	}
}

// dump runs fct over each file, at most njobs at a time, and writes the
// outputs to w in the order of fnames.
func dump(w io.Writer, fnames []string, njobs int, fct func(w io.Writer, fname string, info pxd.Info) error) ([]pxd.Info, error) {
	if njobs < 1 {
		njobs = 1
	}

	var (
		grp   errgroup.Group
		outs  = make([]bytes.Buffer, len(fnames))
		infos = make([]pxd.Info, len(fnames))
	)
	grp.SetLimit(njobs)

	for i := range fnames {
		i := i
		infos[i] = make(pxd.Info)
		grp.Go(func() error {
			err := fct(&outs[i], fnames[i], infos[i])
			if err != nil {
				return fmt.Errorf("could not dump file %q: %w", fnames[i], err)
			}
			return nil
		})
	}

	err := grp.Wait()
	if err != nil {
		return nil, err
	}

	for i := range outs {
		_, err = outs[i].WriteTo(w)
		if err != nil {
			return nil, fmt.Errorf("could not write dump of %q: %w", fnames[i], err)
		}
	}

	return infos, nil
}

func process(w io.Writer, fname string, dec *pxd.Decoder, info pxd.Info) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	var (
		r    = pxd.NewReader(io.NewSectionReader(f, 0, int64(f.Len())))
		evts []pxd.Event
	)

loop:
	for i := 0; ; i++ {
		raw, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not read envelope %d: %w", i, err)
		}

		fmt.Fprintf(wbuf, "=== envelope %d ===\n", i)
		env, err := pxd.ParseEnvelope(raw)
		if err != nil {
			fmt.Fprintf(wbuf, "Error:   %v\n", err)
			continue
		}
		fmt.Fprintf(wbuf, "Module:  % 10d\n", env.Module)
		fmt.Fprintf(wbuf, "Device:  %10s\n", env.Device)
		fmt.Fprintf(wbuf, "Trigger: % 10d\n", env.Trigger)

		evts, err = dec.Decode(evts[:0], raw, info)
		if err != nil {
			fmt.Fprintf(wbuf, "Error:   %v\n", err)
			continue
		}
		fmt.Fprintf(wbuf, "Events:  % 10d\n", len(evts))
		printEvents(wbuf, evts)
	}

	return nil
}

func processLCIO(w io.Writer, fname string) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	r, err := lcio.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open LCIO file: %w", err)
	}
	defer r.Close()

	msg := log.New(io.Discard, "", 0)
	err = xcnv.LCIO2PXD(r, 100, msg, func(evt *lcio.Event, evts []pxd.Event) error {
		fmt.Fprintf(wbuf, "=== event %d ===\n", evt.EventNumber)
		fmt.Fprintf(wbuf, "Run:     % 10d\n", evt.RunNumber)
		fmt.Fprintf(wbuf, "Trigger: % 10d\n", evt.TimeStamp)
		fmt.Fprintf(wbuf, "Events:  % 10d\n", len(evts))
		printEvents(wbuf, evts)
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not decode LCIO file: %w", err)
	}

	return nil
}

func printEvents(w io.Writer, evts []pxd.Event) {
	for i := range evts {
		evt := &evts[i]
		kind := evt.Kind()
		fmt.Fprintf(w, "  DHE=0x%02x trigger=%d time=%d offset=%d kind=%v good=%v\n",
			evt.DHEID, evt.TriggerNr, evt.TimeField, evt.TriggerOffset,
			kind, evt.IsGood,
		)
		switch kind {
		case pxd.KindZS:
			for _, hit := range evt.ZSData {
				fmt.Fprintf(w, "    col=% 4d row=% 4d adc=% 4d aux=%d\n",
					hit.Col, hit.Row, hit.Value, hit.Aux,
				)
			}
		case pxd.KindRaw:
			fmt.Fprintf(w, "    raw: cols=%d rows=%d\n",
				len(evt.RawData), len(evt.RawData[0]),
			)
		}
	}
}

func printInfo(w io.Writer, info pxd.Info) {
	fmt.Fprintf(w, "=== counters ===\n")
	for _, k := range info.Keys() {
		fmt.Fprintf(w, "%-40s %v\n", k, info[k])
	}
}
