// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pxd2lcio converts a PXD raw data file to an LCIO one.
package main // import "github.com/go-lpc/depfet/cmd/pxd2lcio"

import (
	"bufio"
	"compress/flate"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-lpc/depfet/internal/config"
	"github.com/go-lpc/depfet/internal/monitor"
	"github.com/go-lpc/depfet/internal/xcnv"
	"github.com/go-lpc/depfet/pxd"
	"go-hep.org/x/hep/lcio"
)

var (
	msg = log.New(os.Stdout, "pxd2lcio: ", 0)
)

func main() {
	var (
		oname = flag.String("o", "out.lcio", "path to output LCIO file")
		compr = flag.Int("lvl", flate.DefaultCompression, "compression level for output LCIO file")
		fcfg  = flag.String("cfg", "", "path to a YAML decoder configuration file")
		run   = flag.Int("run", -1, "run number (inferred from the input file name if negative)")
		push  = flag.Bool("monitor", false, "push decoding counters to InfluxDB")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: pxd2lcio [OPTIONS] file.raw

ex:
 $> pxd2lcio -o out.lcio -lvl=9 ./pxd_042.000.raw
 $> pxd2lcio -o out.lcio -cfg=decoder.yml -run=42 ./input.raw

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		msg.Fatalf("missing input PXD raw file")
	}

	if *oname == "" {
		flag.Usage()
		msg.Fatalf("invalid output LCIO file name")
	}

	cfg := config.Default()
	if *fcfg != "" {
		var err error
		cfg, err = config.Load(*fcfg)
		if err != nil {
			msg.Fatalf("could not load configuration: %+v", err)
		}
	}

	fname := flag.Arg(0)
	nbr := int32(*run)
	if nbr < 0 {
		var err error
		nbr, err = runNbrFrom(fname)
		if err != nil {
			msg.Fatalf("could not infer run from %q: %+v", fname, err)
		}
	}

	info, err := process(*oname, *compr, nbr, cfg, fname)
	if err != nil {
		msg.Fatalf("could not convert PXD file: %+v", err)
	}

	errs := info.Errors()
	msg.Printf("decoded %v events (%v dropped, %d error kinds)",
		info[pxd.CntEvents], info[pxd.CntDroppedEvents], len(errs),
	)

	if !*push {
		return
	}

	mon, err := monitor.FromEnv(
		cfg.Monitor.Env, cfg.Monitor.Bucket, cfg.Monitor.Measurement,
		map[string]string{"run": fmt.Sprintf("%d", nbr)},
	)
	if err != nil {
		msg.Fatalf("could not create monitor: %+v", err)
	}
	defer mon.Close()

	err = mon.Push(context.Background(), info, time.Now().UTC())
	if err != nil {
		msg.Fatalf("could not push counters: %+v", err)
	}
}

func process(oname string, lvl int, run int32, cfg config.Config, fname string) (pxd.Info, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("could not open PXD file: %w", err)
	}
	defer f.Close()

	w, err := lcio.Create(oname)
	if err != nil {
		return nil, fmt.Errorf("could not create output LCIO file: %w", err)
	}
	defer w.Close()

	w.SetCompressionLevel(lvl)

	var (
		info = make(pxd.Info)
		dec  = pxd.NewDecoder(cfg.Options(msg)...)
		r    = pxd.NewReader(bufio.NewReader(f))
	)

	err = xcnv.PXD2LCIO(w, r, dec, run, info, msg)
	if err != nil {
		return nil, fmt.Errorf("could not convert PXD to LCIO: %w", err)
	}

	err = w.Close()
	if err != nil {
		return nil, fmt.Errorf("could not close output LCIO file: %w", err)
	}

	return info, nil
}

func runNbrFrom(fname string) (int32, error) {
	var (
		name = filepath.Base(fname)
		run  int32
		itr  int32
	)
	_, err := fmt.Sscanf(name, "pxd_%d.%d.raw", &run, &itr)
	return run, err
}
