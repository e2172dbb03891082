// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pxd-unpack starts a TDAQ server decoding PXD envelopes.
//
// Raw envelopes are received on the /pxd-raw input and the decoded
// events are published on the /pxd-evts output.
// The /config command takes the path to a YAML decoder configuration
// file; an empty path selects the default configuration.
package main // import "github.com/go-lpc/depfet/cmd/pxd-unpack"

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/depfet/internal/config"
	"github.com/go-lpc/depfet/internal/monitor"
	"github.com/go-lpc/depfet/pxd"
)

func main() {
	cmd := flags.New()

	dev := newUnpacker(cmd.Args[0])

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.InputHandle("/pxd-raw", dev.input)
	srv.OutputHandle("/pxd-evts", dev.output)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type unpacker struct {
	name string
	msg  *log.Logger

	cfg config.Config
	dec *pxd.Decoder
	mon *monitor.Monitor

	mu    sync.Mutex
	info  pxd.Info
	evts  []pxd.Event
	n     int // decoded envelopes
	nerrs int // discarded envelopes

	data chan []byte
}

func newUnpacker(name string) *unpacker {
	var (
		msg = log.New(os.Stdout, name+": ", 0)
		cfg = config.Default()
	)
	return &unpacker{
		name: name,
		msg:  msg,
		cfg:  cfg,
		dec:  pxd.NewDecoder(cfg.Options(msg)...),
		info: make(pxd.Info),
		data: make(chan []byte, 1024),
	}
}

func (dev *unpacker) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	var fname string
	if len(req.Body) > 0 {
		dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
		fname = dec.ReadStr()
		if err := dec.Err(); err != nil {
			return fmt.Errorf("could not decode /config request: %w", err)
		}
	}

	err := dev.configure(fname)
	if err != nil {
		ctx.Msg.Errorf("could not configure: %+v", err)
		return fmt.Errorf("could not configure: %w", err)
	}
	return nil
}

func (dev *unpacker) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	dev.reset()
	return nil
}

func (dev *unpacker) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	dev.reset()
	return nil
}

func (dev *unpacker) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (dev *unpacker) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dev.mu.Lock()
	n, nerrs := dev.n, dev.nerrs
	dev.mu.Unlock()
	ctx.Msg.Debugf("received /stop command... -> n=%d, errs=%d", n, nerrs)

	err := dev.push(ctx.Ctx, time.Now().UTC())
	if err != nil {
		ctx.Msg.Errorf("could not push counters: %+v", err)
		return fmt.Errorf("could not push counters: %w", err)
	}
	return nil
}

func (dev *unpacker) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if dev.mon != nil {
		dev.mon.Close()
		dev.mon = nil
	}
	return nil
}

func (dev *unpacker) input(ctx tdaq.Context, src tdaq.Frame) error {
	data, err := dev.unpack(src.Body)
	if err != nil {
		if pxd.IsFatal(err) {
			ctx.Msg.Debugf("discarding envelope: %+v", err)
			return nil
		}
		return err
	}

	select {
	case <-ctx.Ctx.Done():
		return nil
	case dev.data <- data:
	}
	return nil
}

func (dev *unpacker) output(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

// configure loads the named configuration file and connects to the
// monitoring database when one is configured.
func (dev *unpacker) configure(fname string) error {
	cfg := config.Default()
	if fname != "" {
		var err error
		cfg, err = config.Load(fname)
		if err != nil {
			return err
		}
	}
	err := cfg.Validate()
	if err != nil {
		return err
	}

	if dev.mon != nil {
		dev.mon.Close()
		dev.mon = nil
	}
	if cfg.Monitor.Env != "" {
		mon, err := monitor.FromEnv(
			cfg.Monitor.Env, cfg.Monitor.Bucket, cfg.Monitor.Measurement,
			map[string]string{"node": dev.name},
		)
		if err != nil {
			return err
		}
		dev.mon = mon
	}

	dec := pxd.NewDecoder(cfg.Options(dev.msg)...)

	dev.mu.Lock()
	dev.cfg = cfg
	dev.dec = dec
	dev.mu.Unlock()
	return nil
}

func (dev *unpacker) reset() {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.info = make(pxd.Info)
	dev.evts = nil
	dev.n = 0
	dev.nerrs = 0

	// drop batches of the previous run not yet sent.
	for {
		select {
		case <-dev.data:
		default:
			return
		}
	}
}

// unpack decodes one envelope and returns the encoded events.
func (dev *unpacker) unpack(raw []byte) ([]byte, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	var err error
	dev.evts, err = dev.dec.Decode(dev.evts[:0], raw, dev.info)
	if err != nil {
		dev.nerrs++
		return nil, err
	}
	dev.n++

	return eventBatch(dev.evts).MarshalTDAQ()
}

// push sends the counters collected since the last push to the
// monitoring database.
func (dev *unpacker) push(ctx context.Context, ts time.Time) error {
	dev.mu.Lock()
	info := dev.info
	dev.info = make(pxd.Info)
	dev.mu.Unlock()

	if dev.mon == nil {
		return nil
	}
	return dev.mon.Push(ctx, info, ts)
}
