// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

import (
	"log"
	"os"
)

type config struct {
	mapping    Mapping
	skipRaw    bool
	skipZS     bool
	dhpFrameNr bool // tag hits with the DHP frame number instead of the common mode
	absFrameNr bool // do not normalize DHP frame numbers to the first frame
	swapAxis   bool
	debug      int
	dheFilter  int // only decode this DHE ID (-1: all)
	dhpFilter  int // only decode this DHP (-1: all)
	module     int // only decode this module number (-1: all)
	msg        *log.Logger
}

func newConfig() config {
	return config{
		mapping:   MappingAuto,
		dheFilter: -1,
		dhpFilter: -1,
		module:    -1,
		msg:       log.New(os.Stdout, "pxd: ", 0),
	}
}

// Option configures a Decoder.
type Option func(*config)

// WithMapping selects the channel remapping applied to ZS hits.
func WithMapping(m Mapping) Option {
	return func(cfg *config) {
		cfg.mapping = m
	}
}

// WithSkipRaw discards raw data frames.
func WithSkipRaw(v bool) Option {
	return func(cfg *config) {
		cfg.skipRaw = v
	}
}

// WithSkipZS discards zero-suppressed data frames.
func WithSkipZS(v bool) Option {
	return func(cfg *config) {
		cfg.skipZS = v
	}
}

// WithDHPFrameNumbering tags each hit with its DHP frame-sequence
// number instead of the common-mode value of its row.
func WithDHPFrameNumbering(v bool) Option {
	return func(cfg *config) {
		cfg.dhpFrameNr = v
	}
}

// WithAbsoluteFrameNumbering disables the normalization of DHP frame
// numbers to the first frame of each DHP within an event.
func WithAbsoluteFrameNumbering(v bool) Option {
	return func(cfg *config) {
		cfg.absFrameNr = v
	}
}

// WithSwapAxis swaps columns and rows after remapping.
func WithSwapAxis(v bool) Option {
	return func(cfg *config) {
		cfg.swapAxis = v
	}
}

// WithDebugLevel sets the verbosity of the decoder.
// Level 0 only reports checksum failures, 1 reports every counted error
// and 2 traces every frame.
func WithDebugLevel(lvl int) Option {
	return func(cfg *config) {
		cfg.debug = lvl
	}
}

// WithDHEFilter restricts decoding to the DHE with the given ID.
// A negative id disables the filter.
func WithDHEFilter(id int) Option {
	return func(cfg *config) {
		cfg.dheFilter = id
	}
}

// WithDHPFilter restricts decoding to the DHP with the given index.
// A negative index disables the filter.
// Column offsets of the 4 DHPs of a DHE are only applied when no DHP
// filter is set.
func WithDHPFilter(dhp int) Option {
	return func(cfg *config) {
		cfg.dhpFilter = dhp
	}
}

// WithModule restricts decoding to buffers of the given module number.
// A negative number disables the filter.
func WithModule(mod int) Option {
	return func(cfg *config) {
		cfg.module = mod
	}
}

// WithLogger sets the logger used to report decoding errors.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// Decoder decodes raw envelopes into events.
//
// A Decoder holds no per-buffer state: it is safe for concurrent use
// provided each goroutine passes its own Info.
type Decoder struct {
	cfg config
	msg *log.Logger
}

// NewDecoder returns a new decoder configured with opts.
func NewDecoder(opts ...Option) *Decoder {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.msg == nil {
		cfg.msg = log.New(os.Stdout, "pxd: ", 0)
	}
	return &Decoder{cfg: cfg, msg: cfg.msg}
}

// Decode decodes the envelope in raw and appends the resulting events
// to dst. Header fields and error counters are recorded into info,
// which may be nil.
//
// Decode returns dst unmodified and a nil error when the envelope
// belongs to a module other than the one selected with WithModule.
// Fatal conditions are reported as a *FatalError; no event of raw is
// appended in that case.
func (dec *Decoder) Decode(dst []Event, raw []byte, info Info) ([]Event, error) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return dst, err
	}

	if env.Type != EvtData {
		return dst, fatalf("pxd: invalid event type %d: %w", env.Type, ErrEventType)
	}

	if dec.cfg.module >= 0 && int(env.Module) != dec.cfg.module {
		if dec.cfg.debug > 1 {
			dec.msg.Printf("skipping module %d", env.Module)
		}
		return dst, nil
	}

	var (
		n0      = len(dst)
		payload = raw[env.HeaderLen():env.Size]
		w       Walker
	)
	switch env.Device {
	case DevDHEMulti, DevDHCMulti:
		ww, err := NewDHHWalker(payload)
		if err != nil {
			return dst, err
		}
		w = ww
	case DevDHESingle, DevDHCSingle:
		ww, err := NewONSENWalker(payload)
		if err != nil {
			return dst, err
		}
		w = ww
	default:
		return dst, fatalf("pxd: invalid device type 0x%x: %w", env.Device, ErrDeviceType)
	}

	dst, err = dec.DecodeFrames(dst, w, env.Device.IsDHC(), info)
	if err != nil {
		return dst[:n0], err
	}

	for i := range dst[n0:] {
		evt := &dst[n0+i]
		evt.ModID = env.Module
		dec.remap(evt, info)
	}

	return dst, nil
}

// DecodeFrames interprets the frames of w and appends the resulting
// events to dst. isDHC selects whether frames are wrapped into
// DHC start/end of event frames.
//
// Events returned by DecodeFrames are not remapped.
func (dec *Decoder) DecodeFrames(dst []Event, w Walker, isDHC bool, info Info) ([]Event, error) {
	n0 := len(dst)
	it := interp{
		cfg:   &dec.cfg,
		msg:   dec.msg,
		info:  info,
		w:     w,
		isDHC: isDHC,
		evts:  dst,
	}
	err := it.run()
	if err != nil {
		return it.evts[:n0], err
	}
	return it.evts, nil
}
