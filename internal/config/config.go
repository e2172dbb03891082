// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the YAML configuration of the PXD decoding tools.
package config // import "github.com/go-lpc/depfet/internal/config"

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/depfet/pxd"
	"gopkg.in/yaml.v3"
)

// Config describes how raw PXD buffers are decoded.
//
// Example:
//
//	decoder:
//	  mapping: auto
//	  skip-raw: false
//	  dhe: -1
//	monitor:
//	  env: ./influx.env
//	  bucket: pxd
type Config struct {
	Decoder Decoder `yaml:"decoder"`
	Monitor Monitor `yaml:"monitor"`
}

// Decoder holds the settings of a pxd.Decoder.
type Decoder struct {
	Mapping                string `yaml:"mapping"`
	SkipRaw                bool   `yaml:"skip-raw"`
	SkipZS                 bool   `yaml:"skip-zs"`
	DHPFrameNumbering      bool   `yaml:"dhp-frame-numbering"`
	AbsoluteFrameNumbering bool   `yaml:"absolute-frame-numbering"`
	SwapAxis               bool   `yaml:"swap-axis"`
	Debug                  int    `yaml:"debug"`
	DHE                    int    `yaml:"dhe"`    // DHE filter, -1 for all
	DHP                    int    `yaml:"dhp"`    // DHP filter, -1 for all
	Module                 int    `yaml:"module"` // module filter, -1 for all
}

// Monitor holds the settings of the telemetry push.
type Monitor struct {
	Env         string `yaml:"env"` // path to a .env file holding the InfluxDB credentials
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Decoder: Decoder{
			Mapping: pxd.MappingAuto.String(),
			DHE:     -1,
			DHP:     -1,
			Module:  -1,
		},
		Monitor: Monitor{
			Measurement: "pxd",
		},
	}
}

// Load reads the configuration from the named YAML file.
// Fields missing from the file keep their default value.
func Load(fname string) (Config, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not read file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML configuration.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: could not decode YAML: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the consistency of the configuration.
func (cfg Config) Validate() error {
	d := cfg.Decoder
	if _, ok := pxd.ParseMapping(d.Mapping); !ok {
		return fmt.Errorf("config: invalid mapping %q", d.Mapping)
	}
	if d.DHE > 0x3f {
		return fmt.Errorf("config: invalid DHE filter %d", d.DHE)
	}
	if d.DHP > 3 {
		return fmt.Errorf("config: invalid DHP filter %d", d.DHP)
	}
	if d.Module > 0xf {
		return fmt.Errorf("config: invalid module filter %d", d.Module)
	}
	if d.Debug < 0 {
		return fmt.Errorf("config: invalid debug level %d", d.Debug)
	}
	return nil
}

// Options returns the decoder options described by cfg.
func (cfg Config) Options(msg *log.Logger) []pxd.Option {
	d := cfg.Decoder
	m, ok := pxd.ParseMapping(d.Mapping)
	if !ok {
		m = pxd.MappingAuto
	}
	opts := []pxd.Option{
		pxd.WithMapping(m),
		pxd.WithSkipRaw(d.SkipRaw),
		pxd.WithSkipZS(d.SkipZS),
		pxd.WithDHPFrameNumbering(d.DHPFrameNumbering),
		pxd.WithAbsoluteFrameNumbering(d.AbsoluteFrameNumbering),
		pxd.WithSwapAxis(d.SwapAxis),
		pxd.WithDebugLevel(d.Debug),
		pxd.WithDHEFilter(d.DHE),
		pxd.WithDHPFilter(d.DHP),
		pxd.WithModule(d.Module),
	}
	if msg != nil {
		opts = append(opts, pxd.WithLogger(msg))
	}
	return opts
}
