// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package monitor pushes PXD decoding telemetry to an InfluxDB server.
package monitor // import "github.com/go-lpc/depfet/internal/monitor"

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-lpc/depfet/pxd"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	dotenv "github.com/joho/godotenv"
)

// Writer writes points to a time-series database.
type Writer interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Monitor converts telemetry maps into InfluxDB points.
type Monitor struct {
	w     Writer
	meas  string
	tags  map[string]string
	close func()
}

// New returns a monitor writing points of the given measurement to w.
func New(w Writer, measurement string, tags map[string]string) *Monitor {
	return &Monitor{
		w:     w,
		meas:  measurement,
		tags:  tags,
		close: func() {},
	}
}

// Environment variables holding the InfluxDB credentials.
const (
	EnvHost  = "INFLUX_HOST"
	EnvToken = "INFLUX_TOKEN"
	EnvOrg   = "INFLUX_ORG"
)

// FromEnv returns a monitor connected to the InfluxDB server described
// by the named .env file.
// Variables missing from the file are looked up in the environment.
func FromEnv(fname, bucket, measurement string, tags map[string]string) (*Monitor, error) {
	env := make(map[string]string)
	if fname != "" {
		var err error
		env, err = dotenv.Read(fname)
		if err != nil {
			return nil, fmt.Errorf("monitor: could not read env file %q: %w", fname, err)
		}
	}
	get := func(k string) string {
		if v, ok := env[k]; ok {
			return v
		}
		return os.Getenv(k)
	}

	var (
		host  = get(EnvHost)
		token = get(EnvToken)
		org   = get(EnvOrg)
	)
	switch {
	case host == "":
		return nil, fmt.Errorf("monitor: missing %s", EnvHost)
	case org == "":
		return nil, fmt.Errorf("monitor: missing %s", EnvOrg)
	case bucket == "":
		return nil, fmt.Errorf("monitor: missing bucket")
	}

	cli := influxdb2.NewClient(host, token)
	mon := New(cli.WriteAPIBlocking(org, bucket), measurement, tags)
	mon.close = cli.Close
	return mon, nil
}

// Close releases the resources held by the monitor.
func (mon *Monitor) Close() {
	mon.close()
}

// Point converts info into a point timestamped at ts.
func (mon *Monitor) Point(info pxd.Info, ts time.Time) *write.Point {
	fields := make(map[string]interface{}, len(info))
	for k, v := range info {
		fields[FieldName(k)] = v
	}
	return influxdb2.NewPoint(mon.meas, mon.tags, fields, ts)
}

// Push writes info to the database.
func (mon *Monitor) Push(ctx context.Context, info pxd.Info, ts time.Time) error {
	if len(info) == 0 {
		return nil
	}
	err := mon.w.WritePoint(ctx, mon.Point(info, ts))
	if err != nil {
		return fmt.Errorf("monitor: could not write point: %w", err)
	}
	return nil
}

var fieldRepl = strings.NewReplacer(",", ".", " ", "_")

// FieldName converts an Info key into an InfluxDB field name.
func FieldName(key string) string {
	return fieldRepl.Replace(key)
}
