// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-lpc/depfet/pxd"
	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

type writer struct {
	pts []*write.Point
	err error
}

func (w *writer) WritePoint(ctx context.Context, pts ...*write.Point) error {
	w.pts = append(w.pts, pts...)
	return w.err
}

func TestFieldName(t *testing.T) {
	for _, tc := range []struct {
		key  string
		want string
	}{
		{pxd.ErrCRC, "ERROR_CRC"},
		{"H12,Frame 3,DHP CM Error", "H12.Frame_3.DHP_CM_Error"},
		{"DHC,Trigger", "DHC.Trigger"},
	} {
		t.Run(tc.key, func(t *testing.T) {
			if got := FieldName(tc.key); got != tc.want {
				t.Fatalf("invalid field name: got=%q, want=%q", got, tc.want)
			}
		})
	}
}

func TestPush(t *testing.T) {
	var (
		w    = new(writer)
		mon  = New(w, "pxd", map[string]string{"module": "3"})
		ts   = time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
		info = pxd.Info{
			pxd.CntEvents:          12,
			pxd.ErrCRC:             1,
			"H2,Frame 1,DHP Hits": 5,
		}
	)
	defer mon.Close()

	err := mon.Push(context.Background(), info, ts)
	if err != nil {
		t.Fatalf("could not push telemetry: %+v", err)
	}
	if got, want := len(w.pts), 1; got != want {
		t.Fatalf("invalid number of points: got=%d, want=%d", got, want)
	}

	pt := w.pts[0]
	if got, want := pt.Name(), "pxd"; got != want {
		t.Fatalf("invalid measurement: got=%q, want=%q", got, want)
	}
	if !pt.Time().Equal(ts) {
		t.Fatalf("invalid timestamp: got=%v, want=%v", pt.Time(), ts)
	}

	fields := make(map[string]float64)
	for _, f := range pt.FieldList() {
		fields[f.Key] = f.Value.(float64)
	}
	want := map[string]float64{
		"EVENTS":              12,
		"ERROR_CRC":           1,
		"H2.Frame_1.DHP_Hits": 5,
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("invalid fields: (-want +got)\n%s", diff)
	}

	tags := make(map[string]string)
	for _, tag := range pt.TagList() {
		tags[tag.Key] = tag.Value
	}
	if diff := cmp.Diff(map[string]string{"module": "3"}, tags); diff != "" {
		t.Fatalf("invalid tags: (-want +got)\n%s", diff)
	}

	err = mon.Push(context.Background(), nil, ts)
	if err != nil {
		t.Fatalf("could not push empty telemetry: %+v", err)
	}
	if got, want := len(w.pts), 1; got != want {
		t.Fatalf("empty telemetry should not be written: got=%d points", got)
	}

	w.err = errors.New("boom")
	err = mon.Push(context.Background(), info, ts)
	if !errors.Is(err, w.err) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, w.err)
	}
}

func TestFromEnv(t *testing.T) {
	tmp, err := os.MkdirTemp("", "depfet-monitor-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(tmp)

	for _, tc := range []struct {
		name   string
		env    string
		bucket string
		err    string
	}{
		{
			name:   "ok",
			env:    "INFLUX_HOST=http://localhost:8086\nINFLUX_TOKEN=secret\nINFLUX_ORG=belle2\n",
			bucket: "pxd",
		},
		{
			name:   "no-host",
			env:    "INFLUX_HOST=\nINFLUX_ORG=belle2\n",
			bucket: "pxd",
			err:    "monitor: missing INFLUX_HOST",
		},
		{
			name:   "no-org",
			env:    "INFLUX_HOST=http://localhost:8086\nINFLUX_ORG=\n",
			bucket: "pxd",
			err:    "monitor: missing INFLUX_ORG",
		},
		{
			name: "no-bucket",
			env:  "INFLUX_HOST=http://localhost:8086\nINFLUX_ORG=belle2\n",
			err:  "monitor: missing bucket",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(tmp, tc.name+".env")
			err := os.WriteFile(fname, []byte(tc.env), 0644)
			if err != nil {
				t.Fatalf("could not write env file: %+v", err)
			}

			mon, err := FromEnv(fname, tc.bucket, "pxd", nil)
			switch {
			case err != nil && tc.err != "":
				if got, want := err.Error(), tc.err; got != want {
					t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
				}
				return
			case err != nil:
				t.Fatalf("could not create monitor: %+v", err)
			case tc.err != "":
				t.Fatalf("expected an error (%s)", tc.err)
			}
			mon.Close()
		})
	}

	_, err = FromEnv(filepath.Join(tmp, "not-there.env"), "pxd", "pxd", nil)
	if err == nil {
		t.Fatalf("expected an error for a missing env file")
	}
}
