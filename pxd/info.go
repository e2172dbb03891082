// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

import (
	"sort"
	"strconv"
	"strings"
)

// Info collects decoded header fields and error counters.
// Keys are comma-joined hierarchical names, e.g. "H12,Frame 3,DHP CM Error".
//
// A nil Info disables collection.
type Info map[string]float64

// Keys returns the sorted list of keys.
func (info Info) Keys() []string {
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Errors returns the error counters held by info.
func (info Info) Errors() map[string]float64 {
	o := make(map[string]float64)
	for k, v := range info {
		if strings.HasPrefix(k, "ERROR_") {
			o[k] = v
		}
	}
	return o
}

func (info Info) inc(key string) {
	if info == nil {
		return
	}
	info[key]++
}

func (info Info) add(key string, v float64) {
	if info == nil {
		return
	}
	info[key] += v
}

func (info Info) set(key string, v float64) {
	if info == nil {
		return
	}
	info[key] = v
}

func infoKey(parts ...string) string {
	return strings.Join(parts, ",")
}

func dheKey(id uint8) string {
	return "H" + strconv.Itoa(int(id))
}

func frameKey(i int) string {
	return "Frame " + strconv.Itoa(i)
}
