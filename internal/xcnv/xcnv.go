// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xcnv provides tools to convert PXD data to/from LCIO.
package xcnv // import "github.com/go-lpc/depfet/internal/xcnv"

const (
	detector = "PXD"

	// HeadersName is the name of the LCIO collection holding the
	// headers of the decoded events.
	HeadersName = "PXDHeaders"
	// DataName is the name of the LCIO collection holding the
	// hits or raw frames of the decoded events.
	DataName = "PXDData"

	nhdr = 9 // number of int32s per event header
)
