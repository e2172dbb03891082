// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pxd decodes DEPFET pixel-detector data frames produced by the
// DHC/DHE/DHP readout chain.
//
// A raw buffer holds one envelope. The envelope wraps a container
// (DHH-DAQ or ONSEN) of length-prefixed frames which are interpreted
// as a tagged-frame protocol: start/end of event (DHC), start/end of
// frame (DHE), zero-suppressed data, raw data and ghost frames.
// The result is one Event per trigger and DHE.
package pxd // import "github.com/go-lpc/depfet/pxd"

// Hit is a zero-suppressed pixel reading.
type Hit struct {
	Col   int16
	Row   int16
	Value int16
	Aux   uint16 // common-mode value or DHP frame-sequence tag
}

// Event holds the data of one DHE for one trigger.
type Event struct {
	TriggerNr uint32 // DHE trigger counter
	TimeField uint32 // DHE time tag

	DHCTriggerNr uint32 // DHC trigger counter (DHC-wrapped streams only)
	DHCTimeField uint32 // DHC time tag (DHC-wrapped streams only)

	TriggerOffset uint16
	DHEID         uint8
	ModID         uint8

	IsRaw  bool
	IsGood bool

	ZSData  []Hit
	RawData [][]byte // [col][row]
}

// Kind describes the payload of an event.
type Kind uint8

const (
	KindGhost Kind = iota
	KindZS
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindGhost:
		return "ghost"
	case KindZS:
		return "zs"
	case KindRaw:
		return "raw"
	}
	return "unknown"
}

// Kind returns the kind of payload the event carries.
func (evt *Event) Kind() Kind {
	switch {
	case evt.IsRaw && len(evt.RawData) > 0:
		return KindRaw
	case !evt.IsRaw && len(evt.ZSData) > 0:
		return KindZS
	}
	return KindGhost
}

// Mapping selects the channel remapping table applied to ZS hits.
type Mapping uint8

const (
	MappingAuto Mapping = iota // derive the table from the DHE ID
	MappingHybrid5
	MappingPXD9OF // outer layer, forward
	MappingPXD9IF // inner layer, forward
	MappingPXD9OB // outer layer, backward
	MappingPXD9IB // inner layer, backward
	MappingNone   // no remapping
)

var mappingNames = [...]string{
	MappingAuto:    "auto",
	MappingHybrid5: "hybrid5",
	MappingPXD9OF:  "pxd9-of",
	MappingPXD9IF:  "pxd9-if",
	MappingPXD9OB:  "pxd9-ob",
	MappingPXD9IB:  "pxd9-ib",
	MappingNone:    "none",
}

func (m Mapping) String() string {
	if int(m) < len(mappingNames) {
		return mappingNames[m]
	}
	return "unknown"
}

// ParseMapping returns the mapping named by s.
func ParseMapping(s string) (Mapping, bool) {
	for i, name := range mappingNames {
		if name == s {
			return Mapping(i), true
		}
	}
	return 0, false
}
