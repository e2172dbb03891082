// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

import (
	"encoding/binary"
	"io"

	"github.com/go-lpc/depfet/internal/crc32"
	"golang.org/x/xerrors"
)

// DHCHeader describes a DHC start of event frame.
type DHCHeader struct {
	ID      uint8
	DHEMask uint8
	Trigger uint32
	Time    uint32
	Run     uint16
}

// DHEHeader describes a DHE start of frame.
type DHEHeader struct {
	ID            uint8
	DHPMask       uint8
	Trigger       uint32
	Time          uint32
	TriggerOffset uint16
	StartFrame    uint8
}

// DataHeader describes the header of a ghost, ZS or raw frame.
type DataHeader struct {
	DHE     uint8
	DHP     uint8
	Trigger uint16
	FrameNr uint16
	Error   bool
}

// EndHeader describes a DHE end of frame or a DHC end of event.
// A zero Words is replaced by the number of words actually sent.
type EndHeader struct {
	ID      uint8
	Trigger uint16
	Words   uint32
	Errors  uint32
}

// Encoder builds envelopes out of frames.
//
// Frames are accumulated until Flush writes the envelope holding them.
type Encoder struct {
	w   io.Writer
	err error

	Device   DeviceType
	Type     EventType // defaults to EvtData
	Module   uint8
	Trigger  uint32
	Flags    uint8
	Complete bool // DHH-DAQ: all frames are present
	NoCRC    bool // DHH-DAQ: no per-frame CRC, whole container checksum
	Large    bool // DHH-DAQ: 32-bit frame count and lengths

	frames [][]byte

	dheWords int
	dheData  bool
	dheOpen  bool
	dhcWords int
	ghosts   int
}

// NewEncoder returns an encoder writing envelopes for dev to w.
func NewEncoder(w io.Writer, dev DeviceType) *Encoder {
	return &Encoder{w: w, Device: dev, Type: EvtData}
}

func (enc *Encoder) crcs() bool {
	return enc.Device.IsONSEN() || !enc.NoCRC
}

func (enc *Encoder) complete() bool {
	return enc.Device.IsONSEN() || enc.Complete
}

// Frame appends a frame built from the given half-words.
// A CRC is appended when the container format requires it.
func (enc *Encoder) Frame(hws ...uint16) {
	buf := make([]byte, 2*len(hws), 2*len(hws)+szCRC)
	for i, hw := range hws {
		binary.BigEndian.PutUint16(buf[2*i:], hw)
	}
	if enc.crcs() {
		buf = binary.BigEndian.AppendUint32(buf, crc32.Checksum(buf))
	}
	enc.frames = append(enc.frames, buf)

	words := len(buf) / 4
	enc.dhcWords += words
	enc.dheWords += words
}

// DHCStart appends a DHC start of event.
func (enc *Encoder) DHCStart(h DHCHeader) {
	enc.Frame(
		uint16(FrameDHCStart)<<11|uint16(h.ID&0xf)<<4|uint16(h.DHEMask&0xf),
		uint16(h.Trigger), uint16(h.Trigger>>16),
		uint16(h.Time), uint16(h.Time>>16),
		h.Run,
	)
	enc.dhcWords = 0
	enc.ghosts = 0
	enc.dheOpen = false
}

// DHCEnd appends a DHC end of event.
func (enc *Encoder) DHCEnd(h EndHeader) {
	enc.closeDHE()
	if h.Words == 0 {
		h.Words = uint32(2*enc.dhcWords + 2*enc.ghosts)
	}
	enc.Frame(enc.end(FrameDHCEnd, uint16(h.ID&0xf)<<4, h)...)
}

// DHEStart appends a DHE start of frame.
func (enc *Encoder) DHEStart(h DHEHeader) {
	enc.closeDHE()
	enc.Frame(
		uint16(FrameDHEStart)<<11|uint16(h.ID&0x3f)<<4|uint16(h.DHPMask&0xf),
		uint16(h.Trigger), uint16(h.Trigger>>16),
		uint16(h.Time), uint16(h.Time>>16),
		uint16(h.StartFrame&0x3f)<<10|h.TriggerOffset&0x3ff,
	)
	enc.dheWords = 0
	enc.dheData = false
	enc.dheOpen = true
}

// DHEEnd appends a DHE end of frame.
func (enc *Encoder) DHEEnd(h EndHeader) {
	if h.Words == 0 {
		h.Words = uint32(2 * enc.dheWords)
		if !enc.dheData && !enc.complete() {
			h.Words += 2
		}
	}
	enc.Frame(enc.end(FrameDHEEnd, uint16(h.ID&0x3f)<<4, h)...)
}

func (enc *Encoder) closeDHE() {
	if enc.dheOpen && !enc.dheData && !enc.complete() {
		enc.ghosts++
	}
	enc.dheOpen = false
}

func (enc *Encoder) end(typ FrameType, id uint16, h EndHeader) []uint16 {
	return []uint16{
		uint16(typ)<<11 | id,
		h.Trigger,
		uint16(h.Words), uint16(h.Words >> 16),
		uint16(h.Errors), uint16(h.Errors >> 16),
	}
}

func (enc *Encoder) dataHeader(typ FrameType, h DataHeader) []uint16 {
	hw := uint16(typ)<<11 | uint16(h.DHE&0x3f)<<4 | uint16(h.DHP&0x3)
	if h.Error {
		hw |= 0x8000
	}
	return []uint16{hw, h.Trigger}
}

func (enc *Encoder) dhpHeader(typ uint8, h DataHeader) []uint16 {
	return []uint16{
		uint16(typ)<<13 | uint16(h.DHE&0x3f)<<2 | uint16(h.DHP&0x3),
		h.FrameNr,
	}
}

// Ghost appends a ghost frame.
func (enc *Encoder) Ghost(h DataHeader) {
	enc.Frame(enc.dataHeader(FrameGhost, h)...)
	enc.dheData = true
}

// ZS appends a zero-suppressed frame holding hits.
// Column and row are DHP-local; Aux holds the common-mode value of the
// row the hit opens.
func (enc *Encoder) ZS(h DataHeader, hits []Hit) {
	var (
		words = make([]uint16, 0, 2*len(hits)+1)
		hdr   = uint16(0)
		first = true
	)
	for _, hit := range hits {
		rh := uint16(hit.Row>>1)<<6 | hit.Aux&0x3f
		if first || rh>>6 != hdr>>6 {
			words = append(words, rh)
			hdr = rh
			first = false
		}
		words = append(words,
			0x8000|uint16(hit.Row&1)<<14|uint16(hit.Col&0x3f)<<8|uint16(hit.Value&0xff),
		)
	}
	if len(words)%2 != 0 {
		words = append(words, hdr)
	}
	enc.ZSWords(h, words)
}

// ZSWords appends a zero-suppressed frame with the given payload
// half-words.
func (enc *Encoder) ZSWords(h DataHeader, words []uint16) {
	hws := append(enc.dataHeader(FrameZS, h), enc.dhpHeader(dhpTypeZS, h)...)
	enc.Frame(append(hws, words...)...)
	enc.dheData = true
}

// Raw appends a raw frame with payload p.
func (enc *Encoder) Raw(h DataHeader, p []byte) {
	hws := append(enc.dataHeader(FrameRaw, h), enc.dhpHeader(dhpTypeRaw, h)...)
	for i := 0; i < len(p); i += 2 {
		hw := uint16(p[i]) << 8
		if i+1 < len(p) {
			hw |= uint16(p[i+1])
		}
		hws = append(hws, hw)
	}
	enc.Frame(hws...)
	enc.dheData = true
}

// Bytes returns the envelope holding the accumulated frames and resets
// the encoder.
func (enc *Encoder) Bytes() []byte {
	var body []byte
	switch {
	case enc.Device.IsONSEN():
		body = enc.onsen()
	default:
		body = enc.dhh()
	}

	hdr := envHdrLen
	if enc.Device.IsONSEN() {
		hdr += 4
	}
	typ := enc.Type
	if typ == 0 {
		typ = EvtData
	}
	size := hdr + len(body)
	buf := make([]byte, hdr, size)
	binary.BigEndian.PutUint32(buf, uint32(size/4)<<12|
		uint32(enc.Flags&0x3)<<10|
		uint32(typ&0x3)<<8|
		uint32(enc.Module&0xf)<<4|
		uint32(enc.Device&0xf),
	)
	binary.BigEndian.PutUint32(buf[4:], enc.Trigger)
	buf = append(buf, body...)

	enc.frames = enc.frames[:0]
	enc.dheOpen = false
	return buf
}

// Flush writes the envelope holding the accumulated frames.
func (enc *Encoder) Flush() error {
	if enc.err != nil {
		return enc.err
	}
	_, enc.err = enc.w.Write(enc.Bytes())
	if enc.err != nil {
		enc.err = xerrors.Errorf("pxd: could not write envelope: %w", enc.err)
	}
	return enc.err
}

func (enc *Encoder) onsen() []byte {
	var buf []byte
	for _, f := range enc.frames {
		buf = binary.BigEndian.AppendUint32(buf, onsenMagic)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(f)))
		buf = append(buf, f...)
	}
	return buf
}

func (enc *Encoder) dhh() []byte {
	n := len(enc.frames)
	small := !enc.Large && n < 1<<13
	for _, f := range enc.frames {
		if len(f) >= 1<<16 {
			small = false
		}
	}

	w0 := uint32(dhhMagic) << 16
	if enc.NoCRC {
		w0 |= 1 << 14
	}
	if enc.Complete {
		w0 |= 1 << 13
	}
	var buf []byte
	switch {
	case small:
		buf = binary.BigEndian.AppendUint32(buf, w0|1<<15|uint32(n))
		for _, f := range enc.frames {
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(f)))
		}
		if n%2 != 0 {
			buf = append(buf, 0, 0)
		}
	default:
		buf = binary.BigEndian.AppendUint32(buf, w0)
		buf = binary.BigEndian.AppendUint32(buf, uint32(n))
		for _, f := range enc.frames {
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(f)))
		}
	}
	if !enc.NoCRC {
		buf = binary.BigEndian.AppendUint32(buf, crc32.Checksum(buf))
	}
	for _, f := range enc.frames {
		buf = append(buf, f...)
		buf = append(buf, make([]byte, align4(len(f))-len(f))...)
	}
	if enc.NoCRC {
		buf = binary.BigEndian.AppendUint32(buf, crc32.Checksum(buf))
	}
	return buf
}
