// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

import (
	"log"
)

// interp interprets the frames of one container.
type interp struct {
	cfg   *config
	msg   *log.Logger
	info  Info
	w     Walker
	isDHC bool

	evts []Event

	// start of event (DHC) context.
	inDHC    bool
	dhcID    uint8
	dhcTrg   uint32
	dhcTime  uint32
	dhcWords int
	ghosts   int // hidden ghost frames of the current DHC

	// start of frame (DHE) context.
	open       bool
	evt        Event
	dheWords   int
	frameNr0   [nDHP]int // first DHP frame number, per DHP
	crcGood    bool
	hasEnd     bool
	arrived    bool // a data frame was seen
	finished   bool // a terminal data frame was decoded
	gotZS      bool
	gotRaw     bool
	skipped    bool // a data frame was discarded by policy
	nDHE       int
	skipDHE    bool // current DHE is filtered out
	skippedDHE bool
}

func (it *interp) run() error {
	n := it.w.NumFrames()
	if n == 0 {
		return fatalf("pxd: container holds no frame: %w", ErrFrameTooSmall)
	}
	it.info.set(infoFrames, float64(n))

	if !it.w.CRCValid() {
		it.info.inc(ErrContainerCRC)
		it.msg.Printf("container checksum mismatch")
	}

	for i := 0; it.w.More(); i++ {
		err := it.frame(i, it.w.Frame(), it.w.Words())
		if err != nil {
			return err
		}
		it.w.Advance()
	}

	err := it.finalize()
	if err != nil {
		return err
	}

	if it.nDHE == 0 && !it.skippedDHE {
		return fatalf("pxd: %d frames without any DHE start of frame: %w", n, ErrNoDHE)
	}
	return nil
}

func (it *interp) errorf(key string, format string, args ...interface{}) {
	it.info.inc(key)
	if it.cfg.debug > 0 {
		it.msg.Printf(key+": "+format, args...)
	}
}

func (it *interp) frame(idx int, raw []byte, words int) error {
	var (
		body  = raw
		crcOK = true
	)
	if it.w.HasCRC() {
		if len(raw) < szCRC+2 {
			it.errorf(ErrFrameSize, "frame %d: %d bytes", idx, len(raw))
			return nil
		}
		crcOK = checkCRC(raw)
		body = raw[:len(raw)-szCRC]
	}
	if len(body) < 2 {
		it.errorf(ErrFrameSize, "frame %d: %d bytes", idx, len(raw))
		return nil
	}

	f := frame(body)
	typ := f.typ()
	if it.cfg.debug > 1 {
		it.msg.Printf("frame %d: %v (%d bytes, crc=%v)", idx, typ, len(raw), crcOK)
	}
	if !crcOK {
		it.info.inc(ErrCRC)
		it.msg.Printf("frame %d (%v): CRC mismatch", idx, typ)
	}

	if it.skipDHE {
		switch typ {
		case FrameDHEStart, FrameDHCStart, FrameDHCEnd:
		default:
			it.info.inc(CntSkippedDHEFrames)
			if it.inDHC {
				it.dhcWords += words
			}
			return nil
		}
	}

	switch typ {
	case FrameDHCStart:
		if !it.isDHC {
			it.errorf(ErrUnexpectedDHCFrame, "frame %d: %v", idx, typ)
			return nil
		}
		if len(f) != szDHCStart {
			it.errorf(ErrFrameSize, "frame %d (%v): %d bytes", idx, typ, len(f))
			return nil
		}
		err := it.finalize()
		if err != nil {
			return err
		}
		it.skipDHE = false
		it.inDHC = true
		it.dhcID = f.dhcID()
		it.dhcTrg = f.trigger()
		it.dhcTime = f.time()
		it.dhcWords = 4
		it.ghosts = 0

		it.info.set(infoKey("DHC", infoTrigger), float64(it.dhcTrg))
		it.info.set(infoKey("DHC", infoTime), float64(it.dhcTime))
		it.info.set(infoKey("DHC", infoRun), float64(f.run()))
		it.info.set(infoKey("DHC", infoDHEMask), float64(f.mask()))

	case FrameDHCEnd:
		if !it.isDHC {
			it.errorf(ErrUnexpectedDHCFrame, "frame %d: %v", idx, typ)
			return nil
		}
		if len(f) != szEnd {
			it.errorf(ErrFrameSize, "frame %d (%v): %d bytes", idx, typ, len(f))
			return nil
		}
		err := it.finalize()
		if err != nil {
			return err
		}
		it.skipDHE = false
		if !it.inDHC {
			it.errorf(ErrMissingDHCStart, "frame %d: end of event without start of event", idx)
			return nil
		}
		it.inDHC = false

		if id := f.dhcID(); id != it.dhcID {
			it.errorf(ErrDHCID, "end of event DHC ID %d != %d", id, it.dhcID)
		}
		if trg := f.trgLo(); trg != uint16(it.dhcTrg) {
			it.errorf(ErrDHCEndTrigger, "end of event trigger 0x%04x != 0x%04x", trg, uint16(it.dhcTrg))
		}
		want := uint32(2*(it.dhcWords-4) + 2*it.ghosts)
		if got := f.words(); got != want {
			it.errorf(ErrDHCWords, "DHC %d: got=%d, want=%d", it.dhcID, got, want)
		}
		it.info.set(infoKey("DHC", infoWords), float64(f.words()))
		it.info.set(infoKey("DHC", infoErrorInfo), float64(f.errInfo()))

	case FrameDHEStart:
		if it.isDHC {
			switch {
			case it.inDHC:
				it.dhcWords += words
			default:
				it.errorf(ErrMissingDHCStart, "frame %d: start of frame outside event", idx)
			}
		}
		err := it.finalize()
		if err != nil {
			return err
		}
		it.skipDHE = false
		if len(f) != szDHEStart {
			it.errorf(ErrFrameSize, "frame %d (%v): %d bytes", idx, typ, len(f))
			return nil
		}

		id := f.dheID()
		if it.cfg.dheFilter >= 0 && int(id) != it.cfg.dheFilter {
			it.skipDHE = true
			it.skippedDHE = true
			it.info.inc(CntSkippedDHEFrames)
			return nil
		}
		it.begin(f, crcOK)

		if it.isDHC && it.inDHC && uint16(it.evt.TriggerNr) != uint16(it.dhcTrg) {
			it.errorf(ErrDHEDHCTrigger, "DHE %d trigger 0x%04x != DHC trigger 0x%04x",
				id, uint16(it.evt.TriggerNr), uint16(it.dhcTrg),
			)
		}

	case FrameGhost, FrameZS, FrameRaw:
		if it.inDHC {
			it.dhcWords += words
		}
		if !it.open {
			it.errorf(ErrDataWithoutDHEStart, "frame %d (%v)", idx, typ)
			return nil
		}
		if !it.hasEnd {
			it.dheWords += words
		}
		if !crcOK {
			it.crcGood = false
		}
		it.arrived = true
		it.data(idx, f, typ)

	case FrameDHEEnd:
		if it.inDHC {
			it.dhcWords += words
		}
		if !it.open {
			it.errorf(ErrDataWithoutDHEStart, "frame %d (%v)", idx, typ)
			return nil
		}
		if len(f) != szEnd {
			it.errorf(ErrFrameSize, "frame %d (%v): %d bytes", idx, typ, len(f))
			return nil
		}
		if !crcOK {
			it.crcGood = false
		}
		it.end(f)

	default:
		if it.inDHC {
			it.dhcWords += words
		}
		it.errorf(ErrUnknownFrameType, "frame %d: type 0x%x", idx, uint8(typ))
	}

	return nil
}

// begin opens a new DHE context.
func (it *interp) begin(f frame, crcOK bool) {
	id := f.dheID()
	it.open = true
	it.evt = Event{
		TriggerNr:     f.trigger(),
		TimeField:     f.time(),
		TriggerOffset: f.offset(),
		DHEID:         id,
		IsGood:        id != noDHE,
	}
	if it.isDHC {
		it.evt.DHCTriggerNr = it.dhcTrg
		it.evt.DHCTimeField = it.dhcTime
	}
	it.dheWords = 4
	for i := range it.frameNr0 {
		it.frameNr0[i] = -1
	}
	it.crcGood = crcOK
	it.hasEnd = false
	it.arrived = false
	it.finished = false
	it.gotZS = false
	it.gotRaw = false
	it.skipped = false
	it.nDHE++

	key := dheKey(id)
	it.info.set(infoKey(key, infoTrigger), float64(it.evt.TriggerNr))
	it.info.set(infoKey(key, infoTime), float64(it.evt.TimeField))
	it.info.set(infoKey(key, infoTriggerOffset), float64(it.evt.TriggerOffset))
	it.info.set(infoKey(key, infoStartFrame), float64(f.sfnr()))
	it.info.set(infoKey(key, infoDHPMask), float64(f.mask()))
}

// end checks the end of frame of the current DHE.
func (it *interp) end(f frame) {
	id := it.evt.DHEID
	if got := f.dheID(); got != id {
		it.errorf(ErrDHEEndID, "end of frame DHE ID %d != %d", got, id)
	}
	if trg := f.trgLo(); trg != uint16(it.evt.TriggerNr) {
		it.errorf(ErrDHEEndTrigger, "DHE %d: end of frame trigger 0x%04x != 0x%04x",
			id, trg, uint16(it.evt.TriggerNr),
		)
	}

	want := 2 * (it.dheWords - 4)
	if !it.arrived && !it.w.Complete() {
		// a trailing ghost frame may be omitted by the firmware.
		want += 2
	}
	if got := f.words(); got != uint32(want) {
		it.errorf(ErrDHEWords, "DHE %d: got=%d, want=%d", id, got, want)
	}
	it.hasEnd = true

	key := dheKey(id)
	it.info.set(infoKey(key, infoWords), float64(f.words()))
	it.info.set(infoKey(key, infoErrorInfo), float64(f.errInfo()))
}

// finalize closes the current DHE context and emits its event.
func (it *interp) finalize() error {
	if !it.open {
		return nil
	}
	it.open = false
	id := it.evt.DHEID

	if !it.hasEnd {
		it.errorf(ErrNoEndOfDHE, "DHE %d trigger %d", id, it.evt.TriggerNr)
	}

	if !it.finished && !it.skipped {
		switch {
		case !it.arrived && !it.w.Complete():
			it.finished = true
			it.gotZS = true
			it.ghosts++
			it.info.inc(CntHiddenGhosts)
		default:
			it.errorf(ErrMissingDHEData, "DHE %d trigger %d", id, it.evt.TriggerNr)
		}
	}

	if it.gotZS && it.gotRaw {
		return fatalf("pxd: DHE %d trigger %d: %w", id, it.evt.TriggerNr, ErrRawAndZS)
	}

	switch {
	case !it.crcGood:
		it.info.inc(CntDroppedEvents)
		it.msg.Printf("DHE %d trigger %d: dropping event with CRC errors", id, it.evt.TriggerNr)
		return nil
	case !it.finished:
		it.info.inc(CntDroppedEvents)
		if it.cfg.debug > 0 && !it.skipped {
			it.msg.Printf("DHE %d trigger %d: dropping incomplete event", id, it.evt.TriggerNr)
		}
		return nil
	}

	evt := it.evt
	evt.IsRaw = it.gotRaw
	if evt.Kind() == KindGhost {
		it.info.inc(CntGhostEvents)
	}
	it.info.inc(CntEvents)
	it.evts = append(it.evts, evt)
	return nil
}
