// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pxd

// FrameType is the tag carried by the first half-word of a frame.
type FrameType uint8

const (
	FrameRaw      FrameType = 0x0
	FrameGhost    FrameType = 0x2
	FrameDHEStart FrameType = 0x3 // start of frame
	FrameDHEEnd   FrameType = 0x4 // end of frame
	FrameZS       FrameType = 0x5
	FrameDHCStart FrameType = 0xb // start of event
	FrameDHCEnd   FrameType = 0xc // end of event
)

func (ft FrameType) String() string {
	switch ft {
	case FrameRaw:
		return "RAW"
	case FrameGhost:
		return "GHOST"
	case FrameDHEStart:
		return "DHE_START"
	case FrameDHEEnd:
		return "DHE_END"
	case FrameZS:
		return "ZSD"
	case FrameDHCStart:
		return "DHC_START"
	case FrameDHCEnd:
		return "DHC_END"
	}
	return "UNKNOWN"
}

const (
	dhhMagic   = 0xddaa     // DHH-DAQ container marker (upper half of word 0)
	onsenMagic = 0xcafebabe // ONSEN frame marker

	dhpTypeRaw = 0x4
	dhpTypeZS  = 0x5

	noDHE = 0x3f // "no DHE" sentinel ID

	nDHP        = 4  // DHPs per DHE
	nDHPCols    = 64 // columns per DHP
	nRawRowsBlk = 256
	nGates      = 768
)

// EventType is the event-type field of an envelope.
type EventType uint8

const (
	EvtData        EventType = 1
	EvtSlowControl EventType = 2
	EvtStatus      EventType = 3
)

// DeviceType is the device-type field of an envelope.
type DeviceType uint8

const (
	DevDHEMulti  DeviceType = 0x1 // DHE only, DHH-DAQ container
	DevDHESingle DeviceType = 0x2 // DHE only, ONSEN container
	DevDHCMulti  DeviceType = 0x3 // DHC wrapped, DHH-DAQ container
	DevDHCSingle DeviceType = 0x4 // DHC wrapped, ONSEN container
)

// Named counters recorded into an Info.
const (
	ErrCRC                 = "ERROR_CRC"
	ErrContainerCRC        = "ERROR_CONTAINER_CRC"
	ErrDHEWords            = "ERROR_WRONG_NUMBER_OF_DHE_WORDS"
	ErrDHCWords            = "ERROR_WRONG_NUMBER_OF_DHC_WORDS"
	ErrDHEDHCTrigger       = "ERROR_DHE_DHC_TRIGGER_MISMATCH"
	ErrDHETrigger          = "ERROR_DHE_TRIGGER_MISMATCH"
	ErrDHEEndTrigger       = "ERROR_DHE_END_TRIGGER_MISMATCH"
	ErrDHEEndID            = "ERROR_DHE_END_ID_MISMATCH"
	ErrDHCEndTrigger       = "ERROR_DHC_END_TRIGGER_MISMATCH"
	ErrDHCID               = "ERROR_DHC_ID_MISMATCH"
	ErrDHEID               = "ERROR_DHE_ID_MISMATCH"
	ErrDHPDHEID            = "ERROR_DHP_DHE_ID_MISMATCH"
	ErrDHPHeaderType       = "ERROR_DHP_HEADER_TYPE"
	ErrDHPBadPadding       = "ERROR_DHP_BAD_PADDING"
	ErrDHPPaddingMismatch  = "DHP_PADDING_MISMATCH"
	ErrDHPDoubleRowHeader  = "ERROR_DHP_DOUBLE_ROW_HEADER"
	ErrDHPHitWithoutRow    = "ERROR_DHP_HIT_WITHOUT_ROW"
	ErrFrameSize           = "ERROR_FRAME_SIZE"
	ErrRawFrameSize        = "ERROR_RAW_FRAME_SIZE"
	ErrUnknownFrameType    = "ERROR_UNKNOWN_FRAME_TYPE"
	ErrUnexpectedDHCFrame  = "ERROR_UNEXPECTED_DHC_FRAME"
	ErrMissingDHCStart     = "ERROR_MISSING_DHC_START"
	ErrDataWithoutDHEStart = "ERROR_DATA_WITHOUT_DHE_START"
	ErrNoEndOfDHE          = "ERROR_NO_END_OF_DHE"
	ErrMissingDHEData      = "ERROR_MISSING_DHE_DATA"
	ErrMappingRange        = "ERROR_MAPPING_RANGE"
	CntEvents              = "EVENTS"
	CntDroppedEvents       = "DROPPED_EVENTS"
	CntGhostEvents         = "GHOST_EVENTS"
	CntHiddenGhosts        = "HIDDEN_GHOSTS"
	CntSkippedDHEFrames    = "SKIPPED_DHE_FRAMES"
)

// Mirrored header fields.
const (
	infoDHPCMError    = "DHP CM Error"
	infoDHPFrameNr    = "DHP Frame Nr"
	infoDHPHits       = "DHP Hits"
	infoRawBytes      = "Raw Bytes"
	infoTrigger       = "Trigger"
	infoTime          = "Time"
	infoTriggerOffset = "Trigger Offset"
	infoRun           = "Run"
	infoWords         = "Words"
	infoErrorInfo     = "Error Info"
	infoFrames        = "Frames"
	infoDHPMask       = "DHP Mask"
	infoDHEMask       = "DHE Mask"
	infoStartFrame    = "Start Frame"
	infoFrameType     = "Frame Type"
	infoErrorFlag     = "Error Flag"
)
