// Package ublox speaks the u-blox binary protocol to an RTK-capable GNSS
// receiver: navigation and raw-measurement decode plus the configuration
// writes a base station needs (port protocol masks, time mode, navigation
// engine settings), with acknowledgment correlation.
package ublox

import "encoding/binary"

// Frame sync bytes.
const (
	Sync1 uint8 = 0xB5
	Sync2 uint8 = 0x62
)

// Message classes and ids handled here.
const (
	ClassNav uint8 = 0x01
	ClassRxm uint8 = 0x02
	ClassAck uint8 = 0x05
	ClassCfg uint8 = 0x06

	IDNavSvin      uint8 = 0x3B
	IDNavRelPosNed uint8 = 0x3C
	IDRxmRawx      uint8 = 0x15
	IDAckNak       uint8 = 0x00
	IDAckAck       uint8 = 0x01
	IDCfgPrt       uint8 = 0x00
	IDCfgMsg       uint8 = 0x01
	IDCfgRate      uint8 = 0x08
	IDCfgNav5      uint8 = 0x24
	IDCfgTmode3    uint8 = 0x71
)

// MaxRawObs caps the raw measurements kept per epoch; extras are dropped.
const MaxRawObs = 64

const maxPayload = 16 + 32*255 // largest well-formed RXM-RAWX

// Checksum is the two byte Fletcher checksum over class, id, length and
// payload.
func Checksum(data []byte) (ckA, ckB uint8) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return
}

// EncodeMessage builds a complete frame around a payload.
func EncodeMessage(cls, id uint8, payload []byte) []byte {
	buf := make([]byte, 0, 8+len(payload))
	buf = append(buf, Sync1, Sync2, cls, id)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	ckA, ckB := Checksum(buf[2:])
	return append(buf, ckA, ckB)
}

// Callbacks receive decoded records. Every record is a fresh snapshot; nil
// handlers are skipped.
type Callbacks struct {
	RelPosNed func(RelPosNed)
	SurveyIn  func(SurveyIn)
	RawX      func(RawX)
	CfgPrt    func(CfgPrtUart)
	CfgTmode3 func(CfgTmode3)
	CfgNav5   func(CfgNav5)
	// Ack reports ACK-ACK (true) or ACK-NAK (false) for a configuration
	// message identified by its class and id.
	Ack func(cls, id uint8, ack bool)
}

// Stats carries diagnostic counters; decode errors recover locally.
type Stats struct {
	Messages       uint64
	ChecksumErrors uint64
	Overflows      uint64
	Malformed      uint64
	ObsOverflows   uint64
}

// Decoder is the incremental frame state machine. One instance per
// receiver connection.
type Decoder struct {
	cb    Callbacks
	buf   []byte
	stats Stats
}

func NewDecoder(cb Callbacks) *Decoder {
	return &Decoder{cb: cb}
}

func (d *Decoder) Stats() Stats {
	return d.stats
}

// Feed pushes receiver bytes through the state machine.
func (d *Decoder) Feed(data []byte) {
	for _, b := range data {
		d.feedByte(b)
	}
}

func (d *Decoder) feedByte(b byte) {
	switch {
	case len(d.buf) == 0:
		if b == Sync1 {
			d.buf = append(d.buf, b)
		}
		return
	case len(d.buf) == 1:
		if b != Sync2 {
			d.buf = d.buf[:0]
			if b == Sync1 {
				d.buf = append(d.buf, b)
			}
			return
		}
	}
	d.buf = append(d.buf, b)
	if len(d.buf) < 6 {
		return
	}

	length := int(binary.LittleEndian.Uint16(d.buf[4:6]))
	if len(d.buf) == 6 {
		if length > maxPayload || length > maxLengthFor(d.buf[2], d.buf[3]) {
			d.stats.Overflows++
			d.resync()
		}
		return
	}
	if len(d.buf) < 8+length {
		return
	}

	ckA, ckB := Checksum(d.buf[2 : 6+length])
	if ckA != d.buf[6+length] || ckB != d.buf[7+length] {
		d.stats.ChecksumErrors++
		d.resync()
		return
	}

	cls, id := d.buf[2], d.buf[3]
	payload := d.buf[6 : 6+length]
	d.stats.Messages++
	d.dispatch(cls, id, payload)
	d.buf = d.buf[:0]
}

// maxLengthFor bounds the payload per message; a frame above its bound is
// rejected and the stream resynchronizes, mirroring the RTCM overflow
// policy.
func maxLengthFor(cls, id uint8) int {
	switch {
	case cls == ClassNav && id == IDNavRelPosNed:
		return 64 // version 1 frames are 64 bytes
	case cls == ClassNav && id == IDNavSvin:
		return 40
	case cls == ClassRxm && id == IDRxmRawx:
		return maxPayload
	case cls == ClassAck:
		return 2
	case cls == ClassCfg:
		return 40
	}
	return 512
}

// resync re-scans everything after the first sync byte so a real frame
// overlapping a corrupt one is not lost.
func (d *Decoder) resync() {
	tail := append([]byte(nil), d.buf[1:]...)
	d.buf = d.buf[:0]
	d.Feed(tail)
}

func (d *Decoder) dispatch(cls, id uint8, payload []byte) {
	switch {
	case cls == ClassNav && id == IDNavRelPosNed:
		d.decodeRelPosNed(payload)
	case cls == ClassNav && id == IDNavSvin:
		d.decodeSurveyIn(payload)
	case cls == ClassRxm && id == IDRxmRawx:
		d.decodeRawX(payload)
	case cls == ClassAck && (id == IDAckAck || id == IDAckNak):
		if len(payload) != 2 {
			d.stats.Malformed++
			return
		}
		if d.cb.Ack != nil {
			d.cb.Ack(payload[0], payload[1], id == IDAckAck)
		}
	case cls == ClassCfg && id == IDCfgPrt:
		d.decodeCfgPrt(payload)
	case cls == ClassCfg && id == IDCfgTmode3:
		d.decodeCfgTmode3(payload)
	case cls == ClassCfg && id == IDCfgNav5:
		d.decodeCfgNav5(payload)
	}
}
