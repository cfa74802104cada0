package ublox

import (
	"encoding/binary"
	"math"
)

// RelPosNed is a NAV-RELPOSNED relative RTK position solution.
type RelPosNed struct {
	RefStationID uint16
	ITow         uint32  // GPS time of week of the navigation epoch (ms)
	PosN         float64 // north (m)
	PosE         float64 // east (m)
	PosD         float64 // down (m)
	AccN         float64 // accuracy north (m)
	AccE         float64
	AccD         float64
	FixOK        bool
	DiffSoln     bool // differential corrections applied
	RelPosValid  bool
	CarrSoln     int // 0 no fix, 1 float, 2 fixed
}

// SurveyIn is a NAV-SVIN survey-in progress snapshot. The receiver
// accumulates the running mean across one survey; each message replaces
// the previous snapshot.
type SurveyIn struct {
	ITow    uint32
	Dur     uint32  // observation time so far (s)
	MeanX   float64 // ECEF (m)
	MeanY   float64
	MeanZ   float64
	MeanAcc float64 // (m)
	Obs     uint32
	Valid   bool
	Active  bool
}

// RawXObs is one satellite measurement of an RXM-RAWX epoch.
type RawXObs struct {
	PrMes        float64 // pseudorange (m)
	CpMes        float64 // carrier phase (cycles)
	DoMes        float32 // doppler (Hz)
	GnssID       uint8
	SvID         uint8
	FreqID       uint8
	Locktime     uint16 // (ms)
	Cno          uint8
	PrStdev      uint8
	CpStdev      uint8
	DoStdev      uint8
	PrValid      bool
	CpValid      bool
	HalfCycValid bool
	HalfCycSub   bool
}

// RawX is one RXM-RAWX raw measurement epoch, capacity MaxRawObs.
type RawX struct {
	RcvTow   float64
	Week     uint16
	Leaps    int8
	NumMeas  uint8
	LeapSec  bool
	ClkReset bool
	Obs      []RawXObs
}

// CfgPrtUart mirrors the UART view of CFG-PRT.
type CfgPrtUart struct {
	Baudrate uint32
	InRtcm3  bool
	InRtcm2  bool
	InNmea   bool
	InUbx    bool
	OutRtcm3 bool
	OutNmea  bool
	OutUbx   bool
}

// CfgTmode3 is the receiver time mode: disabled, survey-in or fixed.
type CfgTmode3 struct {
	Lla         bool // position given as lat/lon/alt instead of ECEF
	Mode        int  // 0 disabled, 1 survey in, 2 fixed
	EcefXOrLat  float64
	EcefYOrLon  float64
	EcefZOrAlt  float64
	FixedPosAcc float64 // (m)
	SvinMinDur  uint32  // (s)
	SvinAccLim  float64 // (m)
}

// CfgNav5 is the navigation engine configuration.
type CfgNav5 struct {
	ApplyDyn            bool
	ApplyMinEl          bool
	ApplyPosFixMode     bool
	ApplyPosMask        bool
	ApplyTimeMask       bool
	ApplyStaticHoldMask bool
	ApplyDgps           bool
	ApplyCno            bool
	ApplyUtc            bool

	DynModel          uint8 // 0 portable, 2 stationary, 3 pedestrian, 4 automotive, ...
	FixMode           uint8 // 1 2D, 2 3D, 3 auto
	FixedAlt          float64
	FixedAltVar       float64
	MinElev           int8
	PDop              float64
	TDop              float64
	PAcc              uint16
	TAcc              uint16
	StaticHoldThres   uint8
	DgnssTimeout      uint8
	CnoTresNumSat     uint8
	CnoTres           uint8
	StaticHoldMaxDist uint16
	UtcStandard       uint8
}

// cursor is a little-endian payload reader.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) u1() uint8 {
	v := c.buf[c.pos]
	c.pos++
	return v
}
func (c *cursor) i1() int8 { return int8(c.u1()) }
func (c *cursor) u2() uint16 {
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v
}
func (c *cursor) u4() uint32 {
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v
}
func (c *cursor) i4() int32 { return int32(c.u4()) }
func (c *cursor) r4() float32 {
	return math.Float32frombits(c.u4())
}
func (c *cursor) r8() float64 {
	v := binary.LittleEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return math.Float64frombits(v)
}
func (c *cursor) skip(n int) { c.pos += n }

func (d *Decoder) decodeRelPosNed(payload []byte) {
	var r RelPosNed
	c := &cursor{buf: payload}
	version := c.u1()
	switch {
	case version == 0 && len(payload) == 40:
		c.skip(1)
		r.RefStationID = c.u2()
		r.ITow = c.u4()
		n, e, dn := c.i4(), c.i4(), c.i4()
		hpN, hpE, hpD := c.i1(), c.i1(), c.i1()
		c.skip(1)
		r.PosN = float64(n)*1e-2 + float64(hpN)*1e-4
		r.PosE = float64(e)*1e-2 + float64(hpE)*1e-4
		r.PosD = float64(dn)*1e-2 + float64(hpD)*1e-4
		r.AccN = float64(c.u4()) * 1e-4
		r.AccE = float64(c.u4()) * 1e-4
		r.AccD = float64(c.u4()) * 1e-4
	case version == 1 && len(payload) == 64:
		c.skip(1)
		r.RefStationID = c.u2()
		r.ITow = c.u4()
		n, e, dn := c.i4(), c.i4(), c.i4()
		c.skip(8) // length and heading
		c.skip(4)
		hpN, hpE, hpD := c.i1(), c.i1(), c.i1()
		c.skip(1)
		r.PosN = float64(n)*1e-2 + float64(hpN)*1e-4
		r.PosE = float64(e)*1e-2 + float64(hpE)*1e-4
		r.PosD = float64(dn)*1e-2 + float64(hpD)*1e-4
		r.AccN = float64(c.u4()) * 1e-4
		r.AccE = float64(c.u4()) * 1e-4
		r.AccD = float64(c.u4()) * 1e-4
		c.skip(12) // length and heading accuracy, reserved
	default:
		d.stats.Malformed++
		return
	}
	flags := c.u4()
	r.FixOK = flags&0x01 != 0
	r.DiffSoln = flags&0x02 != 0
	r.RelPosValid = flags&0x04 != 0
	r.CarrSoln = int(flags >> 3 & 0x03)

	if d.cb.RelPosNed != nil {
		d.cb.RelPosNed(r)
	}
}

func (d *Decoder) decodeSurveyIn(payload []byte) {
	if len(payload) != 40 {
		d.stats.Malformed++
		return
	}
	c := &cursor{buf: payload}
	c.skip(4) // version, reserved
	var s SurveyIn
	s.ITow = c.u4()
	s.Dur = c.u4()
	x, y, z := c.i4(), c.i4(), c.i4()
	hpX, hpY, hpZ := c.i1(), c.i1(), c.i1()
	c.skip(1)
	s.MeanX = float64(x)*1e-2 + float64(hpX)*1e-4
	s.MeanY = float64(y)*1e-2 + float64(hpY)*1e-4
	s.MeanZ = float64(z)*1e-2 + float64(hpZ)*1e-4
	s.MeanAcc = float64(c.u4()) * 1e-4
	s.Obs = c.u4()
	s.Valid = c.u1() != 0
	s.Active = c.u1() != 0

	if d.cb.SurveyIn != nil {
		d.cb.SurveyIn(s)
	}
}

func (d *Decoder) decodeRawX(payload []byte) {
	if len(payload) < 16 || (len(payload)-16)%32 != 0 {
		d.stats.Malformed++
		return
	}
	c := &cursor{buf: payload}
	var r RawX
	r.RcvTow = c.r8()
	r.Week = c.u2()
	r.Leaps = c.i1()
	r.NumMeas = c.u1()
	recStat := c.u1()
	c.skip(3)
	r.LeapSec = recStat&0x01 != 0
	r.ClkReset = recStat&0x02 != 0

	n := int(r.NumMeas)
	if n != (len(payload)-16)/32 {
		d.stats.Malformed++
		return
	}
	for m := 0; m < n; m++ {
		var o RawXObs
		o.PrMes = c.r8()
		o.CpMes = c.r8()
		o.DoMes = c.r4()
		o.GnssID = c.u1()
		o.SvID = c.u1()
		c.skip(1) // signal id on protocol versions above 15
		o.FreqID = c.u1()
		o.Locktime = c.u2()
		o.Cno = c.u1()
		o.PrStdev = c.u1() & 0x0f
		o.CpStdev = c.u1() & 0x0f
		o.DoStdev = c.u1() & 0x0f
		trkStat := c.u1()
		c.skip(1)
		o.PrValid = trkStat&0x01 != 0
		o.CpValid = trkStat&0x02 != 0
		o.HalfCycValid = trkStat&0x04 != 0
		o.HalfCycSub = trkStat&0x08 != 0

		if len(r.Obs) >= MaxRawObs {
			d.stats.ObsOverflows++
			continue
		}
		r.Obs = append(r.Obs, o)
	}

	if d.cb.RawX != nil {
		d.cb.RawX(r)
	}
}

func (d *Decoder) decodeCfgPrt(payload []byte) {
	if len(payload) != 20 {
		d.stats.Malformed++
		return
	}
	c := &cursor{buf: payload}
	c.skip(8) // port id, reserved, txReady, mode
	var p CfgPrtUart
	p.Baudrate = c.u4()
	in := c.u2()
	out := c.u2()
	p.InUbx = in&0x01 != 0
	p.InNmea = in&0x02 != 0
	p.InRtcm2 = in&0x04 != 0
	p.InRtcm3 = in&0x20 != 0
	p.OutUbx = out&0x01 != 0
	p.OutNmea = out&0x02 != 0
	p.OutRtcm3 = out&0x20 != 0

	if d.cb.CfgPrt != nil {
		d.cb.CfgPrt(p)
	}
}

func (d *Decoder) decodeCfgTmode3(payload []byte) {
	if len(payload) != 40 {
		d.stats.Malformed++
		return
	}
	c := &cursor{buf: payload}
	c.skip(2)
	flags := c.u2()
	var t CfgTmode3
	t.Mode = int(flags & 0xff)
	t.Lla = flags&0x100 != 0
	x, y, z := c.i4(), c.i4(), c.i4()
	hpX, hpY, hpZ := c.i1(), c.i1(), c.i1()
	c.skip(1)
	if t.Lla {
		t.EcefXOrLat = float64(x)*1e-7 + float64(hpX)*1e-9
		t.EcefYOrLon = float64(y)*1e-7 + float64(hpY)*1e-9
		t.EcefZOrAlt = float64(z)*1e-2 + float64(hpZ)*1e-4
	} else {
		t.EcefXOrLat = float64(x)*1e-2 + float64(hpX)*1e-4
		t.EcefYOrLon = float64(y)*1e-2 + float64(hpY)*1e-4
		t.EcefZOrAlt = float64(z)*1e-2 + float64(hpZ)*1e-4
	}
	t.FixedPosAcc = float64(c.u4()) * 1e-4
	t.SvinMinDur = c.u4()
	t.SvinAccLim = float64(c.u4()) * 1e-4

	if d.cb.CfgTmode3 != nil {
		d.cb.CfgTmode3(t)
	}
}

func (d *Decoder) decodeCfgNav5(payload []byte) {
	if len(payload) != 36 {
		d.stats.Malformed++
		return
	}
	c := &cursor{buf: payload}
	mask := c.u2()
	var n CfgNav5
	n.ApplyDyn = mask&0x01 != 0
	n.ApplyMinEl = mask&0x02 != 0
	n.ApplyPosFixMode = mask&0x04 != 0
	n.ApplyPosMask = mask&0x10 != 0
	n.ApplyTimeMask = mask&0x20 != 0
	n.ApplyStaticHoldMask = mask&0x40 != 0
	n.ApplyDgps = mask&0x80 != 0
	n.ApplyCno = mask&0x100 != 0
	n.ApplyUtc = mask&0x400 != 0
	n.DynModel = c.u1()
	n.FixMode = c.u1()
	n.FixedAlt = float64(c.i4()) * 0.01
	n.FixedAltVar = float64(c.u4()) * 0.0001
	n.MinElev = c.i1()
	c.skip(1) // dead reckoning limit
	n.PDop = float64(c.u2()) * 0.1
	n.TDop = float64(c.u2()) * 0.1
	n.PAcc = c.u2()
	n.TAcc = c.u2()
	n.StaticHoldThres = c.u1()
	n.DgnssTimeout = c.u1()
	n.CnoTresNumSat = c.u1()
	n.CnoTres = c.u1()
	c.skip(2)
	n.StaticHoldMaxDist = c.u2()
	n.UtcStandard = c.u1()

	if d.cb.CfgNav5 != nil {
		d.cb.CfgNav5(n)
	}
}
