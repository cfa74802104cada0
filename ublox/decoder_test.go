package ublox

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func relPosNedPayload(n, e, d int32, hpN, hpE, hpD int8, flags uint32) []byte {
	p := make([]byte, 40)
	binary.LittleEndian.PutUint16(p[2:], 512)
	binary.LittleEndian.PutUint32(p[4:], 123000)
	binary.LittleEndian.PutUint32(p[8:], uint32(n))
	binary.LittleEndian.PutUint32(p[12:], uint32(e))
	binary.LittleEndian.PutUint32(p[16:], uint32(d))
	p[20] = uint8(hpN)
	p[21] = uint8(hpE)
	p[22] = uint8(hpD)
	binary.LittleEndian.PutUint32(p[24:], 71)
	binary.LittleEndian.PutUint32(p[28:], 82)
	binary.LittleEndian.PutUint32(p[32:], 93)
	binary.LittleEndian.PutUint32(p[36:], flags)
	return p
}

func TestRelPosNedFixed(t *testing.T) {
	var got []RelPosNed
	d := NewDecoder(Callbacks{RelPosNed: func(r RelPosNed) { got = append(got, r) }})

	// fix ok, differential, valid, carrier solution fixed
	flags := uint32(0x01 | 0x02 | 0x04 | 2<<3)
	d.Feed(EncodeMessage(ClassNav, IDNavRelPosNed,
		relPosNedPayload(1234, -567, 89, -56, 12, 0, flags)))

	if !assert.Len(t, got, 1) {
		return
	}
	r := got[0]
	assert.True(t, r.FixOK)
	assert.True(t, r.DiffSoln)
	assert.True(t, r.RelPosValid)
	assert.Equal(t, 2, r.CarrSoln)
	assert.Equal(t, uint16(512), r.RefStationID)
	assert.Equal(t, uint32(123000), r.ITow)
	assert.InDelta(t, 12.34-0.0056, r.PosN, 1e-9)
	assert.InDelta(t, -5.67+0.0012, r.PosE, 1e-9)
	assert.InDelta(t, 0.89, r.PosD, 1e-9)
	assert.InDelta(t, 0.0071, r.AccN, 1e-9)
	assert.InDelta(t, 0.0082, r.AccE, 1e-9)
	assert.InDelta(t, 0.0093, r.AccD, 1e-9)
}

func TestRelPosNedFloatSolution(t *testing.T) {
	var got []RelPosNed
	d := NewDecoder(Callbacks{RelPosNed: func(r RelPosNed) { got = append(got, r) }})

	d.Feed(EncodeMessage(ClassNav, IDNavRelPosNed,
		relPosNedPayload(100, 0, 0, 0, 0, 0, 0x01|1<<3)))

	if assert.Len(t, got, 1) {
		assert.True(t, got[0].FixOK)
		assert.False(t, got[0].RelPosValid)
		assert.Equal(t, 1, got[0].CarrSoln)
	}
}

func TestSurveyIn(t *testing.T) {
	var got []SurveyIn
	d := NewDecoder(Callbacks{SurveyIn: func(s SurveyIn) { got = append(got, s) }})

	p := make([]byte, 40)
	binary.LittleEndian.PutUint32(p[4:], 500)
	binary.LittleEndian.PutUint32(p[8:], 120)
	binary.LittleEndian.PutUint32(p[12:], uint32(int32(336885462)))
	binary.LittleEndian.PutUint32(p[16:], uint32(int32(71507798)))
	binary.LittleEndian.PutUint32(p[20:], uint32(int32(536400197)))
	hpX := int8(-42)
	p[24] = uint8(hpX)
	p[25] = uint8(int8(17))
	p[26] = uint8(int8(3))
	binary.LittleEndian.PutUint32(p[28:], 812)
	binary.LittleEndian.PutUint32(p[32:], 119)
	p[36] = 0
	p[37] = 1
	d.Feed(EncodeMessage(ClassNav, IDNavSvin, p))

	if !assert.Len(t, got, 1) {
		return
	}
	s := got[0]
	assert.Equal(t, uint32(120), s.Dur)
	assert.InDelta(t, 3368854.62-0.0042, s.MeanX, 1e-6)
	assert.InDelta(t, 715077.98+0.0017, s.MeanY, 1e-6)
	assert.InDelta(t, 5364001.97+0.0003, s.MeanZ, 1e-6)
	assert.InDelta(t, 0.0812, s.MeanAcc, 1e-9)
	assert.Equal(t, uint32(119), s.Obs)
	assert.False(t, s.Valid)
	assert.True(t, s.Active)
}

func rawXPayload(rcvTow float64, week uint16, obs []RawXObs) []byte {
	p := make([]byte, 16+32*len(obs))
	binary.LittleEndian.PutUint64(p[0:], math.Float64bits(rcvTow))
	binary.LittleEndian.PutUint16(p[8:], week)
	p[10] = uint8(int8(18))
	p[11] = uint8(len(obs))
	p[12] = 0x01 // leap seconds known
	for k, o := range obs {
		b := p[16+32*k:]
		binary.LittleEndian.PutUint64(b[0:], math.Float64bits(o.PrMes))
		binary.LittleEndian.PutUint64(b[8:], math.Float64bits(o.CpMes))
		binary.LittleEndian.PutUint32(b[16:], math.Float32bits(o.DoMes))
		b[20] = o.GnssID
		b[21] = o.SvID
		b[23] = o.FreqID
		binary.LittleEndian.PutUint16(b[24:], o.Locktime)
		b[26] = o.Cno
		b[27] = o.PrStdev
		b[28] = o.CpStdev
		b[29] = o.DoStdev
		var trk uint8
		if o.PrValid {
			trk |= 0x01
		}
		if o.CpValid {
			trk |= 0x02
		}
		if o.HalfCycValid {
			trk |= 0x04
		}
		b[30] = trk
	}
	return p
}

func TestRawX(t *testing.T) {
	var got []RawX
	d := NewDecoder(Callbacks{RawX: func(r RawX) { got = append(got, r) }})

	obs := []RawXObs{
		{PrMes: 21233400.12, CpMes: 111583726.5, DoMes: -1523.25, GnssID: 0,
			SvID: 5, Locktime: 64500, Cno: 44, PrValid: true, CpValid: true},
		{PrMes: 23889123.44, CpMes: 125541100.25, DoMes: 801.5, GnssID: 6,
			SvID: 12, FreqID: 9, Locktime: 1200, Cno: 38, PrValid: true},
	}
	d.Feed(EncodeMessage(ClassRxm, IDRxmRawx, rawXPayload(414018.5, 2071, obs)))

	if !assert.Len(t, got, 1) {
		return
	}
	r := got[0]
	assert.Equal(t, 414018.5, r.RcvTow)
	assert.Equal(t, uint16(2071), r.Week)
	assert.Equal(t, int8(18), r.Leaps)
	assert.True(t, r.LeapSec)
	if assert.Len(t, r.Obs, 2) {
		assert.Equal(t, 21233400.12, r.Obs[0].PrMes)
		assert.Equal(t, 111583726.5, r.Obs[0].CpMes)
		assert.Equal(t, float32(-1523.25), r.Obs[0].DoMes)
		assert.True(t, r.Obs[0].CpValid)
		assert.Equal(t, uint8(6), r.Obs[1].GnssID)
		assert.Equal(t, uint8(9), r.Obs[1].FreqID)
		assert.False(t, r.Obs[1].CpValid)
	}
}

func TestRawXOverflowDropsExtras(t *testing.T) {
	var got []RawX
	d := NewDecoder(Callbacks{RawX: func(r RawX) { got = append(got, r) }})

	obs := make([]RawXObs, MaxRawObs+6)
	for k := range obs {
		obs[k] = RawXObs{PrMes: 2e7 + float64(k), SvID: uint8(k + 1), PrValid: true}
	}
	d.Feed(EncodeMessage(ClassRxm, IDRxmRawx, rawXPayload(1.0, 2071, obs)))

	if assert.Len(t, got, 1) {
		assert.Len(t, got[0].Obs, MaxRawObs)
		assert.Equal(t, uint8(MaxRawObs+6), got[0].NumMeas)
	}
	assert.Equal(t, uint64(6), d.Stats().ObsOverflows)
}

func TestAckReports(t *testing.T) {
	type ack struct {
		cls, id uint8
		ok      bool
	}
	var got []ack
	d := NewDecoder(Callbacks{Ack: func(cls, id uint8, ok bool) {
		got = append(got, ack{cls, id, ok})
	}})

	d.Feed(EncodeMessage(ClassAck, IDAckAck, []byte{ClassCfg, IDCfgTmode3}))
	d.Feed(EncodeMessage(ClassAck, IDAckNak, []byte{ClassCfg, IDCfgNav5}))

	assert.Equal(t, []ack{
		{ClassCfg, IDCfgTmode3, true},
		{ClassCfg, IDCfgNav5, false},
	}, got)
}

func TestChecksumErrorResync(t *testing.T) {
	var got []SurveyIn
	d := NewDecoder(Callbacks{SurveyIn: func(s SurveyIn) { got = append(got, s) }})

	bad := EncodeMessage(ClassNav, IDNavSvin, make([]byte, 40))
	bad[10] ^= 0x80
	good := EncodeMessage(ClassNav, IDNavSvin, make([]byte, 40))
	d.Feed(append(bad, good...))

	assert.Len(t, got, 1)
	assert.Equal(t, uint64(1), d.Stats().ChecksumErrors)
	assert.Equal(t, uint64(1), d.Stats().Messages)
}

func TestOversizeLengthResync(t *testing.T) {
	var got []SurveyIn
	d := NewDecoder(Callbacks{SurveyIn: func(s SurveyIn) { got = append(got, s) }})

	// claims a 2000 byte survey-in payload
	junk := []byte{Sync1, Sync2, ClassNav, IDNavSvin, 0xD0, 0x07}
	good := EncodeMessage(ClassNav, IDNavSvin, make([]byte, 40))
	d.Feed(append(junk, good...))

	assert.Len(t, got, 1)
	assert.Equal(t, uint64(1), d.Stats().Overflows)
}

func TestByteAtATimeMatchesBulk(t *testing.T) {
	var bulk, single []uint32
	mk := func(out *[]uint32) *Decoder {
		return NewDecoder(Callbacks{RelPosNed: func(r RelPosNed) { *out = append(*out, r.ITow) }})
	}

	stream := []byte{0x00, Sync1, 0x13}
	stream = append(stream, EncodeMessage(ClassNav, IDNavRelPosNed,
		relPosNedPayload(1, 2, 3, 0, 0, 0, 0x01))...)
	stream = append(stream, EncodeMessage(ClassNav, IDNavRelPosNed,
		relPosNedPayload(4, 5, 6, 0, 0, 0, 0x01))...)

	mk(&bulk).Feed(stream)
	d := mk(&single)
	for _, b := range stream {
		d.Feed([]byte{b})
	}
	assert.Equal(t, bulk, single)
	assert.Len(t, bulk, 2)
}

func TestCfgPrtRoundTrip(t *testing.T) {
	var got []CfgPrtUart
	d := NewDecoder(Callbacks{CfgPrt: func(p CfgPrtUart) { got = append(got, p) }})

	want := CfgPrtUart{
		Baudrate: 115200,
		InUbx:    true,
		InRtcm3:  true,
		OutUbx:   true,
		OutNmea:  true,
	}
	d.Feed(EncodeMessage(ClassCfg, IDCfgPrt, EncodeCfgPrtUart(want)))

	if assert.Len(t, got, 1) {
		assert.Equal(t, want, got[0])
	}
}

func TestCfgTmode3RoundTrip(t *testing.T) {
	var got []CfgTmode3
	d := NewDecoder(Callbacks{CfgTmode3: func(c CfgTmode3) { got = append(got, c) }})

	want := CfgTmode3{
		Lla:         true,
		Mode:        2,
		EcefXOrLat:  57.71495867,
		EcefYOrLon:  11.97219283,
		EcefZOrAlt:  44.8571,
		FixedPosAcc: 0.025,
		SvinMinDur:  300,
		SvinAccLim:  0.05,
	}
	d.Feed(EncodeMessage(ClassCfg, IDCfgTmode3, EncodeCfgTmode3(want)))

	if !assert.Len(t, got, 1) {
		return
	}
	c := got[0]
	assert.True(t, c.Lla)
	assert.Equal(t, 2, c.Mode)
	assert.InDelta(t, want.EcefXOrLat, c.EcefXOrLat, 1e-8)
	assert.InDelta(t, want.EcefYOrLon, c.EcefYOrLon, 1e-8)
	assert.InDelta(t, want.EcefZOrAlt, c.EcefZOrAlt, 1e-4)
	assert.InDelta(t, want.FixedPosAcc, c.FixedPosAcc, 1e-9)
	assert.Equal(t, uint32(300), c.SvinMinDur)
	assert.InDelta(t, want.SvinAccLim, c.SvinAccLim, 1e-9)
}

func TestCfgNav5RoundTrip(t *testing.T) {
	var got []CfgNav5
	d := NewDecoder(Callbacks{CfgNav5: func(n CfgNav5) { got = append(got, n) }})

	want := CfgNav5{
		ApplyDyn:        true,
		ApplyPosFixMode: true,
		DynModel:        2, // stationary
		FixMode:         3,
		FixedAlt:        120.5,
		FixedAltVar:     1.0,
		MinElev:         10,
		PDop:            2.5,
		TDop:            3.0,
		PAcc:            100,
		TAcc:            300,
	}
	d.Feed(EncodeMessage(ClassCfg, IDCfgNav5, EncodeCfgNav5(want)))

	if !assert.Len(t, got, 1) {
		return
	}
	n := got[0]
	assert.True(t, n.ApplyDyn)
	assert.True(t, n.ApplyPosFixMode)
	assert.False(t, n.ApplyUtc)
	assert.Equal(t, uint8(2), n.DynModel)
	assert.Equal(t, uint8(3), n.FixMode)
	assert.InDelta(t, 120.5, n.FixedAlt, 1e-9)
	assert.InDelta(t, 1.0, n.FixedAltVar, 1e-9)
	assert.Equal(t, int8(10), n.MinElev)
	assert.InDelta(t, 2.5, n.PDop, 1e-9)
	assert.InDelta(t, 3.0, n.TDop, 1e-9)
	assert.Equal(t, uint16(100), n.PAcc)
	assert.Equal(t, uint16(300), n.TAcc)
}
