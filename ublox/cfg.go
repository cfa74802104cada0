package ublox

import (
	"encoding/binary"
	"math"
)

const uartPortID = 1

// splitHP splits a scaled value into its standard-resolution part and the
// signed high-precision remainder in hundredths of the standard unit.
func splitHP(v, scale float64) (int32, int8) {
	full := int64(math.Round(v / (scale * 0.01)))
	return int32(full / 100), int8(full % 100)
}

// EncodeCfgPrtUart builds a CFG-PRT payload for the UART port with 8N1
// framing and the given baudrate and protocol masks.
func EncodeCfgPrtUart(p CfgPrtUart) []byte {
	payload := make([]byte, 20)
	payload[0] = uartPortID
	binary.LittleEndian.PutUint32(payload[4:], 0x000008D0) // 8 bits, no parity, 1 stop
	binary.LittleEndian.PutUint32(payload[8:], p.Baudrate)
	var in, out uint16
	if p.InUbx {
		in |= 0x01
	}
	if p.InNmea {
		in |= 0x02
	}
	if p.InRtcm2 {
		in |= 0x04
	}
	if p.InRtcm3 {
		in |= 0x20
	}
	if p.OutUbx {
		out |= 0x01
	}
	if p.OutNmea {
		out |= 0x02
	}
	if p.OutRtcm3 {
		out |= 0x20
	}
	binary.LittleEndian.PutUint16(payload[12:], in)
	binary.LittleEndian.PutUint16(payload[14:], out)
	return payload
}

// EncodeCfgTmode3 builds a CFG-TMODE3 payload.
func EncodeCfgTmode3(t CfgTmode3) []byte {
	payload := make([]byte, 40)
	flags := uint16(t.Mode) & 0xff
	if t.Lla {
		flags |= 0x100
	}
	binary.LittleEndian.PutUint16(payload[2:], flags)
	posScale := 1e-2
	if t.Lla {
		posScale = 1e-7
	}
	x, hpX := splitHP(t.EcefXOrLat, posScale)
	y, hpY := splitHP(t.EcefYOrLon, posScale)
	z, hpZ := splitHP(t.EcefZOrAlt, 1e-2) // altitude stays in cm even for lla
	binary.LittleEndian.PutUint32(payload[4:], uint32(x))
	binary.LittleEndian.PutUint32(payload[8:], uint32(y))
	binary.LittleEndian.PutUint32(payload[12:], uint32(z))
	payload[16] = uint8(hpX)
	payload[17] = uint8(hpY)
	payload[18] = uint8(hpZ)
	binary.LittleEndian.PutUint32(payload[20:], uint32(math.Round(t.FixedPosAcc/1e-4)))
	binary.LittleEndian.PutUint32(payload[24:], t.SvinMinDur)
	binary.LittleEndian.PutUint32(payload[28:], uint32(math.Round(t.SvinAccLim/1e-4)))
	return payload
}

// EncodeCfgNav5 builds a CFG-NAV5 payload. Only fields whose apply flag is
// set are honored by the receiver.
func EncodeCfgNav5(n CfgNav5) []byte {
	payload := make([]byte, 36)
	var mask uint16
	if n.ApplyDyn {
		mask |= 0x01
	}
	if n.ApplyMinEl {
		mask |= 0x02
	}
	if n.ApplyPosFixMode {
		mask |= 0x04
	}
	if n.ApplyPosMask {
		mask |= 0x10
	}
	if n.ApplyTimeMask {
		mask |= 0x20
	}
	if n.ApplyStaticHoldMask {
		mask |= 0x40
	}
	if n.ApplyDgps {
		mask |= 0x80
	}
	if n.ApplyCno {
		mask |= 0x100
	}
	if n.ApplyUtc {
		mask |= 0x400
	}
	binary.LittleEndian.PutUint16(payload[0:], mask)
	payload[2] = n.DynModel
	payload[3] = n.FixMode
	binary.LittleEndian.PutUint32(payload[4:], uint32(int32(math.Round(n.FixedAlt/0.01))))
	binary.LittleEndian.PutUint32(payload[8:], uint32(math.Round(n.FixedAltVar/0.0001)))
	payload[12] = uint8(n.MinElev)
	binary.LittleEndian.PutUint16(payload[14:], uint16(math.Round(n.PDop/0.1)))
	binary.LittleEndian.PutUint16(payload[16:], uint16(math.Round(n.TDop/0.1)))
	binary.LittleEndian.PutUint16(payload[18:], n.PAcc)
	binary.LittleEndian.PutUint16(payload[20:], n.TAcc)
	payload[22] = n.StaticHoldThres
	payload[23] = n.DgnssTimeout
	payload[24] = n.CnoTresNumSat
	payload[25] = n.CnoTres
	binary.LittleEndian.PutUint16(payload[28:], n.StaticHoldMaxDist)
	payload[30] = n.UtcStandard
	return payload
}

// EncodeCfgRate builds a CFG-RATE payload: measurement period in
// milliseconds, navigation solutions per measurement, and time reference
// (0 UTC, 1 GPS).
func EncodeCfgRate(measMs, navRate, timeRef uint16) []byte {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:], measMs)
	binary.LittleEndian.PutUint16(payload[2:], navRate)
	binary.LittleEndian.PutUint16(payload[4:], timeRef)
	return payload
}

// EncodeCfgMsg builds a CFG-MSG payload setting the output rate of one
// message on the current port.
func EncodeCfgMsg(cls, id, rate uint8) []byte {
	return []byte{cls, id, rate}
}

// PollCfgPrt returns the poll payload for the UART view of CFG-PRT.
func PollCfgPrt() []byte { return []byte{uartPortID} }
