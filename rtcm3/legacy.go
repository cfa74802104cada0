package rtcm3

import "math"

// Physical constants and RTCM3 scale factors.
const (
	cLight = 299792458.0

	prUnitGPS = 299792.458 // unit of GPS pseudorange ambiguity (m)
	prUnitGLO = 599584.916 // unit of GLONASS pseudorange ambiguity (m)

	freqL1 = 1575.42e6
	freqL2 = 1227.60e6
	freqL5 = 1176.45e6

	freqG1  = 1602.0e6 // GLONASS L1 center
	dFreqG1 = 562500.0 // GLONASS L1 channel spacing
	freqG2  = 1246.0e6
	dFreqG2 = 437500.0

	sc2rad = 3.1415926535898 // semi-circle to radian
)

func p2(e int) float64 { return math.Ldexp(1, -e) }

// decodeObsGPS handles 1002 (L1) and 1004 (L1+L2).
func (d *Decoder) decodeObsGPS(frame []byte, msgType int) {
	nbits := (len(frame) - 6) * 8
	i := 36
	if nbits < 64-24 {
		d.stats.Malformed++
		return
	}
	var h ObsHeader
	h.Type = msgType
	h.StaID = int(GetBitU(frame, i, 12))
	i += 12
	h.TOW = float64(GetBitU(frame, i, 30)) * 0.001
	i += 30
	h.Sync = GetBitU(frame, i, 1) == 1
	i++
	nsat := int(GetBitU(frame, i, 5))
	i += 5
	i += 4 // smoothing indicator and interval

	perSat := 74
	if msgType == 1004 {
		perSat = 125
	}
	if i-24+nsat*perSat > nbits {
		d.stats.Malformed++
		return
	}

	obs := make([]Obs, 0, nsat)
	for s := 0; s < nsat; s++ {
		var o Obs
		o.PRN = uint8(GetBitU(frame, i, 6))
		i += 6
		o.Code[0] = uint8(GetBitU(frame, i, 1))
		i++
		pr1 := GetBitU(frame, i, 24)
		i += 24
		ppr1 := GetBits(frame, i, 20)
		i += 20
		o.Lock[0] = uint8(GetBitU(frame, i, 7))
		i += 7
		amb := GetBitU(frame, i, 8)
		i += 8
		o.CN0[0] = uint8(float64(GetBitU(frame, i, 8)) * 0.25)
		i += 8

		pr := float64(pr1)*0.02 + float64(amb)*prUnitGPS
		o.P[0] = pr
		if ppr1 != -524288 {
			o.L[0] = (pr + float64(ppr1)*0.0005) / (cLight / freqL1)
		}

		if msgType == 1004 {
			o.Code[1] = uint8(GetBitU(frame, i, 2))
			i += 2
			pr21 := GetBits(frame, i, 14)
			i += 14
			ppr2 := GetBits(frame, i, 20)
			i += 20
			o.Lock[1] = uint8(GetBitU(frame, i, 7))
			i += 7
			o.CN0[1] = uint8(float64(GetBitU(frame, i, 8)) * 0.25)
			i += 8
			if pr21 != -8192 {
				o.P[1] = pr + float64(pr21)*0.02
			}
			if ppr2 != -524288 {
				o.L[1] = (pr + float64(ppr2)*0.0005) / (cLight / freqL2)
			}
		}
		obs = appendObs(&d.stats, obs, o)
	}
	d.emitObs(h, obs)
}

// decodeObsGLO handles 1010 (L1) and 1012 (L1+L2).
func (d *Decoder) decodeObsGLO(frame []byte, msgType int) {
	nbits := (len(frame) - 6) * 8
	i := 36
	if nbits < 61-24 {
		d.stats.Malformed++
		return
	}
	var h ObsHeader
	h.Type = msgType
	h.StaID = int(GetBitU(frame, i, 12))
	i += 12
	h.TOD = float64(GetBitU(frame, i, 27)) * 0.001
	i += 27
	h.Sync = GetBitU(frame, i, 1) == 1
	i++
	nsat := int(GetBitU(frame, i, 5))
	i += 5
	i += 4

	perSat := 79
	if msgType == 1012 {
		perSat = 130
	}
	if i-24+nsat*perSat > nbits {
		d.stats.Malformed++
		return
	}

	obs := make([]Obs, 0, nsat)
	for s := 0; s < nsat; s++ {
		var o Obs
		o.PRN = uint8(GetBitU(frame, i, 6))
		i += 6
		o.Code[0] = uint8(GetBitU(frame, i, 1))
		i++
		o.Freq = uint8(GetBitU(frame, i, 5))
		i += 5
		pr1 := GetBitU(frame, i, 25)
		i += 25
		ppr1 := GetBits(frame, i, 20)
		i += 20
		o.Lock[0] = uint8(GetBitU(frame, i, 7))
		i += 7
		amb := GetBitU(frame, i, 7)
		i += 7
		o.CN0[0] = uint8(float64(GetBitU(frame, i, 8)) * 0.25)
		i += 8

		fcn := float64(o.Freq) - 7.0
		pr := float64(pr1)*0.02 + float64(amb)*prUnitGLO
		o.P[0] = pr
		if ppr1 != -524288 {
			o.L[0] = (pr + float64(ppr1)*0.0005) / (cLight / (freqG1 + fcn*dFreqG1))
		}

		if msgType == 1012 {
			o.Code[1] = uint8(GetBitU(frame, i, 2))
			i += 2
			pr21 := GetBits(frame, i, 14)
			i += 14
			ppr2 := GetBits(frame, i, 20)
			i += 20
			o.Lock[1] = uint8(GetBitU(frame, i, 7))
			i += 7
			o.CN0[1] = uint8(float64(GetBitU(frame, i, 8)) * 0.25)
			i += 8
			if pr21 != -8192 {
				o.P[1] = pr + float64(pr21)*0.02
			}
			if ppr2 != -524288 {
				o.L[1] = (pr + float64(ppr2)*0.0005) / (cLight / (freqG2 + fcn*dFreqG2))
			}
		}
		obs = appendObs(&d.stats, obs, o)
	}
	d.emitObs(h, obs)
}

func appendObs(stats *Stats, obs []Obs, o Obs) []Obs {
	if len(obs) >= MaxObs {
		stats.ObsOverflows++
		return obs
	}
	return append(obs, o)
}

// decodeStationPos handles 1005 and 1006. The antenna reference point
// arrives as ECEF and is reported geodetic, matching what the position
// consumers expect.
func (d *Decoder) decodeStationPos(frame []byte, msgType int) {
	need := 152
	if msgType == 1006 {
		need = 168
	}
	if len(frame)*8-24-24 < need {
		d.stats.Malformed++
		return
	}
	i := 36
	var pos RefStationPos
	pos.StaID = int(GetBitU(frame, i, 12))
	i += 12
	i += 6 + 4 // ITRF year, GPS/GLONASS/Galileo/reference station indicators
	x := GetBits38(frame, i) * 0.0001
	i += 38
	i += 2 // oscillator indicator, reserved
	y := GetBits38(frame, i) * 0.0001
	i += 38
	i += 2 // quarter cycle indicator
	z := GetBits38(frame, i) * 0.0001
	i += 38
	if msgType == 1006 {
		pos.AntHeight = float64(GetBitU(frame, i, 16)) * 0.0001
	}
	pos.Lat, pos.Lon, pos.Height = ecefToGeodetic(x, y, z)

	if d.cb.RefStationPos != nil {
		d.cb.RefStationPos(pos)
	}
}

// decodeEphemeris handles GPS ephemeris message 1019.
func (d *Decoder) decodeEphemeris(frame []byte) {
	if len(frame)*8-24-24 < 488 {
		d.stats.Malformed++
		return
	}
	i := 36
	var e Ephemeris
	e.PRN = uint8(GetBitU(frame, i, 6))
	i += 6
	e.ToeWeek = uint16(GetBitU(frame, i, 10))
	i += 10
	e.Sva = int(GetBitU(frame, i, 4))
	i += 4
	e.Code = int(GetBitU(frame, i, 2))
	i += 2
	e.IncDot = float64(GetBits(frame, i, 14)) * p2(43) * sc2rad
	i += 14
	e.Iode = uint8(GetBitU(frame, i, 8))
	i += 8
	e.TocTOW = float64(GetBitU(frame, i, 16)) * 16.0
	i += 16
	e.Af2 = float64(GetBits(frame, i, 8)) * p2(55)
	i += 8
	e.Af1 = float64(GetBits(frame, i, 16)) * p2(43)
	i += 16
	e.Af0 = float64(GetBits(frame, i, 22)) * p2(31)
	i += 22
	e.Iodc = uint16(GetBitU(frame, i, 10))
	i += 10
	e.Crs = float64(GetBits(frame, i, 16)) * p2(5)
	i += 16
	e.Dn = float64(GetBits(frame, i, 16)) * p2(43) * sc2rad
	i += 16
	e.M0 = float64(GetBits(frame, i, 32)) * p2(31) * sc2rad
	i += 32
	e.Cuc = float64(GetBits(frame, i, 16)) * p2(29)
	i += 16
	e.Ecc = float64(GetBitU(frame, i, 32)) * p2(33)
	i += 32
	e.Cus = float64(GetBits(frame, i, 16)) * p2(29)
	i += 16
	e.Sqrta = float64(GetBitU(frame, i, 32)) * p2(19)
	i += 32
	e.ToeTOW = float64(GetBitU(frame, i, 16)) * 16.0
	i += 16
	e.Cic = float64(GetBits(frame, i, 16)) * p2(29)
	i += 16
	e.Omega0 = float64(GetBits(frame, i, 32)) * p2(31) * sc2rad
	i += 32
	e.Cis = float64(GetBits(frame, i, 16)) * p2(29)
	i += 16
	e.Inc = float64(GetBits(frame, i, 32)) * p2(31) * sc2rad
	i += 32
	e.Crc = float64(GetBits(frame, i, 16)) * p2(5)
	i += 16
	e.W = float64(GetBits(frame, i, 32)) * p2(31) * sc2rad
	i += 32
	e.Omegadot = float64(GetBits(frame, i, 24)) * p2(43) * sc2rad
	i += 24
	e.Tgd = float64(GetBits(frame, i, 8)) * p2(31)
	i += 8
	e.Svh = int(GetBitU(frame, i, 6))
	i += 6
	e.Flag = int(GetBitU(frame, i, 1))
	i++
	if GetBitU(frame, i, 1) == 0 {
		e.Fit = 4.0
	}

	if d.cb.Ephemeris != nil {
		d.cb.Ephemeris(e)
	}
}
