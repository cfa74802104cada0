package rtcm3

import "math"

// Multi-signal observation messages. MSM4 and MSM7 are what u-blox base
// receivers and most casters emit; other MSM levels pass through raw only.

const rangeMs = cLight * 0.001 // one millisecond of range (m)

// Signal id to frequency band per RTCM 3.2 table 3.5-91/-96: 1 for the L1
// band, 2 for L2, 5 for L5, 0 for reserved ids.
var (
	msmBandGPS = [33]uint8{
		2: 1, 3: 1, 4: 1, 8: 2, 9: 2, 10: 2, 15: 2, 16: 2, 17: 2,
		22: 5, 23: 5, 24: 5, 30: 1, 31: 1, 32: 1,
	}
	msmBandGLO = [33]uint8{2: 1, 3: 1, 8: 2, 9: 2}
)

func (d *Decoder) decodeMSM(frame []byte, msgType int) {
	glo := msgType >= 1081 && msgType <= 1087
	msm7 := msgType == 1077 || msgType == 1087
	nbits := (len(frame) - 6) * 8

	if nbits < 169 {
		d.stats.Malformed++
		return
	}

	var h ObsHeader
	h.Type = msgType
	i := 36
	h.StaID = int(GetBitU(frame, i, 12))
	i += 12
	if glo {
		i += 3 // day of week
		h.TOD = float64(GetBitU(frame, i, 27)) * 0.001
		i += 27
	} else {
		h.TOW = float64(GetBitU(frame, i, 30)) * 0.001
		i += 30
	}
	h.Sync = GetBitU(frame, i, 1) == 1
	i++
	i += 3 + 7 + 2 + 2 + 1 + 3 // IOD, session time, clock steering/ext, smoothing

	var sats []int
	for p := 0; p < 64; p++ {
		if GetBitU(frame, i+p, 1) == 1 {
			sats = append(sats, p+1)
		}
	}
	i += 64
	var sigs []int
	for p := 0; p < 32; p++ {
		if GetBitU(frame, i+p, 1) == 1 {
			sigs = append(sigs, p+1)
		}
	}
	i += 32

	ncellBits := len(sats) * len(sigs)
	if len(sigs) == 0 || ncellBits > 64 || i-24+ncellBits > nbits {
		d.stats.Malformed++
		return
	}
	cells := make([]bool, ncellBits)
	ncell := 0
	for p := range cells {
		if GetBitU(frame, i+p, 1) == 1 {
			cells[p] = true
			ncell++
		}
	}
	i += ncellBits

	// satellite data
	satBits := 18
	if msm7 {
		satBits = 36
	}
	sigBits := 48
	if msm7 {
		sigBits = 80
	}
	if i-24+len(sats)*satBits+ncell*sigBits > nbits {
		d.stats.Malformed++
		return
	}

	rough := make([]float64, len(sats)) // range in ms
	fcn := make([]float64, len(sats))
	for s := range sats {
		r := GetBitU(frame, i, 8)
		i += 8
		if r != 255 {
			rough[s] = float64(r)
		} else {
			rough[s] = math.NaN()
		}
	}
	if msm7 {
		for s := range sats {
			ext := GetBitU(frame, i, 4)
			i += 4
			if glo && ext < 14 {
				fcn[s] = float64(ext) - 7.0
			}
		}
	}
	for s := range sats {
		rough[s] += float64(GetBitU(frame, i, 10)) * p2(10)
		i += 10
	}
	if msm7 {
		i += 14 * len(sats) // phase range rates
	}

	// signal data
	prFine := make([]float64, ncell)
	cpFine := make([]float64, ncell)
	lock := make([]uint16, ncell)
	cnr := make([]float64, ncell)
	for j := 0; j < ncell; j++ {
		var v int32
		if msm7 {
			v = GetBits(frame, i, 20)
			i += 20
			if v != -524288 {
				prFine[j] = float64(v) * p2(29) * rangeMs
			} else {
				prFine[j] = math.NaN()
			}
		} else {
			v = GetBits(frame, i, 15)
			i += 15
			if v != -16384 {
				prFine[j] = float64(v) * p2(24) * rangeMs
			} else {
				prFine[j] = math.NaN()
			}
		}
	}
	for j := 0; j < ncell; j++ {
		var v int32
		if msm7 {
			v = GetBits(frame, i, 24)
			i += 24
			if v != -8388608 {
				cpFine[j] = float64(v) * p2(31) * rangeMs
			} else {
				cpFine[j] = math.NaN()
			}
		} else {
			v = GetBits(frame, i, 22)
			i += 22
			if v != -2097152 {
				cpFine[j] = float64(v) * p2(29) * rangeMs
			} else {
				cpFine[j] = math.NaN()
			}
		}
	}
	lockBits, cnrBits, cnrScale := 4, 6, 1.0
	if msm7 {
		lockBits, cnrBits, cnrScale = 10, 10, 0.0625
	}
	for j := 0; j < ncell; j++ {
		lock[j] = uint16(GetBitU(frame, i, lockBits))
		i += lockBits
	}
	i += ncell // half-cycle ambiguity indicators
	for j := 0; j < ncell; j++ {
		cnr[j] = float64(GetBitU(frame, i, cnrBits)) * cnrScale
		i += cnrBits
	}
	if msm7 {
		i += 15 * ncell // fine phase range rates
	}

	// assemble per-satellite observations, two frequency slots each
	obs := make([]Obs, 0, len(sats))
	cell := 0
	for s, prn := range sats {
		var o Obs
		o.PRN = uint8(prn)
		if glo {
			o.Freq = uint8(fcn[s] + 7.0)
		}
		used := false
		for g, sig := range sigs {
			if !cells[s*len(sigs)+g] {
				continue
			}
			j := cell
			cell++
			band := bandOf(glo, sig)
			if band == 0 || math.IsNaN(rough[s]) {
				continue
			}
			slot := 0
			if band != 1 {
				slot = 1
			}
			base := rough[s] * rangeMs
			if !math.IsNaN(prFine[j]) {
				o.P[slot] = base + prFine[j]
			}
			if !math.IsNaN(cpFine[j]) {
				o.L[slot] = (base + cpFine[j]) / (cLight / carrierFreq(glo, band, fcn[s]))
			}
			o.CN0[slot] = uint8(cnr[j])
			if lock[j] > 0 {
				o.Lock[slot] = 127
			}
			o.Code[slot] = uint8(sig)
			used = true
		}
		if used {
			obs = appendObs(&d.stats, obs, o)
		}
	}
	d.emitObs(h, obs)
}

func bandOf(glo bool, sig int) uint8 {
	if sig < 0 || sig > 32 {
		return 0
	}
	if glo {
		return msmBandGLO[sig]
	}
	return msmBandGPS[sig]
}

func carrierFreq(glo bool, band uint8, fcn float64) float64 {
	if glo {
		if band == 2 {
			return freqG2 + fcn*dFreqG2
		}
		return freqG1 + fcn*dFreqG1
	}
	switch band {
	case 2:
		return freqL2
	case 5:
		return freqL5
	default:
		return freqL1
	}
}
