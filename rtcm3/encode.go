package rtcm3

import (
	"math"

	"github.com/goblimey/go-crc24q/crc24q"
)

// Encoders for the messages a base station emits: GPS L1 observations
// (1002), station position with antenna height (1006) and GPS ephemeris
// (1019). Each returns a complete frame including preamble and CRC.

func wrapFrame(payload []byte) []byte {
	frame := make([]byte, 3+len(payload)+3)
	frame[0] = Preamble
	SetBitU(frame, 14, 10, uint32(len(payload)))
	copy(frame[3:], payload)
	crc := crc24q.Hash(frame[:3+len(payload)])
	SetBitU(frame, (3+len(payload))*8, 24, crc)
	return frame
}

// maxObsPerMsg is the 5 bit satellite count limit of one message.
const maxObsPerMsg = 31

// Encode1002 packs a GPS L1 observation batch. Batches above the per-message
// satellite count are split into a chain of messages with the synchronous
// flag set on all but the last, so no observation is dropped. Observations
// beyond the batch capacity are ignored.
func Encode1002(h ObsHeader, obs []Obs) []byte {
	if len(obs) > MaxObs {
		obs = obs[:MaxObs]
	}
	var out []byte
	for {
		batch := obs
		if len(batch) > maxObsPerMsg {
			batch = batch[:maxObsPerMsg]
		}
		obs = obs[len(batch):]
		mh := h
		if len(obs) > 0 {
			mh.Sync = true
		}
		out = append(out, encode1002One(mh, batch)...)
		if len(obs) == 0 {
			return out
		}
	}
}

func encode1002One(h ObsHeader, obs []Obs) []byte {
	payload := make([]byte, (64+74*len(obs)+7)/8)
	i := 0
	SetBitU(payload, i, 12, 1002)
	i += 12
	SetBitU(payload, i, 12, uint32(h.StaID))
	i += 12
	SetBitU(payload, i, 30, uint32(math.Round(h.TOW*1000.0)))
	i += 30
	sync := uint32(0)
	if h.Sync {
		sync = 1
	}
	SetBitU(payload, i, 1, sync)
	i++
	SetBitU(payload, i, 5, uint32(len(obs)))
	i += 5
	SetBitU(payload, i, 4, 0) // no smoothing
	i += 4

	for _, o := range obs {
		amb := math.Floor(o.P[0] / prUnitGPS)
		pr1 := math.Round((o.P[0] - amb*prUnitGPS) / 0.02)
		pr := pr1*0.02 + amb*prUnitGPS
		ppr1 := int32(-524288)
		if o.L[0] != 0 {
			ppr1 = int32(math.Round((o.L[0]*(cLight/freqL1) - pr) / 0.0005))
		}
		SetBitU(payload, i, 6, uint32(o.PRN))
		i += 6
		SetBitU(payload, i, 1, uint32(o.Code[0]))
		i++
		SetBitU(payload, i, 24, uint32(pr1))
		i += 24
		SetBits(payload, i, 20, ppr1)
		i += 20
		SetBitU(payload, i, 7, uint32(o.Lock[0]))
		i += 7
		SetBitU(payload, i, 8, uint32(amb))
		i += 8
		SetBitU(payload, i, 8, uint32(float64(o.CN0[0])/0.25))
		i += 8
	}
	return wrapFrame(payload)
}

// Encode1006 packs a station position with antenna height.
func Encode1006(pos RefStationPos) []byte {
	x, y, z := geodeticToECEF(pos.Lat, pos.Lon, pos.Height)
	payload := make([]byte, 21)
	i := 0
	SetBitU(payload, i, 12, 1006)
	i += 12
	SetBitU(payload, i, 12, uint32(pos.StaID))
	i += 12
	SetBitU(payload, i, 6, 0) // ITRF realization year
	i += 6
	SetBitU(payload, i, 4, 0x0c) // GPS and GLONASS supported
	i += 4
	SetBits38(payload, i, math.Round(x/0.0001))
	i += 38
	SetBitU(payload, i, 2, 0)
	i += 2
	SetBits38(payload, i, math.Round(y/0.0001))
	i += 38
	SetBitU(payload, i, 2, 0)
	i += 2
	SetBits38(payload, i, math.Round(z/0.0001))
	i += 38
	SetBitU(payload, i, 16, uint32(math.Round(pos.AntHeight/0.0001)))
	return wrapFrame(payload)
}

// Encode1019 packs a GPS ephemeris.
func Encode1019(e Ephemeris) []byte {
	payload := make([]byte, 61)
	i := 0
	SetBitU(payload, i, 12, 1019)
	i += 12
	SetBitU(payload, i, 6, uint32(e.PRN))
	i += 6
	SetBitU(payload, i, 10, uint32(e.ToeWeek))
	i += 10
	SetBitU(payload, i, 4, uint32(e.Sva))
	i += 4
	SetBitU(payload, i, 2, uint32(e.Code))
	i += 2
	SetBits(payload, i, 14, scaleDown(e.IncDot, p2(43)*sc2rad))
	i += 14
	SetBitU(payload, i, 8, uint32(e.Iode))
	i += 8
	SetBitU(payload, i, 16, uint32(math.Round(e.TocTOW/16.0)))
	i += 16
	SetBits(payload, i, 8, scaleDown(e.Af2, p2(55)))
	i += 8
	SetBits(payload, i, 16, scaleDown(e.Af1, p2(43)))
	i += 16
	SetBits(payload, i, 22, scaleDown(e.Af0, p2(31)))
	i += 22
	SetBitU(payload, i, 10, uint32(e.Iodc))
	i += 10
	SetBits(payload, i, 16, scaleDown(e.Crs, p2(5)))
	i += 16
	SetBits(payload, i, 16, scaleDown(e.Dn, p2(43)*sc2rad))
	i += 16
	SetBits(payload, i, 32, scaleDown(e.M0, p2(31)*sc2rad))
	i += 32
	SetBits(payload, i, 16, scaleDown(e.Cuc, p2(29)))
	i += 16
	SetBitU(payload, i, 32, uint32(math.Round(e.Ecc/p2(33))))
	i += 32
	SetBits(payload, i, 16, scaleDown(e.Cus, p2(29)))
	i += 16
	SetBitU(payload, i, 32, uint32(math.Round(e.Sqrta/p2(19))))
	i += 32
	SetBitU(payload, i, 16, uint32(math.Round(e.ToeTOW/16.0)))
	i += 16
	SetBits(payload, i, 16, scaleDown(e.Cic, p2(29)))
	i += 16
	SetBits(payload, i, 32, scaleDown(e.Omega0, p2(31)*sc2rad))
	i += 32
	SetBits(payload, i, 16, scaleDown(e.Cis, p2(29)))
	i += 16
	SetBits(payload, i, 32, scaleDown(e.Inc, p2(31)*sc2rad))
	i += 32
	SetBits(payload, i, 16, scaleDown(e.Crc, p2(5)))
	i += 16
	SetBits(payload, i, 32, scaleDown(e.W, p2(31)*sc2rad))
	i += 32
	SetBits(payload, i, 24, scaleDown(e.Omegadot, p2(43)*sc2rad))
	i += 24
	SetBits(payload, i, 8, scaleDown(e.Tgd, p2(31)))
	i += 8
	SetBitU(payload, i, 6, uint32(e.Svh))
	i += 6
	SetBitU(payload, i, 1, uint32(e.Flag))
	i++
	fit := uint32(1)
	if e.Fit == 4.0 {
		fit = 0
	}
	SetBitU(payload, i, 1, fit)
	return wrapFrame(payload)
}

func scaleDown(v, scale float64) int32 {
	return int32(math.Round(v / scale))
}
