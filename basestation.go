package vlink

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"vlink/rtcm3"
	"vlink/ublox"
)

const (
	baseStationID = 1024
	// station position frames go out every n observation epochs
	basePosInterval = 10
)

// BaseStation turns raw measurements from a local receiver into RTCM
// corrections and broadcasts them to every vehicle. Until survey-in
// completes only observations go out; afterwards the surveyed position is
// interleaved so rovers can fix.
type BaseStation struct {
	link *Link

	mu     sync.Mutex
	pos    rtcm3.RefStationPos
	posSet bool
	epochs int
}

func NewBaseStation(link *Link) *BaseStation {
	return &BaseStation{link: link}
}

// Configure puts the receiver into survey-in mode and enables the raw
// measurement and survey messages this station consumes.
func (b *BaseStation) Configure(ctx context.Context, c *ublox.Client, svinMinDur uint32, svinAccLim float64) error {
	if err := c.SetNav5(ctx, ublox.CfgNav5{ApplyDyn: true, DynModel: 2}); err != nil {
		return err
	}
	if err := c.SetRate(ctx, 1000, 1, 1); err != nil {
		return err
	}
	if err := c.SetMsgRate(ctx, ublox.ClassRxm, ublox.IDRxmRawx, 1); err != nil {
		return err
	}
	if err := c.SetMsgRate(ctx, ublox.ClassNav, ublox.IDNavSvin, 1); err != nil {
		return err
	}
	return c.SetTmode3(ctx, ublox.CfgTmode3{
		Mode:       1,
		SvinMinDur: svinMinDur,
		SvinAccLim: svinAccLim,
	})
}

// Callbacks returns the receiver callbacks feeding this station.
func (b *BaseStation) Callbacks() ublox.Callbacks {
	return ublox.Callbacks{
		RawX:     b.handleRawX,
		SurveyIn: b.handleSurveyIn,
	}
}

func (b *BaseStation) handleSurveyIn(s ublox.SurveyIn) {
	if !s.Valid {
		return
	}
	lat, lon, height := rtcm3.ECEFToGeodetic(s.MeanX, s.MeanY, s.MeanZ)
	b.mu.Lock()
	first := !b.posSet
	b.pos = rtcm3.RefStationPos{
		StaID:  baseStationID,
		Lat:    lat,
		Lon:    lon,
		Height: height,
	}
	b.posSet = true
	b.mu.Unlock()
	if first {
		log.WithField("acc", s.MeanAcc).WithField("obs", s.Obs).
			Info("survey-in complete")
	}
}

func (b *BaseStation) handleRawX(r ublox.RawX) {
	h := rtcm3.ObsHeader{TOW: r.RcvTow, StaID: baseStationID}
	var obs []rtcm3.Obs
	for _, o := range r.Obs {
		// GPS L1 only; everything else needs MSM encode
		if o.GnssID != 0 || !o.PrValid {
			continue
		}
		ob := rtcm3.Obs{PRN: o.SvID}
		ob.P[0] = o.PrMes
		if o.CpValid {
			ob.L[0] = o.CpMes
		}
		ob.CN0[0] = o.Cno
		if o.Locktime > 0 {
			ob.Lock[0] = 127
		}
		obs = append(obs, ob)
	}
	if len(obs) == 0 {
		return
	}
	if err := b.link.SendRtcmUsb(rtcm3.Encode1002(h, obs)); err != nil {
		log.WithField("err", err).Warn("unable to broadcast observations")
		return
	}

	b.mu.Lock()
	b.epochs++
	sendPos := b.posSet && b.epochs%basePosInterval == 0
	pos := b.pos
	b.mu.Unlock()
	if sendPos {
		if err := b.link.SendRtcmUsb(rtcm3.Encode1006(pos)); err != nil {
			log.WithField("err", err).Warn("unable to broadcast station position")
		}
	}
}

// RelayDecoder returns an RTCM decoder that relays every verified frame
// from an external correction stream (NTRIP caster, second receiver) to
// the vehicles.
func (b *BaseStation) RelayDecoder() *rtcm3.Decoder {
	return rtcm3.NewDecoder(rtcm3.Callbacks{
		Raw: func(msgType int, frame []byte) {
			if err := b.link.SendRtcmUsb(frame); err != nil {
				log.WithField("err", err).WithField("type", msgType).
					Warn("unable to relay correction")
			}
		},
	})
}
