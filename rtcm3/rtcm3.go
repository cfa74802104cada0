// Package rtcm3 decodes and encodes RTCM 3 GNSS correction messages:
// legacy observations (1002/1004/1010/1012), station position (1005/1006),
// GPS ephemeris (1019) and MSM4/MSM7 observations for GPS and GLONASS.
// Anything else passes through the raw callback untouched.
package rtcm3

import (
	"github.com/goblimey/go-crc24q/crc24q"
)

// Preamble starts every RTCM3 frame on the wire.
const Preamble uint8 = 0xD3

// MaxObs is the observation capacity per message batch. Extra observations
// are dropped and reported through the overflow counter.
const MaxObs = 64

const bufSize = 1100

// ObsHeader describes one observation batch.
type ObsHeader struct {
	TOW   float64 // GPS time of week (s)
	TOD   float64 // GLONASS time of day (s)
	Week  int
	StaID int
	Sync  bool // more messages belong to this epoch
	Type  int
}

// Obs is a two-frequency observation for one satellite.
type Obs struct {
	P    [2]float64 // pseudorange (m)
	L    [2]float64 // carrier phase (cycles)
	CN0  [2]uint8   // carrier to noise density (dB-Hz)
	Lock [2]uint8   // loss of lock indicator, 0 when the lock has changed
	Code [2]uint8   // code indicator
	PRN  uint8
	Freq uint8 // GLONASS frequency slot
}

// RefStationPos is a decoded 1005/1006 antenna reference position.
type RefStationPos struct {
	StaID     int
	Lat       float64 // degrees
	Lon       float64 // degrees
	Height    float64 // meters
	AntHeight float64 // meters, zero for 1005
}

// Ephemeris carries the GPS orbit and clock parameters of message 1019.
type Ephemeris struct {
	Tgd      float64 // L1/L2 group delay differential (s)
	Crs      float64 // sine harmonic correction to orbit radius (m)
	Crc      float64 // cosine harmonic correction to orbit radius (m)
	Cuc      float64 // cosine harmonic correction to argument of latitude (rad)
	Cus      float64 // sine harmonic correction to argument of latitude (rad)
	Cic      float64 // cosine harmonic correction to inclination (rad)
	Cis      float64 // sine harmonic correction to inclination (rad)
	Dn       float64 // mean motion difference (rad/s)
	M0       float64 // mean anomaly at reference time (rad)
	Ecc      float64 // eccentricity
	Sqrta    float64 // square root of semi-major axis (m^1/2)
	Omega0   float64 // longitude of ascending node (rad)
	Omegadot float64 // rate of right ascension (rad/s)
	W        float64 // argument of perigee (rad)
	Inc      float64 // inclination (rad)
	IncDot   float64 // inclination rate (rad/s)
	Af0      float64 // clock bias (s)
	Af1      float64 // clock drift (s/s)
	Af2      float64 // clock drift rate (s/s^2)
	ToeTOW   float64 // ephemeris reference time of week (s)
	ToeWeek  uint16  // week number, 10 bit
	TocTOW   float64 // clock reference time of week (s)
	Sva      int     // SV accuracy index
	Svh      int     // SV health, 0 is healthy
	Code     int     // code on L2
	Flag     int     // L2 P data flag
	Fit      float64 // fit interval (h)
	PRN      uint8
	Iode     uint8
	Iodc     uint16
}

// Callbacks receive decoded messages, one handler per message kind. Raw
// fires for every CRC-verified frame regardless of type, so a consumer can
// relay corrections it does not itself interpret. Nil handlers are skipped.
type Callbacks struct {
	Obs           func(h ObsHeader, obs []Obs)
	RefStationPos func(pos RefStationPos)
	Ephemeris     func(eph Ephemeris)
	Raw           func(msgType int, frame []byte)
}

// Stats holds the decoder's diagnostic counters. All decode errors are
// recovered locally and never stop the decoder.
type Stats struct {
	Messages     uint64
	CrcErrors    uint64
	Overflows    uint64
	Malformed    uint64
	ObsOverflows uint64
}

// Decoder is an incremental state machine over one correction byte stream.
// One instance per transport; never share across connections.
type Decoder struct {
	cb     Callbacks
	buf    [bufSize]byte
	ptr    int
	length int
	stats  Stats
}

func NewDecoder(cb Callbacks) *Decoder {
	return &Decoder{cb: cb}
}

func (d *Decoder) Stats() Stats {
	return d.stats
}

// Feed pushes stream bytes through the state machine. Work is bounded by
// the number of bytes supplied; callbacks run on the caller's goroutine.
func (d *Decoder) Feed(data []byte) {
	for _, b := range data {
		d.feedByte(b)
	}
}

func (d *Decoder) feedByte(b byte) {
	if d.ptr == 0 && b != Preamble {
		return
	}
	d.buf[d.ptr] = b
	d.ptr++

	if d.ptr == 3 {
		d.length = int(GetBitU(d.buf[:], 14, 10))
		if d.length+6 > bufSize {
			d.stats.Overflows++
			d.resync()
		}
		return
	}
	if d.ptr < 6 || d.ptr != d.length+6 {
		return
	}

	frame := d.buf[:d.length+6]
	want := GetBitU(frame, (d.length+3)*8, 24)
	if crc24q.Hash(frame[:d.length+3]) != want {
		d.stats.CrcErrors++
		d.resync()
		return
	}
	d.ptr = 0
	d.stats.Messages++
	d.dispatch(frame)
}

// resync drops the presumed preamble byte and re-scans the remainder of the
// buffer, so an overlapping real preamble inside a corrupt frame is not
// lost.
func (d *Decoder) resync() {
	n := d.ptr
	if n <= 1 {
		d.ptr = 0
		return
	}
	tail := make([]byte, n-1)
	copy(tail, d.buf[1:n])
	d.ptr = 0
	d.Feed(tail)
}

func (d *Decoder) dispatch(frame []byte) {
	msgType := int(GetBitU(frame, 24, 12))

	switch msgType {
	case 1002, 1004:
		d.decodeObsGPS(frame, msgType)
	case 1010, 1012:
		d.decodeObsGLO(frame, msgType)
	case 1005, 1006:
		d.decodeStationPos(frame, msgType)
	case 1019:
		d.decodeEphemeris(frame)
	case 1074, 1077, 1084, 1087:
		d.decodeMSM(frame, msgType)
	}

	if d.cb.Raw != nil {
		d.cb.Raw(msgType, append([]byte(nil), frame...))
	}
}

func (d *Decoder) emitObs(h ObsHeader, obs []Obs) {
	if d.cb.Obs != nil {
		d.cb.Obs(h, obs)
	}
}
