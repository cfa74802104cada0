package rtcm3

import "math"

// Big-endian bit field accessors, as used throughout the RTCM3 standard.

// GetBitU extracts an unsigned bit field starting at bit position pos.
func GetBitU(buf []byte, pos, n int) uint32 {
	var v uint32
	for i := pos; i < pos+n; i++ {
		v = v<<1 | uint32(buf[i/8]>>(7-i%8))&1
	}
	return v
}

// GetBits extracts a two's complement signed bit field.
func GetBits(buf []byte, pos, n int) int32 {
	v := GetBitU(buf, pos, n)
	if n <= 0 || n >= 32 || v&(1<<(n-1)) == 0 {
		return int32(v)
	}
	return int32(v | (^uint32(0) << n))
}

// GetBits38 extracts the 38 bit signed fields used for ECEF coordinates.
func GetBits38(buf []byte, pos int) float64 {
	return float64(GetBits(buf, pos, 32))*64.0 + float64(GetBitU(buf, pos+32, 6))
}

// SetBitU stores an unsigned bit field.
func SetBitU(buf []byte, pos, n int, v uint32) {
	mask := uint32(1) << (n - 1)
	for i := pos; i < pos+n; i++ {
		if v&mask != 0 {
			buf[i/8] |= 1 << (7 - i%8)
		} else {
			buf[i/8] &^= 1 << (7 - i%8)
		}
		mask >>= 1
	}
}

// SetBits stores a signed bit field.
func SetBits(buf []byte, pos, n int, v int32) {
	SetBitU(buf, pos, n, uint32(v))
}

// SetBits38 stores a 38 bit signed field.
func SetBits38(buf []byte, pos int, v float64) {
	SetBits(buf, pos, 32, int32(math.Floor(v/64.0)))
	SetBitU(buf, pos+32, 6, uint32(v-math.Floor(v/64.0)*64.0))
}

// WGS84 constants.
const (
	reWGS84 = 6378137.0
	fWGS84  = 1.0 / 298.257223563
)

// ecefToGeodetic converts an ECEF position in meters to geodetic latitude
// and longitude in degrees and height in meters.
func ecefToGeodetic(x, y, z float64) (lat, lon, height float64) {
	e2 := fWGS84 * (2.0 - fWGS84)
	r2 := x*x + y*y
	v := reWGS84
	zk := 0.0
	zz := z
	for math.Abs(zz-zk) >= 1e-4 {
		zk = zz
		sinp := zz / math.Sqrt(r2+zz*zz)
		v = reWGS84 / math.Sqrt(1.0-e2*sinp*sinp)
		zz = z + v*e2*sinp
	}
	if r2 > 1e-12 {
		lat = math.Atan(zz / math.Sqrt(r2))
		lon = math.Atan2(y, x)
	} else {
		lat = math.Pi / 2.0
		if z < 0.0 {
			lat = -lat
		}
		lon = 0.0
	}
	height = math.Sqrt(r2+zz*zz) - v
	return lat * 180.0 / math.Pi, lon * 180.0 / math.Pi, height
}

// geodeticToECEF is the inverse of ecefToGeodetic.
func geodeticToECEF(lat, lon, height float64) (x, y, z float64) {
	latRad := lat * math.Pi / 180.0
	lonRad := lon * math.Pi / 180.0
	e2 := fWGS84 * (2.0 - fWGS84)
	sinp, cosp := math.Sin(latRad), math.Cos(latRad)
	sinl, cosl := math.Sin(lonRad), math.Cos(lonRad)
	v := reWGS84 / math.Sqrt(1.0-e2*sinp*sinp)
	x = (v + height) * cosp * cosl
	y = (v + height) * cosp * sinl
	z = (v*(1.0-e2) + height) * sinp
	return
}

// ECEFToGeodetic converts WGS84 ECEF coordinates (m) to geodetic latitude
// and longitude (degrees) and ellipsoid height (m).
func ECEFToGeodetic(x, y, z float64) (lat, lon, height float64) {
	return ecefToGeodetic(x, y, z)
}
