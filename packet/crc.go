package packet

// CRC16 is the frame checksum for long frames: CCITT polynomial 0x1021,
// zero initial value, computed over ADDRESS through PAYLOAD.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Sum8 is the short-frame checksum: the low byte of the sum of ADDRESS
// through PAYLOAD.
func Sum8(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return sum
}
