// Package packet implements the addressed, checksummed framing layer shared
// by all vehicle link transports, including the radio mote chunked framing.
package packet

import (
	"github.com/pkg/errors"
)

// Frame wire format:
//
//	[START][ADDRESS][COMMAND][LEN][PAYLOAD...][CHECKSUM]
//
// StartShort frames carry a single length byte and a one byte additive
// checksum. StartLong (the short marker with the sign bit set) frames carry
// a two byte little-endian length and a CRC16. The checksum covers every
// byte after the start marker up to the end of PAYLOAD. The same bytes
// travel over serial, TCP and UDP.
const (
	StartShort uint8 = 0x02
	StartLong  uint8 = 0x82

	// MaxPayload is the largest payload a long frame can carry.
	MaxPayload = 1023

	shortOverhead = 5 // start, address, command, len, sum
	longOverhead  = 7 // start, address, command, len x2, crc x2
)

// ErrPayloadTooLarge is returned by Encode for payloads above MaxPayload.
var ErrPayloadTooLarge = errors.New("payload exceeds maximum frame size")

// Packet is one framed unit on the link. Address 255 broadcasts to all
// vehicles, 254 is the mote bridge and 211 the RTCM passthrough. Packets
// are immutable once built.
type Packet struct {
	Address uint8
	Cmd     Command
	Payload []byte
}

// Encode frames p. The short variant is used whenever the payload fits a
// single length byte.
func Encode(p Packet) ([]byte, error) {
	if len(p.Payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	if len(p.Payload) <= 0xff {
		buf := make([]byte, 0, shortOverhead+len(p.Payload))
		buf = append(buf, StartShort, p.Address, uint8(p.Cmd), uint8(len(p.Payload)))
		buf = append(buf, p.Payload...)
		buf = append(buf, Sum8(buf[1:]))
		return buf, nil
	}
	buf := make([]byte, 0, longOverhead+len(p.Payload))
	buf = append(buf, StartLong, p.Address, uint8(p.Cmd),
		uint8(len(p.Payload)&0xff), uint8(len(p.Payload)>>8))
	buf = append(buf, p.Payload...)
	crc := CRC16(buf[1:])
	buf = append(buf, uint8(crc>>8), uint8(crc))
	return buf, nil
}

// Stats carries the decoder's diagnostic counters. Checksum and overflow
// failures are recovered locally and are not reported anywhere else.
type Stats struct {
	Frames         uint64
	ChecksumErrors uint64
	Overflows      uint64
	MoteErrors     uint64
}

const moteBufSize = 2 + MaxPayload + 31 // assembled addr+cmd+payload, slack for short chunks

// Decoder turns an incoming byte stream back into packets. Bytes are pushed
// incrementally with Feed; a partial frame is buffered across calls. Each
// transport owns exactly one Decoder; it is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	moteBuf [moteBufSize]byte
	stats   Stats
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes data and returns the packets completed by it. Corrupt
// frames are dropped: scanning resumes at the byte after the offending
// start marker so that overlapping frame candidates are not lost. Feed
// never blocks and does bounded work per byte.
func (d *Decoder) Feed(data []byte) []Packet {
	d.buf = append(d.buf, data...)
	var out []Packet
	for {
		p, ok := d.next()
		if !ok {
			break
		}
		if p.Address == IDMote && uint8(p.Cmd) <= MoteProcessShortBuffer {
			if inner, ok := d.unwrapMote(p); ok {
				out = append(out, inner)
			}
			continue
		}
		out = append(out, p)
	}
	return out
}

// Reset drops all buffered state. Used when a transport reconnects.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

func (d *Decoder) Stats() Stats {
	return d.stats
}

// next scans for and extracts one complete frame from the buffer.
func (d *Decoder) next() (Packet, bool) {
	for {
		// Seek a start marker.
		i := 0
		for i < len(d.buf) && d.buf[i] != StartShort && d.buf[i] != StartLong {
			i++
		}
		d.buf = d.buf[i:]
		if len(d.buf) < 4 {
			return Packet{}, false
		}

		long := d.buf[0] == StartLong
		hdr, tail := shortOverhead-1, 1
		if long {
			hdr, tail = longOverhead-2, 2
		}
		if len(d.buf) < hdr {
			return Packet{}, false
		}
		plen := int(d.buf[3])
		if long {
			plen |= int(d.buf[4]) << 8
		}
		if plen > MaxPayload {
			d.stats.Overflows++
			d.buf = d.buf[1:]
			continue
		}
		total := hdr + plen + tail
		if len(d.buf) < total {
			return Packet{}, false
		}

		body := d.buf[1 : hdr+plen]
		if long {
			want := uint16(d.buf[total-2])<<8 | uint16(d.buf[total-1])
			if CRC16(body) != want {
				d.stats.ChecksumErrors++
				d.buf = d.buf[1:]
				continue
			}
		} else if Sum8(body) != d.buf[total-1] {
			d.stats.ChecksumErrors++
			d.buf = d.buf[1:]
			continue
		}

		p := Packet{
			Address: d.buf[1],
			Cmd:     Command(d.buf[2]),
			Payload: append([]byte(nil), d.buf[hdr:hdr+plen]...),
		}
		d.buf = d.buf[total:]
		d.stats.Frames++
		return p, true
	}
}

// unwrapMote applies one mote sub-frame. Fill sub-commands append a chunk
// into the reassembly buffer; process sub-commands commit it as a logical
// packet.
func (d *Decoder) unwrapMote(p Packet) (Packet, bool) {
	body := p.Payload
	switch uint8(p.Cmd) {
	case MoteFillRxBuffer:
		if len(body) < 1 || int(body[0])+len(body)-1 > moteBufSize {
			d.stats.MoteErrors++
			return Packet{}, false
		}
		copy(d.moteBuf[body[0]:], body[1:])
	case MoteFillRxBufferLong:
		if len(body) < 2 {
			d.stats.MoteErrors++
			return Packet{}, false
		}
		off := int(body[0])<<8 | int(body[1])
		if off+len(body)-2 > moteBufSize {
			d.stats.MoteErrors++
			return Packet{}, false
		}
		copy(d.moteBuf[off:], body[2:])
	case MoteProcessRxBuffer:
		if len(body) < 4 {
			d.stats.MoteErrors++
			return Packet{}, false
		}
		n := int(body[0])<<8 | int(body[1])
		want := uint16(body[2])<<8 | uint16(body[3])
		if n < 2 || n > moteBufSize || CRC16(d.moteBuf[:n]) != want {
			d.stats.MoteErrors++
			return Packet{}, false
		}
		d.stats.Frames++
		return Packet{
			Address: d.moteBuf[0],
			Cmd:     Command(d.moteBuf[1]),
			Payload: append([]byte(nil), d.moteBuf[2:n]...),
		}, true
	case MoteProcessShortBuffer:
		if len(body) < 2 {
			d.stats.MoteErrors++
			return Packet{}, false
		}
		d.stats.Frames++
		return Packet{
			Address: body[0],
			Cmd:     Command(body[1]),
			Payload: append([]byte(nil), body[2:]...),
		}, true
	}
	return Packet{}, false
}

// moteChunk is the largest chunk the radio can carry in one sub-frame.
const moteChunk = 24

// EncodeMote frames p as a sequence of mote sub-frames for a radio bridge
// transport. Small packets travel as a single PROCESS_SHORT_BUFFER; larger
// ones are chunked through the remote reassembly buffer and committed with
// PROCESS_RX_BUFFER.
func EncodeMote(p Packet) ([][]byte, error) {
	if len(p.Payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	logical := make([]byte, 0, 2+len(p.Payload))
	logical = append(logical, p.Address, uint8(p.Cmd))
	logical = append(logical, p.Payload...)

	if len(logical) <= moteChunk {
		f, err := Encode(Packet{Address: IDMote, Cmd: Command(MoteProcessShortBuffer), Payload: logical})
		if err != nil {
			return nil, err
		}
		return [][]byte{f}, nil
	}

	var frames [][]byte
	for off := 0; off < len(logical); off += moteChunk {
		end := off + moteChunk
		if end > len(logical) {
			end = len(logical)
		}
		var body []byte
		var sub uint8
		if off <= 0xff {
			sub = MoteFillRxBuffer
			body = append([]byte{uint8(off)}, logical[off:end]...)
		} else {
			sub = MoteFillRxBufferLong
			body = append([]byte{uint8(off >> 8), uint8(off)}, logical[off:end]...)
		}
		f, err := Encode(Packet{Address: IDMote, Cmd: Command(sub), Payload: body})
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	crc := CRC16(logical)
	commit := []byte{uint8(len(logical) >> 8), uint8(len(logical)), uint8(crc >> 8), uint8(crc)}
	f, err := Encode(Packet{Address: IDMote, Cmd: Command(MoteProcessRxBuffer), Payload: commit})
	if err != nil {
		return nil, err
	}
	return append(frames, f), nil
}
