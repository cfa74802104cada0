package packet

import "math"

// Vehicle payloads pack numbers big-endian, with floating point values
// carried as scaled fixed-point integers. Writer and Reader mirror the
// firmware's buffer helpers.

// Writer builds a command payload.
type Writer struct {
	buf []byte
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Int8(v int8) { w.buf = append(w.buf, uint8(v)) }

func (w *Writer) Uint16(v uint16) {
	w.buf = append(w.buf, uint8(v>>8), uint8(v))
}

func (w *Writer) Int16(v int16) { w.Uint16(uint16(v)) }

func (w *Writer) Uint32(v uint32) {
	w.buf = append(w.buf, uint8(v>>24), uint8(v>>16), uint8(v>>8), uint8(v))
}

func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

// Float32 stores v*scale as a signed 32 bit integer.
func (w *Writer) Float32(v float64, scale float64) {
	w.Int32(int32(math.Round(v * scale)))
}

// Float16 stores v*scale as a signed 16 bit integer.
func (w *Writer) Float16(v float64, scale float64) {
	w.Int16(int16(math.Round(v * scale)))
}

func (w *Writer) Raw(data []byte) { w.buf = append(w.buf, data...) }

func (w *Writer) String(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// Reader consumes a command payload. Reading past the end yields zero
// values and marks the reader short; callers check Ok once at the end
// instead of after every field.
type Reader struct {
	buf   []byte
	pos   int
	short bool
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Ok reports whether every read so far was within bounds.
func (r *Reader) Ok() bool { return !r.short }

// Remaining returns the unread tail of the payload.
func (r *Reader) Remaining() []byte { return r.buf[r.pos:] }

func (r *Reader) take(n int) []byte {
	if r.pos+n > len(r.buf) {
		r.short = true
		r.pos = len(r.buf)
		return make([]byte, n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) Uint8() uint8 { return r.take(1)[0] }

func (r *Reader) Int8() int8 { return int8(r.Uint8()) }

func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	return uint16(b[0])<<8 | uint16(b[1])
}

func (r *Reader) Int16() int16 { return int16(r.Uint16()) }

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

// Float32 reads a signed 32 bit integer and divides it by scale.
func (r *Reader) Float32(scale float64) float64 {
	return float64(r.Int32()) / scale
}

// Float16 reads a signed 16 bit integer and divides it by scale.
func (r *Reader) Float16(scale float64) float64 {
	return float64(r.Int16()) / scale
}

// String reads a zero-terminated string, or the rest of the payload if no
// terminator is present.
func (r *Reader) String() string {
	for i := r.pos; i < len(r.buf); i++ {
		if r.buf[i] == 0 {
			s := string(r.buf[r.pos:i])
			r.pos = i + 1
			return s
		}
	}
	s := string(r.buf[r.pos:])
	r.pos = len(r.buf)
	return s
}
