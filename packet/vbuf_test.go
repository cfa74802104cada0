package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := Writer{}
	w.Uint8(7)
	w.Int8(-3)
	w.Int16(-1234)
	w.Uint16(40000)
	w.Int32(-123456)
	w.Uint32(3000000000)
	w.Float32(3.25, 1e4)
	w.Float16(-1.5, 1e2)
	w.String("base")
	w.Raw([]byte{9, 9})

	r := NewReader(w.Bytes())
	assert.Equal(t, uint8(7), r.Uint8())
	assert.Equal(t, int8(-3), r.Int8())
	assert.Equal(t, int16(-1234), r.Int16())
	assert.Equal(t, uint16(40000), r.Uint16())
	assert.Equal(t, int32(-123456), r.Int32())
	assert.Equal(t, uint32(3000000000), r.Uint32())
	assert.Equal(t, 3.25, r.Float32(1e4))
	assert.Equal(t, -1.5, r.Float16(1e2))
	assert.Equal(t, "base", r.String())
	assert.Equal(t, []byte{9, 9}, r.Remaining())
	assert.True(t, r.Ok())
}

func TestReaderShortPayload(t *testing.T) {
	r := NewReader([]byte{1, 2})
	assert.Equal(t, uint32(0), r.Uint32())
	assert.False(t, r.Ok())
}

func TestReaderUnterminatedString(t *testing.T) {
	r := NewReader([]byte("log line"))
	assert.Equal(t, "log line", r.String())
	assert.True(t, r.Ok())
}
