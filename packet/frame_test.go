package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeShortLongSelection(t *testing.T) {
	short, err := Encode(Packet{Address: 3, Cmd: CmdGetState, Payload: make([]byte, 255)})
	assert.NoError(t, err)
	assert.Equal(t, StartShort, short[0])

	long, err := Encode(Packet{Address: 3, Cmd: CmdSetMainConfig, Payload: make([]byte, 256)})
	assert.NoError(t, err)
	assert.Equal(t, StartLong, long[0])

	_, err = Encode(Packet{Payload: make([]byte, MaxPayload+1)})
	assert.Equal(t, ErrPayloadTooLarge, err)
}

func TestRoundTrip(t *testing.T) {
	packets := []Packet{
		{Address: 0, Cmd: CmdPrintf, Payload: []byte("hello")},
		{Address: 3, Cmd: CmdGetState, Payload: []byte{}},
		{Address: IDAll, Cmd: CmdSendRtcmUsb, Payload: bytes.Repeat([]byte{0xd3, 0x00}, 300)},
		{Address: 7, Cmd: CmdSetPos, Payload: []byte{0x02, 0x82, 0x02}},
	}
	d := NewDecoder()
	for _, p := range packets {
		raw, err := Encode(p)
		assert.NoError(t, err)
		got := d.Feed(raw)
		if assert.Len(t, got, 1) {
			assert.Equal(t, p.Address, got[0].Address)
			assert.Equal(t, p.Cmd, got[0].Cmd)
			assert.Equal(t, []byte(p.Payload), got[0].Payload)
		}
	}
}

func TestIncrementalFeedEquivalence(t *testing.T) {
	var stream []byte
	var want []Packet
	for i := 0; i < 10; i++ {
		p := Packet{
			Address: uint8(i),
			Cmd:     CmdPlotData,
			Payload: bytes.Repeat([]byte{uint8(i)}, i*60),
		}
		raw, err := Encode(p)
		assert.NoError(t, err)
		stream = append(stream, raw...)
		want = append(want, p)
	}
	// garbage between frames must not matter
	stream = append([]byte{0x00, 0xff, 0x13}, stream...)

	all := NewDecoder().Feed(stream)

	byByte := NewDecoder()
	var one []Packet
	for _, b := range stream {
		one = append(one, byByte.Feed([]byte{b})...)
	}

	assert.Equal(t, len(want), len(all))
	assert.Equal(t, all, one)
}

func TestBitFlipDropsOnlyThatFrame(t *testing.T) {
	good, err := Encode(Packet{Address: 1, Cmd: CmdGetState, Payload: []byte{0x10, 0x20, 0x30}})
	assert.NoError(t, err)
	bad := append([]byte(nil), good...)
	bad[5] ^= 0x40 // flip one payload bit

	next, err := Encode(Packet{Address: 2, Cmd: CmdMrGetState, Payload: []byte{9}})
	assert.NoError(t, err)

	d := NewDecoder()
	got := d.Feed(append(bad, next...))
	if assert.Len(t, got, 1) {
		assert.Equal(t, uint8(2), got[0].Address)
	}
	assert.Equal(t, uint64(1), d.Stats().ChecksumErrors)
}

func TestOversizedLengthResyncs(t *testing.T) {
	// long frame claiming a payload above the maximum
	junk := []byte{StartLong, 1, 2, 0xff, 0x7f}
	good, err := Encode(Packet{Address: 4, Cmd: CmdGetEnuRef})
	assert.NoError(t, err)

	d := NewDecoder()
	got := d.Feed(append(junk, good...))
	if assert.Len(t, got, 1) {
		assert.Equal(t, uint8(4), got[0].Address)
	}
	assert.Equal(t, uint64(1), d.Stats().Overflows)
}

func TestMoteShortBuffer(t *testing.T) {
	p := Packet{Address: 5, Cmd: CmdGetState, Payload: []byte{1, 2}}
	frames, err := EncodeMote(p)
	assert.NoError(t, err)
	assert.Len(t, frames, 1)

	d := NewDecoder()
	got := d.Feed(frames[0])
	if assert.Len(t, got, 1) {
		assert.Equal(t, p, got[0])
	}
}

func TestMoteChunkedReassembly(t *testing.T) {
	p := Packet{Address: 5, Cmd: CmdSetMainConfig, Payload: bytes.Repeat([]byte{0xab}, 400)}
	frames, err := EncodeMote(p)
	assert.NoError(t, err)
	assert.True(t, len(frames) > 2)

	d := NewDecoder()
	var got []Packet
	for _, f := range frames {
		got = append(got, d.Feed(f)...)
	}
	if assert.Len(t, got, 1) {
		assert.Equal(t, p.Address, got[0].Address)
		assert.Equal(t, p.Cmd, got[0].Cmd)
		assert.Equal(t, []byte(p.Payload), got[0].Payload)
	}
}

func TestMoteCommitCrcMismatchDropped(t *testing.T) {
	p := Packet{Address: 5, Cmd: CmdSetMainConfig, Payload: bytes.Repeat([]byte{0xab}, 400)}
	frames, err := EncodeMote(p)
	assert.NoError(t, err)

	d := NewDecoder()
	var got []Packet
	// skip one fill chunk so the commit CRC cannot match
	for _, f := range frames[1:] {
		got = append(got, d.Feed(f)...)
	}
	assert.Len(t, got, 0)
	assert.Equal(t, uint64(1), d.Stats().MoteErrors)
}

func TestStatusFramesFromMoteAddressPassThrough(t *testing.T) {
	p := Packet{Address: IDMote, Cmd: CmdMoteUbxBaseStatus, Payload: []byte{1}}
	raw, err := Encode(p)
	assert.NoError(t, err)
	got := NewDecoder().Feed(raw)
	if assert.Len(t, got, 1) {
		assert.Equal(t, CmdMoteUbxBaseStatus, got[0].Cmd)
	}
}
