// Package vlink is a ground station link to Vedder-style autonomous
// vehicles: framed commands with acknowledgment correlation over serial,
// TCP or UDP, typed telemetry decode, and RTCM correction relay for RTK
// positioning.
package vlink

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"vlink/packet"
	"vlink/router"
	"vlink/transport"
)

const (
	defaultAckTimeout = 500 * time.Millisecond
	defaultAckRetries = 3
)

// ErrNoTransport rejects writes while nothing is attached.
var ErrNoTransport = errors.New("no transport attached")

// Callbacks receive decoded vehicle traffic. Nil callbacks are skipped;
// frames with no typed decode and no matching pending request land in
// Packet.
type Callbacks struct {
	CarState        func(addr uint8, s CarState)
	MultirotorState func(addr uint8, s MultirotorState)
	Printf          func(addr uint8, msg string)
	LogLine         func(addr uint8, line string)
	PlotInit        func(addr uint8, xLabel, yLabel string)
	PlotData        func(addr uint8, x, y float64)
	BaseStatus      func(s BaseStatus)
	// Rtcm receives raw correction data forwarded by a vehicle or mote.
	Rtcm func(data []byte)
	// Ack fires when a pending request resolves, successfully or not.
	Ack func(addr uint8, cmd packet.Command, ok bool)
	// Packet receives everything not handled above.
	Packet func(p packet.Packet)
}

type attached struct {
	t    transport.Transport
	mote bool
}

// Link is the hub tying transports to the command router. Frames written
// go to every attached transport; reads run one ReadFrom loop per
// transport.
type Link struct {
	cb     Callbacks
	router *router.Router

	mu         sync.Mutex
	timeout    time.Duration
	retries    int
	transports []attached
}

func New(cb Callbacks) *Link {
	l := &Link{
		cb:      cb,
		timeout: defaultAckTimeout,
		retries: defaultAckRetries,
	}
	l.router = router.New(l, router.Callbacks{
		Ack: func(cmd packet.Command, addr uint8, ok bool) {
			if l.cb.Ack != nil {
				l.cb.Ack(addr, cmd, ok)
			}
		},
		Unsolicited: l.dispatch,
	})
	return l
}

// SetAckPolicy overrides the per-request acknowledgment timeout and retry
// count. Safe to call while requests are in flight; those keep the policy
// they started with.
func (l *Link) SetAckPolicy(timeout time.Duration, retries int) {
	l.mu.Lock()
	l.timeout = timeout
	l.retries = retries
	l.mu.Unlock()
}

func (l *Link) ackPolicy() (time.Duration, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timeout, l.retries
}

// Attach registers a transport for writes.
func (l *Link) Attach(t transport.Transport) {
	l.attach(t, false)
}

// AttachMote registers a radio mote transport for writes. Vehicle-bound
// frames are re-framed into mote chunks on this transport.
func (l *Link) AttachMote(t transport.Transport) {
	l.attach(t, true)
}

func (l *Link) attach(t transport.Transport, mote bool) {
	l.mu.Lock()
	l.transports = append(l.transports, attached{t: t, mote: mote})
	l.mu.Unlock()
	l.router.Reopen()
}

// Detach removes a transport. Removing the last transport fails all
// pending requests.
func (l *Link) Detach(t transport.Transport) {
	l.mu.Lock()
	for i, a := range l.transports {
		if a.t == t {
			l.transports = append(l.transports[:i], l.transports[i+1:]...)
			break
		}
	}
	empty := len(l.transports) == 0
	l.mu.Unlock()
	if empty {
		l.router.Close(router.ErrTransportClosed)
	}
}

// WriteFrame encodes p and writes it to every attached transport. Mote
// transports get the chunked re-framing instead of a plain frame.
func (l *Link) WriteFrame(p packet.Packet) error {
	l.mu.Lock()
	ts := append([]attached(nil), l.transports...)
	l.mu.Unlock()
	if len(ts) == 0 {
		return ErrNoTransport
	}

	plain, err := packet.Encode(p)
	if err != nil {
		return err
	}
	var moteFrames [][]byte
	for _, a := range ts {
		frames := [][]byte{plain}
		if a.mote && p.Address != packet.IDMote {
			if moteFrames == nil {
				if moteFrames, err = packet.EncodeMote(p); err != nil {
					return err
				}
			}
			frames = moteFrames
		}
		for _, f := range frames {
			if _, err := a.t.Write(f); err != nil {
				return errors.Wrapf(err, "write to %v", a.t.Name())
			}
		}
	}
	return nil
}

// ReadFrom decodes frames from t until the context is cancelled or the
// read fails. Callbacks run on this goroutine. The caller attaches and
// detaches the transport for writes; closing the transport unblocks the
// read.
func (l *Link) ReadFrom(ctx context.Context, t transport.Transport) error {
	dec := packet.NewDecoder()
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := t.Read(buf)
			if n > 0 {
				for _, p := range dec.Feed(buf[:n]) {
					l.handle(p)
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-readErr:
		return errors.Wrapf(err, "read from %v", t.Name())
	}
}

func (l *Link) handle(p packet.Packet) {
	if p.Address == packet.IDRtcm {
		// raw correction passthrough; the command byte is part of the data
		if l.cb.Rtcm != nil {
			l.cb.Rtcm(append([]byte{uint8(p.Cmd)}, p.Payload...))
		}
		return
	}
	l.router.HandleFrame(p)
}

// dispatch decodes unsolicited frames into typed callbacks.
func (l *Link) dispatch(p packet.Packet) {
	switch p.Cmd {
	case packet.CmdPrintf:
		if l.cb.Printf != nil {
			l.cb.Printf(p.Address, string(p.Payload))
			return
		}
	case packet.CmdLogLineUsb:
		if l.cb.LogLine != nil {
			l.cb.LogLine(p.Address, string(p.Payload))
			return
		}
	case packet.CmdPlotInit:
		if l.cb.PlotInit != nil {
			r := packet.NewReader(p.Payload)
			xLabel, yLabel := r.String(), r.String()
			if !r.Ok() {
				l.warnMalformed(p)
				return
			}
			l.cb.PlotInit(p.Address, xLabel, yLabel)
			return
		}
	case packet.CmdPlotData:
		if l.cb.PlotData != nil {
			r := packet.NewReader(p.Payload)
			x, y := r.Float32(1e6), r.Float32(1e6)
			if !r.Ok() {
				l.warnMalformed(p)
				return
			}
			l.cb.PlotData(p.Address, x, y)
			return
		}
	case packet.CmdGetState:
		if l.cb.CarState != nil {
			s, err := ParseCarState(p.Payload)
			if err != nil {
				l.warnMalformed(p)
				return
			}
			l.cb.CarState(p.Address, s)
			return
		}
	case packet.CmdMrGetState:
		if l.cb.MultirotorState != nil {
			s, err := ParseMultirotorState(p.Payload)
			if err != nil {
				l.warnMalformed(p)
				return
			}
			l.cb.MultirotorState(p.Address, s)
			return
		}
	case packet.CmdMoteUbxBaseStatus:
		if l.cb.BaseStatus != nil {
			s, err := ParseBaseStatus(p.Payload)
			if err != nil {
				l.warnMalformed(p)
				return
			}
			l.cb.BaseStatus(s)
			return
		}
	}
	if l.cb.Packet != nil {
		l.cb.Packet(p)
	}
}

func (l *Link) warnMalformed(p packet.Packet) {
	log.WithField("cmd", p.Cmd).WithField("addr", p.Address).
		Warn("malformed payload")
}
