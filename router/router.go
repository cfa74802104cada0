// Package router correlates outbound vehicle commands with inbound
// acknowledgments and dispatches unsolicited telemetry.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"vlink/packet"
)

var (
	// ErrAckTimeout means no acknowledgment arrived within the deadline
	// after exhausting retries. The vehicle's state is then unknown and
	// must be re-queried, never assumed.
	ErrAckTimeout = errors.New("no acknowledgment received")
	// ErrTransportClosed fails pending requests when their transport dies.
	ErrTransportClosed = errors.New("transport closed")
	// ErrRequestPending rejects a second request for an (address, command)
	// pair that already has one in flight. Callers serialize those.
	ErrRequestPending = errors.New("request already pending for address and command")
)

// Writer transmits one framed packet. Implemented by the link layer.
type Writer interface {
	WriteFrame(p packet.Packet) error
}

// Callbacks receive traffic the router does not consume itself. Nil
// callbacks are skipped.
type Callbacks struct {
	// Ack fires when a pending request resolves, successfully or not.
	Ack func(cmd packet.Command, addr uint8, ok bool)
	// Unsolicited receives every frame that matches no pending request.
	Unsolicited func(p packet.Packet)
}

type key struct {
	addr uint8
	cmd  packet.Command
}

type pending struct {
	done chan []byte
}

// Router tracks in-flight requests. The pending table is shared between
// sender goroutines (insert) and the transport reader (resolve), so all
// access goes through the mutex.
type Router struct {
	w  Writer
	cb Callbacks

	mu      sync.Mutex
	pending map[key]*pending
	closed  error
}

func New(w Writer, cb Callbacks) *Router {
	return &Router{
		w:       w,
		cb:      cb,
		pending: map[key]*pending{},
	}
}

// Send transmits without expecting an acknowledgment.
func (r *Router) Send(addr uint8, cmd packet.Command, payload []byte) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed != nil {
		return closed
	}
	return r.w.WriteFrame(packet.Packet{Address: addr, Cmd: cmd, Payload: payload})
}

// SendForAck transmits and parks the caller until a matching acknowledgment
// arrives, retrying on timeout. Exactly 1+retries transmissions happen
// before ErrAckTimeout. Broadcast commands never expect a per-address ack
// and resolve immediately after transmission. Only the calling goroutine
// blocks; the transport reader keeps resolving other requests meanwhile.
func (r *Router) SendForAck(ctx context.Context, addr uint8, cmd packet.Command, payload []byte,
	timeout time.Duration, retries int) ([]byte, error) {
	return r.SendForAckCmd(ctx, addr, cmd, cmd, payload, timeout, retries)
}

// SendForAckCmd is SendForAck for the commands whose acknowledgment carries
// a different command id than the request.
func (r *Router) SendForAckCmd(ctx context.Context, addr uint8, cmd, ackCmd packet.Command,
	payload []byte, timeout time.Duration, retries int) ([]byte, error) {

	if addr == packet.IDAll {
		return nil, r.Send(addr, cmd, payload)
	}

	k := key{addr, ackCmd}
	req := &pending{done: make(chan []byte, 1)}

	r.mu.Lock()
	if r.closed != nil {
		err := r.closed
		r.mu.Unlock()
		return nil, err
	}
	if _, dup := r.pending[k]; dup {
		r.mu.Unlock()
		return nil, ErrRequestPending
	}
	r.pending[k] = req
	r.mu.Unlock()

	p := packet.Packet{Address: addr, Cmd: cmd, Payload: payload}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for attempt := 0; attempt <= retries; attempt++ {
		if err := r.w.WriteFrame(p); err != nil {
			r.abandon(k, req)
			return nil, errors.Wrap(err, "transmit failed")
		}
		if attempt > 0 {
			log.WithField("cmd", cmd).WithField("addr", addr).
				Debugf("retry %d", attempt)
		}
		timer.Reset(timeout)
		select {
		case ack := <-req.done:
			if ack == nil {
				return nil, ErrTransportClosed
			}
			r.ackCallback(cmd, addr, true)
			return ack, nil
		case <-timer.C:
		case <-ctx.Done():
			r.abandon(k, req)
			return nil, ctx.Err()
		}
	}

	r.abandon(k, req)
	// an ack may have raced the final timeout
	select {
	case ack := <-req.done:
		if ack != nil {
			r.ackCallback(cmd, addr, true)
			return ack, nil
		}
		return nil, ErrTransportClosed
	default:
	}
	r.ackCallback(cmd, addr, false)
	return nil, ErrAckTimeout
}

// abandon removes a pending entry, keeping a resolution that raced with the
// removal. A late ack arriving after this is unsolicited traffic.
func (r *Router) abandon(k key, req *pending) {
	r.mu.Lock()
	if r.pending[k] == req {
		delete(r.pending, k)
	}
	r.mu.Unlock()
}

// HandleFrame is the receive path, called by the transport reader for every
// decoded packet. Acks are correlated by (address, command); everything
// else is forwarded as unsolicited telemetry.
func (r *Router) HandleFrame(p packet.Packet) {
	k := key{p.Address, p.Cmd}
	r.mu.Lock()
	req, ok := r.pending[k]
	if ok {
		delete(r.pending, k)
	}
	r.mu.Unlock()

	if ok {
		ack := p.Payload
		if ack == nil {
			ack = []byte{}
		}
		req.done <- ack
		return
	}
	if r.cb.Unsolicited != nil {
		r.cb.Unsolicited(p)
	}
}

// Close fails every pending request with ErrTransportClosed and rejects
// further sends with err (or ErrTransportClosed when err is nil).
func (r *Router) Close(err error) {
	if err == nil {
		err = ErrTransportClosed
	}
	r.mu.Lock()
	r.closed = err
	for k, req := range r.pending {
		delete(r.pending, k)
		req.done <- nil
	}
	r.mu.Unlock()
}

// Reopen accepts sends again after Close, once a transport reconnects.
func (r *Router) Reopen() {
	r.mu.Lock()
	r.closed = nil
	r.mu.Unlock()
}

func (r *Router) ackCallback(cmd packet.Command, addr uint8, ok bool) {
	if r.cb.Ack != nil {
		r.cb.Ack(cmd, addr, ok)
	}
}
