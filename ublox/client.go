package ublox

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

const (
	ackTimeout = 500 * time.Millisecond
	ackRetries = 2
)

var (
	// ErrNak means the receiver rejected a configuration message.
	ErrNak = errors.New("configuration rejected")
	// ErrAckTimeout means no ACK or NAK arrived within the retry budget.
	ErrAckTimeout = errors.New("no acknowledgment received")
	// ErrCfgPending means a configuration write for the same message is
	// already waiting for its acknowledgment.
	ErrCfgPending = errors.New("configuration already pending")
)

var serialOpen = func(name string, baud int) (io.ReadWriteCloser, error) {
	return serial.OpenPort(&serial.Config{Name: name, Baud: baud})
}

// Client owns one serial connection to a receiver. Configuration writes
// correlate with ACK-ACK/ACK-NAK by message class and id.
type Client struct {
	port io.ReadWriteCloser

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[[2]uint8]chan bool
}

// Connect opens the serial port. Decoding starts with Start.
func Connect(portName string, baud int) (*Client, error) {
	port, err := serialOpen(portName, baud)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open receiver port %v", portName)
	}
	return &Client{
		port:    port,
		pending: make(map[[2]uint8]chan bool),
	}, nil
}

func (c *Client) Close() error {
	return c.port.Close()
}

// Start reads the port and runs callbacks until the context is cancelled
// or the port fails. Callbacks run on the reader goroutine.
func (c *Client) Start(ctx context.Context, cb Callbacks) error {
	userAck := cb.Ack
	cb.Ack = func(cls, id uint8, ack bool) {
		c.resolveAck(cls, id, ack)
		if userAck != nil {
			userAck(cls, id, ack)
		}
	}
	dec := NewDecoder(cb)

	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 512)
		for {
			n, err := c.port.Read(buf)
			if n > 0 {
				dec.Feed(buf[:n])
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
		if err == io.EOF {
			return errors.New("receiver port closed")
		}
		return errors.Wrap(err, "receiver read")
	}
}

// WriteMessage frames and sends one message without waiting for an
// acknowledgment.
func (c *Client) WriteMessage(cls, id uint8, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.port.Write(EncodeMessage(cls, id, payload))
	return errors.Wrap(err, "receiver write")
}

// SendCfg sends a configuration message and waits for its ACK-ACK,
// retransmitting on timeout. ACK-NAK fails immediately.
func (c *Client) SendCfg(ctx context.Context, cls, id uint8, payload []byte) error {
	key := [2]uint8{cls, id}
	ch := make(chan bool, 1)
	c.mu.Lock()
	if _, dup := c.pending[key]; dup {
		c.mu.Unlock()
		return ErrCfgPending
	}
	c.pending[key] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	for attempt := 0; attempt <= ackRetries; attempt++ {
		if attempt > 0 {
			log.WithField("class", cls).WithField("id", id).
				Debug("retransmitting configuration")
			timer.Reset(ackTimeout)
		}
		if err := c.WriteMessage(cls, id, payload); err != nil {
			return err
		}
		select {
		case ok := <-ch:
			if !ok {
				return ErrNak
			}
			return nil
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	// the acknowledgment may have raced the final timeout
	select {
	case ok := <-ch:
		if !ok {
			return ErrNak
		}
		return nil
	default:
	}
	return ErrAckTimeout
}

func (c *Client) resolveAck(cls, id uint8, ack bool) {
	c.mu.Lock()
	ch, ok := c.pending[[2]uint8{cls, id}]
	if ok {
		delete(c.pending, [2]uint8{cls, id})
	}
	c.mu.Unlock()
	if ok {
		ch <- ack
	}
}

// SetPrtUart configures the UART port protocols and baudrate.
func (c *Client) SetPrtUart(ctx context.Context, p CfgPrtUart) error {
	return c.SendCfg(ctx, ClassCfg, IDCfgPrt, EncodeCfgPrtUart(p))
}

// SetTmode3 sets the time mode: disabled, survey-in or fixed position.
func (c *Client) SetTmode3(ctx context.Context, t CfgTmode3) error {
	return c.SendCfg(ctx, ClassCfg, IDCfgTmode3, EncodeCfgTmode3(t))
}

// SetNav5 applies navigation engine settings.
func (c *Client) SetNav5(ctx context.Context, n CfgNav5) error {
	return c.SendCfg(ctx, ClassCfg, IDCfgNav5, EncodeCfgNav5(n))
}

// SetRate sets the measurement and navigation rate.
func (c *Client) SetRate(ctx context.Context, measMs, navRate, timeRef uint16) error {
	return c.SendCfg(ctx, ClassCfg, IDCfgRate, EncodeCfgRate(measMs, navRate, timeRef))
}

// SetMsgRate sets the periodic output rate of one message.
func (c *Client) SetMsgRate(ctx context.Context, cls, id, rate uint8) error {
	return c.SendCfg(ctx, ClassCfg, IDCfgMsg, EncodeCfgMsg(cls, id, rate))
}

// PollPrt requests the current UART configuration; the answer arrives via
// the CfgPrt callback.
func (c *Client) PollPrt() error {
	return c.WriteMessage(ClassCfg, IDCfgPrt, PollCfgPrt())
}

// PollTmode3 requests the current time mode.
func (c *Client) PollTmode3() error {
	return c.WriteMessage(ClassCfg, IDCfgTmode3, nil)
}

// PollNav5 requests the current navigation engine settings.
func (c *Client) PollNav5() error {
	return c.WriteMessage(ClassCfg, IDCfgNav5, nil)
}
