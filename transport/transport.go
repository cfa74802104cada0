// Package transport provides byte stream connections to vehicles: a serial
// port, a TCP stream or a UDP endpoint, all behind one interface.
package transport

import (
	"fmt"
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// Transport is a connected byte stream carrying framed vehicle traffic.
type Transport interface {
	io.ReadWriteCloser
	Name() string
}

const udpWriteBufSize = 2 * 1024

var serialOpen = func(c *serial.Config) (io.ReadWriteCloser, error) {
	return serial.OpenPort(c)
}

var netDial = net.Dial

type conn struct {
	io.ReadWriteCloser
	name string
}

func (c *conn) Name() string { return c.name }

// Serial opens a serial port transport.
func Serial(port string, baud int) (Transport, error) {
	p, err := serialOpen(&serial.Config{Name: port, Baud: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open serial port %v", port)
	}
	return &conn{ReadWriteCloser: p, name: "serial:" + port}, nil
}

// TCP dials a TCP transport.
func TCP(server string, port int) (Transport, error) {
	addr := fmt.Sprintf("%s:%d", server, port)
	c, err := netDial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to %v", addr)
	}
	return &conn{ReadWriteCloser: c, name: "tcp:" + addr}, nil
}

// UDP dials a UDP transport. Reads return datagrams from the connected
// peer only.
func UDP(server string, port int) (Transport, error) {
	addr := fmt.Sprintf("%s:%d", server, port)
	c, err := netDial("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to %v", addr)
	}
	if udpConn, ok := c.(*net.UDPConn); ok {
		if err = udpConn.SetWriteBuffer(udpWriteBufSize); err != nil {
			return nil, errors.Wrapf(err, "unable to set OS write buffer to %v", udpWriteBufSize)
		}
	}
	return &conn{ReadWriteCloser: c, name: "udp:" + addr}, nil
}
