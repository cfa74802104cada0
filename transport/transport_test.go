package transport

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tarm/serial"
)

func TestTCPPassthrough(t *testing.T) {
	client, server := net.Pipe()
	orig := netDial
	defer func() { netDial = orig }()
	netDial = func(network, addr string) (net.Conn, error) {
		assert.Equal(t, "tcp", network)
		assert.Equal(t, "10.0.0.5:65191", addr)
		return client, nil
	}

	tr, err := TCP("10.0.0.5", 65191)
	assert.NoError(t, err)
	assert.Equal(t, "tcp:10.0.0.5:65191", tr.Name())

	go func() {
		_, _ = tr.Write([]byte{1, 2, 3})
	}()
	buf := make([]byte, 3)
	_, err = io.ReadFull(server, buf)
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf)
	assert.NoError(t, tr.Close())
}

func TestSerialName(t *testing.T) {
	orig := serialOpen
	defer func() { serialOpen = orig }()
	var gotCfg *serial.Config
	client, _ := net.Pipe()
	serialOpen = func(c *serial.Config) (io.ReadWriteCloser, error) {
		gotCfg = c
		return client, nil
	}

	tr, err := Serial("/dev/ttyACM0", 115200)
	assert.NoError(t, err)
	assert.Equal(t, "serial:/dev/ttyACM0", tr.Name())
	assert.Equal(t, "/dev/ttyACM0", gotCfg.Name)
	assert.Equal(t, 115200, gotCfg.Baud)
	assert.NoError(t, tr.Close())
}
