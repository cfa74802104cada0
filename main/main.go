package main

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"vlink"
	"vlink/packet"
	"vlink/transport"
	"vlink/ublox"
)

const configFileName = "vlink.toml"

type SerialConfig struct {
	Port string
	Baud int
	// Mote marks the port as a radio mote bridge; vehicle-bound frames are
	// then chunked for the radio.
	Mote bool
}

type NetConfig struct {
	Server string
	Port   int
}

type BaseConfig struct {
	Port       string
	Baud       int
	SvinMinDur uint32  `toml:"svin_min_dur"`
	SvinAccLim float64 `toml:"svin_acc_lim"`
}

type Config struct {
	AckTimeoutMs int `toml:"ack_timeout_ms"`
	AckRetries   int `toml:"ack_retries"`
	Serial       *SerialConfig
	TCP          *NetConfig
	UDP          *NetConfig
	Base         *BaseConfig
}

func loadConfig(fileName string) (*Config, error) {
	dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to determine binary location")
	}
	file, err := os.Open(filepath.Join(dir, fileName))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return loadConfigFromReader(file)
}

func loadConfigFromReader(configReader io.Reader) (*Config, error) {
	configData, err := ioutil.ReadAll(configReader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config reader")
	}
	config := Config{}
	if _, err := toml.Decode(string(configData), &config); err != nil {
		return nil, errors.Wrapf(err, "unable to load configuration")
	}
	return &config, nil
}

// linkConn adapts one transport to the reconnect loop.
type linkConn struct {
	link *vlink.Link
	name string
	mote bool
	dial func() (transport.Transport, error)

	t transport.Transport
}

func (c *linkConn) Open() error {
	t, err := c.dial()
	c.t = t
	return err
}

func (c *linkConn) Close() error {
	if c.t == nil {
		return nil
	}
	return c.t.Close()
}

func (c *linkConn) Start(ctx context.Context) error {
	if c.mote {
		c.link.AttachMote(c.t)
	} else {
		c.link.Attach(c.t)
	}
	defer c.link.Detach(c.t)
	return c.link.ReadFrom(ctx, c.t)
}

func (c *linkConn) Name() string {
	return c.name
}

var ubxConnect = func(port string, baud int) (*ublox.Client, error) {
	return ublox.Connect(port, baud)
}

// base runs the local RTK base station receiver.
type base struct {
	link *vlink.Link
	cfg  *BaseConfig

	c *ublox.Client
}

func (b *base) Open() error {
	c, err := ubxConnect(b.cfg.Port, b.cfg.Baud)
	b.c = c
	return err
}

func (b *base) Close() error {
	if b.c == nil {
		return nil
	}
	return b.c.Close()
}

func (b *base) Start(ctx context.Context) error {
	bs := vlink.NewBaseStation(b.link)
	// configuration needs the reader running to see the acks
	go func() {
		if err := bs.Configure(ctx, b.c, b.cfg.SvinMinDur, b.cfg.SvinAccLim); err != nil {
			log.WithField("err", err).Error("base receiver configuration failed")
		}
	}()
	return b.c.Start(ctx, bs.Callbacks())
}

func (b *base) Name() string {
	return "ublox-base"
}

func run(ctx context.Context, r vlink.Retryable) {
	if err := vlink.Retry(ctx, r); err != nil {
		log.Errorf("%s done: %v", r.Name(), err)
	}
}

func main() {
	log.SetLevel(log.InfoLevel)

	ctx := context.Background()

	cfg, err := loadConfig(configFileName)
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}

	link := vlink.New(vlink.Callbacks{
		Printf: func(addr uint8, msg string) {
			log.WithField("addr", addr).Info(msg)
		},
		LogLine: func(addr uint8, line string) {
			log.WithField("addr", addr).Debug(line)
		},
		CarState: func(addr uint8, s vlink.CarState) {
			log.WithField("addr", addr).WithField("px", s.PX).WithField("py", s.PY).
				Debug("car state")
		},
		BaseStatus: func(s vlink.BaseStatus) {
			log.WithField("started", s.Started).WithField("acc", s.MeanAcc).
				Info("mote base status")
		},
		Ack: func(addr uint8, cmd packet.Command, ok bool) {
			if !ok {
				log.WithField("addr", addr).WithField("cmd", cmd).
					Warn("command not acknowledged")
			}
		},
	})
	if cfg.AckTimeoutMs > 0 {
		link.SetAckPolicy(time.Duration(cfg.AckTimeoutMs)*time.Millisecond, cfg.AckRetries)
	}

	if cfg.Serial != nil {
		s := cfg.Serial
		go run(ctx, &linkConn{link: link, name: "serial", mote: s.Mote,
			dial: func() (transport.Transport, error) {
				return transport.Serial(s.Port, s.Baud)
			}})
	}
	if cfg.TCP != nil {
		n := cfg.TCP
		go run(ctx, &linkConn{link: link, name: "tcp",
			dial: func() (transport.Transport, error) {
				return transport.TCP(n.Server, n.Port)
			}})
	}
	if cfg.UDP != nil {
		n := cfg.UDP
		go run(ctx, &linkConn{link: link, name: "udp",
			dial: func() (transport.Transport, error) {
				return transport.UDP(n.Server, n.Port)
			}})
	}
	if cfg.Base != nil {
		go run(ctx, &base{link: link, cfg: cfg.Base})
	}

	select {}
}
