package vlink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	retrySleep    = time.Second
	retryMaxSleep = 30 * time.Second
)

// retryResetAfter is how long a connection must hold before the reconnect
// delay drops back to the minimum. A link that dies faster than this keeps
// backing off.
const retryResetAfter = time.Minute

// Retryable is a connection that can be re-established after failure.
type Retryable interface {
	Open() error
	Close() error
	Start(ctx context.Context) error
	Name() string
}

// nextRetrySleep doubles the reconnect delay up to the cap.
func nextRetrySleep(d time.Duration) time.Duration {
	d *= 2
	if d > retryMaxSleep {
		return retryMaxSleep
	}
	return d
}

// Retry runs r, closing and re-opening it whenever Open or Start fails,
// until the context is cancelled. Reconnect delays double up to a cap and
// reset once the connection holds.
func Retry(ctx context.Context, r Retryable) error {
	errStarting := errors.New("starting")
	err := errStarting
	sleep := retrySleep
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			if err != errStarting {
				log.WithField("err", err).Errorf("%s: reconnecting in %v", r.Name(), sleep)
				if err = r.Close(); err != nil {
					log.WithField("err", err).Warnf("%s: unable to close", r.Name())
				}
				time.Sleep(sleep)
				sleep = nextRetrySleep(sleep)
			}
			err = r.Open()
			if err != nil {
				continue
			}
		}
		started := time.Now()
		err = r.Start(ctx)
		if time.Since(started) >= retryResetAfter {
			sleep = retrySleep
		}
	}
}
