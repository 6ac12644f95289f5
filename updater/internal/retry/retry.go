// Package retry runs transient filesystem operations with bounded
// exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultAttempts        = 5
	DefaultInitialInterval = 80 * time.Millisecond
	DefaultMaxInterval     = 2 * time.Second
)

// Policy bounds a retry loop.
type Policy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Default is 5 attempts, 80ms doubling up to 2s.
var Default = Policy{
	Attempts:        DefaultAttempts,
	InitialInterval: DefaultInitialInterval,
	MaxInterval:     DefaultMaxInterval,
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.MaxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do runs op under the Default policy.
func Do(ctx context.Context, name string, op func() error) error {
	return Default.Do(ctx, name, op)
}

// Do runs op until it succeeds, the attempts are used up, op returns an
// error wrapped with Permanent, or ctx is done. The last error is returned
// unchanged; a done ctx yields ctx.Err().
func (p Policy) Do(ctx context.Context, name string, op func() error) error {
	return backoff.RetryNotify(op, p.backOff(ctx), func(err error, next time.Duration) {
		log.Debugf("%s failed, retrying in %s: %v", name, next, err)
	})
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
