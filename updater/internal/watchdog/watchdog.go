package watchdog

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/autoupdater/updater/status"
)

const (
	DefaultTimeout = 3 * time.Minute
	MinTimeout     = 10 * time.Second
	MaxTimeout     = 600 * time.Second

	// hardKillGrace leaves the cooperative path time to roll back before the
	// process is terminated.
	hardKillGrace = 15 * time.Second
)

// ErrExpired is the cause attached to contexts whose watchdog fired.
var ErrExpired = errors.New("watchdog deadline exceeded")

// Clamp converts a configured number of seconds into a timeout. Values
// outside [MinTimeout, MaxTimeout] fall back to DefaultTimeout.
func Clamp(seconds int) time.Duration {
	d := time.Duration(seconds) * time.Second
	if d < MinTimeout || d > MaxTimeout {
		return DefaultTimeout
	}
	return d
}

// Watchdog bounds a session-side run. Work observes the deadline through the
// context returned by Start; the optional hard kill terminates the process if
// the cooperative path does not return in time.
type Watchdog struct {
	timeout  time.Duration
	cancel   context.CancelFunc
	exit     func(code int)
	hardKill *time.Timer
	stopOnce sync.Once
}

type Option func(*Watchdog)

// WithHardKill arms a timer that calls exit with status.Timeout when the
// run outlives its deadline by a grace period. A nil exit uses os.Exit.
func WithHardKill(exit func(code int)) Option {
	return func(w *Watchdog) {
		if exit == nil {
			exit = os.Exit
		}
		w.exit = exit
	}
}

// Start arms the watchdog.
func Start(parent context.Context, timeout time.Duration, opts ...Option) (context.Context, *Watchdog) {
	w := &Watchdog{timeout: timeout}
	for _, opt := range opts {
		opt(w)
	}

	ctx, cancel := context.WithTimeoutCause(parent, timeout, ErrExpired)
	w.cancel = cancel

	if w.exit != nil {
		w.hardKill = time.AfterFunc(timeout+hardKillGrace, func() {
			log.Errorf("watchdog timeout (%s), terminating process", timeout)
			w.exit(int(status.Timeout))
		})
	}

	log.Debugf("watchdog armed: %s (hard kill: %t)", timeout, w.exit != nil)
	return ctx, w
}

// Timeout returns the armed duration.
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

// Stop disarms the watchdog. It is safe to call more than once.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		if w.hardKill != nil {
			w.hardKill.Stop()
		}
		w.cancel()
	})
}

// Check returns nil while ctx is live and a classified error once it is
// done. Long-running loops call it between units of work.
func Check(ctx context.Context, op string) error {
	if ctx.Err() == nil {
		return nil
	}
	return FromContext(ctx, op)
}

// FromContext classifies the reason ctx is done: an expired deadline is
// KindTimeout, anything else KindCancelled.
func FromContext(ctx context.Context, op string) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(context.Cause(ctx), ErrExpired) || errors.Is(err, context.DeadlineExceeded) {
		return status.New(status.KindTimeout, op, ErrExpired)
	}
	return status.New(status.KindCancelled, op, err)
}
