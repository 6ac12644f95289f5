package swap

import (
	"context"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/autoupdater/updater/internal/retry"
)

// ReclaimDelay lets handles to a freshly swapped tree close before deletion.
const ReclaimDelay = 2 * time.Second

// Reclaimer deletes directories in the background. What cannot be deleted
// is registered for deletion at the next reboot.
type Reclaimer struct {
	delay    time.Duration
	remove   func(ctx context.Context, path string) error
	onReboot func(path string) error
	wg       sync.WaitGroup
}

func NewReclaimer(delay time.Duration) *Reclaimer {
	return &Reclaimer{
		delay:    delay,
		remove:   removeAll,
		onReboot: deleteOnReboot,
	}
}

// Schedule deletes path after the delay.
func (r *Reclaimer) Schedule(path string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		time.Sleep(r.delay)

		err := r.remove(context.Background(), path)
		if err == nil {
			log.Debugf("reclaimed %s", path)
			return
		}

		log.Warnf("failed to delete %s: %v", path, err)
		if err := r.onReboot(path); err != nil {
			log.Warnf("failed to schedule %s for deletion at reboot: %v", path, err)
			return
		}
		log.Infof("%s will be deleted at next reboot", path)
	}()
}

// Wait blocks until scheduled deletions finish or timeout passes. It
// reports whether everything finished.
func (r *Reclaimer) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func removeAll(ctx context.Context, path string) error {
	return retry.Do(ctx, "delete "+path, func() error {
		return os.RemoveAll(path)
	})
}
