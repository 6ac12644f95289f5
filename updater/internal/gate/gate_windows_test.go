package gate

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/netbirdio/autoupdater/updater/internal/privilege"
)

// Objects in the Global namespace need SeCreateGlobalPrivilege, which
// elevated and service accounts hold.
func canCreateObjects(t *testing.T) bool {
	t.Helper()
	return privilege.IsElevatedOrSystem()
}

// tryAcquire runs on its own goroutine: the test goroutine is locked to the
// thread owning the mutex, and mutexes are recursive for their owner.
func tryAcquire(ctx context.Context, dir string, wait time.Duration) error {
	ch := make(chan error, 1)
	go func() {
		l, err := Acquire(ctx, dir, wait)
		if err == nil {
			err = l.Release()
		}
		ch <- err
	}()
	return <-ch
}

func TestTargetNameIgnoresCase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "App")
	assert.Equal(t, TargetName(dir), TargetName(strings.ToUpper(dir)))
}
