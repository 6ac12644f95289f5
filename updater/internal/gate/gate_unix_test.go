//go:build unix

package gate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canCreateObjects(t *testing.T) bool {
	t.Helper()
	return true
}

// tryAcquire opens its own descriptor, which flock treats as a separate
// owner, and releases right away on success.
func tryAcquire(ctx context.Context, dir string, wait time.Duration) error {
	l, err := Acquire(ctx, dir, wait)
	if err != nil {
		return err
	}
	return l.Release()
}

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "gate")
	if err != nil {
		panic(err)
	}
	runtimeDir = dir
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func TestTargetNameKeepsCase(t *testing.T) {
	root := t.TempDir()
	upper := filepath.Join(root, "App")
	lower := filepath.Join(root, "app")

	assert.NotEqual(t, TargetName(upper), TargetName(lower))
	assert.Equal(t, upper, Canonical(upper))

	l, err := Acquire(context.Background(), upper, 0)
	require.NoError(t, err)
	defer func() { _ = l.Release() }()

	assert.NoError(t, tryAcquire(context.Background(), lower, 0))
}
