package lockcheck

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/autoupdater/updater/status"
)

func TestUnlockedAndMissing(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "app.exe")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o755))

	locked, err := Locked(context.Background(), []string{present, filepath.Join(dir, "missing.exe")})
	require.NoError(t, err)
	assert.Empty(t, locked)
	assert.NoError(t, Check(context.Background(), []string{present}))
}

func TestRunningExecutableIsLocked(t *testing.T) {
	self, err := os.Executable()
	require.NoError(t, err)

	err = Check(context.Background(), []string{self})
	assert.True(t, status.Is(err, status.KindLocked), "got %v", err)
	assert.Equal(t, status.RuntimeError, status.CodeOf(err))
}

func TestHoldersFindsSelf(t *testing.T) {
	self, err := os.Executable()
	require.NoError(t, err)

	holders, err := Holders(context.Background(), []string{self})
	require.NoError(t, err)

	pids := make([]int32, 0, len(holders))
	for _, h := range holders {
		pids = append(pids, h.PID)
	}
	assert.Contains(t, pids, int32(os.Getpid()))
}

func TestLockedHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Locked(ctx, []string{"whatever"})
	assert.Equal(t, status.UserCancelled, status.CodeOf(err))
}
