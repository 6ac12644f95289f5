package decision

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/autoupdater/updater/status"
)

func TestShouldReplace(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Second)

	tests := []struct {
		name         string
		dirEmpty     bool
		hasTargetZip bool
		source       time.Time
		baseline     time.Time
		want         bool
	}{
		{"empty dir", true, true, older, newer, true},
		{"empty dir without copy", true, false, older, newer, true},
		{"no archive copy", false, false, older, newer, true},
		{"source newer", false, true, newer, older, true},
		{"source older", false, true, older, newer, false},
		{"source equal", false, true, older, older, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReplace(tt.dirEmpty, tt.hasTargetZip, tt.source, tt.baseline))
		})
	}
}

type fixture struct {
	sourceZip, targetDir, targetZip string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		sourceZip: filepath.Join(root, "dist", "app.zip"),
		targetDir: filepath.Join(root, "app"),
	}
	f.targetZip = filepath.Join(f.targetDir, "app.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(f.sourceZip), 0o755))
	require.NoError(t, os.MkdirAll(f.targetDir, 0o755))
	require.NoError(t, os.WriteFile(f.sourceZip, []byte("zip"), 0o644))
	return f
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	if _, err := os.Stat(path); err != nil {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestEvaluate(t *testing.T) {
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	ctx := context.Background()

	t.Run("empty target", func(t *testing.T) {
		f := newFixture(t)
		plan, err := Evaluate(ctx, f.sourceZip, f.targetDir, f.targetZip)
		require.NoError(t, err)
		assert.True(t, plan.DirEmpty)
		assert.True(t, plan.Replace)
		assert.True(t, plan.Baseline.IsZero())
	})

	t.Run("up to date", func(t *testing.T) {
		f := newFixture(t)
		touch(t, f.sourceZip, base)
		touch(t, f.targetZip, base)
		touch(t, filepath.Join(f.targetDir, "bin", "app.exe"), base.Add(time.Minute))

		plan, err := Evaluate(ctx, f.sourceZip, f.targetDir, f.targetZip)
		require.NoError(t, err)
		assert.False(t, plan.Replace)
		assert.True(t, plan.HasTargetZip)
		assert.Equal(t, base.Add(time.Minute).UTC(), plan.Baseline)
	})

	t.Run("newer archive", func(t *testing.T) {
		f := newFixture(t)
		touch(t, f.targetZip, base)
		touch(t, filepath.Join(f.targetDir, "app.exe"), base)
		touch(t, f.sourceZip, base.Add(time.Minute))

		plan, err := Evaluate(ctx, f.sourceZip, f.targetDir, f.targetZip)
		require.NoError(t, err)
		assert.True(t, plan.Replace)
	})

	t.Run("missing archive copy", func(t *testing.T) {
		f := newFixture(t)
		touch(t, f.sourceZip, base)
		touch(t, filepath.Join(f.targetDir, "app.exe"), base.Add(time.Minute))

		plan, err := Evaluate(ctx, f.sourceZip, f.targetDir, f.targetZip)
		require.NoError(t, err)
		assert.False(t, plan.HasTargetZip)
		assert.True(t, plan.Replace)
	})

	t.Run("missing source", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.Remove(f.sourceZip))

		_, err := Evaluate(ctx, f.sourceZip, f.targetDir, f.targetZip)
		assert.Equal(t, status.NotFound, status.CodeOf(err))
	})
}

func TestLatestModTimeHonorsContext(t *testing.T) {
	f := newFixture(t)
	touch(t, filepath.Join(f.targetDir, "a"), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LatestModTime(ctx, f.targetDir)
	assert.Equal(t, status.UserCancelled, status.CodeOf(err))
}
