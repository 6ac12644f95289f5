//go:build unix

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/autoupdater/updater/internal/bridge"
	"github.com/netbirdio/autoupdater/updater/internal/gate"
	"github.com/netbirdio/autoupdater/updater/internal/supervisor"
	"github.com/netbirdio/autoupdater/updater/status"
)

type deployment struct {
	sourceZip string
	targetDir string
	config    string
}

func newDeployment(t *testing.T) *deployment {
	t.Helper()
	root := t.TempDir()
	d := &deployment{
		sourceZip: filepath.Join(root, "dist", "app.zip"),
		targetDir: filepath.Join(root, "apps", "app"),
		config:    filepath.Join(root, "autoupdater.json"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(d.sourceZip), 0o755))
	require.NoError(t, os.MkdirAll(d.targetDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(d.targetDir, "app.exe"), []byte("v1"), 0o755))

	cfg := fmt.Sprintf(`{"SourceZip": %q, "TargetDir": %q, "ExeNames": "app.exe", "BridgeTimeoutSeconds": 42}`, d.sourceZip, d.targetDir)
	require.NoError(t, os.WriteFile(d.config, []byte(cfg), 0o600))

	f, err := os.Create(d.sourceZip)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	fw, err := w.Create("app.exe")
	require.NoError(t, err)
	_, err = fw.Write([]byte("v2"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return d
}

func (d *deployment) exe(t *testing.T) string {
	t.Helper()
	body, err := os.ReadFile(filepath.Join(d.targetDir, "app.exe"))
	require.NoError(t, err)
	return string(body)
}

// inProcessBridge runs the session side on the calling goroutine and
// reports its code the way a finished child would.
func inProcessBridge(t *testing.T, seen *bridge.Request) bridge.Launcher {
	return launcherFunc(func(req bridge.Request) supervisor.Result {
		*seen = req
		require.GreaterOrEqual(t, len(req.Args), 2)
		require.Equal(t, "--client", req.Args[0])
		flags := pflag.NewFlagSet("client", pflag.ContinueOnError)
		code := runClient(context.Background(), flags, req.Args[1])
		return supervisor.Result{ExitCode: uint32(code), Outcome: supervisor.Completed}
	})
}

func TestRunPrivilegedEndToEnd(t *testing.T) {
	defer restoreGlobals()()
	d := newDeployment(t)
	isElevated = func() bool { return true }
	executable = func() (string, error) { return "/opt/autoupdater/autoupdater", nil }
	configPath = d.config
	bridgeTimeout = 0

	var req bridge.Request
	code := runPrivileged(pflag.NewFlagSet("test", pflag.ContinueOnError), inProcessBridge(t, &req))

	assert.Equal(t, status.Success, code)
	assert.Equal(t, "v2", d.exe(t))
	assert.Equal(t, 42*time.Second, req.Timeout)
	assert.Equal(t, "/opt/autoupdater", req.WorkingDir)
	assert.Equal(t, []string{"--client", req.Args[1], "--config", d.config}, req.Args)

	// the token dies with the privileged run
	assert.Error(t, gate.ValidateAuth(req.Args[1]))

	// a second run finds the target up to date
	code = runPrivileged(pflag.NewFlagSet("test", pflag.ContinueOnError), inProcessBridge(t, &req))
	assert.Equal(t, status.Success, code)
}

func TestRunPrivilegedTargetBusy(t *testing.T) {
	defer restoreGlobals()()
	d := newDeployment(t)
	isElevated = func() bool { return true }
	executable = func() (string, error) { return "/opt/autoupdater/autoupdater", nil }
	configPath = d.config

	lock, err := gate.Acquire(context.Background(), d.targetDir, 0)
	require.NoError(t, err)
	defer func() { _ = lock.Release() }()

	var req bridge.Request
	code := runPrivileged(pflag.NewFlagSet("test", pflag.ContinueOnError), inProcessBridge(t, &req))

	assert.Equal(t, status.ServiceUnavailable, code)
	assert.Equal(t, "v1", d.exe(t))
}

func TestRunClientBadConfig(t *testing.T) {
	defer restoreGlobals()()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "autoupdater.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"SourceZip": "relative.zip"`), 0o600))

	token, err := gate.NewToken()
	require.NoError(t, err)
	auth, err := gate.CreateAuth(token)
	require.NoError(t, err)
	defer func() { _ = auth.Close() }()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	assert.Equal(t, status.ConfigError, runClient(context.Background(), flags, token))

	configPath = filepath.Join(dir, "missing.json")
	assert.Equal(t, status.NotFound, runClient(context.Background(), flags, token))
}

func TestProgramRunsOnSchedule(t *testing.T) {
	defer restoreGlobals()()
	isElevated = func() bool { return true }
	executable = func() (string, error) { return "/opt/autoupdater/autoupdater", nil }
	configPath = filepath.Join(t.TempDir(), "autoupdater.json")

	runs := make(chan struct{}, 16)
	l := launcherFunc(func(bridge.Request) supervisor.Result {
		runs <- struct{}{}
		return supervisor.Result{Outcome: supervisor.Completed}
	})

	prg := newProgram(context.Background(), pflag.NewFlagSet("test", pflag.ContinueOnError), l, 10*time.Millisecond)
	require.NoError(t, prg.Start(nil))

	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(5 * time.Second):
			t.Fatalf("run %d did not happen", i+1)
		}
	}

	require.NoError(t, prg.Stop(nil))
	select {
	case <-prg.done:
	default:
		t.Fatal("loop still running after Stop")
	}
}
