//go:build unix

package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/netbirdio/autoupdater/updater/internal/supervisor"
)

func TestExecBridgeExitCode(t *testing.T) {
	res := New().Launch(Request{
		Path:    "/bin/sh",
		Args:    []string{"-c", "exit 22"},
		Timeout: 10 * time.Second,
	})

	assert.Equal(t, supervisor.Completed, res.Outcome)
	assert.Equal(t, uint32(22), res.ExitCode)
}

func TestExecBridgeChildKilled(t *testing.T) {
	res := New().Launch(Request{
		Path:    "/bin/sh",
		Args:    []string{"-c", "kill -9 $$"},
		Timeout: 10 * time.Second,
	})

	assert.Equal(t, supervisor.Failed, res.Outcome)
	assert.Error(t, res.Err)
}

func TestExecBridgeMissingBinary(t *testing.T) {
	res := New().Launch(Request{Path: "/nonexistent/autoupdater"})

	assert.Equal(t, supervisor.Failed, res.Outcome)
	assert.Error(t, res.Err)
}

func TestCommandLineQuoting(t *testing.T) {
	req := Request{Path: "/opt/auto updater/bin", Args: []string{"--client", "abc"}}
	assert.Equal(t, `"/opt/auto updater/bin" --client abc`, req.CommandLine())
}
