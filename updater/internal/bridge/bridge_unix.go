//go:build !windows

package bridge

import (
	"fmt"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/autoupdater/updater/internal/supervisor"
)

// ExecBridge runs the request as a plain child process. There is no session
// boundary to cross outside Windows.
type ExecBridge struct{}

func New() *ExecBridge {
	return &ExecBridge{}
}

func (b *ExecBridge) Launch(req Request) supervisor.Result {
	cmd := exec.Command(req.Path, req.Args...)
	cmd.Dir = req.WorkingDir
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return supervisor.Fail(fmt.Errorf("start %s: %w", req.Path, err))
	}
	log.Infof("started %s with pid %d", req.CommandLine(), cmd.Process.Pid)

	proc := supervisor.FromCmd(cmd)
	procGuard := newGuard("process", proc.Close)
	defer procGuard.Release()

	res := supervisor.Supervise(proc, req.Timeout)
	log.Infof("child process %s with exit code %d", res.Outcome, res.ExitCode)
	return res
}
