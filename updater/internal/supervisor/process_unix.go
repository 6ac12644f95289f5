//go:build !windows

package supervisor

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

type cmdProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
	err  error

	mu         sync.Mutex
	terminated bool
	code       uint32
}

// FromCmd wraps a started command.
func FromCmd(cmd *exec.Cmd) Process {
	return &cmdProcess{cmd: cmd, done: make(chan struct{})}
}

func (p *cmdProcess) start() {
	p.once.Do(func() {
		go func() {
			p.err = p.cmd.Wait()
			close(p.done)
		}()
	})
}

func (p *cmdProcess) Wait(timeout time.Duration) (bool, error) {
	p.start()
	if timeout <= 0 {
		<-p.done
		return true, p.waitErr()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return true, p.waitErr()
	case <-timer.C:
		return false, nil
	}
}

// waitErr drops the error exec reports for a non-zero exit status.
func (p *cmdProcess) waitErr() error {
	var exitErr *exec.ExitError
	if p.err == nil || errors.As(p.err, &exitErr) {
		return nil
	}
	return p.err
}

func (p *cmdProcess) ExitCode() (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminated {
		return p.code, nil
	}
	state := p.cmd.ProcessState
	if state == nil {
		return StillActive, nil
	}
	// a process ended by a signal has no exit code
	if !state.Exited() {
		return 0, fmt.Errorf("process did not exit normally: %s", state)
	}
	return uint32(state.ExitCode()), nil
}

// Terminate kills the process. Signals cannot carry an exit code, so code is
// remembered and reported by ExitCode.
func (p *cmdProcess) Terminate(code uint32) error {
	p.mu.Lock()
	p.terminated = true
	p.code = code
	p.mu.Unlock()
	return p.cmd.Process.Kill()
}

func (p *cmdProcess) Close() error {
	return nil
}
