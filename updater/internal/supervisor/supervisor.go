// Package supervisor waits for a launched process under a time bound and
// turns its fate into a Result.
package supervisor

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// TimeoutExitCode is assigned to a process terminated for running too long.
	TimeoutExitCode uint32 = 6
	// TerminateWait bounds the wait for a terminated process to go away.
	TerminateWait = 30 * time.Second
	// StillActive is the exit code Windows reports for a running process.
	StillActive uint32 = 259
)

type Outcome int

const (
	Completed Outcome = iota
	TimedOut
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed out"
	default:
		return "failed"
	}
}

// Result is the single report of one supervised launch. Err is set only for
// Failed.
type Result struct {
	ExitCode uint32
	Outcome  Outcome
	Err      error
}

// Fail builds a Failed result.
func Fail(err error) Result {
	return Result{Outcome: Failed, Err: err}
}

// Process is a launched child. Wait with a non-positive timeout waits
// forever.
type Process interface {
	Wait(timeout time.Duration) (exited bool, err error)
	ExitCode() (uint32, error)
	Terminate(code uint32) error
	Close() error
}

// Supervise waits for p to exit within timeout. On timeout p is terminated
// with TimeoutExitCode. Supervise does not close p.
func Supervise(p Process, timeout time.Duration) Result {
	exited, err := p.Wait(timeout)
	if err != nil {
		return Fail(fmt.Errorf("wait for process: %w", err))
	}

	if !exited {
		log.Warnf("process still running after %s, terminating it", timeout)
		if err := p.Terminate(TimeoutExitCode); err != nil {
			log.Warnf("failed to terminate process: %v", err)
		}
		if gone, err := p.Wait(TerminateWait); err != nil || !gone {
			log.Warnf("process did not exit after termination: %v", err)
		}
		return Result{ExitCode: TimeoutExitCode, Outcome: TimedOut}
	}

	code, err := p.ExitCode()
	if err != nil {
		return Fail(fmt.Errorf("read exit code: %w", err))
	}
	if code == StillActive {
		log.Debugf("exit code %d reported after a completed wait, treating as 0", StillActive)
		code = 0
	}
	return Result{ExitCode: code, Outcome: Completed}
}
