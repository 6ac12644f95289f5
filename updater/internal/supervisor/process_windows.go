package supervisor

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

const waitTimeout uint32 = 0x00000102

type handleProcess struct {
	handle windows.Handle
}

// FromHandle wraps a process handle. The Process owns the handle.
func FromHandle(h windows.Handle) Process {
	return &handleProcess{handle: h}
}

func (p *handleProcess) Wait(timeout time.Duration) (bool, error) {
	ms := uint32(windows.INFINITE)
	if timeout > 0 {
		ms = uint32(min(timeout.Milliseconds(), int64(windows.INFINITE-1)))
	}

	event, err := windows.WaitForSingleObject(p.handle, ms)
	switch event {
	case windows.WAIT_OBJECT_0:
		return true, nil
	case waitTimeout:
		return false, nil
	default:
		if err == nil {
			err = fmt.Errorf("unexpected wait result %#x", event)
		}
		return false, err
	}
}

func (p *handleProcess) ExitCode() (uint32, error) {
	var code uint32
	if err := windows.GetExitCodeProcess(p.handle, &code); err != nil {
		return 0, err
	}
	return code, nil
}

func (p *handleProcess) Terminate(code uint32) error {
	return windows.TerminateProcess(p.handle, code)
}

func (p *handleProcess) Close() error {
	return windows.CloseHandle(p.handle)
}
