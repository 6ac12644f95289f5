package session

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// wtsCurrentServer is WTS_CURRENT_SERVER_HANDLE.
const wtsCurrentServer windows.Handle = 0

type wtsLister struct{}

// NewLister returns a Lister backed by the Terminal Services API.
func NewLister() Lister {
	return wtsLister{}
}

func (wtsLister) Sessions() ([]Session, error) {
	var (
		info  *windows.WTS_SESSION_INFO
		count uint32
	)
	if err := windows.WTSEnumerateSessions(wtsCurrentServer, 0, 1, &info, &count); err != nil {
		return nil, fmt.Errorf("enumerate sessions: %w", err)
	}
	defer windows.WTSFreeMemory(uintptr(unsafe.Pointer(info)))

	entries := unsafe.Slice(info, count)
	sessions := make([]Session, 0, count)
	for _, e := range entries {
		sessions = append(sessions, Session{ID: e.SessionID, State: fromWTS(e.State)})
	}
	return sessions, nil
}

func (wtsLister) ConsoleID() uint32 {
	return windows.WTSGetActiveConsoleSessionId()
}

func fromWTS(state uint32) State {
	switch state {
	case windows.WTSActive:
		return StateActive
	case windows.WTSConnected:
		return StateConnected
	case windows.WTSDisconnected:
		return StateDisconnected
	default:
		return StateOther
	}
}
