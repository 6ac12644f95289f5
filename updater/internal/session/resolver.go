// Package session discovers the OS sessions a privileged process may bridge
// into and orders them by preference.
package session

import (
	"errors"
	"sort"
)

// NoConsole is reported by the OS when no session is attached to the
// physical console.
const NoConsole uint32 = 0xFFFFFFFF

// ErrNoSession is returned when no candidate session exists.
var ErrNoSession = errors.New("no interactive user session found")

type State int

const (
	StateActive State = iota
	StateConnected
	StateDisconnected
	StateOther
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "other"
	}
}

type Session struct {
	ID    uint32
	State State
}

// Lister enumerates sessions and reports the console session id.
type Lister interface {
	Sessions() ([]Session, error)
	ConsoleID() uint32
}

// Order returns the candidate session ids in bridging order. Session 0 and
// sessions in any state other than active, connected or disconnected are
// dropped, duplicates keep their first occurrence. Remaining sessions are
// ordered active, connected, disconnected; the console session, when it is a
// candidate, always comes first.
func Order(sessions []Session, console uint32) []uint32 {
	seen := make(map[uint32]struct{}, len(sessions))
	candidates := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.ID == 0 || s.State == StateOther {
			continue
		}
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		candidates = append(candidates, s)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].State < candidates[j].State
	})

	ids := make([]uint32, 0, len(candidates))
	if _, ok := seen[console]; ok && console != NoConsole && console != 0 {
		ids = append(ids, console)
	}
	for _, s := range candidates {
		if len(ids) > 0 && s.ID == ids[0] {
			continue
		}
		ids = append(ids, s.ID)
	}
	return ids
}

// Resolve lists the sessions and orders them. An empty result is an error.
func Resolve(l Lister) ([]uint32, error) {
	sessions, err := l.Sessions()
	if err != nil {
		return nil, err
	}
	ids := Order(sessions, l.ConsoleID())
	if len(ids) == 0 {
		return nil, ErrNoSession
	}
	return ids, nil
}
