// Package bridge runs a command inside the interactive user's session and
// blocks until it finishes or its time bound runs out.
package bridge

import (
	"time"

	"github.com/netbirdio/autoupdater/updater/internal/supervisor"
)

// Desktop is the interactive window station and desktop of a session.
const Desktop = `winsta0\default`

// Request describes one launch. A zero Timeout waits forever.
type Request struct {
	Path       string
	Args       []string
	WorkingDir string
	Timeout    time.Duration
}

// Launcher starts a Request and reports its Result exactly once.
type Launcher interface {
	Launch(req Request) supervisor.Result
}
