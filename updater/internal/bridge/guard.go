package bridge

import (
	log "github.com/sirupsen/logrus"
)

// guard owns one OS resource and releases it once. Guards are deferred right
// after acquisition so resources go away in reverse order.
type guard struct {
	name    string
	release func() error
	done    bool
}

func newGuard(name string, release func() error) *guard {
	return &guard{name: name, release: release}
}

// Release frees the resource. Errors are logged, never returned.
func (g *guard) Release() {
	if g == nil || g.done {
		return
	}
	g.done = true
	if err := g.release(); err != nil {
		log.Warnf("failed to release %s: %v", g.name, err)
	}
}
