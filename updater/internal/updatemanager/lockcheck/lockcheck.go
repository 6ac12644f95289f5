// Package lockcheck detects target executables that are in use.
package lockcheck

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/autoupdater/updater/internal/watchdog"
	"github.com/netbirdio/autoupdater/updater/status"
)

// Holder is a running process whose image is one of the checked paths.
type Holder struct {
	PID  int32
	Name string
	Exe  string
}

// Locked returns the paths that are in use. Missing files are not locked.
// When anything is locked the processes running those images are logged.
func Locked(ctx context.Context, paths []string) ([]string, error) {
	var locked []string
	for _, p := range paths {
		if err := watchdog.Check(ctx, "check executable locks"); err != nil {
			return nil, err
		}
		if isLocked(ctx, p) {
			locked = append(locked, p)
		}
	}

	if len(locked) > 0 {
		logHolders(ctx, locked)
	}
	return locked, nil
}

// Check fails with KindLocked when any path is in use.
func Check(ctx context.Context, paths []string) error {
	locked, err := Locked(ctx, paths)
	if err != nil {
		return err
	}
	if len(locked) > 0 {
		return status.Errorf(status.KindLocked, "executables in use: %s", strings.Join(locked, ", "))
	}
	return nil
}

// Holders lists the running processes whose executable is one of paths.
func Holders(ctx context.Context, paths []string) ([]Holder, error) {
	want := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		want[normalize(p)] = struct{}{}
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var holders []Holder
	for _, proc := range procs {
		exe, err := proc.ExeWithContext(ctx)
		if err != nil || exe == "" {
			continue
		}
		if _, ok := want[normalize(exe)]; !ok {
			continue
		}
		name, _ := proc.NameWithContext(ctx)
		holders = append(holders, Holder{PID: proc.Pid, Name: name, Exe: exe})
	}
	return holders, nil
}

func logHolders(ctx context.Context, paths []string) {
	holders, err := Holders(ctx, paths)
	if err != nil {
		log.Debugf("failed to list processes: %v", err)
		return
	}
	for _, h := range holders {
		log.Warnf("%s is running as pid %d (%s)", h.Exe, h.PID, h.Name)
	}
}

func normalize(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if runtime.GOOS == "windows" {
		return strings.ToLower(p)
	}
	return p
}
