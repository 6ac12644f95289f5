//go:build !windows

package lockcheck

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// isLocked opens path for writing, which the kernel refuses for a running
// image, and falls back to looking for a process with that image. Any
// other failure counts as locked.
func isLocked(ctx context.Context, path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false
		}
		if !errors.Is(err, syscall.ETXTBSY) {
			log.Debugf("%s counts as locked: %v", path, err)
		}
		return true
	}
	if err := f.Close(); err != nil {
		log.Warnf("failed to close %s: %v", path, err)
	}

	holders, err := Holders(ctx, []string{path})
	if err != nil {
		log.Debugf("failed to list processes: %v", err)
		return false
	}
	return len(holders) > 0
}
