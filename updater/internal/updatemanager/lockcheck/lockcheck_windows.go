package lockcheck

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// isLocked opens path for read and write with no sharing. Anything but
// success or absence counts as locked.
func isLocked(_ context.Context, path string) bool {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return true
	}

	h, err := windows.CreateFile(
		name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) || errors.Is(err, windows.ERROR_PATH_NOT_FOUND) {
			return false
		}
		log.Debugf("%s is locked: %v", path, err)
		return true
	}

	if err := windows.CloseHandle(h); err != nil {
		log.Warnf("failed to close %s: %v", path, err)
	}
	return false
}
