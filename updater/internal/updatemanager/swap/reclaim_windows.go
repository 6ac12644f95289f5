package swap

import (
	"io/fs"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// deleteOnReboot registers path and everything below it with the session
// manager. Files go first and directories deepest first, since only empty
// directories can be removed at boot.
func deleteOnReboot(path string) error {
	var files, dirs []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		} else {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		files = append(files, dirs[i])
	}
	for _, p := range files {
		name, err := windows.UTF16PtrFromString(p)
		if err != nil {
			return err
		}
		if err := windows.MoveFileEx(name, nil, windows.MOVEFILE_DELAY_UNTIL_REBOOT); err != nil {
			return err
		}
	}
	return nil
}
