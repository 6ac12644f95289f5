//go:build !windows

package swap

import "errors"

func deleteOnReboot(string) error {
	return errors.New("deletion at reboot is not supported on this platform")
}
