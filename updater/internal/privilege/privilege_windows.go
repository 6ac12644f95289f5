package privilege

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

// IsElevatedOrSystem reports whether the process runs as LocalSystem or with
// an elevated token that belongs to the Administrators group.
func IsElevatedOrSystem() bool {
	token := windows.GetCurrentProcessToken()

	if user, err := token.GetTokenUser(); err == nil && user.User.Sid.IsWellKnown(windows.WinLocalSystemSid) {
		return true
	}

	if !token.IsElevated() {
		return false
	}

	adminSID, err := windows.CreateWellKnownSid(windows.WinBuiltinAdministratorsSid)
	if err != nil {
		log.Debugf("failed to create administrators sid: %v", err)
		return false
	}
	member, err := token.IsMember(adminSID)
	if err != nil {
		log.Debugf("failed to check administrators membership: %v", err)
		return false
	}
	return member
}

// CurrentUser returns DOMAIN\user of the process token.
func CurrentUser() string {
	return TokenUser(windows.GetCurrentProcessToken())
}

// TokenUser resolves the account name of token's user, or "unknown".
func TokenUser(token windows.Token) string {
	user, err := token.GetTokenUser()
	if err != nil {
		return "unknown"
	}
	account, domain, _, err := user.User.Sid.LookupAccount("")
	if err != nil {
		return user.User.Sid.String()
	}
	return domain + `\` + account
}

// Enable turns on the named privileges on the process token, stopping at
// the first one that cannot be enabled.
func Enable(names ...string) error {
	var token windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token); err != nil {
		return fmt.Errorf("open process token: %w", err)
	}
	defer func() {
		if err := token.Close(); err != nil {
			log.Warnf("failed to close process token: %v", err)
		}
	}()

	for _, name := range names {
		if err := enable(token, name); err != nil {
			return err
		}
		log.Debugf("privilege %s enabled", name)
	}
	return nil
}

func enable(token windows.Token, name string) error {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return fmt.Errorf("convert privilege name %s: %w", name, err)
	}

	privileges := windows.Tokenprivileges{
		PrivilegeCount: 1,
		Privileges: [1]windows.LUIDAndAttributes{
			{Attributes: windows.SE_PRIVILEGE_ENABLED},
		},
	}
	if err := windows.LookupPrivilegeValue(nil, namePtr, &privileges.Privileges[0].Luid); err != nil {
		return fmt.Errorf("lookup privilege %s: %w", name, err)
	}

	// the last error is per thread and reports privileges the token lacks
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := windows.AdjustTokenPrivileges(token, false, &privileges, uint32(unsafe.Sizeof(privileges)), nil, nil); err != nil {
		return fmt.Errorf("adjust token privileges %s: %w", name, err)
	}
	if err := windows.GetLastError(); errors.Is(err, windows.ERROR_NOT_ALL_ASSIGNED) {
		return fmt.Errorf("privilege %s not held by the process token: %w", name, err)
	}
	return nil
}
