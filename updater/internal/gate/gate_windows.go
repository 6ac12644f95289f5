package gate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"

	"github.com/netbirdio/autoupdater/updater/status"
)

const waitTimeout uint32 = 0x00000102

// securityAttributes grants LocalSystem, the calling user and interactive
// users full control of the object, nobody else.
func securityAttributes() (*windows.SecurityAttributes, error) {
	user, err := windows.GetCurrentProcessToken().GetTokenUser()
	if err != nil {
		return nil, fmt.Errorf("get token user: %w", err)
	}
	sddl := fmt.Sprintf("D:P(A;;GA;;;SY)(A;;GA;;;%s)(A;;GA;;;IU)", user.User.Sid.String())
	sd, err := windows.SecurityDescriptorFromString(sddl)
	if err != nil {
		return nil, fmt.Errorf("parse security descriptor: %w", err)
	}
	sa := &windows.SecurityAttributes{SecurityDescriptor: sd}
	sa.Length = uint32(unsafe.Sizeof(*sa))
	return sa, nil
}

// Auth is the privileged side's proof object for a token.
type Auth struct {
	handle windows.Handle
}

// CreateAuth creates the named object for token. It must not exist yet.
func CreateAuth(token string) (*Auth, error) {
	name := AuthName(token)
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("convert name: %w", err)
	}
	sa, err := securityAttributes()
	if err != nil {
		return nil, err
	}

	h, err := windows.CreateMutex(sa, false, namePtr)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("auth object %s already exists", name)
	}
	if err != nil {
		return nil, fmt.Errorf("create auth object: %w", err)
	}
	log.Debugf("auth object %s created", name)
	return &Auth{handle: h}, nil
}

func (a *Auth) Close() error {
	return windows.CloseHandle(a.handle)
}

// ValidateAuth opens, never creates, the object for token.
func ValidateAuth(token string) error {
	if err := ParseToken(token); err != nil {
		return status.New(status.KindAccessDenied, "validate token", err)
	}
	namePtr, err := windows.UTF16PtrFromString(AuthName(token))
	if err != nil {
		return status.New(status.KindAccessDenied, "validate token", err)
	}
	h, err := windows.OpenMutex(windows.SYNCHRONIZE, false, namePtr)
	if err != nil {
		return status.New(status.KindAccessDenied, "validate token", fmt.Errorf("%w: %v", ErrUnknownToken, err))
	}
	if err := windows.CloseHandle(h); err != nil {
		log.Warnf("failed to close auth object handle: %v", err)
	}
	return nil
}

// Lock is a held target mutex. Mutex ownership is per thread, so the
// acquiring goroutine stays on its thread until Release.
type Lock struct {
	name   string
	handle windows.Handle
}

// Acquire takes the target mutex of dir, waiting up to wait.
func Acquire(ctx context.Context, dir string, wait time.Duration) (*Lock, error) {
	name := TargetName(dir)
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, status.New(status.KindInvalidArgument, "convert name", err)
	}
	sa, err := securityAttributes()
	if err != nil {
		return nil, status.New(status.KindAccessDenied, "build target acl", err)
	}

	h, err := windows.CreateMutex(sa, false, namePtr)
	if err != nil && !errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		kind := status.KindUnexpected
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			kind = status.KindAccessDenied
		}
		return nil, status.New(kind, "open target mutex", err)
	}

	runtime.LockOSThread()
	err = acquireWithin(ctx, name, wait, func() (bool, error) {
		event, err := windows.WaitForSingleObject(h, 0)
		switch event {
		case windows.WAIT_OBJECT_0:
			return true, nil
		case windows.WAIT_ABANDONED:
			log.Warnf("target mutex %s was abandoned by a previous run, taking it over", name)
			return true, nil
		case waitTimeout:
			return false, nil
		default:
			return false, err
		}
	})
	if err != nil {
		runtime.UnlockOSThread()
		if cerr := windows.CloseHandle(h); cerr != nil {
			log.Warnf("failed to close target mutex: %v", cerr)
		}
		return nil, err
	}

	log.Debugf("target mutex %s acquired", name)
	return &Lock{name: name, handle: h}, nil
}

func (l *Lock) Release() error {
	defer runtime.UnlockOSThread()
	log.Debugf("target mutex %s released", l.name)
	releaseErr := windows.ReleaseMutex(l.handle)
	if err := windows.CloseHandle(l.handle); err != nil && releaseErr == nil {
		return err
	}
	return releaseErr
}
