//go:build unix

package gate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/netbirdio/autoupdater/updater/status"
)

const dialTimeout = 2 * time.Second

// runtimeDir holds the sockets and lock files standing in for named kernel
// objects.
var runtimeDir = os.TempDir()

func authSocket(token string) string {
	return filepath.Join(runtimeDir, localName(AuthName(token))+".sock")
}

// Auth is the privileged side's proof object for a token: a listening unix
// socket only the owner may connect to.
type Auth struct {
	listener net.Listener
	done     chan struct{}
}

// CreateAuth listens on the socket derived from token.
func CreateAuth(token string) (*Auth, error) {
	path := authSocket(token)
	if _, err := os.Lstat(path); err == nil {
		return nil, fmt.Errorf("auth object %s already exists", path)
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("create auth object: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("restrict auth object: %w", err)
	}

	a := &Auth{listener: l, done: make(chan struct{})}
	go a.serve()
	log.Debugf("auth object %s created", path)
	return a, nil
}

func (a *Auth) serve() {
	defer close(a.done)
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			return
		}
		_ = conn.Close()
	}
}

// Close stops listening and removes the socket.
func (a *Auth) Close() error {
	err := a.listener.Close()
	<-a.done
	return err
}

// ValidateAuth connects to, never creates, the socket derived from token.
func ValidateAuth(token string) error {
	if err := ParseToken(token); err != nil {
		return status.New(status.KindAccessDenied, "validate token", err)
	}
	conn, err := net.DialTimeout("unix", authSocket(token), dialTimeout)
	if err != nil {
		return status.New(status.KindAccessDenied, "validate token", fmt.Errorf("%w: %v", ErrUnknownToken, err))
	}
	if err := conn.Close(); err != nil {
		log.Warnf("failed to close auth connection: %v", err)
	}
	return nil
}

// Lock is a held flock on the target's lock file.
type Lock struct {
	name string
	file *os.File
}

// Acquire takes the target lock of dir, waiting up to wait.
func Acquire(ctx context.Context, dir string, wait time.Duration) (*Lock, error) {
	name := TargetName(dir)
	path := filepath.Join(runtimeDir, localName(name)+".lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		kind := status.KindUnexpected
		if errors.Is(err, os.ErrPermission) {
			kind = status.KindAccessDenied
		}
		return nil, status.New(kind, "open target lock", err)
	}

	err = acquireWithin(ctx, name, wait, func() (bool, error) {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, unix.EWOULDBLOCK):
			return false, nil
		default:
			return false, err
		}
	})
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			log.Warnf("failed to close target lock: %v", cerr)
		}
		return nil, err
	}

	log.Debugf("target lock %s acquired", path)
	return &Lock{name: name, file: f}, nil
}

func (l *Lock) Release() error {
	log.Debugf("target lock %s released", l.name)
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if err := l.file.Close(); err != nil && unlockErr == nil {
		return err
	}
	return unlockErr
}
