// Package gate holds the named objects that authenticate the session side
// and serialize updates of one target directory.
package gate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"

	"github.com/netbirdio/autoupdater/updater/internal/watchdog"
	"github.com/netbirdio/autoupdater/updater/status"
)

const (
	namespace    = `Global\`
	authPrefix   = "AutoUpdater.Token."
	targetPrefix = "AutoUpdater.Target."

	tokenSize  = 32
	digestSize = 16

	// MaxWait caps how long Acquire waits for a held target.
	MaxWait = 60 * time.Second
)

var (
	// ErrBusy means another run holds the target.
	ErrBusy = errors.New("another update of this target is in progress")
	// ErrUnknownToken means no privileged process holds the token's object.
	ErrUnknownToken = errors.New("token is not known to any privileged process")
)

type domainKey [32]byte

var (
	authDomainKey = domainKey{
		'a', 'u', 't', 'o', 'u', 'p', 'd', 'a', 't', 'e', 'r', '.',
		'g', 'a', 't', 'e', '.', 'a', 'u', 't', 'h', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	targetDomainKey = domainKey{
		'a', 'u', 't', 'o', 'u', 'p', 'd', 'a', 't', 'e', 'r', '.',
		'g', 'a', 't', 'e', '.', 't', 'a', 'r', 'g', 'e', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// NewToken returns a fresh one-time token: 256 random bits, URL-safe
// base64 without padding.
func NewToken() (string, error) {
	buf := make([]byte, tokenSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ParseToken checks that s is a well formed token.
func ParseToken(s string) error {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if len(raw) != tokenSize {
		return fmt.Errorf("token has %d bytes, want %d", len(raw), tokenSize)
	}
	return nil
}

// AuthName is the kernel object name that proves token.
func AuthName(token string) string {
	return namespace + authPrefix + digest(authDomainKey, token)
}

// TargetName is the mutex name serializing updates of dir. Paths that
// canonicalize to the same directory share a name.
func TargetName(dir string) string {
	return namespace + targetPrefix + digest(targetDomainKey, Canonical(dir))
}

// Canonical returns the absolute, cleaned form of dir with symlinks resolved
// where possible. It is lower-cased on Windows, where paths ignore case.
func Canonical(dir string) string {
	p, err := filepath.Abs(dir)
	if err != nil {
		p = filepath.Clean(dir)
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	p = strings.TrimRight(p, `\/`)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}

func digest(key domainKey, value string) string {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("gate: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(value))
	return hex.EncodeToString(hasher.Sum(nil)[:digestSize])
}

// localName drops the namespace for objects that live in the filesystem.
func localName(name string) string {
	return strings.TrimPrefix(name, namespace)
}

// acquireWithin calls try until it reports the gate taken, wait runs out or
// ctx is done. A non-positive wait tries once.
func acquireWithin(ctx context.Context, name string, wait time.Duration, try func() (bool, error)) error {
	if wait > MaxWait {
		wait = MaxWait
	}

	errHeld := errors.New("held")
	op := func() error {
		ok, err := try()
		switch {
		case err != nil:
			return backoff.Permanent(err)
		case !ok:
			return errHeld
		default:
			return nil
		}
	}

	if wait <= 0 {
		if err := op(); err != nil {
			return gateError(name, err, errHeld)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = wait
	b.RandomizationFactor = 0

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(error, time.Duration) {
		log.Debugf("target %s is held, waiting", name)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return watchdog.FromContext(ctx, "wait for target")
	}
	return gateError(name, err, errHeld)
}

func gateError(name string, err, errHeld error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if errors.Is(err, errHeld) {
		return status.New(status.KindBusy, "acquire "+name, ErrBusy)
	}
	return status.New(status.KindUnexpected, "acquire "+name, err)
}
