package bridge

import (
	"fmt"
	"unsafe"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"

	"github.com/netbirdio/autoupdater/updater/internal/privilege"
	"github.com/netbirdio/autoupdater/updater/internal/session"
	"github.com/netbirdio/autoupdater/updater/internal/supervisor"
	"github.com/netbirdio/autoupdater/updater/status"
)

// TokenBridge launches processes with the primary token of a logged-in
// user, on that user's interactive desktop.
type TokenBridge struct {
	lister session.Lister
}

func New() *TokenBridge {
	return &TokenBridge{lister: session.NewLister()}
}

func (b *TokenBridge) Launch(req Request) supervisor.Result {
	if err := privilege.Enable(privilege.BridgePrivileges...); err != nil {
		return supervisor.Fail(status.New(status.KindAccessDenied, "enable privileges", err))
	}

	ids, err := session.Resolve(b.lister)
	if err != nil {
		return supervisor.Fail(status.New(status.KindNotFound, "resolve session", err))
	}
	log.Debugf("candidate sessions: %v", ids)

	userToken, sessionID, err := queryUserToken(ids)
	if err != nil {
		return supervisor.Fail(status.New(status.KindNotFound, "query user token", err))
	}
	userGuard := newGuard("user token", userToken.Close)
	defer userGuard.Release()

	logger := log.WithField("session", sessionID)
	logger.Infof("bridging into session %d as %s", sessionID, privilege.TokenUser(userToken))

	var primaryToken windows.Token
	err = windows.DuplicateTokenEx(
		userToken,
		windows.MAXIMUM_ALLOWED,
		nil,
		windows.SecurityImpersonation,
		windows.TokenPrimary,
		&primaryToken,
	)
	if err != nil {
		return supervisor.Fail(status.New(status.KindAccessDenied, "duplicate token", err))
	}
	primaryGuard := newGuard("primary token", primaryToken.Close)
	defer primaryGuard.Release()

	var env *uint16
	if err := windows.CreateEnvironmentBlock(&env, primaryToken, false); err != nil {
		return supervisor.Fail(fmt.Errorf("create environment block: %w", err))
	}
	envGuard := newGuard("environment block", func() error {
		return windows.DestroyEnvironmentBlock(env)
	})
	defer envGuard.Release()

	proc, err := createProcess(primaryToken, env, req)
	if err != nil {
		return supervisor.Fail(fmt.Errorf("create process in session %d: %w", sessionID, err))
	}
	procGuard := newGuard("process handle", proc.Close)
	defer procGuard.Release()

	res := supervisor.Supervise(proc, req.Timeout)
	logger.Infof("session process %s with exit code %d", res.Outcome, res.ExitCode)
	return res
}

// queryUserToken tries the sessions in order and returns the first token.
func queryUserToken(ids []uint32) (windows.Token, uint32, error) {
	var merr *multierror.Error
	for _, id := range ids {
		var token windows.Token
		if err := windows.WTSQueryUserToken(id, &token); err != nil {
			log.Warnf("failed to query user token of session %d: %v", id, err)
			merr = multierror.Append(merr, fmt.Errorf("session %d: %w", id, err))
			continue
		}
		return token, id, nil
	}
	return 0, 0, fmt.Errorf("no session yielded a user token: %w", merr.ErrorOrNil())
}

func createProcess(token windows.Token, env *uint16, req Request) (supervisor.Process, error) {
	cmdLine, err := windows.UTF16PtrFromString(req.CommandLine())
	if err != nil {
		return nil, fmt.Errorf("convert command line: %w", err)
	}

	var workingDir *uint16
	if req.WorkingDir != "" {
		if workingDir, err = windows.UTF16PtrFromString(req.WorkingDir); err != nil {
			return nil, fmt.Errorf("convert working dir: %w", err)
		}
	}

	var si windows.StartupInfo
	si.Cb = uint32(unsafe.Sizeof(si))
	si.Desktop = windows.StringToUTF16Ptr(Desktop)

	var pi windows.ProcessInformation
	err = windows.CreateProcessAsUser(
		token,
		nil,
		cmdLine,
		nil,
		nil,
		false,
		windows.CREATE_UNICODE_ENVIRONMENT,
		env,
		workingDir,
		&si,
		&pi,
	)
	if err != nil {
		return nil, fmt.Errorf("CreateProcessAsUser failed: %w", err)
	}

	if err := windows.CloseHandle(pi.Thread); err != nil {
		log.Warnf("failed to close thread handle: %v", err)
	}
	return supervisor.FromHandle(pi.Process), nil
}
