package cmd

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/netbirdio/autoupdater/updater/internal/bridge"
	"github.com/netbirdio/autoupdater/updater/internal/config"
	"github.com/netbirdio/autoupdater/updater/internal/gate"
	"github.com/netbirdio/autoupdater/updater/internal/privilege"
	"github.com/netbirdio/autoupdater/updater/internal/supervisor"
	"github.com/netbirdio/autoupdater/updater/status"
)

var (
	isElevated = privilege.IsElevatedOrSystem
	executable = os.Executable
)

// runPrivileged starts the session side through l and reports its outcome.
// The auth object lives exactly as long as the launch.
func runPrivileged(flags *pflag.FlagSet, l bridge.Launcher) status.Code {
	if !isElevated() {
		log.Errorf("%s is not elevated: run as an administrator or LocalSystem", privilege.CurrentUser())
		return status.AccessDenied
	}

	timeout := bridgeTimeout
	cfg, path, err := loadConfig()
	switch {
	case err == nil:
		applyLogLevel(flags, cfg)
		if timeout <= 0 {
			timeout = cfg.BridgeTimeout()
		}
	case config.IsNotFound(err):
		log.Warnf("config %s not found, the session side will report it", path)
	default:
		log.Warnf("failed loading config %s, using defaults: %v", path, err)
	}
	if timeout <= 0 {
		timeout = config.DefaultBridgeTimeout
	}

	exe, err := executable()
	if err != nil {
		log.Errorf("failed locating own executable: %v", err)
		return status.RuntimeError
	}

	token, err := gate.NewToken()
	if err != nil {
		log.Errorf("failed generating token: %v", err)
		return status.RuntimeError
	}
	auth, err := gate.CreateAuth(token)
	if err != nil {
		log.Errorf("failed creating auth object: %v", err)
		return status.CodeOf(err)
	}
	defer func() {
		if err := auth.Close(); err != nil {
			log.Warnf("failed closing auth object: %v", err)
		}
	}()

	req := bridge.Request{
		Path:       exe,
		Args:       clientArgs(flags, token),
		WorkingDir: filepath.Dir(exe),
		Timeout:    timeout,
	}
	log.Infof("launching session side as %s, timeout %s", privilege.CurrentUser(), timeout)
	return resultCode(l.Launch(req))
}

// clientArgs forwards the settings the session side cannot discover on its
// own.
func clientArgs(flags *pflag.FlagSet, token string) []string {
	args := []string{"--" + clientFlag, token}
	if configPath != "" {
		args = append(args, "--"+configFlag, configPath)
	}
	if flags.Changed(logLevelFlag) {
		args = append(args, "--"+logLevelFlag, logLevel)
	}
	if flags.Changed(logFileFlag) {
		args = append(args, "--"+logFileFlag, logFile)
	}
	return args
}

// resultCode maps a launch result onto the exit-code contract.
func resultCode(res supervisor.Result) status.Code {
	switch res.Outcome {
	case supervisor.Completed:
		code := status.Code(res.ExitCode)
		if code == status.Success {
			log.Info("update run completed")
		} else {
			log.Warnf("update run exited with %d (%s)", res.ExitCode, code)
		}
		return code
	case supervisor.TimedOut:
		log.Errorf("update run timed out")
		return status.Timeout
	default:
		log.Errorf("update run failed: %v", res.Err)
		if res.Err == nil {
			return status.RuntimeError
		}
		return status.CodeOf(res.Err)
	}
}
