package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/netbirdio/autoupdater/updater/internal/bridge"
	"github.com/netbirdio/autoupdater/updater/internal/config"
	"github.com/netbirdio/autoupdater/updater/status"
	"github.com/netbirdio/autoupdater/util"
)

const (
	envPrefix = "AU_"

	clientFlag   = "client"
	configFlag   = "config"
	logLevelFlag = "log-level"
	logFileFlag  = "log-file"
	timeoutFlag  = "timeout"

	longDescription = `Run elevated, autoupdater starts itself inside the interactive user's session
and waits for the result. Run with --client, it performs the update in that session.`
)

var (
	clientToken   string
	configPath    string
	logLevel      string
	logFile       string
	bridgeTimeout time.Duration

	rootCmd = &cobra.Command{
		Use:           "autoupdater",
		Short:         "Replaces an application directory from a newer zip archive",
		Long:          longDescription,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// exitError carries an exit code out of a command. A nil err means the
// failure was already logged.
type exitError struct {
	code status.Code
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.code.String()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitWith(code status.Code) error {
	if code == status.Success {
		return nil
	}
	return &exitError{code: code}
}

func init() {
	rootCmd.RunE = rootRun

	rootCmd.PersistentFlags().StringVar(&clientToken, clientFlag, "", "one-time token; runs the session side of an update")
	rootCmd.PersistentFlags().StringVarP(&configPath, configFlag, "c", "", "config file location (default autoupdater.json next to the executable)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, logLevelFlag, "l", "info", "sets the log level")
	rootCmd.PersistentFlags().StringVar(&logFile, logFileFlag, util.DefaultLogPath(), "sets the log path. If console is specified the log will be output to stderr")
	rootCmd.PersistentFlags().DurationVar(&bridgeTimeout, timeoutFlag, 0, "bounds the wait for the session side (default BridgeTimeoutSeconds from the config, else 15m)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &exitError{code: status.InvalidArgument, err: err}
	})

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serviceCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() (code int) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("unhandled panic: %v\n%s", r, debug.Stack())
			code = int(status.UnhandledException)
		}
	}()

	err := rootCmd.Execute()
	if err == nil {
		return int(status.Success)
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			rootCmd.PrintErrln(ee.err)
		}
		return int(ee.code)
	}
	rootCmd.PrintErrln(err)
	return int(status.RuntimeError)
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &exitError{code: status.InvalidArgument, err: fmt.Errorf("unexpected arguments: %v", args)}
	}
	return nil
}

func rootRun(cmd *cobra.Command, _ []string) error {
	util.SetFlagsFromEnvVars(rootCmd, envPrefix)
	if err := util.InitLog(logLevel, logFile); err != nil {
		return &exitError{code: status.InvalidArgument, err: fmt.Errorf("failed initializing log %v", err)}
	}

	if clientToken != "" {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		SetupCloseHandler(ctx, cancel)
		return exitWith(runClient(ctx, cmd.Flags(), clientToken))
	}

	addSystemLogHook()
	return exitWith(runPrivileged(cmd.Flags(), bridge.New()))
}

// SetupCloseHandler cancels ctx on SIGINT or SIGTERM.
func SetupCloseHandler(ctx context.Context, cancel context.CancelFunc) {
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(termCh)
		select {
		case <-ctx.Done():
		case <-termCh:
			log.Info("shutdown signal received")
			cancel()
		}
	}()
}

// loadConfig reads the file named by --config or the default next to the
// executable.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, "", status.New(status.KindNotFound, "locate config", err)
		}
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

// applyLogLevel lets the config file pick the level unless it was given as
// a flag or through the environment.
func applyLogLevel(flags *pflag.FlagSet, cfg *config.Config) {
	if cfg.LogLevel == "" || flags.Changed(logLevelFlag) {
		return
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("ignoring invalid LogLevel %q in config: %v", cfg.LogLevel, err)
		return
	}
	log.SetLevel(level)
}
