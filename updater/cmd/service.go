package cmd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/netbirdio/autoupdater/updater/internal/bridge"
	"github.com/netbirdio/autoupdater/util"
)

const (
	defaultInterval = time.Hour
	// stopWait bounds how long Stop waits for a run in progress.
	stopWait = 20 * time.Second
)

var (
	serviceName string
	interval    time.Duration

	serviceCmd = &cobra.Command{
		Use:   "service",
		Short: "Manage the autoupdater system service",
	}
)

type program struct {
	ctx      context.Context
	cancel   context.CancelFunc
	flags    *pflag.FlagSet
	launcher bridge.Launcher
	interval time.Duration
	done     chan struct{}
}

func init() {
	defaultServiceName := "autoupdater"
	if runtime.GOOS == "windows" {
		defaultServiceName = "AutoUpdater"
	}

	serviceCmd.PersistentPreRunE = setupServiceCommand
	serviceCmd.PersistentFlags().StringVarP(&serviceName, "service", "s", defaultServiceName, "autoupdater system service name")
	serviceCmd.PersistentFlags().DurationVar(&interval, "interval", defaultInterval, "time between scheduled update runs")

	serviceCmd.AddCommand(runCmd, startCmd, stopCmd) // service control commands are subcommands of service
	serviceCmd.AddCommand(installCmd, uninstallCmd)  // service installer commands are subcommands of service
}

func setupServiceCommand(cmd *cobra.Command, _ []string) error {
	util.SetFlagsFromEnvVars(rootCmd, envPrefix)
	util.SetFlagsFromEnvVars(serviceCmd, envPrefix)
	if err := util.InitLog(logLevel, logFile); err != nil {
		return fmt.Errorf("failed initializing log %v", err)
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	return nil
}

func newProgram(ctx context.Context, flags *pflag.FlagSet, l bridge.Launcher, every time.Duration) *program {
	ctx, cancel := context.WithCancel(ctx)
	return &program{
		ctx:      ctx,
		cancel:   cancel,
		flags:    flags,
		launcher: l,
		interval: every,
		done:     make(chan struct{}),
	}
}

// Start should not block. The runs happen on their own goroutine.
func (p *program) Start(service.Service) error {
	log.Infof("starting update service, interval %s", p.interval)
	go p.loop()
	return nil
}

func (p *program) Stop(service.Service) error {
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(stopWait):
		log.Warnf("update run still in progress after %s, stopping anyway", stopWait)
	}
	log.Info("update service stopped")
	return nil
}

func (p *program) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		code := runPrivileged(p.flags, p.launcher)
		log.Infof("scheduled update run finished: %d (%s)", code, code)

		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newSVCConfig() *service.Config {
	return &service.Config{
		Name:        serviceName,
		DisplayName: "AutoUpdater",
		Description: "Replaces application directories from newer zip archives",
		Arguments:   buildServiceArguments(),
		Option:      make(service.KeyValue),
	}
}

func newSVC(prg *program, conf *service.Config) (service.Service, error) {
	return service.New(prg, conf)
}

func buildServiceArguments() []string {
	args := []string{
		"service",
		"run",
		"--service",
		serviceName,
		"--interval",
		interval.String(),
		"--log-level",
		logLevel,
		"--log-file",
		logFile,
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if bridgeTimeout > 0 {
		args = append(args, "--timeout", bridgeTimeout.String())
	}
	return args
}

// addSystemLogHook mirrors log entries into the service's system log.
// Failing to open it only costs the mirror.
func addSystemLogHook() {
	s, err := newSVC(&program{}, newSVCConfig())
	if err != nil {
		log.Debugf("no system service for the event log: %v", err)
		return
	}
	attachSystemLogger(s)
}

func attachSystemLogger(s service.Service) {
	logger, err := s.SystemLogger(nil)
	if err != nil {
		log.Debugf("failed opening system log: %v", err)
		return
	}
	util.AddEventLogHook(logger)
}

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "runs autoupdater as service",
		RunE: func(cmd *cobra.Command, args []string) error {
			prg := newProgram(cmd.Context(), cmd.Flags(), bridge.New(), interval)
			s, err := newSVC(prg, newSVCConfig())
			if err != nil {
				return err
			}
			attachSystemLogger(s)
			return s.Run()
		},
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "starts autoupdater service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return controlService(cmd, service.Service.Start, "started")
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "stops autoupdater service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return controlService(cmd, service.Service.Stop, "stopped")
		},
	}

	installCmd = &cobra.Command{
		Use:   "install",
		Short: "installs autoupdater service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return controlService(cmd, service.Service.Install, "installed")
		},
	}

	uninstallCmd = &cobra.Command{
		Use:   "uninstall",
		Short: "uninstalls autoupdater service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return controlService(cmd, service.Service.Uninstall, "uninstalled")
		},
	}
)

func controlService(cmd *cobra.Command, action func(service.Service) error, done string) error {
	s, err := newSVC(&program{}, newSVCConfig())
	if err != nil {
		return err
	}
	if err := action(s); err != nil {
		return fmt.Errorf("service %s: %w", serviceName, err)
	}
	cmd.Printf("AutoUpdater service has been %s\n", done)
	return nil
}
