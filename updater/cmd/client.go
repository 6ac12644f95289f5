package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/netbirdio/autoupdater/updater/internal/gate"
	"github.com/netbirdio/autoupdater/updater/internal/updatemanager"
	"github.com/netbirdio/autoupdater/updater/internal/watchdog"
	"github.com/netbirdio/autoupdater/updater/status"
)

// runClient is the session side: prove the token, then run one update
// under the watchdog.
func runClient(ctx context.Context, flags *pflag.FlagSet, token string) status.Code {
	if err := gate.ValidateAuth(token); err != nil {
		log.Errorf("rejecting session-side run: %v", err)
		return status.AccessDenied
	}

	cfg, path, err := loadConfig()
	if err != nil {
		log.Errorf("failed loading config %s: %v", path, err)
		return status.CodeOf(err)
	}
	applyLogLevel(flags, cfg)

	var opts []watchdog.Option
	if cfg.HardKill {
		opts = append(opts, watchdog.WithHardKill(nil))
	}
	ctx, wd := watchdog.Start(ctx, cfg.Watchdog(), opts...)
	defer wd.Stop()

	m := updatemanager.NewManager(cfg)
	res, err := m.Run(ctx)
	m.Wait()
	if err != nil {
		log.Errorf("update of %s failed: %v", cfg.TargetDir, err)
		return status.CodeOf(err)
	}

	if res.Replaced {
		log.Infof("%s replaced from %s", cfg.TargetDir, cfg.SourceZip)
	} else {
		log.Infof("%s is up to date", cfg.TargetDir)
	}
	return status.Success
}
