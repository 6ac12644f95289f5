// Package updatemanager runs one update of the target directory on the
// session side.
package updatemanager

import (
	"context"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/autoupdater/updater/internal/config"
	"github.com/netbirdio/autoupdater/updater/internal/gate"
	"github.com/netbirdio/autoupdater/updater/internal/updatemanager/decision"
	"github.com/netbirdio/autoupdater/updater/internal/updatemanager/extract"
	"github.com/netbirdio/autoupdater/updater/internal/updatemanager/lockcheck"
	"github.com/netbirdio/autoupdater/updater/internal/updatemanager/swap"
	"github.com/netbirdio/autoupdater/updater/internal/watchdog"
	"github.com/netbirdio/autoupdater/updater/status"
)

// reclaimGrace is how long Wait gives background deletions beyond their
// delay.
const reclaimGrace = 10 * time.Second

// Result describes a finished run.
type Result struct {
	Plan     decision.Plan
	Replaced bool
}

type Manager struct {
	cfg       *config.Config
	limits    extract.Limits
	reclaimer *swap.Reclaimer
	// tempBase picks the directory holding the staging area.
	tempBase func(targetDir string) string
}

func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg:       cfg,
		limits:    extract.DefaultLimits,
		reclaimer: swap.NewReclaimer(swap.ReclaimDelay),
		tempBase:  filepath.Dir,
	}
}

// Run validates the configuration, takes the target's serialization gate
// and replaces the target when the archive is newer. ctx carries the
// watchdog deadline.
func (m *Manager) Run(ctx context.Context) (Result, error) {
	cfg := m.cfg
	logger := log.WithField("target", cfg.TargetDir)

	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if err := checkInputs(cfg); err != nil {
		return Result{}, err
	}

	lock, err := gate.Acquire(ctx, cfg.TargetDir, cfg.LockWait())
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warnf("failed to release target gate: %v", err)
		}
	}()

	exePaths := cfg.ExePaths()
	if err := lockcheck.Check(ctx, exePaths); err != nil {
		return Result{}, err
	}

	plan, err := decision.Evaluate(ctx, cfg.SourceZip, cfg.TargetDir, cfg.TargetZip())
	if err != nil {
		return Result{}, err
	}
	if !plan.Replace {
		logger.Infof("target is up to date, nothing to replace")
		return Result{Plan: plan}, nil
	}

	if err := lockcheck.Check(ctx, exePaths); err != nil {
		logger.Errorf("executables became locked after the check")
		return Result{Plan: plan}, err
	}

	if err := m.replace(ctx, exePaths); err != nil {
		return Result{Plan: plan}, err
	}
	return Result{Plan: plan, Replaced: true}, nil
}

func (m *Manager) replace(ctx context.Context, exePaths []string) error {
	cfg := m.cfg

	area, err := swap.NewArea(m.tempBase(cfg.TargetDir))
	if err != nil {
		return err
	}
	defer m.reclaimer.Schedule(area.Root)

	stats, err := extract.Extract(ctx, cfg.SourceZip, area.Extract, m.limits)
	if err != nil {
		return err
	}
	log.Infof("extracted %d files (%d bytes) from %s", stats.Files, stats.Bytes, cfg.SourceZip)

	if err := swap.CopyFile(ctx, cfg.SourceZip, filepath.Join(area.Stage, filepath.Base(cfg.SourceZip))); err != nil {
		return err
	}
	if err := swap.CopyTree(ctx, area.Extract, area.Stage); err != nil {
		return err
	}

	if err := lockcheck.Check(ctx, exePaths); err != nil {
		log.Errorf("executables became locked while staging, aborting")
		return err
	}
	if err := watchdog.Check(ctx, "swap"); err != nil {
		return err
	}

	return swap.Swap(cfg.TargetDir, area.Stage, m.reclaimer)
}

// Wait gives background deletions a bounded time to finish.
func (m *Manager) Wait() {
	if !m.reclaimer.Wait(swap.ReclaimDelay + reclaimGrace) {
		log.Warnf("staging cleanup still running, leaving it behind")
	}
}

func checkInputs(cfg *config.Config) error {
	info, err := os.Stat(cfg.TargetDir)
	if err != nil || !info.IsDir() {
		return status.Errorf(status.KindNotFound, "target directory %s does not exist", cfg.TargetDir)
	}
	info, err = os.Stat(cfg.SourceZip)
	if err != nil || !info.Mode().IsRegular() {
		return status.Errorf(status.KindNotFound, "source archive %s does not exist", cfg.SourceZip)
	}
	return nil
}
