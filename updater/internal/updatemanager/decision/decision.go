// Package decision tells whether the archive is newer than what the target
// directory holds.
package decision

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/autoupdater/updater/internal/watchdog"
	"github.com/netbirdio/autoupdater/updater/status"
)

// Plan is the evaluated state of one run.
type Plan struct {
	DirEmpty     bool
	HasTargetZip bool
	SourceTime   time.Time
	// Baseline is the newest of the target's archive copy and every file
	// below the target. Zero when neither exists.
	Baseline time.Time
	Replace  bool
}

// ShouldReplace is the replacement rule.
func ShouldReplace(dirEmpty, hasTargetZip bool, source, baseline time.Time) bool {
	return dirEmpty || !hasTargetZip || source.After(baseline)
}

// Evaluate inspects sourceZip and targetDir. targetZip is the archive copy
// kept inside targetDir.
func Evaluate(ctx context.Context, sourceZip, targetDir, targetZip string) (Plan, error) {
	src, err := os.Stat(sourceZip)
	if err != nil {
		return Plan{}, statError("stat source archive", err)
	}

	empty, err := isEmpty(targetDir)
	if err != nil {
		return Plan{}, statError("read target dir", err)
	}

	plan := Plan{DirEmpty: empty, SourceTime: src.ModTime().UTC()}

	if zi, err := os.Stat(targetZip); err == nil && zi.Mode().IsRegular() {
		plan.HasTargetZip = true
		plan.Baseline = zi.ModTime().UTC()
	}

	latest, err := LatestModTime(ctx, targetDir)
	if err != nil {
		return Plan{}, err
	}
	if latest.After(plan.Baseline) {
		plan.Baseline = latest
	}

	plan.Replace = ShouldReplace(plan.DirEmpty, plan.HasTargetZip, plan.SourceTime, plan.Baseline)
	log.WithField("target", targetDir).Infof("source archive %s, target baseline %s, empty: %t, archive copy: %t, replace: %t",
		plan.SourceTime.Format(time.RFC3339Nano), plan.Baseline.Format(time.RFC3339Nano), plan.DirEmpty, plan.HasTargetZip, plan.Replace)
	return plan, nil
}

// LatestModTime returns the newest modification time of any regular file
// below dir, or zero when there is none. Unreadable entries are skipped.
func LatestModTime(ctx context.Context, dir string) (time.Time, error) {
	var latest time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if werr := watchdog.Check(ctx, "scan target dir"); werr != nil {
			return werr
		}
		if err != nil {
			if path == dir {
				return err
			}
			log.Debugf("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			log.Debugf("skipping %s: %v", path, err)
			return nil
		}
		if t := info.ModTime().UTC(); t.After(latest) {
			latest = t
		}
		return nil
	})
	if err != nil {
		if status.KindOf(err) != status.KindUnexpected {
			return time.Time{}, err
		}
		return time.Time{}, statError("scan target dir", err)
	}
	return latest, nil
}

func isEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

func statError(op string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return status.New(status.KindNotFound, op, err)
	case errors.Is(err, fs.ErrPermission):
		return status.New(status.KindAccessDenied, op, err)
	default:
		return status.New(status.KindIO, op, err)
	}
}
