package swap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/autoupdater/updater/status"
)

const backupSuffix = ".__old"

// rename is replaced in tests to inject failures.
var rename = os.Rename

// BackupPath is where target is parked during the swap.
func BackupPath(target string) string {
	return strings.TrimRight(target, `\/`) + backupSuffix
}

// Swap replaces target with staged: target is renamed to its backup path,
// staged is renamed to target, the backup is deleted. When the second rename
// fails whatever landed at target is removed and the backup is renamed back.
// A backup that cannot be deleted is handed to r.
func Swap(target, staged string, r *Reclaimer) error {
	target = filepath.Clean(target)
	backup := BackupPath(target)

	if _, err := os.Lstat(backup); err == nil {
		log.Warnf("removing stale backup %s", backup)
		if err := os.RemoveAll(backup); err != nil {
			return ioError("remove stale backup", err)
		}
	}

	if err := rename(target, backup); err != nil {
		return ioError("move target aside", err)
	}

	if err := rename(staged, target); err != nil {
		log.Errorf("failed to move staged tree into %s, rolling back: %v", target, err)
		swapErr := status.New(status.KindIO, "move staged tree into place", err)
		if rbErr := rollback(target, backup); rbErr != nil {
			log.Errorf("rollback of %s failed: %v", target, rbErr)
			return status.New(status.KindIO, "swap", formatErrorOrNil(multierror.Append(nil, swapErr, rbErr)))
		}
		log.Infof("rolled back %s", target)
		return swapErr
	}

	if err := os.RemoveAll(backup); err != nil {
		log.Warnf("failed to delete backup %s, deferring: %v", backup, err)
		if r != nil {
			r.Schedule(backup)
		}
	}
	log.Infof("swapped new contents into %s", target)
	return nil
}

func rollback(target, backup string) error {
	var merr *multierror.Error
	if _, err := os.Lstat(target); err == nil {
		if err := os.RemoveAll(target); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("remove partial target: %w", err))
		}
	}
	if err := rename(backup, target); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("restore backup: %w", err))
	}
	return formatErrorOrNil(merr)
}

// formatErrorOrNil renders errors one per line.
func formatErrorOrNil(merr *multierror.Error) error {
	if merr != nil {
		merr.ErrorFormat = func(es []error) string {
			points := make([]string, len(es))
			for i, err := range es {
				points[i] = err.Error()
			}
			return strings.Join(points, "; ")
		}
	}
	return merr.ErrorOrNil()
}
