// Package swap stages a new directory tree and exchanges it with the target
// in two renames, rolling back when the second one fails.
package swap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/autoupdater/updater/internal/retry"
	"github.com/netbirdio/autoupdater/updater/internal/watchdog"
	"github.com/netbirdio/autoupdater/updater/status"
	"github.com/netbirdio/autoupdater/util"
)

const tempPrefix = "ZipReplace_"

var mkdirAll = os.MkdirAll

// Area is the private working space of one run.
type Area struct {
	Root    string
	Extract string
	Stage   string
}

// NewArea creates a fresh area below base. base should be on the target's
// volume so the swap renames do not copy.
func NewArea(base string) (*Area, error) {
	root := filepath.Join(base, tempPrefix+strings.ReplaceAll(uuid.NewString(), "-", ""))
	a := &Area{
		Root:    root,
		Extract: filepath.Join(root, "extract"),
		Stage:   filepath.Join(root, "stage"),
	}
	for _, dir := range []string{a.Extract, a.Stage} {
		if err := mkdirAll(dir, 0o700); err != nil {
			if rmErr := os.RemoveAll(root); rmErr != nil {
				log.Warnf("failed to remove partial staging area %s: %v", root, rmErr)
			}
			return nil, ioError("create staging area", err)
		}
	}
	log.Debugf("staging area %s created", root)
	return a, nil
}

// CopyFile copies src to dst with retries, keeping the modification time.
// A read-only dst is replaced.
func CopyFile(ctx context.Context, src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return ioError("stat "+src, err)
	}

	err = retry.Do(ctx, "copy "+filepath.Base(src), func() error {
		if err := watchdog.Check(ctx, "copy file"); err != nil {
			return retry.Permanent(err)
		}
		if info, err := os.Lstat(dst); err == nil && info.Mode().Perm()&0o200 == 0 {
			_ = os.Chmod(dst, info.Mode().Perm()|0o200)
		}
		return util.CopyFileContents(src, dst)
	})
	if err != nil {
		if status.KindOf(err) != status.KindUnexpected {
			return err
		}
		if ctx.Err() != nil {
			return watchdog.FromContext(ctx, "copy file")
		}
		return ioError(fmt.Sprintf("copy %s", src), err)
	}

	if err := os.Chtimes(dst, time.Now(), info.ModTime()); err != nil {
		log.Debugf("failed to keep modification time of %s: %v", dst, err)
	}
	return nil
}

// CopyTree copies the contents of src into dst, which must exist.
func CopyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if cerr := watchdog.Check(ctx, "copy tree"); cerr != nil {
			return cerr
		}
		if err != nil {
			return ioError("walk "+path, err)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return ioError("relativize "+path, err)
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return ioError("create "+target, err)
			}
			return nil
		case d.Type().IsRegular():
			return CopyFile(ctx, path, target)
		default:
			log.Warnf("skipping %s: not a regular file", path)
			return nil
		}
	})
}

func ioError(op string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return status.New(status.KindNotFound, op, err)
	case errors.Is(err, fs.ErrPermission):
		return status.New(status.KindAccessDenied, op, err)
	default:
		return status.New(status.KindIO, op, err)
	}
}
