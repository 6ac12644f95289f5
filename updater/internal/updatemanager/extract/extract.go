// Package extract unpacks a zip archive into a directory, refusing entries
// that would land outside it or exceed the size ceilings.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/autoupdater/updater/internal/retry"
	"github.com/netbirdio/autoupdater/updater/internal/watchdog"
	"github.com/netbirdio/autoupdater/updater/status"
)

var (
	ErrUnsafePath    = errors.New("entry escapes the destination")
	ErrEntryTooBig   = errors.New("entry exceeds the per-entry size limit")
	ErrArchiveTooBig = errors.New("archive exceeds the total size limit")
	ErrSizeMismatch  = errors.New("entry is larger than its declared size")
)

// Limits are checked against declared sizes before a byte is written.
type Limits struct {
	MaxEntryBytes uint64
	MaxTotalBytes uint64
}

var DefaultLimits = Limits{
	MaxEntryBytes: 512 << 20,
	MaxTotalBytes: 2 << 30,
}

// Stats summarizes an extraction.
type Stats struct {
	Files int
	Dirs  int
	Bytes uint64
}

// Extract unpacks zipPath into dest, which must exist.
func Extract(ctx context.Context, zipPath, dest string, limits Limits) (Stats, error) {
	var stats Stats

	root, err := filepath.Abs(dest)
	if err != nil {
		return stats, status.New(status.KindIO, "resolve destination", err)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		if r != nil {
			_ = r.Close()
		}
		if errors.Is(err, fs.ErrNotExist) {
			return stats, status.New(status.KindNotFound, "open archive", err)
		}
		return stats, status.New(status.KindIntegrity, "open archive", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := watchdog.Check(ctx, "extract archive"); err != nil {
			return stats, err
		}
		if f.Name == "" {
			continue
		}

		target, isDir, err := Resolve(root, f.Name)
		if err != nil {
			return stats, status.New(status.KindIntegrity, fmt.Sprintf("entry %q", f.Name), err)
		}

		if isDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return stats, status.New(status.KindIO, "create directory", err)
			}
			stats.Dirs++
			continue
		}

		size := f.UncompressedSize64
		if size > limits.MaxEntryBytes {
			return stats, status.New(status.KindIntegrity, fmt.Sprintf("entry %q (%d bytes)", f.Name, size), ErrEntryTooBig)
		}
		if stats.Bytes+size > limits.MaxTotalBytes {
			return stats, status.New(status.KindIntegrity, fmt.Sprintf("entry %q", f.Name), ErrArchiveTooBig)
		}
		stats.Bytes += size

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return stats, status.New(status.KindIO, "create directory", err)
		}

		err = retry.Do(ctx, "extract "+f.Name, func() error {
			return writeEntry(f, target)
		})
		if err != nil {
			return stats, classify(ctx, f.Name, err)
		}
		if !f.Modified.IsZero() {
			if err := os.Chtimes(target, f.Modified, f.Modified); err != nil {
				log.Debugf("failed to set modification time of %s: %v", target, err)
			}
		}
		stats.Files++
	}

	log.Debugf("extracted %d files, %d directories, %d bytes into %s", stats.Files, stats.Dirs, stats.Bytes, root)
	return stats, nil
}

// Resolve maps an entry name onto a path strictly below root. Both slash
// kinds separate components; names ending in a separator are directories.
func Resolve(root, name string) (string, bool, error) {
	normalized := strings.ReplaceAll(name, `\`, "/")
	isDir := strings.HasSuffix(normalized, "/")

	rel := filepath.FromSlash(normalized)
	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", false, fmt.Errorf("%w: absolute path", ErrUnsafePath)
	}

	target := filepath.Join(root, rel)
	within, err := filepath.Rel(root, target)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", false, fmt.Errorf("%w: path traversal", ErrUnsafePath)
	}
	if within == "." && !isDir {
		return "", false, fmt.Errorf("%w: names the destination itself", ErrUnsafePath)
	}
	return target, isDir, nil
}

func writeEntry(f *zip.File, target string) (err error) {
	in, err := f.Open()
	if err != nil {
		return retry.Permanent(err)
	}
	defer in.Close()

	perm := os.FileMode(0o644)
	if f.Mode().Perm()&0o111 != 0 {
		perm = 0o755
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); err == nil {
			err = cErr
		}
	}()

	n, err := io.Copy(out, io.LimitReader(in, int64(f.UncompressedSize64)+1))
	if err != nil {
		if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) {
			return retry.Permanent(err)
		}
		return err
	}
	if uint64(n) > f.UncompressedSize64 {
		return retry.Permanent(ErrSizeMismatch)
	}
	return nil
}

func classify(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil {
		return watchdog.FromContext(ctx, "extract "+name)
	}
	op := fmt.Sprintf("write entry %q", name)
	switch {
	case errors.Is(err, ErrSizeMismatch), errors.Is(err, zip.ErrChecksum),
		errors.Is(err, zip.ErrFormat), errors.Is(err, zip.ErrAlgorithm):
		return status.New(status.KindIntegrity, op, err)
	case errors.Is(err, fs.ErrPermission):
		return status.New(status.KindAccessDenied, op, err)
	default:
		return status.New(status.KindIO, op, err)
	}
}
