package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// maxJsonFileSize bounds configuration files read by ReadJson.
const maxJsonFileSize = 1 << 20

// ReadJson reads a JSON file into res.
func ReadJson(file string, res any) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	bs, err := io.ReadAll(io.LimitReader(f, maxJsonFileSize+1))
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	if len(bs) > maxJsonFileSize {
		return fmt.Errorf("%s is larger than %d bytes", file, maxJsonFileSize)
	}

	if err := json.Unmarshal(bs, res); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	return nil
}

// CopyFileContents copies src to dst, creating or truncating dst, and syncs
// it to disk. The mode of src is kept.
func CopyFileContents(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		cErr := out.Close()
		if err == nil {
			err = cErr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// FileExists returns true if specified file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsSubPath reports whether child is parent or lies below it. Both paths
// are cleaned; on Windows the comparison ignores case.
func IsSubPath(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)
	if runtime.GOOS == "windows" {
		parent = strings.ToLower(parent)
		child = strings.ToLower(child)
	}

	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
