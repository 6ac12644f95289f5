// Package config loads and validates the updater configuration file that
// sits next to the executable.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/netbirdio/autoupdater/updater/internal/watchdog"
	"github.com/netbirdio/autoupdater/updater/status"
	"github.com/netbirdio/autoupdater/util"
)

const (
	baseName = "autoupdater"

	DefaultBridgeTimeout = 15 * time.Minute
	MaxLockWait          = 60 * time.Second
)

// Config mirrors the configuration file. Keys are case sensitive in YAML
// and case insensitive in JSON.
type Config struct {
	SourceZip            string   `json:"SourceZip" yaml:"SourceZip"`
	TargetDir            string   `json:"TargetDir" yaml:"TargetDir"`
	ExeNames             NameList `json:"ExeNames" yaml:"ExeNames"`
	WatchdogSeconds      int      `json:"WatchdogSeconds" yaml:"WatchdogSeconds"`
	LockWaitSeconds      int      `json:"LockWaitSeconds" yaml:"LockWaitSeconds"`
	HardKill             bool     `json:"HardKill" yaml:"HardKill"`
	BridgeTimeoutSeconds int      `json:"BridgeTimeoutSeconds" yaml:"BridgeTimeoutSeconds"`
	LogLevel             string   `json:"LogLevel" yaml:"LogLevel"`
}

// NameList accepts either a list of names or one string separated by
// commas or semicolons. Blank entries are dropped.
type NameList []string

func (n *NameList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = SplitNames(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*n = clean(list)
	return nil
}

func (n *NameList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*n = SplitNames(value.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*n = clean(list)
		return nil
	default:
		return fmt.Errorf("line %d: ExeNames must be a string or a list", value.Line)
	}
}

// SplitNames splits s on commas and semicolons.
func SplitNames(s string) NameList {
	return clean(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	}))
}

func clean(names []string) NameList {
	out := make(NameList, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// DefaultPath returns the configuration file next to the running
// executable. JSON wins when several formats exist.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	dir := filepath.Dir(exe)

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		candidate := filepath.Join(dir, baseName+ext)
		if util.FileExists(candidate) {
			return candidate, nil
		}
	}
	return filepath.Join(dir, baseName+".json"), nil
}

// Load reads the file at path. A missing file is KindNotFound, a malformed
// one KindConfiguration. The result is not validated.
func Load(path string) (*Config, error) {
	if !util.FileExists(path) {
		return nil, status.New(status.KindNotFound, "load config", fmt.Errorf("config file %s: %w", path, os.ErrNotExist))
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, status.New(status.KindIO, "load config", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, status.New(status.KindConfiguration, "parse config", err)
		}
	default:
		if err := util.ReadJson(path, cfg); err != nil {
			return nil, status.New(status.KindConfiguration, "parse config", err)
		}
	}

	cfg.SourceZip = strings.TrimSpace(cfg.SourceZip)
	cfg.TargetDir = strings.TrimSpace(cfg.TargetDir)
	log.Debugf("loaded config from %s", path)
	return cfg, nil
}

// Validate checks the keys needed for an update run. It does not touch the
// filesystem.
func (c *Config) Validate() error {
	var missing []string
	if c.SourceZip == "" {
		missing = append(missing, "SourceZip")
	}
	if c.TargetDir == "" {
		missing = append(missing, "TargetDir")
	}
	if len(c.ExeNames) == 0 {
		missing = append(missing, "ExeNames")
	}
	if len(missing) > 0 {
		return status.Errorf(status.KindConfiguration, "missing required settings: %s", strings.Join(missing, ", "))
	}

	if !filepath.IsAbs(c.SourceZip) || !filepath.IsAbs(c.TargetDir) {
		return status.Errorf(status.KindConfiguration, "SourceZip and TargetDir must be absolute paths")
	}

	for _, name := range c.ExeNames {
		if filepath.Base(name) != name || name == "." || name == ".." {
			return status.Errorf(status.KindConfiguration, "executable name %q must be a plain file name", name)
		}
	}

	if util.IsSubPath(c.TargetDir, filepath.Dir(c.SourceZip)) {
		return status.Errorf(status.KindConfiguration, "SourceZip %s lies inside TargetDir %s and would delete itself", c.SourceZip, c.TargetDir)
	}
	return nil
}

// Watchdog is the session-side deadline.
func (c *Config) Watchdog() time.Duration {
	return watchdog.Clamp(c.WatchdogSeconds)
}

// LockWait is how long the serialization gate may be waited for. Zero means
// fail immediately when held.
func (c *Config) LockWait() time.Duration {
	d := time.Duration(c.LockWaitSeconds) * time.Second
	switch {
	case d < 0:
		return 0
	case d > MaxLockWait:
		return MaxLockWait
	default:
		return d
	}
}

// BridgeTimeout bounds the privileged side's wait for the session side.
func (c *Config) BridgeTimeout() time.Duration {
	if c.BridgeTimeoutSeconds <= 0 {
		return DefaultBridgeTimeout
	}
	return time.Duration(c.BridgeTimeoutSeconds) * time.Second
}

// ExePaths joins the executable names onto TargetDir.
func (c *Config) ExePaths() []string {
	paths := make([]string, 0, len(c.ExeNames))
	for _, name := range c.ExeNames {
		paths = append(paths, filepath.Join(c.TargetDir, name))
	}
	return paths
}

// TargetZip is where the archive copy lives inside TargetDir.
func (c *Config) TargetZip() string {
	return filepath.Join(c.TargetDir, filepath.Base(c.SourceZip))
}

// IsNotFound reports whether err came from a missing config file.
func IsNotFound(err error) bool {
	return status.Is(err, status.KindNotFound) && errors.Is(err, os.ErrNotExist)
}
