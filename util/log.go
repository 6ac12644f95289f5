package util

import (
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/netbirdio/autoupdater/formatter"
	"github.com/netbirdio/autoupdater/formatter/eventlog"
)

const (
	// LogConsole sends log output to stderr instead of a file.
	LogConsole     = "console"
	defaultLogFile = "autoupdater.log"
)

// DefaultLogPath is autoupdater.log next to the running executable.
func DefaultLogPath() string {
	exe, err := os.Executable()
	if err != nil {
		return LogConsole
	}
	return filepath.Join(filepath.Dir(exe), defaultLogFile)
}

// InitLog parses and sets log-level input
func InitLog(logLevel string, logPath string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("Failed parsing log-level %s: %s", logLevel, err)
		return err
	}

	if logPath != "" && logPath != LogConsole {
		log.SetOutput(&lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   false,
		})
	}

	formatter.SetTextFormatter(log.StandardLogger())
	log.SetLevel(level)
	return nil
}

// AddEventLogHook mirrors info and more severe entries into the system log.
func AddEventLogHook(logger service.Logger) {
	log.AddHook(newEventLogHook(logger))
}

type eventLogHook struct {
	logger    service.Logger
	formatter log.Formatter
}

func newEventLogHook(logger service.Logger) *eventLogHook {
	return &eventLogHook{logger: logger, formatter: eventlog.NewFormatter()}
}

func (h *eventLogHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel, log.InfoLevel}
}

// Fire never fails: a broken system log must not change the outcome of the
// logged operation.
func (h *eventLogHook) Fire(entry *log.Entry) error {
	msg, err := h.formatter.Format(entry)
	if err != nil {
		return nil
	}

	switch entry.Level {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		_ = h.logger.Error(string(msg))
	case log.WarnLevel:
		_ = h.logger.Warning(string(msg))
	default:
		_ = h.logger.Info(string(msg))
	}
	return nil
}
