package formatter

import "github.com/sirupsen/logrus"

// SetTextFormatter installs TextFormatter on logger and records the caller
// of every entry under the "source" field.
func SetTextFormatter(logger *logrus.Logger) {
	logger.SetFormatter(NewTextFormatter())
	logger.SetReportCaller(true)
	logger.AddHook(NewContextHook())
}
