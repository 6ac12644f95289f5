// Package eventlog formats entries for the system log, which stamps time
// and severity itself.
package eventlog

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/netbirdio/autoupdater/formatter"
)

// Formatter formats logs into text
type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format renders a single log entry
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s%s\n", formatter.Fields(entry), entry.Message)), nil
}
