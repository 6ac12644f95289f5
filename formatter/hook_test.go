package formatter

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestFilePathParsing(t *testing.T) {

	testCases := []struct {
		filePath         string
		expectedFileName string
	}{
		// module cache or GOPATH layout
		{
			filePath:         "/home/user/go/src/github.com/netbirdio/autoupdater/updater/internal/gate/gate.go",
			expectedFileName: "updater/internal/gate/gate.go",
		},
		// checkout named after the repository
		{
			filePath:         "/Users/user/src/autoupdater/updater/cmd/root.go",
			expectedFileName: "updater/cmd/root.go",
		},
		// renamed checkout
		{
			filePath:         "/Users/user/src/my-updater/formatter/formatter.go",
			expectedFileName: "formatter/formatter.go",
		},
	}

	hook := &ContextHook{goModuleName: "github.com/netbirdio/autoupdater/"}

	for _, testCase := range testCases {
		parsedString := hook.parseSrc(testCase.filePath)
		assert.Equal(t, testCase.expectedFileName, parsedString, "Parsed filepath does not match expected for %s", testCase.filePath)
	}

}

func TestTextFormatter(t *testing.T) {
	entry := logrus.NewEntry(logrus.New()).WithFields(logrus.Fields{
		"session": 3,
		"path":    "/opt/app",
		sourceKey: "updater/cmd/root.go:42",
	})
	entry.Level = logrus.WarnLevel
	entry.Message = "target locked"
	entry.Time = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	out, err := NewTextFormatter().Format(entry)
	assert.NoError(t, err)
	assert.Equal(t, "2026-01-02T03:04:05.000Z WARN [path: /opt/app, session: 3] updater/cmd/root.go:42: target locked\n", string(out))
}
