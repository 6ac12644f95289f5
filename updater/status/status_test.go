package status

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected Code
	}{
		{name: "nil", err: nil, expected: Success},
		{name: "plain error", err: errors.New("boom"), expected: RuntimeError},
		{name: "access denied", err: New(KindAccessDenied, "validate token", nil), expected: AccessDenied},
		{name: "configuration", err: Errorf(KindConfiguration, "missing %s", "TargetDir"), expected: ConfigError},
		{name: "not found", err: New(KindNotFound, "stat archive", fs.ErrNotExist), expected: NotFound},
		{name: "locked executable", err: New(KindLocked, "check locks", nil), expected: RuntimeError},
		{name: "busy gate", err: New(KindBusy, "acquire gate", nil), expected: ServiceUnavailable},
		{name: "integrity", err: New(KindIntegrity, "extract", nil), expected: ValidationFailed},
		{name: "timeout", err: New(KindTimeout, "copy", nil), expected: Timeout},
		{name: "io", err: New(KindIO, "copy", nil), expected: IOError},
		{name: "wrapped", err: fmt.Errorf("swap: %w", New(KindTimeout, "copy", nil)), expected: Timeout},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CodeOf(tc.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := New(KindNotFound, "open archive", fs.ErrNotExist)

	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
	assert.Equal(t, "open archive: file does not exist", err.Error())
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "service unavailable", ServiceUnavailable.String())
	assert.Equal(t, "exit code 99", Code(99).String())
}
