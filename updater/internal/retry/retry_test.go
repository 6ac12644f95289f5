package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Policy{Attempts: 5, InitialInterval: time.Millisecond, MaxInterval: 4 * time.Millisecond}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fast.Do(context.Background(), "copy", func() error {
		calls++
		if calls < 3 {
			return errors.New("sharing violation")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	lastErr := errors.New("still locked")
	err := fast.Do(context.Background(), "delete", func() error {
		calls++
		return lastErr
	})

	assert.ErrorIs(t, err, lastErr)
	assert.Equal(t, 5, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	permanent := errors.New("zip slip")
	err := fast.Do(context.Background(), "extract", func() error {
		calls++
		return Permanent(permanent)
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fast.Do(ctx, "copy", func() error {
		calls++
		cancel()
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
