package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/autoupdater/updater/status"
)

func TestClamp(t *testing.T) {
	testCases := []struct {
		seconds  int
		expected time.Duration
	}{
		{seconds: 0, expected: DefaultTimeout},
		{seconds: 9, expected: DefaultTimeout},
		{seconds: 10, expected: 10 * time.Second},
		{seconds: 120, expected: 2 * time.Minute},
		{seconds: 600, expected: 600 * time.Second},
		{seconds: 601, expected: DefaultTimeout},
		{seconds: -5, expected: DefaultTimeout},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, Clamp(tc.seconds), "seconds=%d", tc.seconds)
	}
}

func TestCheckExpired(t *testing.T) {
	ctx, w := Start(context.Background(), 20*time.Millisecond)
	defer w.Stop()

	require.NoError(t, Check(ctx, "scan"))

	<-ctx.Done()
	err := Check(ctx, "scan")
	require.Error(t, err)
	assert.Equal(t, status.KindTimeout, status.KindOf(err))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCheckCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, w := Start(parent, time.Minute)
	defer w.Stop()

	cancel()
	err := Check(ctx, "copy")
	assert.Equal(t, status.KindCancelled, status.KindOf(err))
}

func TestHardKill(t *testing.T) {
	codes := make(chan int, 1)
	w := &Watchdog{}
	WithHardKill(func(code int) { codes <- code })(w)
	require.NotNil(t, w.exit)

	// fire the backstop directly instead of waiting for the grace period
	w.exit(int(status.Timeout))
	assert.Equal(t, int(status.Timeout), <-codes)
}

func TestStopDisarmsHardKill(t *testing.T) {
	fired := make(chan int, 1)
	_, w := Start(context.Background(), time.Millisecond, WithHardKill(func(code int) { fired <- code }))
	w.Stop()
	w.Stop()

	select {
	case <-fired:
		t.Fatal("hard kill fired after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}
