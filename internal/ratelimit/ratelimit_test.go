package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalLimiterEnforcesBurstPerKey(t *testing.T) {
	now := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(1, 2, time.Minute)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("gym_001:main").Allowed)
	require.True(t, l.Allow("gym_001:main").Allowed)

	denied := l.Allow("gym_001:main")
	require.False(t, denied.Allowed)
	require.Equal(t, 2, denied.Limit)
	require.Greater(t, denied.RetryAfter, time.Duration(0))

	require.True(t, l.Allow("gym_001:side").Allowed)

	now = now.Add(time.Second)
	require.True(t, l.Allow("gym_001:main").Allowed)
}

func TestLocalLimiterCleanup(t *testing.T) {
	now := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(1, 1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(30 * time.Second)
	l.Allow("b")
	now = now.Add(45 * time.Second)

	l.Cleanup()
	require.Equal(t, 1, l.Len())
}

func TestParseBucketReply(t *testing.T) {
	res, err := parseBucketReply([]interface{}{int64(0), "0.25", int64(1700000000000)}, 2, 5)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 0, res.Remaining)
	require.Equal(t, 375*time.Millisecond, res.RetryAfter)

	res, err = parseBucketReply([]interface{}{int64(1), "3", int64(1700000000000)}, 2, 5)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 3, res.Remaining)

	_, err = parseBucketReply([]interface{}{int64(1)}, 2, 5)
	require.Error(t, err)
}

func TestNilAccessLimiterAllows(t *testing.T) {
	var l *AccessLimiter
	require.False(t, l.Enabled())
	require.True(t, l.Allow(context.Background(), "gym_001", "main").Allowed)
}

func TestNoopMutex(t *testing.T) {
	m := NewMutex(nil)
	release, err := m.Acquire(context.Background(), "transfer:approve:1", time.Second)
	require.NoError(t, err)
	release()
}
