package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFailedAttemptTracker_BlocksAfterLimit(t *testing.T) {
	req := require.New(t)
	tracker := NewFailedAttemptTracker(5, 10*time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Given four failures from the same address
	for i := 1; i <= 4; i++ {
		req.Equal(i, tracker.Fail("10.0.0.1", now.Add(time.Duration(i)*time.Second)))
	}
	req.False(tracker.Blocked("10.0.0.1", now.Add(5*time.Second)))

	// When the fifth failure lands
	tracker.Fail("10.0.0.1", now.Add(5*time.Second))

	// Then the address is blocked but another one is not
	req.True(tracker.Blocked("10.0.0.1", now.Add(6*time.Second)))
	req.False(tracker.Blocked("10.0.0.2", now.Add(6*time.Second)))
}

func TestFailedAttemptTracker_ExpiresOnLookup(t *testing.T) {
	req := require.New(t)
	tracker := NewFailedAttemptTracker(5, 10*time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		tracker.Fail("10.0.0.1", now)
	}
	req.True(tracker.Blocked("10.0.0.1", now.Add(9*time.Minute)))

	// When the window has passed, the lookup forgets the address
	req.False(tracker.Blocked("10.0.0.1", now.Add(11*time.Minute)))
	req.Equal(0, tracker.Tracked())
}

func TestFailedAttemptTracker_Reset(t *testing.T) {
	req := require.New(t)
	tracker := NewFailedAttemptTracker(2, time.Minute)
	now := time.Now()

	tracker.Fail("10.0.0.1", now)
	tracker.Fail("10.0.0.1", now)
	req.True(tracker.Blocked("10.0.0.1", now))

	tracker.Reset("10.0.0.1")
	req.False(tracker.Blocked("10.0.0.1", now))
}
