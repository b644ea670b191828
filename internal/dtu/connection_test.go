package dtu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnectionManagerShortThenLongRetry(t *testing.T) {
	c := newConnectionManager()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < ShortRetryLimit; i++ {
		c.OnDisconnected(now)
		assert.Equal(t, StateTryReconnect, c.State())
	}
	c.OnDisconnected(now)
	assert.Equal(t, StateConnectError, c.State())
	assert.False(t, c.ReadyToReconnect(now))
	assert.True(t, c.ReadyToReconnect(now.Add(LongRetryPause)))
}

func TestConnectionManagerOnlineDebounce(t *testing.T) {
	c := newConnectionManager()
	now := time.Unix(1_700_000_000, 0)
	c.OnConnected(now)
	assert.True(t, c.Online(now), "must report online immediately on connect")

	c.OnDisconnected(now)
	assert.True(t, c.Online(now), "must stay online through the falling-edge debounce window")
	assert.True(t, c.Online(now.Add(OnlineOfflineDebounce-time.Second)))
	assert.False(t, c.Online(now.Add(OnlineOfflineDebounce)))
}

func TestConnectionManagerCloudPauseCountsAsOnline(t *testing.T) {
	c := newConnectionManager()
	now := time.Unix(1_700_000_000, 0)
	c.OnConnected(now)
	c.EnterCloudPause(now.Add(time.Second))
	assert.True(t, c.Online(now.Add(time.Second)))
}

func TestConnectionManagerResetsShortRetriesOnConnect(t *testing.T) {
	c := newConnectionManager()
	now := time.Unix(1_700_000_000, 0)
	c.OnDisconnected(now)
	c.OnDisconnected(now)
	c.OnConnected(now)
	assert.Equal(t, 0, c.shortRetries)
}

func TestCloudSchedulerEntersAndExitsWindow(t *testing.T) {
	var s cloudScheduler
	inWindow := time.Date(2026, 1, 1, 0, 14, 45, 0, time.UTC)
	assert.True(t, s.Tick(inWindow, true))
	assert.True(t, s.Tick(inWindow.Add(CloudUploadDuration-time.Second), true))
	assert.False(t, s.Tick(inWindow.Add(CloudUploadDuration+time.Second), true))
}

func TestCloudSchedulerDisabledNeverPauses(t *testing.T) {
	var s cloudScheduler
	inWindow := time.Date(2026, 1, 1, 0, 14, 45, 0, time.UTC)
	assert.False(t, s.Tick(inWindow, false))
}

func TestInCloudWindowBoundaries(t *testing.T) {
	assert.True(t, InCloudWindow(time.Date(2026, 1, 1, 0, 59, 40, 0, time.UTC)))
	assert.False(t, InCloudWindow(time.Date(2026, 1, 1, 0, 59, 39, 0, time.UTC)))
	assert.False(t, InCloudWindow(time.Date(2026, 1, 1, 0, 58, 59, 0, time.UTC)))
}
