package dtu

import "time"

// connectionManager owns the OFFLINE/TRY_RECONNECT/CONNECTED/... state
// machine, the short/long retry policy, and the 90s online/offline
// debounce, mirroring the source's dtuConnectionObserver and the retry
// bookkeeping inlined in dtuLoop.
type connectionManager struct {
	state ConnectionState

	shortRetries int
	pauseUntil   time.Time

	lastStateChange time.Time
	offlineSince    time.Time // zero while online; set the instant it stops being online
}

func newConnectionManager() *connectionManager {
	return &connectionManager{state: StateOffline}
}

func (c *connectionManager) State() ConnectionState { return c.state }

// isOnlineState reports whether state counts as "online" per
// dtuConnectionObserver: CONNECTED and CLOUD_PAUSE both do, since the cloud
// pause is a deliberate, temporary hold rather than a lost connection.
func (c *connectionManager) isOnlineState() bool {
	return c.state == StateConnected || c.state == StateCloudPause
}

// transition moves to a new state, tracking the instant the connection last
// left an online state so Online can debounce the falling edge.
func (c *connectionManager) transition(state ConnectionState, now time.Time) {
	if c.state == state {
		return
	}
	wasOnline := c.isOnlineState()
	c.state = state
	c.lastStateChange = now
	switch {
	case wasOnline && !c.isOnlineState():
		c.offlineSince = now
	case c.isOnlineState():
		c.offlineSince = time.Time{}
	}
}

// Online reports the debounced online/offline flag: true immediately on
// connect, and remains true for OnlineOfflineDebounce after the connection
// stops being CONNECTED/CLOUD_PAUSE, matching dtuConnectionObserver's
// debounce on the falling edge only.
func (c *connectionManager) Online(now time.Time) bool {
	if c.isOnlineState() {
		return true
	}
	if c.offlineSince.IsZero() {
		return false
	}
	return now.Sub(c.offlineSince) < OnlineOfflineDebounce
}

// OnConnected handles the transport's connected event.
func (c *connectionManager) OnConnected(now time.Time) {
	c.shortRetries = 0
	c.transition(StateConnected, now)
}

// OnDisconnected handles the transport's disconnected event, moving to
// either a short retry or — once ShortRetryLimit has been exhausted — a
// 60s long-retry pause, matching the source's escalation.
func (c *connectionManager) OnDisconnected(now time.Time) {
	if c.state == StateStopped || c.state == StateDTUReboot {
		return
	}
	c.shortRetries++
	if c.shortRetries > ShortRetryLimit {
		c.pauseUntil = now.Add(LongRetryPause)
		c.transition(StateConnectError, now)
		return
	}
	c.transition(StateTryReconnect, now)
}

// OnError handles a transport or protocol error severe enough to force a
// DTU reboot request, mirroring the source's handleError.
func (c *connectionManager) OnError(now time.Time) {
	c.transition(StateDTUReboot, now)
}

// ReadyToReconnect reports whether the periodic driver should attempt a new
// dial this tick.
func (c *connectionManager) ReadyToReconnect(now time.Time) bool {
	switch c.state {
	case StateOffline, StateTryReconnect:
		return true
	case StateConnectError:
		return !now.Before(c.pauseUntil)
	default:
		return false
	}
}

// EnterCloudPause suspends connection activity for the cloud-coexistence
// window (see cloudpause.go).
func (c *connectionManager) EnterCloudPause(now time.Time) {
	c.transition(StateCloudPause, now)
}

// ExitCloudPause resumes normal operation once the coexistence window ends.
func (c *connectionManager) ExitCloudPause(now time.Time) {
	c.transition(StateOffline, now)
}

// Stop transitions to the terminal STOPPED state; the periodic driver exits
// the executor loop once it observes this.
func (c *connectionManager) Stop(now time.Time) {
	c.transition(StateStopped, now)
}
