package dtu

import "time"

// cloudWindowMinutes are the quarter-hour marks at which the inverter's own
// cloud uplink is expected to transmit; the source pauses its own polling
// around these marks to avoid contending with it on a single serial/modbus
// peer inside the inverter.
var cloudWindowMinutes = map[int]struct{}{59: {}, 14: {}, 29: {}, 44: {}}

// InCloudWindow reports whether now falls inside a cloud-coexistence pause
// window: one of the quarter-hour marks, at second 40 or later, matching
// the source's cloudPauseActiveControl.
func InCloudWindow(now time.Time) bool {
	if _, ok := cloudWindowMinutes[now.Minute()]; !ok {
		return false
	}
	return now.Second() >= 40
}

// cloudScheduler tracks whether a pause is currently active and when it
// should end, so the periodic driver only needs to call Tick once per
// period.
type cloudScheduler struct {
	active  bool
	pauseAt time.Time
}

// Tick evaluates the schedule for now and reports whether the caller should
// be paused. enabled corresponds to the operator's preventCloudErrors flag;
// when false the scheduler never reports a pause.
func (s *cloudScheduler) Tick(now time.Time, enabled bool) bool {
	if !enabled {
		s.active = false
		return false
	}
	if s.active {
		if now.Sub(s.pauseAt) >= CloudUploadDuration {
			s.active = false
		}
		return s.active
	}
	if InCloudWindow(now) {
		s.active = true
		s.pauseAt = now
		return true
	}
	return false
}
