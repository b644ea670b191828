package dtu

import (
	"time"

	"github.com/ohand/dtugateway/internal/protocol"
)

// Snapshot is the telemetry data store: the last good reading plus the
// bookkeeping the validators need. The executor goroutine owns it
// exclusively; callers on other goroutines only ever see a copy (see
// Client.Snapshot).
type Snapshot struct {
	Timestamp time.Time

	PV0Voltage, PV0Current, PV0Power float64
	PV1Voltage, PV1Current, PV1Power float64
	PV0DailyEnergy, PV0TotalEnergy   float64
	PV1DailyEnergy, PV1TotalEnergy   float64

	GridVoltage, GridCurrent, GridPower, GridFreq float64
	GridDailyEnergy, GridTotalEnergy               float64
	Temperature                                    float64
	PowerLimit                                     int32
	PowerLimitKnown                                bool
	WifiRSSI                                        int32

	// Uptodate mirrors the source's uptodate scalar: true only while the
	// most recent response carried a respTimestamp that was both non-zero
	// and different from the one before it.
	Uptodate bool

	// DTUResetRequested counts every forced reset (NO_TIME, DATA_NO_CHANGE)
	// raised against this connection, mirroring the source's
	// dtuResetRequested counter.
	DTUResetRequested int

	// UpdateReceived is a one-shot flag: true once new data has landed
	// since the last time a consumer observed and cleared it.
	UpdateReceived bool

	lastReceived      time.Time
	lastRespTimestamp uint32
	gridRing          [GridVoltageRingSize]float64
	gridRingLen       int
	gridRingPos       int
}

// validator reports data-quality problems the watchdog should act on.
type validator struct {
	now func() time.Time
}

func newValidator(now func() time.Time) *validator {
	if now == nil {
		now = time.Now
	}
	return &validator{now: now}
}

// ApplyRealData merges a decoded RealDataNew response into the snapshot,
// running the freshness and hanging-value checks the source performs in
// checkingDataUpdate. It returns a non-empty ResetReason when the caller
// should force a watchdog reset, mirroring the original's behavior of
// tearing down the connection on bad data rather than trusting it.
func (s *Snapshot) ApplyRealData(d protocol.RealData, v *validator) ResetReason {
	now := v.now()

	// Timestamp freshness: zero or a repeat of the previous respTimestamp
	// both mean the DTU isn't giving us a new sample, and both force a
	// reset rather than trusting stale data (the source's checkingDataUpdate).
	if d.Timestamp == 0 {
		s.Uptodate = false
		s.DTUResetRequested++
		return ResetReasonNoTime
	}
	if s.lastRespTimestamp != 0 && d.Timestamp == s.lastRespTimestamp {
		s.Uptodate = false
		s.DTUResetRequested++
		return ResetReasonNoTime
	}
	s.Uptodate = true
	s.lastRespTimestamp = d.Timestamp

	if s.pushGridVoltage(d.GridVoltage) {
		s.Uptodate = false
		s.DTUResetRequested++
		return ResetReasonDataNoChange
	}

	ts := time.Unix(int64(d.Timestamp), 0)
	if absDuration(ts.Sub(s.Timestamp)) > TimestampSyncTolerance {
		s.Timestamp = ts
	}
	s.PV0Voltage, s.PV0Current, s.PV0Power = d.PV0Voltage, d.PV0Current, d.PV0Power
	s.PV1Voltage, s.PV1Current, s.PV1Power = d.PV1Voltage, d.PV1Current, d.PV1Power
	s.PV0DailyEnergy, s.PV0TotalEnergy = d.PV0DailyEnergy, d.PV0TotalEnergy
	s.PV1DailyEnergy = d.PV1DailyEnergy

	// The source only recomputes pv1's total energy when pv0's total
	// energy is non-zero; preserved here rather than "fixed," per
	// SPEC_FULL.md's Open Question resolution.
	if d.PV0TotalEnergy != 0 {
		s.PV1TotalEnergy = d.PV1TotalEnergy
	}

	s.GridVoltage, s.GridCurrent, s.GridPower, s.GridFreq = d.GridVoltage, d.GridCurrent, d.GridPower, d.GridFreq
	// Invariant: grid energy is always the sum of both PV strings.
	s.GridDailyEnergy = s.PV0DailyEnergy + s.PV1DailyEnergy
	s.GridTotalEnergy = s.PV0TotalEnergy + s.PV1TotalEnergy
	s.Temperature = d.Temperature
	s.WifiRSSI = d.WifiRSSI
	s.lastReceived = now
	s.UpdateReceived = true
	return ""
}

// ApplyPowerLimit folds in a GetConfig response's notion of the power limit.
func (s *Snapshot) ApplyPowerLimit(cfg protocol.GetConfig) {
	if cfg.PowerLimit == protocol.PowerLimitUnknown {
		s.PowerLimitKnown = false
		return
	}
	s.PowerLimit = cfg.PowerLimit
	s.PowerLimitKnown = true
}

// pushGridVoltage appends a sample to the 10-slot hanging-value ring and
// reports true once the ring is full and every sample is identical — the
// "DATA_NO_CHANGE" condition the source treats as a stuck sensor.
func (s *Snapshot) pushGridVoltage(v float64) bool {
	s.gridRing[s.gridRingPos] = v
	s.gridRingPos = (s.gridRingPos + 1) % GridVoltageRingSize
	if s.gridRingLen < GridVoltageRingSize {
		s.gridRingLen++
	}
	if s.gridRingLen < GridVoltageRingSize {
		return false
	}
	first := s.gridRing[0]
	for _, sample := range s.gridRing[1:] {
		if sample != first {
			return false
		}
	}
	return true
}

// CheckStaleness implements the source's checkingForLastDataReceived: if no
// good sample has landed in StalenessFallback, the snapshot is zeroed once
// (the "night" fallback) so downstream consumers see zeros rather than a
// frozen last-known-good reading.
func (s *Snapshot) CheckStaleness(now time.Time) bool {
	if s.lastReceived.IsZero() || now.Sub(s.lastReceived) < StalenessFallback {
		return false
	}
	// lastReceived is cleared too, so the fallback does not fire again until
	// a new sample has been applied.
	*s = Snapshot{}
	s.UpdateReceived = true
	return true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
