package dtu

import (
	"testing"
	"time"

	"github.com/ohand/dtugateway/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRealDataAcceptsClockSkewedTimestamp(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	v := newValidator(func() time.Time { return fixed })

	var s Snapshot
	d := protocol.RealData{Timestamp: uint32(fixed.Add(-time.Hour).Unix()), GridVoltage: 230}
	reason := s.ApplyRealData(d, v)
	assert.Equal(t, ResetReason(""), reason, "a DTU clock merely differing from the gateway's must not raise NO_TIME")
	assert.True(t, s.UpdateReceived)
}

func TestApplyRealDataRejectsRepeatedTimestamp(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	v := newValidator(func() time.Time { return fixed })

	var s Snapshot
	d := protocol.RealData{Timestamp: uint32(fixed.Unix()), GridVoltage: 230}
	require.Equal(t, ResetReason(""), s.ApplyRealData(d, v))

	reason := s.ApplyRealData(d, v)
	assert.Equal(t, ResetReasonNoTime, reason, "an identical respTimestamp every poll must raise NO_TIME")
	assert.False(t, s.Uptodate)
}

func TestApplyRealDataRejectsZeroTimestamp(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	v := newValidator(func() time.Time { return fixed })

	var s Snapshot
	reason := s.ApplyRealData(protocol.RealData{Timestamp: 0}, v)
	assert.Equal(t, ResetReasonNoTime, reason)
}

func TestApplyRealDataAcceptsFreshSample(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	v := newValidator(func() time.Time { return fixed })

	var s Snapshot
	d := protocol.RealData{Timestamp: uint32(fixed.Unix()), GridVoltage: 230, GridPower: 500}
	reason := s.ApplyRealData(d, v)
	require.Equal(t, ResetReason(""), reason)
	assert.True(t, s.UpdateReceived)
	assert.Equal(t, 230.0, s.GridVoltage)
}

func TestHangingGridVoltageTriggersReset(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	v := newValidator(func() time.Time { return fixed })

	var s Snapshot
	var reason ResetReason
	for i := 0; i < GridVoltageRingSize+1; i++ {
		d := protocol.RealData{Timestamp: uint32(fixed.Unix()) + uint32(i), GridVoltage: 230}
		reason = s.ApplyRealData(d, v)
	}
	assert.Equal(t, ResetReasonDataNoChange, reason)
}

func TestGridVoltageChangingNeverTriggersReset(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	v := newValidator(func() time.Time { return fixed })

	var s Snapshot
	var reason ResetReason
	for i := 0; i < GridVoltageRingSize*2; i++ {
		d := protocol.RealData{Timestamp: uint32(fixed.Unix()) + uint32(i), GridVoltage: 230 + float64(i%3)}
		reason = s.ApplyRealData(d, v)
	}
	assert.Equal(t, ResetReason(""), reason)
}

func TestCheckStalenessZeroesSnapshotAfterFallback(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	v := newValidator(func() time.Time { return start })

	var s Snapshot
	d := protocol.RealData{Timestamp: uint32(start.Unix()), GridVoltage: 230}
	require.Equal(t, ResetReason(""), s.ApplyRealData(d, v))
	s.UpdateReceived = false

	later := start.Add(StalenessFallback + time.Second)
	fired := s.CheckStaleness(later)
	assert.True(t, fired)
	assert.Equal(t, 0.0, s.GridVoltage)
	assert.True(t, s.UpdateReceived)
}

func TestCheckStalenessNoopBeforeFallback(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	v := newValidator(func() time.Time { return start })

	var s Snapshot
	d := protocol.RealData{Timestamp: uint32(start.Unix()), GridVoltage: 230}
	s.ApplyRealData(d, v)

	fired := s.CheckStaleness(start.Add(time.Second))
	assert.False(t, fired)
	assert.Equal(t, 230.0, s.GridVoltage)
}

func TestApplyPowerLimitUnknownSentinel(t *testing.T) {
	var s Snapshot
	s.ApplyPowerLimit(protocol.GetConfig{PowerLimit: protocol.PowerLimitUnknown})
	assert.False(t, s.PowerLimitKnown)

	s.ApplyPowerLimit(protocol.GetConfig{PowerLimit: 80})
	assert.True(t, s.PowerLimitKnown)
	assert.Equal(t, int32(80), s.PowerLimit)
}

func TestPV1EnergyGuardedByPV0Total(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	v := newValidator(func() time.Time { return fixed })

	var s Snapshot
	d := protocol.RealData{Timestamp: uint32(fixed.Unix()), PV0TotalEnergy: 0, PV1TotalEnergy: 42}
	s.ApplyRealData(d, v)
	assert.Equal(t, 0.0, s.PV1TotalEnergy, "pv1 total energy should not update while pv0 total energy is zero")
}
