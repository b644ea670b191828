// Package publish forwards telemetry snapshots to a downstream consumer.
// The wire transport (MQTT broker connection, HTTP push, etc.) is left as
// the Transport interface below — no MQTT client library exists anywhere
// in the example pack this gateway draws from, and the spec places the
// broker connection out of scope, so it is specified only at its
// interface, per SPEC_FULL.md §4.13.
package publish

import (
	"context"
	"log/slog"
	"time"
)

// Snapshot is the subset of dtu.Snapshot a publisher needs. It is passed by
// value so a publisher never shares mutable client state across goroutines.
type Snapshot struct {
	Timestamp time.Time

	PV0Voltage, PV0Current, PV0Power float64
	PV1Voltage, PV1Current, PV1Power float64
	PV0DailyEnergy, PV0TotalEnergy   float64
	PV1DailyEnergy, PV1TotalEnergy   float64

	GridVoltage, GridCurrent, GridPower, GridFreq float64
	GridDailyEnergy, GridTotalEnergy              float64
	Temperature                                   float64
	PowerLimit                                    int32
	PowerLimitKnown                               bool
	WifiRSSI                                       int32
}

// Publisher consumes one telemetry snapshot.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Transport is the downstream wire transport a Publisher hands
// already-built messages to. A concrete MQTT implementation is the
// caller's responsibility to supply (see package docs above).
type Transport interface {
	Send(ctx context.Context, topic string, payload []byte, retain bool) error
}

// LogPublisher writes a structured log line per snapshot. It is the
// default publisher: the simplest possible sink, useful standalone and as
// a fallback when no Transport is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher builds a LogPublisher, defaulting to slog.Default().
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(ctx context.Context, snap Snapshot) error {
	p.logger.InfoContext(ctx, "telemetry snapshot",
		"grid_voltage", snap.GridVoltage,
		"grid_power", snap.GridPower,
		"pv0_power", snap.PV0Power,
		"pv1_power", snap.PV1Power,
		"temperature", snap.Temperature,
		"power_limit", snap.PowerLimit,
		"power_limit_known", snap.PowerLimitKnown,
		"rssi", snap.WifiRSSI,
	)
	return nil
}
