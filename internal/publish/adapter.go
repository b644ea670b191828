package publish

import "github.com/ohand/dtugateway/internal/dtu"

// FromDTU copies the fields of a dtu.Snapshot into the publisher-facing
// Snapshot, keeping the publish package decoupled from the client's
// internal bookkeeping fields (ring buffer state, last-received clock).
func FromDTU(s dtu.Snapshot) Snapshot {
	return Snapshot{
		Timestamp:      s.Timestamp,
		PV0Voltage:     s.PV0Voltage,
		PV0Current:     s.PV0Current,
		PV0Power:       s.PV0Power,
		PV1Voltage:     s.PV1Voltage,
		PV1Current:     s.PV1Current,
		PV1Power:       s.PV1Power,
		PV0DailyEnergy: s.PV0DailyEnergy,
		PV0TotalEnergy: s.PV0TotalEnergy,
		PV1DailyEnergy: s.PV1DailyEnergy,
		PV1TotalEnergy: s.PV1TotalEnergy,
		GridVoltage:     s.GridVoltage,
		GridCurrent:     s.GridCurrent,
		GridPower:       s.GridPower,
		GridFreq:        s.GridFreq,
		GridDailyEnergy: s.GridDailyEnergy,
		GridTotalEnergy: s.GridTotalEnergy,
		Temperature:     s.Temperature,
		PowerLimit:      s.PowerLimit,
		PowerLimitKnown: s.PowerLimitKnown,
		WifiRSSI:        s.WifiRSSI,
	}
}
