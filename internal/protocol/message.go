package protocol

import (
	"encoding/binary"
	"fmt"
)

// calcValue rescales a raw integer field by the divider the DTU encodes it
// with (e.g. current arrives as centiamps, divider 100 yields amps).
func calcValue(raw int32, divider float64) float64 {
	if divider == 0 {
		return float64(raw)
	}
	return float64(raw) / divider
}

// RealData is the decoded body of a RealDataNew (0x11) response: one
// sampling pass over both PV strings and the grid tie.
type RealData struct {
	Timestamp uint32

	PV0Voltage float64 // volts, divider 1
	PV0Current float64 // amps, divider 100
	PV0Power   float64 // watts, divider 1

	PV1Voltage float64
	PV1Current float64
	PV1Power   float64

	PV0DailyEnergy float64 // kWh, divider 1000
	PV0TotalEnergy float64
	PV1DailyEnergy float64
	PV1TotalEnergy float64

	GridVoltage  float64 // volts, divider 1
	GridCurrent  float64 // amps, divider 100
	GridPower    float64 // watts, divider 1
	GridFreq     float64 // Hz, divider 100

	Temperature float64 // celsius, divider 1
	PowerLimit  int32    // percent; 254 means "unknown", see PowerLimitUnknown
	WifiRSSI    int32    // percent
}

// PowerLimitUnknown is the sentinel the DTU reports when it hasn't learned
// the inverter's configured power limit yet.
const PowerLimitUnknown = 254

// 18 big-endian int32 fields: timestamp, 6 PV electrical readings, 4 PV
// energy counters, 4 grid readings, temperature, power limit, wifi RSSI.
const realDataBodyLen = 18 * 4

// DecodeRealData parses a RealDataNew response body.
func DecodeRealData(body []byte) (RealData, error) {
	if len(body) < realDataBodyLen {
		return RealData{}, fmt.Errorf("protocol: short RealDataNew body: %d bytes", len(body))
	}
	r := func(off int) int32 { return int32(binary.BigEndian.Uint32(body[off : off+4])) }

	var d RealData
	d.Timestamp = binary.BigEndian.Uint32(body[0:4])
	d.PV0Voltage = calcValue(r(4), 1)
	d.PV0Current = calcValue(r(8), 100)
	d.PV0Power = calcValue(r(12), 1)
	d.PV1Voltage = calcValue(r(16), 1)
	d.PV1Current = calcValue(r(20), 100)
	d.PV1Power = calcValue(r(24), 1)
	d.PV0DailyEnergy = calcValue(r(28), 1000)
	d.PV0TotalEnergy = calcValue(r(32), 1000)
	d.PV1DailyEnergy = calcValue(r(36), 1000)
	d.PV1TotalEnergy = calcValue(r(40), 1000)
	d.GridVoltage = calcValue(r(44), 1)
	d.GridCurrent = calcValue(r(48), 100)
	d.GridPower = calcValue(r(52), 1)
	d.GridFreq = calcValue(r(56), 100)
	d.Temperature = calcValue(r(60), 1)
	d.PowerLimit = r(64)
	d.WifiRSSI = r(68)
	return d, nil
}

// EncodeRealDataRequest builds the (empty-bodied) RealDataNew request frame.
func EncodeRealDataRequest() []byte {
	return Encode(ControlNormal, OpcodeRealDataNew, nil)
}

// GetConfig is the decoded body of a GetConfig (0x09) response: the
// inverter's own notion of its configured limit, used to chain and confirm
// a SetPowerLimit command.
type GetConfig struct {
	PowerLimit int32
}

// DecodeGetConfig parses a GetConfig response body.
func DecodeGetConfig(body []byte) (GetConfig, error) {
	if len(body) < 4 {
		return GetConfig{}, fmt.Errorf("protocol: short GetConfig body: %d bytes", len(body))
	}
	return GetConfig{PowerLimit: int32(binary.BigEndian.Uint32(body[0:4]))}, nil
}

// EncodeGetConfigRequest builds the (empty-bodied) GetConfig request frame.
func EncodeGetConfigRequest() []byte {
	return Encode(ControlNormal, OpcodeGetConfig, nil)
}

// clampPowerLimit mirrors the source's writeReqCommand clamp: the inverter
// refuses limits outside [20,1000] (the unit is tenths of a percent there;
// callers of this package work in whole percent, see Client.SetPowerLimit).
func clampPowerLimit(limit int) int {
	if limit < 20 {
		return 20
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// EncodeCommandRequest builds a power-limit Command (0x05) request. limit is
// clamped to the inverter's accepted range before encoding. The payload is
// the ASCII line the DTU's firmware expects: "A:<limit>,B:0,C:0\r".
func EncodeCommandRequest(limit int) []byte {
	limit = clampPowerLimit(limit)
	body := []byte(fmt.Sprintf("A:%d,B:0,C:0\r", limit))
	return Encode(ControlNormal, OpcodeCommand, body)
}

// EncodeRestartDeviceRequest builds the RestartDevice request. It reuses the
// Command opcode but with the 0x23 control byte, per the source.
func EncodeRestartDeviceRequest() []byte {
	return Encode(ControlRestart, OpcodeCommand, nil)
}

// EncodeAppGetHistPowerRequest builds the AppGetHistPower (0x15) request.
// Nothing in this gateway consumes the response; the hook exists because the
// source defines the message and a future historical-ingestion feature may
// want it (see SPEC_FULL.md Non-goals).
func EncodeAppGetHistPowerRequest() []byte {
	return Encode(ControlNormal, OpcodeAppGetHistPower, nil)
}
