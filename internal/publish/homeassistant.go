package publish

import (
	"context"
	"encoding/json"
	"fmt"
)

// discoveryDevice is the device block every entity's discovery payload
// shares, matching mqttHandler.cpp's publishDiscoveryMessage.
type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// discoveryConfig is a Home Assistant MQTT sensor auto-discovery payload.
type discoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	Device            discoveryDevice `json:"device"`
}

// haEntity names one telemetry field's topic suffix, unit, and Home
// Assistant device class, mirrored from mqttHandler.cpp's fixed sensor
// list (grid_U/I/P, pv0_U/I/P, pv1_U/I/P, dailyEnergy/totalEnergy x3,
// inverter_Temp/PowerLimit/WifiRSSI); no timestamp entity is published.
type haEntity struct {
	topic       string
	label       string
	unit        string
	deviceClass string
	value       func(Snapshot) float64
}

var haEntities = []haEntity{
	{"grid_U", "Grid Voltage", "V", "voltage", func(s Snapshot) float64 { return s.GridVoltage }},
	{"grid_I", "Grid Current", "A", "current", func(s Snapshot) float64 { return s.GridCurrent }},
	{"grid_P", "Grid Power", "W", "power", func(s Snapshot) float64 { return s.GridPower }},
	{"grid_dailyEnergy", "Grid Daily Energy", "kWh", "energy", func(s Snapshot) float64 { return s.GridDailyEnergy }},
	{"grid_totalEnergy", "Grid Total Energy", "kWh", "energy", func(s Snapshot) float64 { return s.GridTotalEnergy }},
	{"pv0_U", "PV0 Voltage", "V", "voltage", func(s Snapshot) float64 { return s.PV0Voltage }},
	{"pv0_I", "PV0 Current", "A", "current", func(s Snapshot) float64 { return s.PV0Current }},
	{"pv0_P", "PV0 Power", "W", "power", func(s Snapshot) float64 { return s.PV0Power }},
	{"pv1_U", "PV1 Voltage", "V", "voltage", func(s Snapshot) float64 { return s.PV1Voltage }},
	{"pv1_I", "PV1 Current", "A", "current", func(s Snapshot) float64 { return s.PV1Current }},
	{"pv1_P", "PV1 Power", "W", "power", func(s Snapshot) float64 { return s.PV1Power }},
	{"pv0_dailyEnergy", "PV0 Daily Energy", "kWh", "energy", func(s Snapshot) float64 { return s.PV0DailyEnergy }},
	{"pv0_totalEnergy", "PV0 Total Energy", "kWh", "energy", func(s Snapshot) float64 { return s.PV0TotalEnergy }},
	{"pv1_dailyEnergy", "PV1 Daily Energy", "kWh", "energy", func(s Snapshot) float64 { return s.PV1DailyEnergy }},
	{"pv1_totalEnergy", "PV1 Total Energy", "kWh", "energy", func(s Snapshot) float64 { return s.PV1TotalEnergy }},
	{"inverter_Temp", "Inverter Temperature", "°C", "temperature", func(s Snapshot) float64 { return s.Temperature }},
	{"inverter_PowerLimit", "Inverter Power Limit", "%", "", func(s Snapshot) float64 { return float64(s.PowerLimit) }},
	{"inverter_WifiRSSI", "DTU Wifi RSSI", "%", "", func(s Snapshot) float64 { return float64(s.WifiRSSI) }},
}

// HomeAssistantPublisher builds Home Assistant MQTT discovery and state
// payloads and hands them to an injected Transport, grounded on
// mqttHandler.cpp's publishDiscoveryMessage/publishSensorData/reconnect.
type HomeAssistantPublisher struct {
	transport Transport
	prefix    string // e.g. "homeassistant"
	nodeID    string // unique per DTU, used in topics and unique_ids

	discoverySent bool
}

// NewHomeAssistantPublisher builds a publisher. prefix defaults to
// "homeassistant" and nodeID to "dtugateway" when empty.
func NewHomeAssistantPublisher(transport Transport, prefix, nodeID string) *HomeAssistantPublisher {
	if prefix == "" {
		prefix = "homeassistant"
	}
	if nodeID == "" {
		nodeID = "dtugateway"
	}
	return &HomeAssistantPublisher{transport: transport, prefix: prefix, nodeID: nodeID}
}

func (p *HomeAssistantPublisher) device() discoveryDevice {
	return discoveryDevice{
		Identifiers:  []string{p.nodeID},
		Name:         fmt.Sprintf("Hoymiles %s", p.nodeID),
		Manufacturer: "ohAnd",
		Model:        "ESP8266/ESP32",
	}
}

func (p *HomeAssistantPublisher) stateTopic(suffix string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/state", p.prefix, p.nodeID, suffix)
}

func (p *HomeAssistantPublisher) configTopic(suffix string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", p.prefix, p.nodeID, suffix)
}

// publishDiscovery sends one retained discovery config per entity, mirror
// of publishDiscoveryMessage. Only sent once per process lifetime, matching
// the source's one-shot discovery publish on (re)connect.
func (p *HomeAssistantPublisher) publishDiscovery(ctx context.Context) error {
	for _, e := range haEntities {
		cfg := discoveryConfig{
			Name:              e.label,
			UniqueID:          fmt.Sprintf("%s_%s", p.nodeID, e.topic),
			StateTopic:        p.stateTopic(e.topic),
			UnitOfMeasurement: e.unit,
			DeviceClass:       e.deviceClass,
			Device:            p.device(),
		}
		payload, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("publish: marshal discovery for %s: %w", e.topic, err)
		}
		if err := p.transport.Send(ctx, p.configTopic(e.topic), payload, true); err != nil {
			return fmt.Errorf("publish: send discovery for %s: %w", e.topic, err)
		}
	}
	return nil
}

// Publish implements Publisher: it sends discovery once, then the current
// state value for every entity except the power limit while it is unknown,
// mirroring publishSensorData/publishStandardData.
func (p *HomeAssistantPublisher) Publish(ctx context.Context, snap Snapshot) error {
	if !p.discoverySent {
		if err := p.publishDiscovery(ctx); err != nil {
			return err
		}
		p.discoverySent = true
	}
	for _, e := range haEntities {
		if e.topic == "inverter_PowerLimit" && !snap.PowerLimitKnown {
			continue
		}
		payload := []byte(fmt.Sprintf("%v", e.value(snap)))
		if err := p.transport.Send(ctx, p.stateTopic(e.topic), payload, false); err != nil {
			return fmt.Errorf("publish: send state for %s: %w", e.topic, err)
		}
	}
	return nil
}
