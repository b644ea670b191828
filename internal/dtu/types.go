// Package dtu implements the client-side state machine that talks to a
// Hoymiles-style DTU over its binary TCP protocol: connection lifecycle,
// transaction sequencing, telemetry validation, and cloud-coexistence
// scheduling.
package dtu

import "time"

// ConnectionState is the lifecycle state of the socket to the DTU.
type ConnectionState int

const (
	StateOffline ConnectionState = iota
	StateTryReconnect
	StateConnected
	StateCloudPause
	StateConnectError
	StateDTUReboot
	StateStopped
)

func (s ConnectionState) String() string {
	switch s {
	case StateOffline:
		return "OFFLINE"
	case StateTryReconnect:
		return "TRY_RECONNECT"
	case StateConnected:
		return "CONNECTED"
	case StateCloudPause:
		return "CLOUD_PAUSE"
	case StateConnectError:
		return "CONNECT_ERROR"
	case StateDTUReboot:
		return "DTU_REBOOT"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// TxRxState is the in-flight transaction state of the request/response
// sequencer. Only one request may be outstanding at a time.
type TxRxState int

const (
	TxRxIdle TxRxState = iota
	TxRxWaitRealDataNew
	TxRxWaitAppGetHistPower
	TxRxWaitGetConfig
	TxRxWaitCommand
	TxRxWaitRestartDevice
)

func (s TxRxState) String() string {
	switch s {
	case TxRxIdle:
		return "IDLE"
	case TxRxWaitRealDataNew:
		return "WAIT_REALDATANEW"
	case TxRxWaitAppGetHistPower:
		return "WAIT_APPGETHISTPOWER"
	case TxRxWaitGetConfig:
		return "WAIT_GETCONFIG"
	case TxRxWaitCommand:
		return "WAIT_COMMAND"
	case TxRxWaitRestartDevice:
		return "WAIT_RESTARTDEVICE"
	default:
		return "UNKNOWN"
	}
}

// Timing constants lifted from the source's hardcoded intervals.
const (
	TickInterval          = 5 * time.Second
	KeepAliveInterval      = 10 * time.Second
	TxRxWatchdogTimeout    = 15 * time.Second
	OnlineOfflineDebounce  = 90 * time.Second
	StalenessFallback      = 180 * time.Second
	ShortRetryLimit        = 5
	LongRetryPause         = 60 * time.Second
	CloudUploadDuration    = 40 * time.Second
	GridVoltageRingSize    = 10
	TimestampSyncTolerance = 3 * time.Second
)

// ResetReason labels why the data store forced a watchdog reset, for
// metrics/logging.
type ResetReason string

const (
	ResetReasonNoTime        ResetReason = "NO_TIME"
	ResetReasonDataNoChange  ResetReason = "DATA_NO_CHANGE"
)
