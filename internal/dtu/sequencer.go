package dtu

import (
	"time"

	"github.com/ohand/dtugateway/internal/protocol"
)

// sequencer drives the request/response transaction state. At most one
// request is outstanding; chained requests (real-data -> GetConfig,
// command -> GetConfig) are modeled as an explicit "next" step rather than
// nested callbacks, since the executor goroutine already serializes all of
// this.
type sequencer struct {
	state        TxRxState
	watchdogDue  time.Time
	pendingLimit int
}

func newSequencer() *sequencer {
	return &sequencer{state: TxRxIdle}
}

// begin transitions into waiting for a response and arms the 15s watchdog.
func (q *sequencer) begin(state TxRxState, now time.Time) {
	q.state = state
	q.watchdogDue = now.Add(TxRxWatchdogTimeout)
}

// Watchdog mirrors the source's txrxStateObserver: if a response hasn't
// arrived within TxRxWatchdogTimeout of the request, force the sequencer
// back to idle so the periodic driver can issue the next request. Returns
// true if it fired.
func (q *sequencer) Watchdog(now time.Time) bool {
	if q.state == TxRxIdle {
		return false
	}
	if now.Before(q.watchdogDue) {
		return false
	}
	q.state = TxRxIdle
	return true
}

// RequestRealData issues a RealDataNew request if the sequencer is idle.
func (q *sequencer) RequestRealData(now time.Time) ([]byte, bool) {
	if q.state != TxRxIdle {
		return nil, false
	}
	q.begin(TxRxWaitRealDataNew, now)
	return protocol.EncodeRealDataRequest(), true
}

// RequestCommand issues a power-limit Command request if idle. limit is in
// whole percent; the command carries it in tenths of a percent.
func (q *sequencer) RequestCommand(limit int, now time.Time) ([]byte, bool) {
	if q.state != TxRxIdle {
		return nil, false
	}
	q.pendingLimit = limit
	q.begin(TxRxWaitCommand, now)
	return protocol.EncodeCommandRequest(limit * 10), true
}

// RequestRestartDevice issues a RestartDevice request if idle.
func (q *sequencer) RequestRestartDevice(now time.Time) ([]byte, bool) {
	if q.state != TxRxIdle {
		return nil, false
	}
	q.begin(TxRxWaitRestartDevice, now)
	return protocol.EncodeRestartDeviceRequest(), true
}

// seqOutcome describes what the executor should do after a response lands.
type seqOutcome struct {
	realData     *protocol.RealData
	getConfig    *protocol.GetConfig
	chainRequest []byte // non-nil when a chained request must be sent next
	chainState   TxRxState
	err          error
}

// OnFrame consumes a decoded response body for the state currently being
// waited on, and reports any chained follow-up request. Frames for an
// opcode that isn't currently expected are ignored (the source discards
// responses that don't match txrxState).
func (q *sequencer) OnFrame(opcode protocol.Opcode, body []byte, now time.Time) seqOutcome {
	switch q.state {
	case TxRxWaitRealDataNew:
		if opcode != protocol.OpcodeRealDataNew {
			return seqOutcome{}
		}
		d, err := protocol.DecodeRealData(body)
		if err != nil {
			q.state = TxRxIdle
			return seqOutcome{err: err}
		}
		q.begin(TxRxWaitGetConfig, now)
		return seqOutcome{realData: &d, chainRequest: protocol.EncodeGetConfigRequest(), chainState: TxRxWaitGetConfig}

	case TxRxWaitGetConfig:
		if opcode != protocol.OpcodeGetConfig {
			return seqOutcome{}
		}
		cfg, err := protocol.DecodeGetConfig(body)
		q.state = TxRxIdle
		if err != nil {
			return seqOutcome{err: err}
		}
		return seqOutcome{getConfig: &cfg}

	case TxRxWaitCommand:
		if opcode != protocol.OpcodeCommand {
			return seqOutcome{}
		}
		q.begin(TxRxWaitGetConfig, now)
		return seqOutcome{chainRequest: protocol.EncodeGetConfigRequest(), chainState: TxRxWaitGetConfig}

	case TxRxWaitRestartDevice:
		if opcode != protocol.OpcodeCommand {
			return seqOutcome{}
		}
		q.state = TxRxIdle
		return seqOutcome{}

	default:
		return seqOutcome{}
	}
}

// State returns the current txrx state, for logging/metrics.
func (q *sequencer) State() TxRxState { return q.state }
