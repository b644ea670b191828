package dtu

import (
	"testing"
	"time"

	"github.com/ohand/dtugateway/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerOnlyOneInFlight(t *testing.T) {
	q := newSequencer()
	now := time.Unix(1_700_000_000, 0)

	_, ok := q.RequestRealData(now)
	require.True(t, ok)

	_, ok = q.RequestCommand(50, now)
	assert.False(t, ok, "a second request must not be issued while one is outstanding")
}

func TestSequencerWatchdogResetsAfterTimeout(t *testing.T) {
	q := newSequencer()
	now := time.Unix(1_700_000_000, 0)
	q.RequestRealData(now)

	assert.False(t, q.Watchdog(now.Add(TxRxWatchdogTimeout-time.Second)))
	assert.Equal(t, TxRxWaitRealDataNew, q.State())

	assert.True(t, q.Watchdog(now.Add(TxRxWatchdogTimeout+time.Second)))
	assert.Equal(t, TxRxIdle, q.State())
}

func TestSequencerChainsRealDataToGetConfig(t *testing.T) {
	q := newSequencer()
	now := time.Unix(1_700_000_000, 0)
	q.RequestRealData(now)

	body := make([]byte, 72)
	outcome := q.OnFrame(protocol.OpcodeRealDataNew, body, now)
	require.NotNil(t, outcome.realData)
	assert.NotNil(t, outcome.chainRequest)
	assert.Equal(t, TxRxWaitGetConfig, q.State())

	outcome = q.OnFrame(protocol.OpcodeGetConfig, []byte{0, 0, 0, 80}, now)
	require.NotNil(t, outcome.getConfig)
	assert.Equal(t, int32(80), outcome.getConfig.PowerLimit)
	assert.Equal(t, TxRxIdle, q.State())
}

func TestSequencerChainsCommandToGetConfig(t *testing.T) {
	q := newSequencer()
	now := time.Unix(1_700_000_000, 0)
	q.RequestCommand(50, now)

	outcome := q.OnFrame(protocol.OpcodeCommand, nil, now)
	assert.NotNil(t, outcome.chainRequest)
	assert.Equal(t, TxRxWaitGetConfig, q.State())
}

func TestSequencerIgnoresMismatchedOpcode(t *testing.T) {
	q := newSequencer()
	now := time.Unix(1_700_000_000, 0)
	q.RequestRealData(now)

	outcome := q.OnFrame(protocol.OpcodeGetConfig, []byte{0, 0, 0, 1}, now)
	assert.Nil(t, outcome.getConfig)
	assert.Equal(t, TxRxWaitRealDataNew, q.State(), "state must not change on an unexpected opcode")
}
