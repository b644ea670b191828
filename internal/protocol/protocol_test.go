package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16KnownVector(t *testing.T) {
	// Modbus RTU reference vector: 0x01 0x03 0x00 0x00 0x00 0x0A -> CRC 0xC5CD (low,high swapped in wire order).
	got := CRC16([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A})
	assert.Equal(t, uint16(0xCDC5), got)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	body := []byte("A:100,B:0,C:0\r")
	frame := Encode(ControlNormal, OpcodeCommand, body)

	length, err := PeekLength(frame[:HeaderSize])
	require.NoError(t, err)
	assert.Equal(t, uint16(len(frame)), length)

	d, err := Decode(frame, true)
	require.NoError(t, err)
	assert.Equal(t, ControlNormal, d.Control)
	assert.Equal(t, OpcodeCommand, d.Opcode)
	assert.Equal(t, body, d.Body)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	frame := Encode(ControlNormal, OpcodeRealDataNew, nil)
	frame[0] = 0x00
	_, err := Decode(frame, false)
	assert.Error(t, err)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	frame := Encode(ControlNormal, OpcodeRealDataNew, []byte{1, 2, 3})
	_, err := Decode(frame[:len(frame)-1], false)
	assert.Error(t, err)
}

func TestDecodeCRCValidationOptedIn(t *testing.T) {
	frame := Encode(ControlNormal, OpcodeCommand, []byte("A:50,B:0,C:0\r"))
	frame[len(frame)-1] ^= 0xFF // corrupt body without touching header CRC
	_, err := Decode(frame, false)
	assert.NoError(t, err, "CRC validation is opt-in and off by default")
	_, err = Decode(frame, true)
	assert.Error(t, err, "opting in to CRC validation must catch the corruption")
}

func TestEncodeCommandClampsPowerLimit(t *testing.T) {
	below := Encode(ControlNormal, OpcodeCommand, []byte("A:20,B:0,C:0\r"))
	got := EncodeCommandRequest(5)
	assert.Equal(t, below, got)

	above := Encode(ControlNormal, OpcodeCommand, []byte("A:1000,B:0,C:0\r"))
	got = EncodeCommandRequest(5000)
	assert.Equal(t, above, got)
}

func TestEncodeRestartDeviceUsesRestartControlByte(t *testing.T) {
	frame := EncodeRestartDeviceRequest()
	d, err := Decode(frame, false)
	require.NoError(t, err)
	assert.Equal(t, ControlRestart, d.Control)
}

func TestDecodeRealDataAppliesDividers(t *testing.T) {
	body := make([]byte, realDataBodyLen)
	be := func(off int, v int32) {
		body[off] = byte(v >> 24)
		body[off+1] = byte(v >> 16)
		body[off+2] = byte(v >> 8)
		body[off+3] = byte(v)
	}
	be(0, 1000) // timestamp, a raw uint32 with no divider
	be(4, 235)  // PV0 voltage -> 235.0 (divider 1)
	be(48, 500) // grid current -> 5.0 (divider 100)
	be(64, PowerLimitUnknown)

	d, err := DecodeRealData(body)
	require.NoError(t, err)
	assert.Equal(t, 235.0, d.PV0Voltage)
	assert.Equal(t, 5.0, d.GridCurrent)
	assert.Equal(t, int32(PowerLimitUnknown), d.PowerLimit)
}

func TestDecodeRealDataRejectsShortBody(t *testing.T) {
	_, err := DecodeRealData(make([]byte, 4))
	assert.Error(t, err)
}

func TestDecodeGetConfig(t *testing.T) {
	body := []byte{0, 0, 0, 80}
	cfg, err := DecodeGetConfig(body)
	require.NoError(t, err)
	assert.Equal(t, int32(80), cfg.PowerLimit)
}
