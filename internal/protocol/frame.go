package protocol

import (
	"encoding/binary"
	"fmt"
)

// Header byte layout, 10 bytes total:
//
//	[0:2]  magic       0x48 0x4D ("HM")
//	[2]    control     0xA3 for ordinary requests, 0x23 for RestartDevice
//	[3]    opcode      message kind, see Opcode* constants
//	[4:6]  fixed       0x00 0x01
//	[6:8]  crc         CRC-16/MODBUS of the body, big-endian
//	[8:10] length      len(body)+10, big-endian
const HeaderSize = 10

var magic = [2]byte{0x48, 0x4D}

// Control byte values that precede the opcode.
const (
	ControlNormal  byte = 0xA3
	ControlRestart byte = 0x23
)

// Opcode identifies the message kind carried in a frame.
type Opcode byte

const (
	OpcodeRealDataNew      Opcode = 0x11
	OpcodeGetConfig        Opcode = 0x09
	OpcodeCommand          Opcode = 0x05
	OpcodeAppGetHistPower  Opcode = 0x15
)

// Frame is a single length-prefixed, CRC-protected protocol unit.
type Frame struct {
	Control Opcode
	Opcode  Opcode
	Body    []byte

	// ValidateCRC is not read by Decode; CRC checking on receipt is chosen
	// by Decode's own validateCRC argument, which the transport passes as
	// false. The source computes this value but never checks it on receipt.
	ValidateCRC bool
}

// Encode renders control, opcode and body into the wire representation:
// 10-byte header followed by the body.
func Encode(control byte, opcode Opcode, body []byte) []byte {
	out := make([]byte, HeaderSize+len(body))
	out[0], out[1] = magic[0], magic[1]
	out[2] = control
	out[3] = byte(opcode)
	out[4], out[5] = 0x00, 0x01
	crc := CRC16(body)
	binary.BigEndian.PutUint16(out[6:8], crc)
	binary.BigEndian.PutUint16(out[8:10], uint16(HeaderSize+len(body)))
	copy(out[HeaderSize:], body)
	return out
}

// DecodedFrame is a parsed header plus its body.
type DecodedFrame struct {
	Control byte
	Opcode  Opcode
	CRC     uint16
	Length  uint16
	Body    []byte
}

// Decode parses a complete frame (header + body, as already split by the
// transport on the header's length field). It returns an error if the magic
// bytes are wrong, if the declared length doesn't match len(raw), or — when
// validateCRC is true — if the CRC doesn't match the body.
func Decode(raw []byte, validateCRC bool) (DecodedFrame, error) {
	if len(raw) < HeaderSize {
		return DecodedFrame{}, fmt.Errorf("protocol: frame too short: %d bytes", len(raw))
	}
	if raw[0] != magic[0] || raw[1] != magic[1] {
		return DecodedFrame{}, fmt.Errorf("protocol: bad magic %02x%02x", raw[0], raw[1])
	}
	length := binary.BigEndian.Uint16(raw[8:10])
	if int(length) != len(raw) {
		return DecodedFrame{}, fmt.Errorf("protocol: length mismatch: header says %d, got %d", length, len(raw))
	}
	body := raw[HeaderSize:]
	crc := binary.BigEndian.Uint16(raw[6:8])
	if validateCRC {
		if want := CRC16(body); want != crc {
			return DecodedFrame{}, fmt.Errorf("protocol: crc mismatch: header %04x computed %04x", crc, want)
		}
	}
	return DecodedFrame{
		Control: raw[2],
		Opcode:  Opcode(raw[3]),
		CRC:     crc,
		Length:  length,
		Body:    body,
	}, nil
}

// PeekLength reads the declared total frame length from a header that has
// already had at least HeaderSize bytes buffered. Used by the transport to
// know how many more bytes to read before a full frame is available.
func PeekLength(header []byte) (uint16, error) {
	if len(header) < HeaderSize {
		return 0, fmt.Errorf("protocol: short header: %d bytes", len(header))
	}
	return binary.BigEndian.Uint16(header[8:10]), nil
}
