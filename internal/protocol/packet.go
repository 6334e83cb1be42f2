package protocol

import (
	"encoding/binary"
	"fmt"
)

// HCICommandHeaderSize is opcode(2) + parameter length(1).
const HCICommandHeaderSize = 3

// MaxHCIParamLen is the largest parameter block an HCI command can carry.
const MaxHCIParamLen = 255

// Command is an HCI command packet.
type Command struct {
	Opcode uint16
	Params []byte
}

// NewCommand creates a command, rejecting parameter blocks that do not fit
// the one-byte length field.
func NewCommand(opcode uint16, params []byte) (*Command, error) {
	if len(params) > MaxHCIParamLen {
		return nil, fmt.Errorf("hci command 0x%04X: parameters too long: %d bytes", opcode, len(params))
	}
	return &Command{Opcode: opcode, Params: params}, nil
}

// Encode serializes the command header and parameters.
func (c *Command) Encode() []byte {
	// Packet format:
	// 0-1: opcode (little-endian)
	// 2: parameter length
	// 3+: parameters
	packet := make([]byte, HCICommandHeaderSize+len(c.Params))
	binary.LittleEndian.PutUint16(packet[0:2], c.Opcode)
	packet[2] = byte(len(c.Params))
	copy(packet[3:], c.Params)
	return packet
}

// Event is a decoded HCI event packet.
type Event struct {
	Code   byte
	Params []byte
}

// DecodeEvent parses a raw HCI event: code(1) + parameter length(1) + params.
func DecodeEvent(data []byte) (*Event, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("event too short: %d bytes", len(data))
	}

	plen := int(data[1])
	if plen > len(data)-2 {
		return nil, fmt.Errorf("event size mismatch: expected %d, have %d", plen, len(data)-2)
	}

	return &Event{
		Code:   data[0],
		Params: data[2 : 2+plen],
	}, nil
}

// CommandOpcode returns the opcode a Command Complete or Command Status event
// refers to.
func (e *Event) CommandOpcode() (uint16, bool) {
	switch e.Code {
	case EventCommandComplete:
		// ncmd(1) + opcode(2)
		if len(e.Params) < 3 {
			return 0, false
		}
		return binary.LittleEndian.Uint16(e.Params[1:3]), true
	case EventCommandStatus:
		// status(1) + ncmd(1) + opcode(2)
		if len(e.Params) < 4 {
			return 0, false
		}
		return binary.LittleEndian.Uint16(e.Params[2:4]), true
	}
	return 0, false
}

// Payload returns the part of the event handed back to vendor command
// callers: the full parameter block of a vendor event, or the return
// parameters of a Command Complete event.
func (e *Event) Payload() []byte {
	if e.Code == EventCommandComplete {
		if len(e.Params) < 3 {
			return nil
		}
		return e.Params[3:]
	}
	return e.Params
}

// EDLHeaderSize is cresp(1) + rtype(1).
const EDLHeaderSize = 2

// EDLResponse is the EDL event header followed by its payload.
type EDLResponse struct {
	CResp byte
	RType byte
	Data  []byte
}

// EDLExpect describes the acceptable shape of an EDL response.
type EDLExpect struct {
	Length int
	CResp  byte
	RType  byte
}

// DecodeEDL validates payload against want and splits off the header. Any
// length, cresp or rtype difference is a protocol mismatch.
func DecodeEDL(payload []byte, want EDLExpect) (*EDLResponse, error) {
	if len(payload) != want.Length {
		return nil, &Error{
			Kind: KindProtocolMismatch,
			Op:   "edl response",
			Err:  &MismatchError{Field: "length", Expected: want.Length, Actual: len(payload)},
		}
	}
	if len(payload) < EDLHeaderSize {
		return nil, Errorf(KindProtocolMismatch, "edl response", "no header: %d bytes", len(payload))
	}

	resp := &EDLResponse{
		CResp: payload[0],
		RType: payload[1],
		Data:  payload[2:],
	}

	if resp.CResp != want.CResp {
		return nil, &Error{
			Kind: KindProtocolMismatch,
			Op:   "edl response",
			Err:  &MismatchError{Field: "cresp", Expected: int(want.CResp), Actual: int(resp.CResp)},
		}
	}
	if resp.RType != want.RType {
		return nil, &Error{
			Kind: KindProtocolMismatch,
			Op:   "edl response",
			Err:  &MismatchError{Field: "rtype", Expected: int(want.RType), Actual: int(resp.RType)},
		}
	}

	return resp, nil
}

// TLVSegmentParams builds the parameter block of an EDL TLV download command.
func TLVSegmentParams(segment []byte) []byte {
	params := make([]byte, 2+len(segment))
	params[0] = EDLPatchTLVReq
	params[1] = byte(len(segment))
	copy(params[2:], segment)
	return params
}

// DisableLoggingParams builds the parameter block that turns off SoC logging.
func DisableLoggingParams() []byte {
	return []byte{DisableLoggingSubOp, 0x00}
}

// BDAddrNVMParams builds the Rome NVM-access parameter block that writes a
// Bluetooth device address.
func BDAddrNVMParams(addr [6]byte) []byte {
	params := make([]byte, 3+len(addr))
	params[0] = EDLNVMAccessSetReq
	params[1] = TagBDAddr
	params[2] = byte(len(addr))
	copy(params[3:], addr[:])
	return params
}
