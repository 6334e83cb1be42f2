// Package h4 frames HCI packets for UART transports.
package h4

import (
	"encoding/binary"
	"fmt"
)

// Packet indicators
const (
	Command = 0x01
	ACL     = 0x02
	SCO     = 0x03
	Event   = 0x04
)

// Encode prefixes packet with its indicator byte.
func Encode(indicator byte, packet []byte) []byte {
	result := make([]byte, 0, len(packet)+1)
	result = append(result, indicator)
	return append(result, packet...)
}

// headerLen returns the header size and the length field decoder for an
// indicator.
func headerLen(indicator byte) (int, func(hdr []byte) int, bool) {
	switch indicator {
	case Event:
		return 2, func(hdr []byte) int { return int(hdr[1]) }, true
	case ACL:
		return 4, func(hdr []byte) int { return int(binary.LittleEndian.Uint16(hdr[2:4])) }, true
	case SCO:
		return 3, func(hdr []byte) int { return int(hdr[2]) }, true
	case Command:
		return 3, func(hdr []byte) int { return int(hdr[2]) }, true
	}
	return 0, nil, false
}

// ReadFrame cuts one complete packet off the front of data. It returns a
// nil packet and data unchanged until a full packet is buffered.
func ReadFrame(data []byte) (indicator byte, packet []byte, remaining []byte, err error) {
	if len(data) == 0 {
		return 0, nil, data, nil
	}

	indicator = data[0]
	hlen, plen, ok := headerLen(indicator)
	if !ok {
		return indicator, nil, data, fmt.Errorf("unknown packet indicator 0x%02X", indicator)
	}

	body := data[1:]
	if len(body) < hlen {
		return indicator, nil, data, nil
	}
	size := hlen + plen(body)
	if len(body) < size {
		return indicator, nil, data, nil
	}

	return indicator, body[:size:size], body[size:], nil
}
