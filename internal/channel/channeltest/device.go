// Package channeltest provides a scripted in-memory device for tests of the
// provisioning engine.
package channeltest

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// Call kinds recorded by MockDevice.
const (
	CallVendor  = "vendor"
	CallCommand = "command"
	CallBulk    = "bulk"
	CallReset   = "reset"
	CallConfig  = "config"
	CallOpen    = "open"
	CallClose   = "close"
)

// Call is one recorded interaction.
type Call struct {
	Kind    string
	Dir     channel.Direction
	Request uint8
	Opcode  uint16
	Data    []byte
}

// CommandHandler returns the raw events a command produces.
type CommandHandler func(opcode uint16, params []byte) [][]byte

// MockDevice simulates an attached controller. Vendor In requests are
// answered from per-request queues; the last queued answer repeats. An
// empty event queue reads as a timeout.
type MockDevice struct {
	mu sync.Mutex

	Calls []Call

	vendorIn  map[uint8][][]byte
	vendorErr map[uint8]error
	events    [][]byte

	// OnCommand is consulted for every HCI command sent.
	OnCommand CommandHandler

	// BulkErrAt fails the bulk write with this zero-based index when
	// BulkErr is set.
	BulkErrAt  int
	BulkErr    error
	bulkN      int
	CommandErr error
	ResetErr   error
	ConfigErr  error
	OpenErr    error

	Closed bool
}

// NewMockDevice creates an idle mock.
func NewMockDevice() *MockDevice {
	return &MockDevice{
		vendorIn:  make(map[uint8][][]byte),
		vendorErr: make(map[uint8]error),
	}
}

// AddVendorResponse queues data for the next In request with code request.
func (m *MockDevice) AddVendorResponse(request uint8, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vendorIn[request] = append(m.vendorIn[request], data)
}

// SetVendorError fails every request with code request.
func (m *MockDevice) SetVendorError(request uint8, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vendorErr[request] = err
}

// AddEvent queues a raw event.
func (m *MockDevice) AddEvent(raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, raw)
}

func (m *MockDevice) record(c Call) {
	if c.Data != nil {
		c.Data = append([]byte(nil), c.Data...)
	}
	m.Calls = append(m.Calls, c)
}

// VendorRequest implements channel.Transport.
func (m *MockDevice) VendorRequest(_ context.Context, dir channel.Direction, request uint8, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dir == channel.Out {
		m.record(Call{Kind: CallVendor, Dir: dir, Request: request, Data: data})
	} else {
		m.record(Call{Kind: CallVendor, Dir: dir, Request: request})
	}
	if err := m.vendorErr[request]; err != nil {
		return 0, err
	}
	if dir == channel.Out {
		return len(data), nil
	}

	queue := m.vendorIn[request]
	if len(queue) == 0 {
		return 0, nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		m.vendorIn[request] = queue[1:]
	}
	return copy(data, resp), nil
}

// SendCommand implements channel.Transport.
func (m *MockDevice) SendCommand(_ context.Context, packet []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	opcode := binary.LittleEndian.Uint16(packet[0:2])
	params := packet[protocol.HCICommandHeaderSize:]
	m.record(Call{Kind: CallCommand, Opcode: opcode, Data: params})
	if m.CommandErr != nil {
		return m.CommandErr
	}
	if m.OnCommand != nil {
		m.events = append(m.events, m.OnCommand(opcode, params)...)
	}
	return nil
}

// ReadEvent implements channel.Transport.
func (m *MockDevice) ReadEvent(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.events) == 0 {
		return nil, protocol.Wrap(protocol.KindTimeout, "read event", context.DeadlineExceeded)
	}
	ev := m.events[0]
	m.events = m.events[1:]
	return ev, nil
}

// WriteBulk implements channel.BulkWriter.
func (m *MockDevice) WriteBulk(_ context.Context, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(Call{Kind: CallBulk, Data: data})
	idx := m.bulkN
	m.bulkN++
	if m.BulkErr != nil && idx == m.BulkErrAt {
		return 0, m.BulkErr
	}
	return len(data), nil
}

// Reset records a device reset.
func (m *MockDevice) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(Call{Kind: CallReset})
	return m.ResetErr
}

// SetConfiguration records a configuration select.
func (m *MockDevice) SetConfiguration(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(Call{Kind: CallConfig})
	return m.ConfigErr
}

// OpenInterface records the interface claim.
func (m *MockDevice) OpenInterface(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(Call{Kind: CallOpen})
	return m.OpenErr
}

// Close marks the device released.
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(Call{Kind: CallClose})
	m.Closed = true
	return nil
}

// CallsOf returns the recorded calls of kind.
func (m *MockDevice) CallsOf(kind string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.Calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// VendorEvent builds a raw vendor-specific event.
func VendorEvent(params ...byte) []byte {
	return append([]byte{protocol.EventVendor, byte(len(params))}, params...)
}

// CommandComplete builds a raw Command Complete event for opcode.
func CommandComplete(opcode uint16, ret ...byte) []byte {
	params := []byte{0x01, byte(opcode), byte(opcode >> 8)}
	params = append(params, ret...)
	return append([]byte{protocol.EventCommandComplete, byte(len(params))}, params...)
}

// CommandStatus builds a raw Command Status event for opcode.
func CommandStatus(opcode uint16, status byte) []byte {
	return []byte{protocol.EventCommandStatus, 4, status, 0x01, byte(opcode), byte(opcode >> 8)}
}
