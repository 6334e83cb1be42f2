// Package serial carries HCI traffic to SoC controllers attached over a UART
// using H4 framing.
package serial

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/h4"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/logging"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// DefaultBaudRate is the rate controllers come up at after power on.
const DefaultBaudRate = 115200

const pollInterval = 100 * time.Millisecond

// Port is an H4 transport over a serial port.
type Port struct {
	port     serial.Port
	portName string
	baudRate int
	pending  []byte
	logger   *slog.Logger
}

// Open opens a serial port with the specified baud rate.
func Open(portName string, baudRate int, logger *slog.Logger) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindConfiguration, "open "+portName, err)
	}

	p, err := newPort(port, portName, baudRate, logger)
	if err != nil {
		port.Close()
		return nil, err
	}
	return p, nil
}

func newPort(port serial.Port, portName string, baudRate int, logger *slog.Logger) (*Port, error) {
	if err := port.SetReadTimeout(pollInterval); err != nil {
		return nil, protocol.Wrap(protocol.KindConfiguration, "set read timeout", err)
	}
	return &Port{
		port:     port,
		portName: portName,
		baudRate: baudRate,
		logger:   logging.For(logger, logging.ComponentSerial).With("port", portName),
	}, nil
}

// Close closes the serial port.
func (p *Port) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// VendorRequest always fails: a UART has no control pipe.
func (p *Port) VendorRequest(ctx context.Context, dir channel.Direction, request uint8, data []byte) (int, error) {
	return 0, protocol.Errorf(protocol.KindConfiguration, fmt.Sprintf("control request 0x%02X", request),
		"vendor requests are not supported on a UART")
}

// SendCommand writes an H4 command packet.
func (p *Port) SendCommand(ctx context.Context, packet []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame := h4.Encode(h4.Command, packet)
	n, err := p.port.Write(frame)
	if err != nil {
		return protocol.Wrap(protocol.KindTransfer, "write command", err)
	}
	if n != len(frame) {
		return protocol.Errorf(protocol.KindTransfer, "write command", "short write: %d of %d bytes", n, len(frame))
	}
	return nil
}

// ReadEvent returns the next H4 event packet. Other packets are discarded.
func (p *Port) ReadEvent(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 512)
	for {
		for len(p.pending) > 0 {
			ind, pkt, rest, err := h4.ReadFrame(p.pending)
			if err != nil {
				p.logger.Debug("resync", "err", err)
				p.pending = p.pending[1:]
				continue
			}
			if pkt == nil {
				break
			}
			p.pending = rest
			if ind == h4.Event {
				return append([]byte(nil), pkt...), nil
			}
			p.logger.Debug("discarding packet", "indicator", ind, "len", len(pkt))
		}

		if err := ctx.Err(); err != nil {
			return nil, protocol.Wrap(protocol.KindTimeout, "read event", err)
		}

		n, err := p.port.Read(buf)
		if err != nil {
			return nil, protocol.Wrap(protocol.KindTransfer, "read event", err)
		}
		p.pending = append(p.pending, buf[:n]...)
	}
}

// Reset discards any buffered input.
func (p *Port) Reset(ctx context.Context) error {
	p.pending = nil
	if err := p.port.ResetInputBuffer(); err != nil {
		return protocol.Wrap(protocol.KindConfiguration, "reset input", err)
	}
	return nil
}

// SetConfiguration is a no-op on a UART.
func (p *Port) SetConfiguration(ctx context.Context) error { return nil }

// OpenInterface is a no-op on a UART.
func (p *Port) OpenInterface(ctx context.Context) error { return nil }

// SetBaudRate changes the line speed.
func (p *Port) SetBaudRate(baudRate int) error {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if err := p.port.SetMode(mode); err != nil {
		return protocol.Wrap(protocol.KindConfiguration, "set baud rate", err)
	}
	p.baudRate = baudRate
	return nil
}

// PortName returns the port name.
func (p *Port) PortName() string {
	return p.portName
}

// BaudRate returns the current baud rate.
func (p *Port) BaudRate() int {
	return p.baudRate
}

// ListPorts returns a list of available serial ports.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}
