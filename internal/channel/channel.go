// Package channel issues vendor control requests and HCI vendor commands to
// an attached controller. It is the only I/O path the provisioning engine
// uses.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/logging"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// Direction of a vendor control request.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// Transport is the device-side primitive set a channel runs on. Every call
// blocks until ctx is done or the device answers.
type Transport interface {
	// VendorRequest issues a vendor-type control request addressed to the
	// device with value and index zero.
	VendorRequest(ctx context.Context, dir Direction, request uint8, data []byte) (int, error)
	// SendCommand delivers an encoded HCI command packet.
	SendCommand(ctx context.Context, packet []byte) error
	// ReadEvent returns the next raw HCI event packet (code, length, params).
	ReadEvent(ctx context.Context) ([]byte, error)
}

// BulkWriter is implemented by transports with a bulk-out pipe.
type BulkWriter interface {
	WriteBulk(ctx context.Context, data []byte) (int, error)
}

// Wait selects the event that answers an HCI vendor command.
type Wait int

const (
	// WaitVendorEvent waits for a vendor-specific event.
	WaitVendorEvent Wait = iota
	// WaitCommandComplete waits for the Command Complete event of the
	// command's opcode.
	WaitCommandComplete
)

// Channel wraps a Transport with a per-call timeout and logging.
type Channel struct {
	t       Transport
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Channel.
type Option func(*Channel)

// WithTimeout sets the completion timeout applied to every call.
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// New creates a channel over t.
func New(t Transport, opts ...Option) *Channel {
	c := &Channel{
		t:       t,
		timeout: protocol.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.For(c.logger, logging.ComponentChannel)
	return c
}

// Transport returns the underlying transport.
func (c *Channel) Transport() Transport {
	return c.t
}

// Timeout returns the per-call timeout.
func (c *Channel) Timeout() time.Duration {
	return c.timeout
}

// ControlTransfer issues a vendor control request and returns the byte count
// moved. It does not retry.
func (c *Channel) ControlTransfer(ctx context.Context, dir Direction, request uint8, data []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.t.VendorRequest(ctx, dir, request, data)
	if err != nil {
		c.logger.Debug("control transfer failed", "dir", dir, "request", request, "err", err)
		return n, classify(ctx, fmt.Sprintf("control request 0x%02X", request), err)
	}
	c.logger.Debug("control transfer", "dir", dir, "request", request, "len", len(data), "n", n)
	return n, nil
}

// WriteBulk writes one buffer to the bulk-out pipe.
func (c *Channel) WriteBulk(ctx context.Context, data []byte) (int, error) {
	bw, ok := c.t.(BulkWriter)
	if !ok {
		return 0, protocol.Errorf(protocol.KindConfiguration, "bulk write", "transport has no bulk pipe")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := bw.WriteBulk(ctx, data)
	if err != nil {
		return n, classify(ctx, "bulk write", err)
	}
	if n != len(data) {
		return n, fmt.Errorf("short bulk write: %d of %d bytes", n, len(data))
	}
	return n, nil
}

// HCISend sends an HCI command without waiting for any event.
func (c *Channel) HCISend(ctx context.Context, opcode uint16, params []byte) error {
	cmd, err := protocol.NewCommand(opcode, params)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("hci command", "opcode", fmt.Sprintf("0x%04X", opcode), "plen", len(params))
	if err := c.t.SendCommand(ctx, cmd.Encode()); err != nil {
		return classify(ctx, fmt.Sprintf("hci command 0x%04X", opcode), err)
	}
	return nil
}

// HCIVendorCommand sends an HCI command and returns the payload of the event
// selected by wait. Unrelated events are skipped until the timeout expires.
func (c *Channel) HCIVendorCommand(ctx context.Context, opcode uint16, params []byte, wait Wait) ([]byte, error) {
	cmd, err := protocol.NewCommand(opcode, params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	op := fmt.Sprintf("hci command 0x%04X", opcode)
	c.logger.Debug("hci command", "opcode", fmt.Sprintf("0x%04X", opcode), "plen", len(params), "wait", wait)
	if err := c.t.SendCommand(ctx, cmd.Encode()); err != nil {
		return nil, classify(ctx, op, err)
	}

	for {
		raw, err := c.t.ReadEvent(ctx)
		if err != nil {
			return nil, classify(ctx, op, err)
		}

		ev, err := protocol.DecodeEvent(raw)
		if err != nil {
			c.logger.Warn("dropping malformed event", "err", err)
			continue
		}

		if evOp, ok := ev.CommandOpcode(); ok && evOp == opcode && ev.Code == protocol.EventCommandStatus {
			if status := ev.Params[0]; status != 0 {
				return nil, fmt.Errorf("%s: command status 0x%02X", op, status)
			}
			continue
		}

		switch wait {
		case WaitVendorEvent:
			if ev.Code == protocol.EventVendor {
				return ev.Payload(), nil
			}
		case WaitCommandComplete:
			if evOp, ok := ev.CommandOpcode(); ok && evOp == opcode && ev.Code == protocol.EventCommandComplete {
				return ev.Payload(), nil
			}
		}
		c.logger.Debug("skipping event", "code", fmt.Sprintf("0x%02X", ev.Code), "plen", len(ev.Params))
	}
}

// classify maps deadline expiry onto the timeout kind.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, protocol.ErrTimeout) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return protocol.Wrap(protocol.KindTimeout, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
