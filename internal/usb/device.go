// Package usb implements the provisioning transport on top of gousb.
package usb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/gousb"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/logging"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

const (
	// ConfigNumber is the configuration selected after reset.
	ConfigNumber = 1
	// InterfaceNumber carries the HCI and firmware download endpoints.
	InterfaceNumber = 0

	requestSetConfiguration = 0x09
	maxEventSize            = 2 + protocol.MaxHCIParamLen
)

// Device is an opened controller.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	bulkOut *gousb.OutEndpoint
	eventIn *gousb.InEndpoint
	pending []byte

	logger *slog.Logger
}

// Open opens the first device with the given ids.
func Open(vid, pid uint16, logger *slog.Logger) (*Device, error) {
	return open(logger, func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == vid && uint16(desc.Product) == pid
	}, fmt.Sprintf("VID:0x%04X PID:0x%04X", vid, pid))
}

// OpenAt opens the device at a bus address.
func OpenAt(bus, address int, logger *slog.Logger) (*Device, error) {
	return open(logger, func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == bus && desc.Address == address
	}, fmt.Sprintf("bus %d address %d", bus, address))
}

func open(logger *slog.Logger, match func(*gousb.DeviceDesc) bool, what string) (*Device, error) {
	ctx := gousb.NewContext()

	opened := false
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if opened || !match(desc) {
			return false
		}
		opened = true
		return true
	})
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("USB error: %w", err)
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("device not found (%s)", what)
	}

	dev := devs[0]
	for _, extra := range devs[1:] {
		extra.Close()
	}

	// Not supported on every platform.
	_ = dev.SetAutoDetach(true)

	d := &Device{
		ctx:    ctx,
		dev:    dev,
		logger: logging.For(logger, logging.ComponentUSB),
	}
	d.logger.Info("device opened", "vid", dev.Desc.Vendor, "pid", dev.Desc.Product,
		"bus", dev.Desc.Bus, "address", dev.Desc.Address)
	return d, nil
}

// ID returns the device's vendor and product ids.
func (d *Device) ID() (vendor, product uint16) {
	return uint16(d.dev.Desc.Vendor), uint16(d.dev.Desc.Product)
}

// Reset resets the port and drops the active configuration.
func (d *Device) Reset(ctx context.Context) error {
	if err := d.dev.Reset(); err != nil {
		return fmt.Errorf("reset: %w", mapError(err))
	}
	d.setTimeout(ctx)
	rType := uint8(gousb.ControlOut | gousb.ControlStandard | gousb.ControlDevice)
	if _, err := d.dev.Control(rType, requestSetConfiguration, 0, 0, nil); err != nil {
		return fmt.Errorf("unconfigure: %w", mapError(err))
	}
	return nil
}

// SetConfiguration selects the download configuration.
func (d *Device) SetConfiguration(context.Context) error {
	cfg, err := d.dev.Config(ConfigNumber)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", mapError(err))
	}
	d.cfg = cfg
	return nil
}

// OpenInterface claims the download interface and opens its bulk-out and
// interrupt-in endpoints when present.
func (d *Device) OpenInterface(context.Context) error {
	if d.cfg == nil {
		return errors.New("no active configuration")
	}
	intf, err := d.cfg.Interface(InterfaceNumber, 0)
	if err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", InterfaceNumber, mapError(err))
	}
	d.intf = intf

	for _, ep := range intf.Setting.Endpoints {
		switch {
		case ep.TransferType == gousb.TransferTypeBulk && ep.Direction == gousb.EndpointDirectionOut && d.bulkOut == nil:
			out, err := intf.OutEndpoint(ep.Number)
			if err != nil {
				return fmt.Errorf("failed to open OUT endpoint: %w", mapError(err))
			}
			d.bulkOut = out
		case ep.TransferType == gousb.TransferTypeInterrupt && ep.Direction == gousb.EndpointDirectionIn && d.eventIn == nil:
			in, err := intf.InEndpoint(ep.Number)
			if err != nil {
				return fmt.Errorf("failed to open IN endpoint: %w", mapError(err))
			}
			d.eventIn = in
		}
	}

	d.logger.Debug("interface claimed", "bulk_out", d.bulkOut != nil, "event_in", d.eventIn != nil)
	return nil
}

func (d *Device) setTimeout(ctx context.Context) {
	d.dev.ControlTimeout = protocol.DefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 {
			d.dev.ControlTimeout = left
		} else {
			d.dev.ControlTimeout = time.Millisecond
		}
	}
}

// VendorRequest implements channel.Transport.
func (d *Device) VendorRequest(ctx context.Context, dir channel.Direction, request uint8, data []byte) (int, error) {
	d.setTimeout(ctx)
	rType := uint8(gousb.ControlVendor | gousb.ControlDevice)
	if dir == channel.In {
		rType |= uint8(gousb.ControlIn)
	} else {
		rType |= uint8(gousb.ControlOut)
	}
	n, err := d.dev.Control(rType, request, 0, 0, data)
	if err != nil {
		return n, mapError(err)
	}
	return n, nil
}

// SendCommand implements channel.Transport. Commands travel as class
// requests on the control pipe.
func (d *Device) SendCommand(ctx context.Context, packet []byte) error {
	d.setTimeout(ctx)
	rType := uint8(gousb.ControlOut | gousb.ControlClass | gousb.ControlDevice)
	if _, err := d.dev.Control(rType, 0, 0, 0, packet); err != nil {
		return mapError(err)
	}
	return nil
}

// ReadEvent implements channel.Transport. Interrupt packets are joined
// until one full event is buffered.
func (d *Device) ReadEvent(ctx context.Context) ([]byte, error) {
	if d.eventIn == nil {
		return nil, errors.New("no event endpoint")
	}

	buf := make([]byte, maxEventSize)
	for {
		if ev, rest, ok := splitEvent(d.pending); ok {
			d.pending = rest
			return ev, nil
		}

		n, err := d.eventIn.ReadContext(ctx, buf)
		if err != nil {
			return nil, mapError(err)
		}
		d.pending = append(d.pending, buf[:n]...)
	}
}

// splitEvent cuts the first complete event off buf.
func splitEvent(buf []byte) (ev, rest []byte, ok bool) {
	if len(buf) < 2 {
		return nil, buf, false
	}
	size := 2 + int(buf[1])
	if len(buf) < size {
		return nil, buf, false
	}
	return buf[:size:size], append([]byte(nil), buf[size:]...), true
}

// WriteBulk implements channel.BulkWriter.
func (d *Device) WriteBulk(ctx context.Context, data []byte) (int, error) {
	if d.bulkOut == nil {
		return 0, errors.New("no bulk OUT endpoint")
	}
	n, err := d.bulkOut.WriteContext(ctx, data)
	if err != nil {
		return n, mapError(err)
	}
	return n, nil
}

// Close releases the interface, configuration, device and context.
func (d *Device) Close() error {
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	var errs []error
	if d.cfg != nil {
		errs = append(errs, d.cfg.Close())
		d.cfg = nil
	}
	if d.dev != nil {
		errs = append(errs, d.dev.Close())
		d.dev = nil
	}
	if d.ctx != nil {
		errs = append(errs, d.ctx.Close())
		d.ctx = nil
	}
	d.logger.Debug("device closed")
	return errors.Join(errs...)
}

// mapError classifies library timeouts.
func mapError(err error) error {
	if isTimeout(err) {
		return protocol.Wrap(protocol.KindTimeout, "usb", err)
	}
	return err
}

func isTimeout(err error) bool {
	return errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, context.DeadlineExceeded)
}
