// Package detect finds attached Bluetooth controllers that can be
// provisioned.
package detect

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/chipset"
)

// Result represents a detected controller.
type Result struct {
	Bus     int
	Address int
	ID      chipset.ID
	Chip    chipset.Chip
	Family  chipset.Family
}

func (r Result) String() string {
	return fmt.Sprintf("bus %03d addr %03d  %s  %-9s %s", r.Bus, r.Address, r.ID, r.Chip, r.Family)
}

// Classify looks a (vid, pid) pair up in the chip table.
func Classify(bus, address int, vid, pid uint16) (Result, bool) {
	chip := chipset.Identify(vid, pid)
	if chip == chipset.Invalid {
		return Result{}, false
	}
	return Result{
		Bus:     bus,
		Address: address,
		ID:      chipset.ID{Vendor: vid, Product: pid},
		Chip:    chip,
		Family:  chip.Family(),
	}, true
}

// ListDevices scans the USB bus and returns every recognised controller.
// No device is opened.
func ListDevices(ctx context.Context) ([]Result, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	var results []Result
	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if r, ok := Classify(desc.Bus, desc.Address, uint16(desc.Vendor), uint16(desc.Product)); ok {
			results = append(results, r)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	return results, nil
}

// FindDevice returns the first recognised controller.
func FindDevice(ctx context.Context) (*Result, error) {
	results, err := ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no supported Bluetooth controller found")
	}
	return &results[0], nil
}
