// Package negotiate queries controller state and version records before a
// firmware load.
package negotiate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/chipset"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/logging"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// Negotiator runs the per-family state and version queries.
type Negotiator struct {
	ch     *channel.Channel
	logger *slog.Logger
}

// New creates a negotiator on ch.
func New(ch *channel.Channel, logger *slog.Logger) *Negotiator {
	return &Negotiator{ch: ch, logger: logging.For(logger, logging.ComponentNegotiate)}
}

// State is the firmware state byte of AR3K and Rome USB chips.
type State uint8

// PatchLoaded reports whether a ram patch is already applied.
func (s State) PatchLoaded() bool { return s&protocol.StatePatchUpdated != 0 }

// SysCfgLoaded reports whether syscfg or NVM is already applied.
func (s State) SysCfgLoaded() bool { return s&protocol.StateSysCfgUpdated != 0 }

// Normal reports whether the controller runs in normal mode.
func (s State) Normal() bool { return s&protocol.ModeMask == protocol.ModeNormal }

// GetState reads the one-byte firmware state.
func (n *Negotiator) GetState(ctx context.Context) (State, error) {
	buf := make([]byte, 1)
	nr, err := n.ch.ControlTransfer(ctx, channel.In, protocol.ReqGetState, buf)
	if err != nil {
		return 0, protocol.Wrap(protocol.KindVersionQuery, "get state", err)
	}
	if nr != len(buf) {
		return 0, protocol.Errorf(protocol.KindVersionQuery, "get state", "short read: %d bytes", nr)
	}
	n.logger.Debug("firmware state", "state", fmt.Sprintf("0x%02X", buf[0]))
	return State(buf[0]), nil
}

func (n *Negotiator) readVersion(ctx context.Context, size int) ([]byte, error) {
	buf := make([]byte, size)
	nr, err := n.ch.ControlTransfer(ctx, channel.In, protocol.ReqGetVersion, buf)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindVersionQuery, "get version", err)
	}
	if nr != size {
		return nil, protocol.Errorf(protocol.KindVersionQuery, "get version", "short read: %d of %d bytes", nr, size)
	}
	return buf, nil
}

// GetAth3KVersion reads the AR3K version record.
func (n *Negotiator) GetAth3KVersion(ctx context.Context) (*protocol.Ath3KVersion, error) {
	buf, err := n.readVersion(ctx, protocol.Ath3KVersionSize)
	if err != nil {
		return nil, err
	}
	v, err := protocol.DecodeAth3KVersion(buf)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindVersionQuery, "get version", err)
	}
	n.logger.Info("ath3k version",
		"rom", fmt.Sprintf("0x%08X", v.ROMVersion),
		"build", fmt.Sprintf("0x%08X", v.Build),
		"clock", protocol.ClockMHz(v.RefClock))
	return v, nil
}

// GetQCAVersion reads the Rome USB version record.
func (n *Negotiator) GetQCAVersion(ctx context.Context) (*protocol.QCAVersion, error) {
	buf, err := n.readVersion(ctx, protocol.QCAVersionSize)
	if err != nil {
		return nil, err
	}
	v, err := protocol.DecodeQCAVersion(buf)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindVersionQuery, "get version", err)
	}
	n.logger.Info("qca version",
		"rom", fmt.Sprintf("0x%08X", v.ROMVersion),
		"patch", fmt.Sprintf("0x%08X", v.PatchVersion),
		"board", fmt.Sprintf("0x%04X", v.BoardID),
		"flag", fmt.Sprintf("0x%04X", v.Flag))
	return v, nil
}

// LookupDeviceInfo resolves the ram patch layout of a Rome USB ROM. An
// unknown ROM is unsupported.
func LookupDeviceInfo(romVersion uint32) (chipset.DeviceInfo, error) {
	info, ok := chipset.LookupDeviceInfo(romVersion)
	if !ok {
		return chipset.DeviceInfo{}, protocol.Errorf(protocol.KindChipUnsupported, "device info",
			"no entry for rom version 0x%08X", romVersion)
	}
	return info, nil
}

// SetNormalMode switches the controller to normal mode. It returns false
// without issuing the request when the controller is already there.
func (n *Negotiator) SetNormalMode(ctx context.Context) (bool, error) {
	state, err := n.GetState(ctx)
	if err != nil {
		return false, err
	}
	if state.Normal() {
		n.logger.Warn("firmware is already in normal mode")
		return false, nil
	}
	if _, err := n.ch.ControlTransfer(ctx, channel.In, protocol.ReqSetNormal, nil); err != nil {
		return false, protocol.Wrap(protocol.KindConfiguration, "set normal mode", err)
	}
	return true, nil
}

// SwitchVIDPID asks the controller to re-enumerate with its runtime ids.
func (n *Negotiator) SwitchVIDPID(ctx context.Context) error {
	if _, err := n.ch.ControlTransfer(ctx, channel.In, protocol.ReqSwitchVIDPID, nil); err != nil {
		return protocol.Wrap(protocol.KindConfiguration, "switch vid/pid", err)
	}
	return nil
}

// DeviceStatus reads the two-byte device status word.
func (n *Negotiator) DeviceStatus(ctx context.Context) (uint16, error) {
	buf := make([]byte, 2)
	nr, err := n.ch.ControlTransfer(ctx, channel.In, protocol.ReqGetDeviceStatus, buf)
	if err != nil {
		return 0, protocol.Wrap(protocol.KindVersionQuery, "device status", err)
	}
	if nr != len(buf) {
		return 0, protocol.Errorf(protocol.KindVersionQuery, "device status", "short read: %d bytes", nr)
	}
	status := uint16(buf[0]) | uint16(buf[1])<<8
	n.logger.Info("device status", "status", status)
	return status, nil
}
