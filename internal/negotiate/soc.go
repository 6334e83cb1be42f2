package negotiate

import (
	"context"
	"fmt"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/chipset"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// VersionFraming returns how chip answers the EDL version request: the event
// to wait for, the expected header and the payload offset of the record.
func VersionFraming(chip chipset.Chip) (channel.Wait, protocol.EDLExpect, int) {
	want := protocol.EDLExpect{
		Length: protocol.EDLHeaderSize + protocol.SoCVersionSize,
		CResp:  protocol.EDLCmdReqResEvt,
		RType:  protocol.EDLAppVerResEvt,
	}
	if chip.LateSoC() {
		// Command Complete payload with a leading status byte.
		want.Length++
		want.RType = protocol.EDLPatchVersionReq
		return channel.WaitCommandComplete, want, protocol.EDLHeaderSize + 1
	}
	return channel.WaitVendorEvent, want, protocol.EDLHeaderSize
}

// GetSoCVersion sends the EDL version request and validates its framing.
func (n *Negotiator) GetSoCVersion(ctx context.Context, chip chipset.Chip) (*protocol.SoCVersion, error) {
	wait, want, offset := VersionFraming(chip)

	payload, err := n.ch.HCIVendorCommand(ctx, protocol.OpEDLPatch, []byte{protocol.EDLPatchVersionReq}, wait)
	if err != nil {
		return nil, protocol.Wrap(protocol.KindVersionQuery, "soc version", err)
	}
	if _, err := protocol.DecodeEDL(payload, want); err != nil {
		return nil, err
	}

	v, err := protocol.DecodeSoCVersion(payload[offset:])
	if err != nil {
		return nil, err
	}
	n.logger.Info("soc version",
		"product", fmt.Sprintf("0x%08X", v.ProductID),
		"soc", fmt.Sprintf("0x%08X", v.SoCID),
		"rom", fmt.Sprintf("0x%04X", v.ROMVersion),
		"patch", fmt.Sprintf("0x%08X", v.PatchVersion))
	return v, nil
}

// DisableLogging turns off verbose controller logging on WCN3991 and later.
func (n *Negotiator) DisableLogging(ctx context.Context) error {
	if err := n.ch.HCISend(ctx, protocol.OpDisableLogging, protocol.DisableLoggingParams()); err != nil {
		return protocol.Wrap(protocol.KindConfiguration, "disable logging", err)
	}
	return nil
}

// HCIReset sends HCI_Reset.
func (n *Negotiator) HCIReset(ctx context.Context) error {
	if err := n.ch.HCISend(ctx, protocol.OpReset, nil); err != nil {
		return protocol.Wrap(protocol.KindConfiguration, "hci reset", err)
	}
	return nil
}

// PreShutdown sends the vendor pre-shutdown command.
func (n *Negotiator) PreShutdown(ctx context.Context) error {
	if err := n.ch.HCISend(ctx, protocol.OpPreShutdown, nil); err != nil {
		return protocol.Wrap(protocol.KindConfiguration, "pre-shutdown", err)
	}
	return nil
}

// SetBDAddr programs the Bluetooth device address. Rome takes it through an
// NVM access command, later chips through a dedicated opcode.
func (n *Negotiator) SetBDAddr(ctx context.Context, chip chipset.Chip, addr [6]byte) error {
	var err error
	if chip == chipset.Rome {
		err = n.ch.HCISend(ctx, protocol.OpNVMAccess, protocol.BDAddrNVMParams(addr))
	} else {
		err = n.ch.HCISend(ctx, protocol.OpWriteBDAddr, addr[:])
	}
	if err != nil {
		return protocol.Wrap(protocol.KindConfiguration, "set bdaddr", err)
	}
	n.logger.Info("bdaddr set", "addr", fmt.Sprintf("% X", addr))
	return nil
}
