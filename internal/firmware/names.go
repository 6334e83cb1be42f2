package firmware

import (
	"fmt"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/chipset"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// AR3KPatchName returns the AR3K patch filename for romVersion.
func AR3KPatchName(romVersion uint32) string {
	return fmt.Sprintf("AthrBT_0x%08x.dfu", romVersion)
}

// AR3KSysCfgName returns the AR3K syscfg filename for romVersion and the
// reference clock code reported in the version record.
func AR3KSysCfgName(romVersion uint32, refClock uint8) string {
	return fmt.Sprintf("ramps_0x%08x_%d.dfu", romVersion, protocol.ClockMHz(refClock))
}

// RomePatchName returns the Rome USB ram patch filename.
func RomePatchName(romVersion uint32) string {
	return fmt.Sprintf("rampatch_usb_%08x.bin", romVersion)
}

// RomeNVMName returns the Rome USB NVM filename. Multi-NVM boards carry the
// board id in the name.
func RomeNVMName(v *protocol.QCAVersion) string {
	if v.MultiNVM() {
		return fmt.Sprintf("nvm_usb_%08x_%04x.bin", v.ROMVersion, v.BoardID)
	}
	return fmt.Sprintf("nvm_usb_%08x.bin", v.ROMVersion)
}

// socROMByte folds the composite SoC version into the two-digit suffix used
// by the model-specific names.
func socROMByte(v *protocol.SoCVersion) uint8 {
	c := v.Composite()
	return uint8((c&0x00000F00)>>4 | c&0x0000000F)
}

// SoCPatchName returns the ram patch filename for chip.
func SoCPatchName(chip chipset.Chip, v *protocol.SoCVersion) string {
	switch chip {
	case chipset.WCN3990, chipset.WCN3998, chipset.WCN3991:
		return fmt.Sprintf("crbtfw%02x.tlv", socROMByte(v))
	case chipset.QCA6390:
		return fmt.Sprintf("htbtfw%02x.tlv", socROMByte(v))
	default:
		return fmt.Sprintf("rampatch_%08x.bin", v.Composite())
	}
}

// SoCNVMName returns the NVM filename for chip.
func SoCNVMName(chip chipset.Chip, v *protocol.SoCVersion) string {
	switch chip {
	case chipset.WCN3991:
		return fmt.Sprintf("crnv%02xu.bin", socROMByte(v))
	case chipset.WCN3990, chipset.WCN3998:
		return fmt.Sprintf("crnv%02x.bin", socROMByte(v))
	case chipset.QCA6390:
		return fmt.Sprintf("htnv%02x.bin", socROMByte(v))
	default:
		return fmt.Sprintf("nvm_%08x.bin", v.Composite())
	}
}
