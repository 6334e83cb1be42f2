package firmware

// known lists the images the driver package ships.
var known = []string{
	"AthrBT_0x01020001.dfu",
	"AthrBT_0x01020200.dfu",
	"AthrBT_0x01020201.dfu",
	"AthrBT_0x11020000.dfu",
	"AthrBT_0x11020100.dfu",
	"AthrBT_0x31010000.dfu",
	"AthrBT_0x31010100.dfu",
	"AthrBT_0x41020000.dfu",

	"ramps_0x01020001_26.dfu",
	"ramps_0x01020200_26.dfu",
	"ramps_0x01020200_40.dfu",
	"ramps_0x01020201_26.dfu",
	"ramps_0x01020201_40.dfu",
	"ramps_0x11020000_40.dfu",
	"ramps_0x11020100_40.dfu",
	"ramps_0x31010000_40.dfu",
	"ramps_0x31010100_40.dfu",
	"ramps_0x41020000_40.dfu",

	"crbtfw21.tlv",
	"crbtfw32.tlv",
	"htbtfw20.tlv",

	"rampatch_00130300.bin",
	"rampatch_00130302.bin",
	"rampatch_00230302.bin",
	"rampatch_00440302.bin",

	"rampatch_usb_00000200.bin",
	"rampatch_usb_00000201.bin",
	"rampatch_usb_00000300.bin",
	"rampatch_usb_00000302.bin",

	"crnv21.bin",
	"crnv32.bin",
	"crnv32u.bin",
	"htnv20.bin",

	"nvm_00130300.bin",
	"nvm_00130302.bin",
	"nvm_00230302.bin",
	"nvm_00440302.bin",
	"nvm_00440302_eu.bin",
	"nvm_00440302_i2s_eu.bin",

	"nvm_usb_00000200.bin",
	"nvm_usb_00000201.bin",
	"nvm_usb_00000300.bin",
	"nvm_usb_00000302.bin",
	"nvm_usb_00000302_eu.bin",
}

// Known returns the filenames of the shipped firmware set.
func Known() []string {
	out := make([]string, len(known))
	copy(out, known)
	return out
}
