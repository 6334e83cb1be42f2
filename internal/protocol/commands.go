package protocol

import "time"

// Vendor control requests shared by AR3K and Rome USB chips
const (
	ReqDownload     = 0x01
	ReqGetState     = 0x05
	ReqSetNormal    = 0x07
	ReqGetVersion   = 0x09
	ReqSwitchVIDPID = 0x0A

	// Standard GET_STATUS, issued as a vendor request by the AR3K driver.
	ReqGetDeviceStatus = 0x00
)

// Firmware state bits
const (
	StateSysCfgUpdated = 0x40
	StatePatchUpdated  = 0x80
)

// AR3K mode bits
const (
	ModeMask   = 0x3F
	ModeNormal = 0x0E
)

// AR3K reference clock codes
const (
	XtalFreq26M  = 0x00
	XtalFreq40M  = 0x01
	XtalFreq19P2 = 0x02
)

// Transfer sizes
const (
	BulkBlockSize     = 4096
	AR3KHeaderSize    = 20
	MaxTLVSegmentSize = 243
)

// DefaultTimeout bounds every control transfer, bulk write and HCI exchange.
const DefaultTimeout = 5 * time.Second

// Rome USB multi-NVM marker in the high byte of the version flag field.
const FlagMultiNVM = 0x80

// HCI opcodes
const (
	OpReset          = 0x0C03
	OpEDLPatch       = 0xFC00
	OpPreShutdown    = 0xFC08
	OpNVMAccess      = 0xFC0B
	OpWriteBDAddr    = 0xFC14
	OpDisableLogging = 0xFC17
)

// HCI event codes
const (
	EventCommandComplete = 0x0E
	EventCommandStatus   = 0x0F
	EventVendor          = 0xFF
)

// EDL sub-commands and response types
const (
	EDLPatchVersionReq = 0x19
	EDLPatchTLVReq     = 0x1E
	EDLNVMAccessSetReq = 0x01

	EDLCmdReqResEvt  = 0x00
	EDLAppVerResEvt  = 0x02
	EDLTLVDnldResEvt = 0x04

	DisableLoggingSubOp = 0x14
)

// NVM tag ids patched before download
const (
	TagHCI       = 17
	TagDeepSleep = 27
)

// NVM tag patch bits
const (
	HCIInbandSleepBit  = 0x80
	DeepSleepEnableBit = 0x01
)

// BD address NVM tag used by Rome SoC chips.
const TagBDAddr = 0x02

// UART baud rate codes understood by the SoC NVM HCI tag
const (
	Baud115200  = 0
	Baud57600   = 1
	Baud38400   = 2
	Baud19200   = 3
	Baud9600    = 4
	Baud230400  = 5
	Baud250000  = 6
	Baud460800  = 7
	Baud500000  = 8
	Baud720000  = 9
	Baud921600  = 10
	Baud1000000 = 11
	Baud1250000 = 12
	Baud2000000 = 13
	Baud3000000 = 14
	Baud4000000 = 15
	Baud1600000 = 16
	Baud3200000 = 17
	Baud3500000 = 18
	BaudAuto    = 0xFE
)

// BaudRateCode maps a UART speed onto its NVM code. Unknown speeds fall back
// to 115200.
func BaudRateCode(speed int) uint8 {
	switch speed {
	case 9600:
		return Baud9600
	case 19200:
		return Baud19200
	case 38400:
		return Baud38400
	case 57600:
		return Baud57600
	case 230400:
		return Baud230400
	case 250000:
		return Baud250000
	case 460800:
		return Baud460800
	case 500000:
		return Baud500000
	case 720000:
		return Baud720000
	case 921600:
		return Baud921600
	case 1000000:
		return Baud1000000
	case 1250000:
		return Baud1250000
	case 1600000:
		return Baud1600000
	case 2000000:
		return Baud2000000
	case 3000000:
		return Baud3000000
	case 3200000:
		return Baud3200000
	case 3500000:
		return Baud3500000
	case 4000000:
		return Baud4000000
	default:
		return Baud115200
	}
}

// ClockMHz returns the MHz figure used in AR3K syscfg filenames.
func ClockMHz(refClock uint8) int {
	switch refClock {
	case XtalFreq26M:
		return 26
	case XtalFreq40M:
		return 40
	case XtalFreq19P2:
		return 19
	default:
		return 0
	}
}
