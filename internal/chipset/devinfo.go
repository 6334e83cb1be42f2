package chipset

// DeviceInfo describes the ram patch and NVM layout a Rome USB ROM
// revision expects.
type DeviceInfo struct {
	ROMVersion     uint32
	RamPatchHdrLen int
	NVMHdrLen      int
	// VersionOffset locates the ram patch version struct inside the image.
	VersionOffset int
}

var deviceInfos = []DeviceInfo{
	{0x00000100, 20, 4, 8},
	{0x00000101, 20, 4, 8},
	{0x00000200, 28, 4, 16},
	{0x00000201, 28, 4, 16},
	{0x00000300, 28, 4, 16},
	{0x00000302, 28, 4, 16},
	{0x00130100, 40, 4, 16},
	{0x00130200, 40, 4, 16},
}

// LookupDeviceInfo finds the layout for romVersion.
func LookupDeviceInfo(romVersion uint32) (DeviceInfo, bool) {
	for _, info := range deviceInfos {
		if info.ROMVersion == romVersion {
			return info, true
		}
	}
	return DeviceInfo{}, false
}
