package protocol

import (
	"encoding/binary"
	"fmt"
)

// Version record sizes
const (
	Ath3KVersionSize    = 13
	QCAVersionSize      = 16
	RamPatchVersionSize = 6
	SoCVersionSize      = 14
)

// Ath3KVersion is the record returned by GET_VERSION on AR3K chips.
type Ath3KVersion struct {
	RAMVersion uint32
	ROMVersion uint32
	Build      uint32
	RefClock   uint8
}

// DecodeAth3KVersion parses a 13-byte AR3K version record.
func DecodeAth3KVersion(data []byte) (*Ath3KVersion, error) {
	if len(data) < Ath3KVersionSize {
		return nil, fmt.Errorf("ath3k version too short: %d bytes", len(data))
	}
	return &Ath3KVersion{
		RAMVersion: binary.LittleEndian.Uint32(data[0:4]),
		ROMVersion: binary.LittleEndian.Uint32(data[4:8]),
		Build:      binary.LittleEndian.Uint32(data[8:12]),
		RefClock:   data[12],
	}, nil
}

// QCAVersion is the record returned by GET_VERSION on Rome USB chips.
type QCAVersion struct {
	RAMVersion   uint32
	ROMVersion   uint32
	PatchVersion uint32
	BoardID      uint16
	Flag         uint16
}

// DecodeQCAVersion parses a 16-byte Rome USB version record.
func DecodeQCAVersion(data []byte) (*QCAVersion, error) {
	if len(data) < QCAVersionSize {
		return nil, fmt.Errorf("qca version too short: %d bytes", len(data))
	}
	return &QCAVersion{
		RAMVersion:   binary.LittleEndian.Uint32(data[0:4]),
		ROMVersion:   binary.LittleEndian.Uint32(data[4:8]),
		PatchVersion: binary.LittleEndian.Uint32(data[8:12]),
		BoardID:      binary.LittleEndian.Uint16(data[12:14]),
		Flag:         binary.LittleEndian.Uint16(data[14:16]),
	}, nil
}

// MultiNVM reports whether the board needs a board-specific NVM image.
func (v *QCAVersion) MultiNVM() bool {
	return (v.Flag>>8)&0xFF == FlagMultiNVM
}

// RamPatchVersion is embedded in a Rome USB ram patch at a ROM-specific
// offset.
type RamPatchVersion struct {
	ROMVersionHigh uint16
	ROMVersionLow  uint16
	PatchVersion   uint16
}

// DecodeRamPatchVersion reads the version struct at offset inside a ram
// patch image.
func DecodeRamPatchVersion(image []byte, offset int) (*RamPatchVersion, error) {
	if offset < 0 || len(image)-offset < RamPatchVersionSize {
		return nil, fmt.Errorf("ram patch of %d bytes has no version at offset %d", len(image), offset)
	}
	d := image[offset:]
	return &RamPatchVersion{
		ROMVersionHigh: binary.LittleEndian.Uint16(d[0:2]),
		ROMVersionLow:  binary.LittleEndian.Uint16(d[2:4]),
		PatchVersion:   binary.LittleEndian.Uint16(d[4:6]),
	}, nil
}

// ROMVersion rebuilds the patch ROM version for comparison with deviceROM.
// The high half only counts when the device ROM exceeds 16 bits.
func (v *RamPatchVersion) ROMVersion(deviceROM uint32) uint32 {
	if deviceROM&^0xFFFF != 0 {
		return uint32(v.ROMVersionHigh)<<16 | uint32(v.ROMVersionLow)
	}
	return uint32(v.ROMVersionLow)
}

// AR3KPatchVersion reads the ROM and build trailer of an AR3K patch image.
func AR3KPatchVersion(image []byte) (rom, build uint32, err error) {
	if len(image) < 8 {
		return 0, 0, fmt.Errorf("ar3k patch too short for version trailer: %d bytes", len(image))
	}
	n := len(image)
	return binary.LittleEndian.Uint32(image[n-8 : n-4]), binary.LittleEndian.Uint32(image[n-4:]), nil
}

// SoCVersion is the EDL version payload of Qualcomm SoC chips.
type SoCVersion struct {
	ProductID    uint32
	PatchVersion uint32
	ROMVersion   uint16
	SoCID        uint32
}

// DecodeSoCVersion parses a 14-byte EDL version payload. A zero SoC id or
// ROM version means the controller did not answer sensibly.
func DecodeSoCVersion(data []byte) (*SoCVersion, error) {
	if len(data) < SoCVersionSize {
		return nil, Errorf(KindVersionQuery, "soc version", "payload too short: %d bytes", len(data))
	}
	v := &SoCVersion{
		ProductID:    binary.LittleEndian.Uint32(data[0:4]),
		PatchVersion: binary.LittleEndian.Uint32(data[4:8]),
		ROMVersion:   binary.LittleEndian.Uint16(data[8:10]),
		SoCID:        binary.LittleEndian.Uint32(data[10:14]),
	}
	if v.SoCID == 0 || v.ROMVersion == 0 {
		return nil, Errorf(KindVersionQuery, "soc version", "invalid soc id 0x%08X or rom version 0x%04X", v.SoCID, v.ROMVersion)
	}
	return v, nil
}

// Composite is the value SoC firmware names are derived from.
func (v *SoCVersion) Composite() uint32 {
	return v.SoCID<<16 | uint32(v.ROMVersion)
}

// CheckCompatible accepts a candidate patch only when its ROM version equals
// the device's and its build is strictly newer.
func CheckCompatible(deviceROM, deviceBuild, patchROM, patchBuild uint32) error {
	if patchROM != deviceROM || patchBuild <= deviceBuild {
		return &Error{
			Kind: KindVersionIncompatible,
			Op:   "check version",
			Err: &IncompatibleError{
				DeviceROM:   deviceROM,
				DeviceBuild: deviceBuild,
				PatchROM:    patchROM,
				PatchBuild:  patchBuild,
			},
		}
	}
	return nil
}
