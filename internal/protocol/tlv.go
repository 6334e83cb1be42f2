package protocol

import (
	"encoding/binary"
	"fmt"
)

// TLV record types
const (
	TLVTypeInvalid = 0x00
	TLVTypePatch   = 0x01
	TLVTypeNVM     = 0x02
)

// TLVHeaderSize is the 32-bit type/length word.
const TLVHeaderSize = 4

// PatchTLVSize is the fixed part of a patch TLV body.
const PatchTLVSize = 21

// NVMEntryHeaderSize is tag-id(2) + tag-len(2) + 8 reserved bytes.
const NVMEntryHeaderSize = 12

// DownloadMode tells which acknowledgements the controller skips for
// intermediate patch segments.
type DownloadMode uint8

const (
	SkipNone  DownloadMode = 0
	SkipVSE   DownloadMode = 1
	SkipCC    DownloadMode = 2
	SkipVSECC DownloadMode = 3
)

func (m DownloadMode) String() string {
	switch m {
	case SkipNone:
		return "none"
	case SkipVSE:
		return "skip-vse"
	case SkipCC:
		return "skip-cc"
	case SkipVSECC:
		return "skip-vse-cc"
	default:
		return fmt.Sprintf("unknown(0x%02X)", uint8(m))
	}
}

// SkipsIntermediateAck reports whether segments before the last one are sent
// without waiting for a response.
func (m DownloadMode) SkipsIntermediateAck() bool {
	return m == SkipVSE || m == SkipCC || m == SkipVSECC
}

// DecodeTLVHeader splits the header word into record type and body length.
func DecodeTLVHeader(word uint32) (typ uint8, length int) {
	return uint8(word & 0xFF), int((word >> 8) & 0x00FFFFFF)
}

// PatchTLV is the fixed header of a patch record body.
type PatchTLV struct {
	TotalSize     uint32
	DataLength    uint32
	FormatVersion uint8
	Signature     uint8
	DownloadMode  DownloadMode
	ProductID     uint16
	ROMBuild      uint16
	PatchVersion  uint16
	Entry         uint32
}

// NVMEntry is one tag of an NVM record. Offset is the position of the tag
// data inside the whole image.
type NVMEntry struct {
	TagID  uint16
	TagLen uint16
	Offset int
}

// TLV is a parsed view over a SoC firmware image.
type TLV struct {
	Type    uint8
	Length  int
	Patch   *PatchTLV
	Entries []NVMEntry
}

// ParseTLV decodes the record header and the type-specific body of image.
// Unknown record types are returned with neither Patch nor Entries set.
func ParseTLV(image []byte) (*TLV, error) {
	if len(image) < TLVHeaderSize {
		return nil, Errorf(KindProtocolMismatch, "parse tlv", "image too short: %d bytes", len(image))
	}

	typ, length := DecodeTLVHeader(binary.LittleEndian.Uint32(image[0:4]))
	body := image[TLVHeaderSize:]
	if length > len(body) {
		return nil, Errorf(KindProtocolMismatch, "parse tlv", "length %d exceeds image body of %d bytes", length, len(body))
	}
	body = body[:length]

	tlv := &TLV{Type: typ, Length: length}

	switch typ {
	case TLVTypePatch:
		if len(body) < PatchTLVSize {
			return nil, Errorf(KindProtocolMismatch, "parse tlv", "patch body too short: %d bytes", len(body))
		}
		tlv.Patch = &PatchTLV{
			TotalSize:     binary.LittleEndian.Uint32(body[0:4]),
			DataLength:    binary.LittleEndian.Uint32(body[4:8]),
			FormatVersion: body[8],
			Signature:     body[9],
			DownloadMode:  DownloadMode(body[10]),
			ProductID:     binary.LittleEndian.Uint16(body[11:13]),
			ROMBuild:      binary.LittleEndian.Uint16(body[13:15]),
			PatchVersion:  binary.LittleEndian.Uint16(body[15:17]),
			Entry:         binary.LittleEndian.Uint32(body[17:21]),
		}

	case TLVTypeNVM:
		for i := 0; i < len(body); {
			if len(body)-i < NVMEntryHeaderSize {
				return nil, Errorf(KindProtocolMismatch, "parse tlv", "truncated nvm tag header at offset %d", i)
			}
			entry := NVMEntry{
				TagID:  binary.LittleEndian.Uint16(body[i : i+2]),
				TagLen: binary.LittleEndian.Uint16(body[i+2 : i+4]),
				Offset: TLVHeaderSize + i + NVMEntryHeaderSize,
			}
			next := i + NVMEntryHeaderSize + int(entry.TagLen)
			if next > len(body) {
				return nil, Errorf(KindProtocolMismatch, "parse tlv", "nvm tag %d overruns record", entry.TagID)
			}
			tlv.Entries = append(tlv.Entries, entry)
			i = next
		}
	}

	return tlv, nil
}

// NVMPatch holds the controller settings written into NVM tags.
type NVMPatch struct {
	BaudRate uint8
	// BaudOffset is the byte inside the HCI tag data that holds the baud
	// rate code. It depends on the chip model.
	BaudOffset int
}

// ApplyNVMPatch rewrites the HCI transport and deep sleep tags of image in
// place and returns the ids of tags left untouched.
func (t *TLV) ApplyNVMPatch(image []byte, p NVMPatch) (untouched []uint16, err error) {
	for _, e := range t.Entries {
		data := image[e.Offset : e.Offset+int(e.TagLen)]
		switch e.TagID {
		case TagHCI:
			if len(data) <= p.BaudOffset {
				return untouched, Errorf(KindProtocolMismatch, "patch nvm", "hci tag too short: %d bytes", len(data))
			}
			data[0] |= HCIInbandSleepBit
			data[p.BaudOffset] = p.BaudRate
		case TagDeepSleep:
			if len(data) < 1 {
				return untouched, Errorf(KindProtocolMismatch, "patch nvm", "deep sleep tag is empty")
			}
			data[0] |= DeepSleepEnableBit
		default:
			untouched = append(untouched, e.TagID)
		}
	}
	return untouched, nil
}
