package protocol

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestDecodeTLVHeader(t *testing.T) {
	tests := []struct {
		word   uint32
		typ    uint8
		length int
	}{
		{0x00012301, 0x01, 0x000123},
		{0x00000002, 0x02, 0},
		{0xFFFFFF02, 0x02, 0xFFFFFF},
	}

	for _, tc := range tests {
		typ, length := DecodeTLVHeader(tc.word)
		if typ != tc.typ || length != tc.length {
			t.Errorf("DecodeTLVHeader(0x%08X) = 0x%02X, 0x%X, want 0x%02X, 0x%X",
				tc.word, typ, length, tc.typ, tc.length)
		}
	}
}

func patchImage(mode DownloadMode, romBuild, patchVer uint16, extra int) []byte {
	body := make([]byte, PatchTLVSize+extra)
	binary.LittleEndian.PutUint32(body[0:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(body[4:8], uint32(extra))
	body[8] = 0x01
	body[9] = 0x02
	body[10] = byte(mode)
	binary.LittleEndian.PutUint16(body[11:13], 0x0008)
	binary.LittleEndian.PutUint16(body[13:15], romBuild)
	binary.LittleEndian.PutUint16(body[15:17], patchVer)
	binary.LittleEndian.PutUint32(body[17:21], 0x00010000)

	image := make([]byte, TLVHeaderSize+len(body))
	binary.LittleEndian.PutUint32(image[0:4], uint32(len(body))<<8|TLVTypePatch)
	copy(image[4:], body)
	return image
}

type nvmTag struct {
	id   uint16
	data []byte
}

func nvmImage(tags ...nvmTag) []byte {
	var body []byte
	for _, tag := range tags {
		hdr := make([]byte, NVMEntryHeaderSize)
		binary.LittleEndian.PutUint16(hdr[0:2], tag.id)
		binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(tag.data)))
		body = append(body, hdr...)
		body = append(body, tag.data...)
	}
	image := make([]byte, TLVHeaderSize, TLVHeaderSize+len(body))
	binary.LittleEndian.PutUint32(image[0:4], uint32(len(body))<<8|TLVTypeNVM)
	return append(image, body...)
}

func TestParseTLV_Patch(t *testing.T) {
	image := patchImage(SkipVSE, 0x0302, 0x000A, 16)
	tlv, err := ParseTLV(image)
	if err != nil {
		t.Fatalf("ParseTLV() error = %v", err)
	}
	if tlv.Type != TLVTypePatch {
		t.Errorf("Type = %d, want %d", tlv.Type, TLVTypePatch)
	}
	if tlv.Length != PatchTLVSize+16 {
		t.Errorf("Length = %d, want %d", tlv.Length, PatchTLVSize+16)
	}
	if tlv.Patch == nil {
		t.Fatal("Patch = nil")
	}
	p := tlv.Patch
	if p.DownloadMode != SkipVSE {
		t.Errorf("DownloadMode = %v, want %v", p.DownloadMode, SkipVSE)
	}
	if p.ProductID != 0x0008 || p.ROMBuild != 0x0302 || p.PatchVersion != 0x000A {
		t.Errorf("Patch = %+v, want product 0x0008 rom 0x0302 patch 0x000A", p)
	}
	if p.Entry != 0x00010000 {
		t.Errorf("Entry = 0x%X, want 0x10000", p.Entry)
	}
}

func TestParseTLV_NVMEntries(t *testing.T) {
	image := nvmImage(
		nvmTag{TagHCI, []byte{0x00, 0x00, 0x00, 0x00}},
		nvmTag{5, []byte{0xAA}},
		nvmTag{TagDeepSleep, []byte{0x00}},
	)
	tlv, err := ParseTLV(image)
	if err != nil {
		t.Fatalf("ParseTLV() error = %v", err)
	}
	if len(tlv.Entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(tlv.Entries))
	}
	if tlv.Entries[0].Offset != TLVHeaderSize+NVMEntryHeaderSize {
		t.Errorf("Entries[0].Offset = %d, want %d", tlv.Entries[0].Offset, TLVHeaderSize+NVMEntryHeaderSize)
	}
	if tlv.Entries[1].TagID != 5 || tlv.Entries[1].TagLen != 1 {
		t.Errorf("Entries[1] = %+v, want tag 5 len 1", tlv.Entries[1])
	}
}

func TestParseTLV_Errors(t *testing.T) {
	truncatedNVM := nvmImage(nvmTag{TagHCI, []byte{0x00, 0x00}})
	binary.LittleEndian.PutUint16(truncatedNVM[TLVHeaderSize+2:], 40)

	tests := []struct {
		name  string
		image []byte
	}{
		{"short header", []byte{0x01, 0x00}},
		{"length beyond image", []byte{0x01, 0x10, 0x00, 0x00, 0x00}},
		{"short patch body", []byte{0x01, 0x02, 0x00, 0x00, 0xAA, 0xBB}},
		{"nvm tag overrun", truncatedNVM},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTLV(tc.image)
			if !errors.Is(err, ErrProtocolMismatch) {
				t.Errorf("ParseTLV() error = %v, want protocol mismatch", err)
			}
		})
	}
}

func TestParseTLV_UnknownType(t *testing.T) {
	tlv, err := ParseTLV([]byte{0x07, 0x01, 0x00, 0x00, 0xAA})
	if err != nil {
		t.Fatalf("ParseTLV() error = %v", err)
	}
	if tlv.Patch != nil || tlv.Entries != nil {
		t.Errorf("ParseTLV(unknown) = %+v, want no body", tlv)
	}
}

func TestApplyNVMPatch(t *testing.T) {
	image := nvmImage(
		nvmTag{TagHCI, []byte{0x01, 0x00, 0x00, 0x00}},
		nvmTag{9, []byte{0x55}},
		nvmTag{TagDeepSleep, []byte{0x00}},
	)
	tlv, err := ParseTLV(image)
	if err != nil {
		t.Fatalf("ParseTLV() error = %v", err)
	}

	untouched, err := tlv.ApplyNVMPatch(image, NVMPatch{BaudRate: Baud3000000, BaudOffset: 2})
	if err != nil {
		t.Fatalf("ApplyNVMPatch() error = %v", err)
	}

	hci := image[tlv.Entries[0].Offset:]
	if hci[0] != 0x81 {
		t.Errorf("hci flags = 0x%02X, want 0x81", hci[0])
	}
	if hci[1] != 0x00 || hci[2] != Baud3000000 {
		t.Errorf("hci baud bytes = %02X %02X, want 00 %02X", hci[1], hci[2], Baud3000000)
	}
	if image[tlv.Entries[1].Offset] != 0x55 {
		t.Errorf("tag 9 data = 0x%02X, want 0x55", image[tlv.Entries[1].Offset])
	}
	if image[tlv.Entries[2].Offset] != DeepSleepEnableBit {
		t.Errorf("deep sleep data = 0x%02X, want 0x%02X", image[tlv.Entries[2].Offset], DeepSleepEnableBit)
	}
	if len(untouched) != 1 || untouched[0] != 9 {
		t.Errorf("untouched = %v, want [9]", untouched)
	}
}

func TestApplyNVMPatch_LateChipOffset(t *testing.T) {
	image := nvmImage(nvmTag{TagHCI, []byte{0x00, 0x00, 0x00}})
	tlv, err := ParseTLV(image)
	if err != nil {
		t.Fatalf("ParseTLV() error = %v", err)
	}
	if _, err := tlv.ApplyNVMPatch(image, NVMPatch{BaudRate: Baud921600, BaudOffset: 1}); err != nil {
		t.Fatalf("ApplyNVMPatch() error = %v", err)
	}
	hci := image[tlv.Entries[0].Offset:]
	if hci[1] != Baud921600 || hci[2] != 0x00 {
		t.Errorf("hci baud bytes = %02X %02X, want %02X 00", hci[1], hci[2], Baud921600)
	}
}

func TestApplyNVMPatch_ShortHCITag(t *testing.T) {
	image := nvmImage(nvmTag{TagHCI, []byte{0x00}})
	tlv, err := ParseTLV(image)
	if err != nil {
		t.Fatalf("ParseTLV() error = %v", err)
	}
	if _, err := tlv.ApplyNVMPatch(image, NVMPatch{BaudOffset: 2}); !errors.Is(err, ErrProtocolMismatch) {
		t.Errorf("ApplyNVMPatch() error = %v, want protocol mismatch", err)
	}
}

func TestDownloadMode_SkipsIntermediateAck(t *testing.T) {
	tests := []struct {
		mode DownloadMode
		skip bool
	}{
		{SkipNone, false},
		{SkipVSE, true},
		{SkipCC, true},
		{SkipVSECC, true},
		{DownloadMode(0x09), false},
	}

	for _, tc := range tests {
		if got := tc.mode.SkipsIntermediateAck(); got != tc.skip {
			t.Errorf("%v.SkipsIntermediateAck() = %v, want %v", tc.mode, got, tc.skip)
		}
	}
}
