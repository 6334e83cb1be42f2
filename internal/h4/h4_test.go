package h4

import (
	"bytes"
	"testing"
)

func TestEncode_Command(t *testing.T) {
	got := Encode(Command, []byte{0x03, 0x0C, 0x00})
	want := []byte{0x01, 0x03, 0x0C, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % X, want % X", got, want)
	}
}

func TestReadFrame_Event(t *testing.T) {
	data := []byte{Event, 0xFF, 0x02, 0x00, 0x04, Event, 0x0E}
	ind, pkt, rest, err := ReadFrame(data)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if ind != Event {
		t.Errorf("indicator = 0x%02X, want 0x%02X", ind, Event)
	}
	if !bytes.Equal(pkt, []byte{0xFF, 0x02, 0x00, 0x04}) {
		t.Errorf("packet = % X, want FF 02 00 04", pkt)
	}
	if !bytes.Equal(rest, []byte{Event, 0x0E}) {
		t.Errorf("remaining = % X, want 04 0E", rest)
	}
}

func TestReadFrame_Incomplete(t *testing.T) {
	tests := [][]byte{
		nil,
		{Event},
		{Event, 0xFF},
		{Event, 0xFF, 0x03, 0x00},
		{ACL, 0x01, 0x00, 0x02},
	}

	for _, data := range tests {
		_, pkt, rest, err := ReadFrame(data)
		if err != nil {
			t.Errorf("ReadFrame(% X) error = %v", data, err)
		}
		if pkt != nil {
			t.Errorf("ReadFrame(% X) packet = % X, want nil", data, pkt)
		}
		if !bytes.Equal(rest, data) {
			t.Errorf("ReadFrame(% X) remaining = % X, want input", data, rest)
		}
	}
}

func TestReadFrame_ACL(t *testing.T) {
	data := []byte{ACL, 0x01, 0x20, 0x02, 0x00, 0xAA, 0xBB}
	ind, pkt, rest, err := ReadFrame(data)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if ind != ACL || len(pkt) != 6 || len(rest) != 0 {
		t.Errorf("ReadFrame() = 0x%02X, % X, % X", ind, pkt, rest)
	}
}

func TestReadFrame_UnknownIndicator(t *testing.T) {
	if _, _, _, err := ReadFrame([]byte{0x07, 0x00}); err == nil {
		t.Error("ReadFrame() with bad indicator should return error")
	}
}
