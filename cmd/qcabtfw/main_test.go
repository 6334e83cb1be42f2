package main

import "testing"

func TestParseBDAddr(t *testing.T) {
	addr, err := parseBDAddr("00:11:22:33:44:5A")
	if err != nil {
		t.Fatalf("parseBDAddr() error = %v", err)
	}
	want := [6]byte{0x5A, 0x44, 0x33, 0x22, 0x11, 0x00}
	if addr != want {
		t.Errorf("parseBDAddr() = % X, want % X", addr, want)
	}

	for _, bad := range []string{"", "00:11:22:33:44", "00:11:22:33:44:GG", "0:11:22:33:44:55", "00-11-22-33-44-55"} {
		if _, err := parseBDAddr(bad); err == nil {
			t.Errorf("parseBDAddr(%q) should return error", bad)
		}
	}
}

func TestParseHexID(t *testing.T) {
	tests := []struct {
		input    string
		expected uint16
		ok       bool
	}{
		{"0cf3", 0x0cf3, true},
		{"0x0CF3", 0x0cf3, true},
		{"e300", 0xe300, true},
		{"", 0, false},
		{"10000", 0, false},
		{"zz", 0, false},
	}

	for _, tc := range tests {
		got, err := parseHexID(tc.input)
		if (err == nil) != tc.ok {
			t.Errorf("parseHexID(%q) error = %v, want ok %v", tc.input, err, tc.ok)
			continue
		}
		if tc.ok && got != tc.expected {
			t.Errorf("parseHexID(%q) = 0x%04X, want 0x%04X", tc.input, got, tc.expected)
		}
	}
}
