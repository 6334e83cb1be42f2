package protocol

import "testing"

func TestBaudRateCode(t *testing.T) {
	tests := []struct {
		speed    int
		expected uint8
	}{
		{115200, Baud115200},
		{9600, Baud9600},
		{921600, Baud921600},
		{3000000, Baud3000000},
		{3200000, Baud3200000},
		{4000000, Baud4000000},
		{12345, Baud115200},
		{0, Baud115200},
	}

	for _, tc := range tests {
		if got := BaudRateCode(tc.speed); got != tc.expected {
			t.Errorf("BaudRateCode(%d) = %d, want %d", tc.speed, got, tc.expected)
		}
	}
}

func TestClockMHz(t *testing.T) {
	tests := []struct {
		refClock uint8
		expected int
	}{
		{XtalFreq26M, 26},
		{XtalFreq40M, 40},
		{XtalFreq19P2, 19},
		{0x03, 0},
	}

	for _, tc := range tests {
		if got := ClockMHz(tc.refClock); got != tc.expected {
			t.Errorf("ClockMHz(%d) = %d, want %d", tc.refClock, got, tc.expected)
		}
	}
}
