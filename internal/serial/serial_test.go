package serial

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// fakePort serves scripted reads. Methods it does not override panic.
type fakePort struct {
	serial.Port
	reads   [][]byte
	written []byte
	flushed bool
}

func (f *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (f *fakePort) Write(p []byte) (int, error) {
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *fakePort) Read(p []byte) (int, error) {
	if len(f.reads) == 0 {
		return 0, nil
	}
	n := copy(p, f.reads[0])
	f.reads = f.reads[1:]
	return n, nil
}

func (f *fakePort) ResetInputBuffer() error {
	f.flushed = true
	return nil
}

func (f *fakePort) Close() error { return nil }

func newTestPort(t *testing.T, reads ...[]byte) (*Port, *fakePort) {
	t.Helper()
	fp := &fakePort{reads: reads}
	p, err := newPort(fp, "/dev/ttyTEST", DefaultBaudRate, nil)
	if err != nil {
		t.Fatalf("newPort() error = %v", err)
	}
	return p, fp
}

func TestSendCommand(t *testing.T) {
	p, fp := newTestPort(t)
	if err := p.SendCommand(context.Background(), []byte{0x03, 0x0C, 0x00}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	want := []byte{0x01, 0x03, 0x0C, 0x00}
	if !bytes.Equal(fp.written, want) {
		t.Errorf("written = % X, want % X", fp.written, want)
	}
}

func TestReadEvent_Reassembles(t *testing.T) {
	p, _ := newTestPort(t,
		[]byte{0x04, 0x0E},
		[]byte{0x04, 0x01, 0x03},
		[]byte{0x0C, 0x00, 0x04, 0xFF, 0x01, 0x02},
	)

	ev, err := p.ReadEvent(context.Background())
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if want := []byte{0x0E, 0x04, 0x01, 0x03, 0x0C, 0x00}; !bytes.Equal(ev, want) {
		t.Errorf("ReadEvent() = % X, want % X", ev, want)
	}

	ev, err = p.ReadEvent(context.Background())
	if err != nil {
		t.Fatalf("second ReadEvent() error = %v", err)
	}
	if want := []byte{0xFF, 0x01, 0x02}; !bytes.Equal(ev, want) {
		t.Errorf("second ReadEvent() = % X, want % X", ev, want)
	}
}

func TestReadEvent_SkipsNoise(t *testing.T) {
	p, _ := newTestPort(t, []byte{0x00, 0x02, 0x01, 0x00, 0x01, 0x00, 0xAA, 0x04, 0xFF, 0x00})

	ev, err := p.ReadEvent(context.Background())
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if want := []byte{0xFF, 0x00}; !bytes.Equal(ev, want) {
		t.Errorf("ReadEvent() = % X, want % X", ev, want)
	}
}

func TestReadEvent_Timeout(t *testing.T) {
	p, _ := newTestPort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.ReadEvent(ctx)
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Errorf("ReadEvent() error = %v, want timeout", err)
	}
}

func TestVendorRequest_Unsupported(t *testing.T) {
	p, _ := newTestPort(t)
	_, err := p.VendorRequest(context.Background(), channel.In, 0x05, make([]byte, 1))
	if !errors.Is(err, protocol.ErrConfiguration) {
		t.Errorf("VendorRequest() error = %v, want configuration failure", err)
	}
}

func TestReset_Flushes(t *testing.T) {
	p, fp := newTestPort(t)
	p.pending = []byte{0x04}
	if err := p.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if !fp.flushed || p.pending != nil {
		t.Errorf("Reset() flushed = %v pending = % X", fp.flushed, p.pending)
	}
}
