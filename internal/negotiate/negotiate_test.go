package negotiate

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel/channeltest"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/chipset"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

func newNegotiator(dev *channeltest.MockDevice) *Negotiator {
	return New(channel.New(dev), nil)
}

func TestState_Bits(t *testing.T) {
	tests := []struct {
		state  State
		patch  bool
		syscfg bool
		normal bool
	}{
		{0x00, false, false, false},
		{0x80, true, false, false},
		{0x40, false, true, false},
		{0xCE, true, true, true},
		{0x0E, false, false, true},
		{0x0F, false, false, false},
	}

	for _, tc := range tests {
		if tc.state.PatchLoaded() != tc.patch || tc.state.SysCfgLoaded() != tc.syscfg || tc.state.Normal() != tc.normal {
			t.Errorf("State(0x%02X) = patch %v syscfg %v normal %v, want %v %v %v",
				uint8(tc.state), tc.state.PatchLoaded(), tc.state.SysCfgLoaded(), tc.state.Normal(),
				tc.patch, tc.syscfg, tc.normal)
		}
	}
}

func TestGetState(t *testing.T) {
	dev := channeltest.NewMockDevice()
	dev.AddVendorResponse(protocol.ReqGetState, []byte{0x80})

	state, err := newNegotiator(dev).GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state != 0x80 {
		t.Errorf("GetState() = 0x%02X, want 0x80", uint8(state))
	}
}

func TestGetState_ShortRead(t *testing.T) {
	dev := channeltest.NewMockDevice()
	_, err := newNegotiator(dev).GetState(context.Background())
	if !errors.Is(err, protocol.ErrVersionQuery) {
		t.Errorf("GetState() error = %v, want version query failure", err)
	}
}

func TestGetAth3KVersion(t *testing.T) {
	rec := make([]byte, protocol.Ath3KVersionSize)
	binary.LittleEndian.PutUint32(rec[4:8], 0x01020001)
	rec[12] = protocol.XtalFreq26M
	dev := channeltest.NewMockDevice()
	dev.AddVendorResponse(protocol.ReqGetVersion, rec)

	v, err := newNegotiator(dev).GetAth3KVersion(context.Background())
	if err != nil {
		t.Fatalf("GetAth3KVersion() error = %v", err)
	}
	if v.ROMVersion != 0x01020001 {
		t.Errorf("ROMVersion = 0x%08X, want 0x01020001", v.ROMVersion)
	}
}

func TestGetQCAVersion_IOError(t *testing.T) {
	dev := channeltest.NewMockDevice()
	dev.SetVendorError(protocol.ReqGetVersion, errors.New("no device"))

	_, err := newNegotiator(dev).GetQCAVersion(context.Background())
	if !errors.Is(err, protocol.ErrVersionQuery) {
		t.Errorf("GetQCAVersion() error = %v, want version query failure", err)
	}
}

func TestLookupDeviceInfo_Unknown(t *testing.T) {
	_, err := LookupDeviceInfo(0x00000999)
	if !errors.Is(err, protocol.ErrChipUnsupported) {
		t.Errorf("LookupDeviceInfo() error = %v, want chip unsupported", err)
	}
	if _, err := LookupDeviceInfo(0x00000302); err != nil {
		t.Errorf("LookupDeviceInfo(0x302) error = %v", err)
	}
}

func TestSetNormalMode_AlreadyNormal(t *testing.T) {
	dev := channeltest.NewMockDevice()
	dev.AddVendorResponse(protocol.ReqGetState, []byte{protocol.ModeNormal})

	changed, err := newNegotiator(dev).SetNormalMode(context.Background())
	if err != nil {
		t.Fatalf("SetNormalMode() error = %v", err)
	}
	if changed {
		t.Error("SetNormalMode() = true, want false")
	}
	for _, c := range dev.CallsOf(channeltest.CallVendor) {
		if c.Request == protocol.ReqSetNormal {
			t.Error("SetNormalMode() issued the request on a normal-mode controller")
		}
	}
}

func TestSetNormalMode_Switches(t *testing.T) {
	dev := channeltest.NewMockDevice()
	dev.AddVendorResponse(protocol.ReqGetState, []byte{0x01})

	changed, err := newNegotiator(dev).SetNormalMode(context.Background())
	if err != nil {
		t.Fatalf("SetNormalMode() error = %v", err)
	}
	if !changed {
		t.Error("SetNormalMode() = false, want true")
	}
	calls := dev.CallsOf(channeltest.CallVendor)
	if last := calls[len(calls)-1]; last.Request != protocol.ReqSetNormal || last.Dir != channel.In {
		t.Errorf("last request = 0x%02X %v, want 0x%02X in", last.Request, last.Dir, protocol.ReqSetNormal)
	}
}

func TestDeviceStatus(t *testing.T) {
	dev := channeltest.NewMockDevice()
	dev.AddVendorResponse(protocol.ReqGetDeviceStatus, []byte{0x01, 0x00})

	status, err := newNegotiator(dev).DeviceStatus(context.Background())
	if err != nil {
		t.Fatalf("DeviceStatus() error = %v", err)
	}
	if status != 1 {
		t.Errorf("DeviceStatus() = %d, want 1", status)
	}
}

func TestSwitchVIDPID_Error(t *testing.T) {
	dev := channeltest.NewMockDevice()
	dev.SetVendorError(protocol.ReqSwitchVIDPID, errors.New("stall"))

	if err := newNegotiator(dev).SwitchVIDPID(context.Background()); !errors.Is(err, protocol.ErrConfiguration) {
		t.Errorf("SwitchVIDPID() error = %v, want configuration failure", err)
	}
}

func socRecord(productID, patch uint32, rom uint16, socID uint32) []byte {
	rec := make([]byte, protocol.SoCVersionSize)
	binary.LittleEndian.PutUint32(rec[0:4], productID)
	binary.LittleEndian.PutUint32(rec[4:8], patch)
	binary.LittleEndian.PutUint16(rec[8:10], rom)
	binary.LittleEndian.PutUint32(rec[10:14], socID)
	return rec
}

func TestGetSoCVersion_VendorEvent(t *testing.T) {
	dev := channeltest.NewMockDevice()
	params := append([]byte{protocol.EDLCmdReqResEvt, protocol.EDLAppVerResEvt}, socRecord(0x0A, 2, 0x0302, 0x44)...)
	dev.AddEvent(channeltest.VendorEvent(params...))

	v, err := newNegotiator(dev).GetSoCVersion(context.Background(), chipset.Rome)
	if err != nil {
		t.Fatalf("GetSoCVersion() error = %v", err)
	}
	if v.Composite() != 0x00440302 {
		t.Errorf("Composite() = 0x%08X, want 0x00440302", v.Composite())
	}

	cmds := dev.CallsOf(channeltest.CallCommand)
	if len(cmds) != 1 || cmds[0].Opcode != protocol.OpEDLPatch || !bytes.Equal(cmds[0].Data, []byte{0x19}) {
		t.Errorf("commands = %+v, want one 0xFC00 [19]", cmds)
	}
}

func TestGetSoCVersion_CommandComplete(t *testing.T) {
	dev := channeltest.NewMockDevice()
	ret := append([]byte{protocol.EDLCmdReqResEvt, protocol.EDLPatchVersionReq, 0x00}, socRecord(0x10, 1, 0x0201, 0x40014320)...)
	dev.AddEvent(channeltest.CommandComplete(protocol.OpEDLPatch, ret...))

	v, err := newNegotiator(dev).GetSoCVersion(context.Background(), chipset.WCN3991)
	if err != nil {
		t.Fatalf("GetSoCVersion() error = %v", err)
	}
	if v.SoCID != 0x40014320 || v.ROMVersion != 0x0201 {
		t.Errorf("GetSoCVersion() = %+v", v)
	}
}

func TestGetSoCVersion_FramingMismatch(t *testing.T) {
	tests := []struct {
		name   string
		params []byte
	}{
		{"short", []byte{0x00, 0x02, 0x01}},
		{"wrong cresp", append([]byte{0x01, protocol.EDLAppVerResEvt}, socRecord(1, 1, 1, 1)...)},
		{"wrong rtype", append([]byte{0x00, protocol.EDLTLVDnldResEvt}, socRecord(1, 1, 1, 1)...)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dev := channeltest.NewMockDevice()
			dev.AddEvent(channeltest.VendorEvent(tc.params...))
			_, err := newNegotiator(dev).GetSoCVersion(context.Background(), chipset.WCN3990)
			if !errors.Is(err, protocol.ErrProtocolMismatch) {
				t.Errorf("GetSoCVersion() error = %v, want protocol mismatch", err)
			}
		})
	}
}

func TestGetSoCVersion_ZeroSoCID(t *testing.T) {
	dev := channeltest.NewMockDevice()
	params := append([]byte{0x00, protocol.EDLAppVerResEvt}, socRecord(1, 1, 0x0302, 0)...)
	dev.AddEvent(channeltest.VendorEvent(params...))

	_, err := newNegotiator(dev).GetSoCVersion(context.Background(), chipset.Rome)
	if !errors.Is(err, protocol.ErrVersionQuery) {
		t.Errorf("GetSoCVersion() error = %v, want version query failure", err)
	}
}

func TestGetSoCVersion_Timeout(t *testing.T) {
	_, err := newNegotiator(channeltest.NewMockDevice()).GetSoCVersion(context.Background(), chipset.Rome)
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Errorf("GetSoCVersion() error = %v, want timeout", err)
	}
}

func TestSetBDAddr(t *testing.T) {
	addr := [6]byte{0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	tests := []struct {
		chip   chipset.Chip
		opcode uint16
		plen   int
	}{
		{chipset.Rome, protocol.OpNVMAccess, 9},
		{chipset.WCN3990, protocol.OpWriteBDAddr, 6},
	}

	for _, tc := range tests {
		dev := channeltest.NewMockDevice()
		if err := newNegotiator(dev).SetBDAddr(context.Background(), tc.chip, addr); err != nil {
			t.Fatalf("SetBDAddr(%v) error = %v", tc.chip, err)
		}
		cmds := dev.CallsOf(channeltest.CallCommand)
		if len(cmds) != 1 || cmds[0].Opcode != tc.opcode || len(cmds[0].Data) != tc.plen {
			t.Errorf("SetBDAddr(%v) sent %+v, want opcode 0x%04X with %d bytes", tc.chip, cmds, tc.opcode, tc.plen)
		}
	}
}

func TestPostCommands_SendOnly(t *testing.T) {
	dev := channeltest.NewMockDevice()
	n := newNegotiator(dev)
	ctx := context.Background()

	if err := n.DisableLogging(ctx); err != nil {
		t.Fatalf("DisableLogging() error = %v", err)
	}
	if err := n.HCIReset(ctx); err != nil {
		t.Fatalf("HCIReset() error = %v", err)
	}
	if err := n.PreShutdown(ctx); err != nil {
		t.Fatalf("PreShutdown() error = %v", err)
	}

	want := []uint16{protocol.OpDisableLogging, protocol.OpReset, protocol.OpPreShutdown}
	cmds := dev.CallsOf(channeltest.CallCommand)
	if len(cmds) != len(want) {
		t.Fatalf("sent %d commands, want %d", len(cmds), len(want))
	}
	for i, op := range want {
		if cmds[i].Opcode != op {
			t.Errorf("command %d = 0x%04X, want 0x%04X", i, cmds[i].Opcode, op)
		}
	}
}
