package provision

import (
	"context"
	"fmt"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/chipset"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/firmware"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/negotiate"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// Step names as they appear in reports.
const (
	StepReset          = "reset"
	StepConfigure      = "configure"
	StepOpenInterface  = "open-interface"
	StepNormalMode     = "normal-mode"
	StepPatch          = "patch"
	StepSysCfg         = "syscfg"
	StepNVM            = "nvm"
	StepSwitchVIDPID   = "switch-vid-pid"
	StepDeviceStatus   = "device-status"
	StepVersion        = "version"
	StepDisableLogging = "disable-logging"
	StepHCIReset       = "hci-reset"
	StepBDAddr         = "bdaddr"
	StepPreShutdown    = "pre-shutdown"
)

func isLoadStep(name string) bool {
	return name == StepPatch || name == StepSysCfg || name == StepNVM
}

type step struct {
	name     string
	optional bool
	run      func(ctx context.Context, s *session) error
}

func mandatory(name string, fn func(context.Context, *session) error) step {
	return step{name: name, run: fn}
}

func optional(name string, fn func(context.Context, *session) error) step {
	return step{name: name, optional: true, run: fn}
}

// stepsFor returns the load sequence of chip, or nil when it has none.
func stepsFor(chip chipset.Chip, cfg Config) []step {
	setup := []step{
		mandatory(StepReset, resetDevice),
		mandatory(StepConfigure, configure),
		mandatory(StepOpenInterface, openInterface),
	}

	switch chip.Family() {
	case chipset.FamilyAth3K:
		return append(setup,
			mandatory(StepNormalMode, setNormalMode),
			mandatory(StepPatch, loadAR3KPatch),
			mandatory(StepSysCfg, loadAR3KSysCfg),
			optional(StepSwitchVIDPID, switchVIDPID),
			optional(StepDeviceStatus, deviceStatus),
		)
	case chipset.FamilyUSB:
		return append(setup,
			mandatory(StepNormalMode, setNormalMode),
			mandatory(StepPatch, loadRomePatch),
			mandatory(StepNVM, loadRomeNVM),
			optional(StepSwitchVIDPID, switchVIDPID),
			optional(StepDeviceStatus, deviceStatus),
		)
	case chipset.FamilySoC:
		steps := append(setup,
			mandatory(StepVersion, querySoCVersion),
			mandatory(StepPatch, loadSoCPatch),
			mandatory(StepNVM, loadSoCNVM),
		)
		if chip.LateSoC() {
			steps = append(steps, mandatory(StepDisableLogging, disableLogging))
		}
		steps = append(steps, mandatory(StepHCIReset, hciReset))
		if cfg.BDAddr != nil {
			steps = append(steps, optional(StepBDAddr, setBDAddr))
		}
		if cfg.ShutdownAfter {
			steps = append(steps, optional(StepPreShutdown, preShutdown))
		}
		return steps
	}
	return nil
}

func resetDevice(ctx context.Context, s *session) error {
	return protocol.Wrap(protocol.KindConfiguration, "reset device", s.dev.Reset(ctx))
}

func configure(ctx context.Context, s *session) error {
	return protocol.Wrap(protocol.KindConfiguration, "set configuration", s.dev.SetConfiguration(ctx))
}

func openInterface(ctx context.Context, s *session) error {
	return protocol.Wrap(protocol.KindConfiguration, "open interface", s.dev.OpenInterface(ctx))
}

func setNormalMode(ctx context.Context, s *session) error {
	changed, err := s.neg.SetNormalMode(ctx)
	if err != nil {
		return err
	}
	if !changed {
		return skip("already in normal mode")
	}
	return nil
}

func switchVIDPID(ctx context.Context, s *session) error {
	return s.neg.SwitchVIDPID(ctx)
}

func deviceStatus(ctx context.Context, s *session) error {
	_, err := s.neg.DeviceStatus(ctx)
	return err
}

// readAth3K refreshes the state byte and version record.
func readAth3K(ctx context.Context, s *session) error {
	state, err := s.neg.GetState(ctx)
	if err != nil {
		return err
	}
	v, err := s.neg.GetAth3KVersion(ctx)
	if err != nil {
		return err
	}
	s.state, s.ath3k = state, v
	return nil
}

func loadAR3KPatch(ctx context.Context, s *session) error {
	if err := readAth3K(ctx, s); err != nil {
		return err
	}
	if s.state.PatchLoaded() {
		return skip("firmware is already patched")
	}

	blob, err := s.sel.Load(firmware.AR3KPatchName(s.ath3k.ROMVersion))
	if err != nil {
		return err
	}
	defer blob.Release()

	rom, build, err := protocol.AR3KPatchVersion(blob.Data)
	if err != nil {
		return protocol.Wrap(protocol.KindVersionIncompatible, blob.Name, err)
	}
	if err := protocol.CheckCompatible(s.ath3k.ROMVersion, s.ath3k.Build, rom, build); err != nil {
		return fmt.Errorf("%s: %w", blob.Name, err)
	}
	return s.eng.Bulk(ctx, blob, protocol.AR3KHeaderSize)
}

func loadAR3KSysCfg(ctx context.Context, s *session) error {
	if err := readAth3K(ctx, s); err != nil {
		return err
	}
	if s.state.SysCfgLoaded() {
		return skip("system configuration is already loaded")
	}

	blob, err := s.sel.Load(firmware.AR3KSysCfgName(s.ath3k.ROMVersion, s.ath3k.RefClock))
	if err != nil {
		return err
	}
	defer blob.Release()

	return s.eng.Bulk(ctx, blob, protocol.AR3KHeaderSize)
}

func loadRomePatch(ctx context.Context, s *session) error {
	v, err := s.neg.GetQCAVersion(ctx)
	if err != nil {
		return err
	}
	info, err := negotiate.LookupDeviceInfo(v.ROMVersion)
	if err != nil {
		return err
	}
	state, err := s.neg.GetState(ctx)
	if err != nil {
		return err
	}
	s.qca, s.info, s.state = v, info, state

	if state.PatchLoaded() {
		return skip("ram patch is already loaded")
	}

	blob, err := s.sel.Load(firmware.RomePatchName(v.ROMVersion))
	if err != nil {
		return err
	}
	defer blob.Release()

	rp, err := protocol.DecodeRamPatchVersion(blob.Data, info.VersionOffset)
	if err != nil {
		return protocol.Wrap(protocol.KindVersionIncompatible, blob.Name, err)
	}
	rpROM := rp.ROMVersion(v.ROMVersion)
	s.logger.Info("ram patch version",
		"patch_rom", fmt.Sprintf("0x%X", rpROM),
		"patch_build", fmt.Sprintf("0x%X", rp.PatchVersion),
		"device_rom", fmt.Sprintf("0x%X", v.ROMVersion),
		"device_build", fmt.Sprintf("0x%X", v.PatchVersion))
	if err := protocol.CheckCompatible(v.ROMVersion, v.PatchVersion, rpROM, uint32(rp.PatchVersion)); err != nil {
		return fmt.Errorf("%s: %w", blob.Name, err)
	}
	return s.eng.Bulk(ctx, blob, info.RamPatchHdrLen)
}

func loadRomeNVM(ctx context.Context, s *session) error {
	// The controller reports fresh version fields once the patch runs.
	v, err := s.neg.GetQCAVersion(ctx)
	if err != nil {
		return err
	}
	s.qca = v

	if s.state.SysCfgLoaded() {
		return skip("nvm is already loaded")
	}

	blob, err := s.sel.Load(firmware.RomeNVMName(v))
	if err != nil {
		return err
	}
	defer blob.Release()

	return s.eng.Bulk(ctx, blob, s.info.NVMHdrLen)
}

func querySoCVersion(ctx context.Context, s *session) error {
	v, err := s.neg.GetSoCVersion(ctx, s.chip)
	if err != nil {
		return err
	}
	s.soc = v
	return nil
}

// nvmPatch is the in-place NVM edit for the configured baud rate.
func (s *session) nvmPatch() protocol.NVMPatch {
	p := protocol.NVMPatch{BaudRate: protocol.BaudRateCode(s.cfg.BaudRate), BaudOffset: 2}
	if s.chip.LateSoC() {
		p.BaudOffset = 1
	}
	return p
}

func loadTLV(ctx context.Context, s *session, name string, check bool) error {
	blob, err := s.sel.Load(name)
	if err != nil {
		return err
	}
	defer blob.Release()

	tlv, err := s.eng.PrepareTLV(blob, s.nvmPatch())
	if err != nil {
		return err
	}

	mode := protocol.SkipNone
	if tlv.Patch != nil {
		mode = tlv.Patch.DownloadMode
		if check {
			err := protocol.CheckCompatible(uint32(s.soc.ROMVersion), s.soc.PatchVersion,
				uint32(tlv.Patch.ROMBuild), uint32(tlv.Patch.PatchVersion))
			if err != nil {
				return fmt.Errorf("%s: %w", blob.Name, err)
			}
		}
	}
	return s.eng.SendTLV(ctx, blob, tlv, mode, s.chip.LateSoC())
}

func loadSoCPatch(ctx context.Context, s *session) error {
	return loadTLV(ctx, s, firmware.SoCPatchName(s.chip, s.soc), true)
}

func loadSoCNVM(ctx context.Context, s *session) error {
	return loadTLV(ctx, s, firmware.SoCNVMName(s.chip, s.soc), false)
}

func disableLogging(ctx context.Context, s *session) error {
	return s.neg.DisableLogging(ctx)
}

func hciReset(ctx context.Context, s *session) error {
	return s.neg.HCIReset(ctx)
}

func setBDAddr(ctx context.Context, s *session) error {
	return s.neg.SetBDAddr(ctx, s.chip, *s.cfg.BDAddr)
}

func preShutdown(ctx context.Context, s *session) error {
	return s.neg.PreShutdown(ctx)
}
