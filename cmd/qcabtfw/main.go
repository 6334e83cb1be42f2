package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/embedded"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/chipset"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/detect"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/firmware"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/logging"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/provision"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/serial"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/usb"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	vidFlag         string
	pidFlag         string
	busFlag         int
	addrFlag        int
	chipFlag        string
	uartFlag        string
	baudFlag        int
	firmwareDirFlag string
	timeoutFlag     time.Duration
	bdaddrFlag      string
	shutdownFlag    bool
	verboseFlag     bool
	logFormatFlag   string
	noProgressFlag  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "qcabtfw",
		Short: "Load runtime firmware into Qualcomm Atheros Bluetooth controllers",
		Long: `qcabtfw provisions AR3K, Rome USB and Qualcomm SoC Bluetooth controllers
with their patch and NVM/syscfg images.

Firmware images are looked up by their driver filenames, first in
--firmware-dir and then in the set bundled with this tool.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log every transfer")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&firmwareDirFlag, "firmware-dir", "", "Directory searched before the bundled images")

	provisionCmd := &cobra.Command{
		Use:   "provision",
		Short: "Load firmware into a controller",
		Long: `Load firmware into a controller.

Without a selector the first recognised USB controller is used.
UART-attached SoC controllers need --uart and --chip.`,
		Args: cobra.NoArgs,
		RunE: runProvision,
	}
	f := provisionCmd.Flags()
	f.StringVar(&vidFlag, "vid", "", "USB vendor id (hex)")
	f.StringVar(&pidFlag, "pid", "", "USB product id (hex)")
	f.IntVar(&busFlag, "bus", 0, "USB bus number")
	f.IntVar(&addrFlag, "addr", 0, "USB device address")
	f.StringVar(&chipFlag, "chip", "", "Chip model override (e.g. rome-usb, wcn3991)")
	f.StringVarP(&uartFlag, "uart", "p", "", "Serial port of a UART-attached SoC controller")
	f.IntVarP(&baudFlag, "baud", "b", serial.DefaultBaudRate, "UART baud rate")
	f.DurationVar(&timeoutFlag, "timeout", protocol.DefaultTimeout, "Per-request timeout")
	f.StringVar(&bdaddrFlag, "bdaddr", "", "Bluetooth address to program on SoC chips (aa:bb:cc:dd:ee:ff)")
	f.BoolVar(&shutdownFlag, "shutdown-after", false, "Send the SoC pre-shutdown command when done")
	f.BoolVar(&noProgressFlag, "no-progress", false, "Disable the progress bar")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List attached USB Bluetooth controllers",
		RunE:  runList,
	}

	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		RunE:  runPorts,
	}

	firmwareCmd := &cobra.Command{
		Use:   "firmware",
		Short: "Inspect firmware images",
	}
	firmwareListCmd := &cobra.Command{
		Use:   "list",
		Short: "List known firmware filenames and whether they are available",
		RunE:  runFirmwareList,
	}
	firmwareCmd.AddCommand(firmwareListCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qcabtfw %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(provisionCmd, listCmd, portsCmd, firmwareCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, error) {
	format, err := logging.ParseFormat(logFormatFlag)
	if err != nil {
		return nil, err
	}
	level := slog.LevelInfo
	if verboseFlag {
		level = slog.LevelDebug
	}
	return logging.New(os.Stderr, level, format), nil
}

func repository() firmware.Repository {
	bundled := firmware.NewFS(embedded.Firmware())
	if firmwareDirFlag == "" {
		return bundled
	}
	return firmware.Chain{firmware.NewDir(firmwareDirFlag), bundled}
}

func runProvision(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var override chipset.Chip
	if chipFlag != "" {
		if override, err = chipset.ParseChip(chipFlag); err != nil {
			return err
		}
	}

	opts := []provision.Option{
		provision.WithLogger(logger),
		provision.WithTimeout(timeoutFlag),
		provision.WithBaudRate(baudFlag),
		provision.WithShutdownAfter(shutdownFlag),
	}
	if bdaddrFlag != "" {
		addr, err := parseBDAddr(bdaddrFlag)
		if err != nil {
			return err
		}
		opts = append(opts, provision.WithBDAddr(addr))
	}

	dev, chip, err := openDevice(ctx, override, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Chip: %s (%s)\n", chip, chip.Family())

	var bars *progressBars
	if !noProgressFlag && !verboseFlag {
		bars = &progressBars{}
		opts = append(opts, provision.WithProgress(bars.update))
	}

	report, err := provision.New(dev, chip, repository(), opts...).Provision(ctx)
	bars.finish()
	printReport(report)
	if err != nil {
		return fmt.Errorf("provisioning failed (%s): %w", protocol.KindOf(err), err)
	}

	fmt.Println("Done!")
	return nil
}

// openDevice opens the selected controller and resolves its chip model.
func openDevice(ctx context.Context, override chipset.Chip, logger *slog.Logger) (provision.Device, chipset.Chip, error) {
	if uartFlag != "" {
		if override.Family() != chipset.FamilySoC {
			return nil, chipset.Invalid, fmt.Errorf("--uart needs --chip set to an SoC model")
		}
		port, err := serial.Open(uartFlag, baudFlag, logger)
		if err != nil {
			return nil, chipset.Invalid, err
		}
		fmt.Printf("Port: %s @ %d baud\n", uartFlag, baudFlag)
		return port, override, nil
	}

	var (
		dev *usb.Device
		err error
	)
	switch {
	case busFlag != 0 || addrFlag != 0:
		dev, err = usb.OpenAt(busFlag, addrFlag, logger)
	case vidFlag != "" || pidFlag != "":
		var vid, pid uint16
		if vid, err = parseHexID(vidFlag); err != nil {
			return nil, chipset.Invalid, fmt.Errorf("--vid: %w", err)
		}
		if pid, err = parseHexID(pidFlag); err != nil {
			return nil, chipset.Invalid, fmt.Errorf("--pid: %w", err)
		}
		dev, err = usb.Open(vid, pid, logger)
	default:
		fmt.Println("Detecting controller...")
		found, ferr := detect.FindDevice(ctx)
		if ferr != nil {
			return nil, chipset.Invalid, ferr
		}
		fmt.Printf("Found %s\n", found)
		dev, err = usb.OpenAt(found.Bus, found.Address, logger)
	}
	if err != nil {
		return nil, chipset.Invalid, err
	}

	chip := override
	if chip == chipset.Invalid {
		chip = chipset.Identify(dev.ID())
	}
	return dev, chip, nil
}

func parseHexID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint16(v), nil
}

// parseBDAddr parses a colon-separated address. The controller takes the
// bytes least significant first.
func parseBDAddr(s string) ([6]byte, error) {
	var addr [6]byte
	parts := strings.Split(s, ":")
	if len(parts) != len(addr) {
		return addr, fmt.Errorf("invalid bdaddr %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil || len(p) != 2 {
			return addr, fmt.Errorf("invalid bdaddr %q", s)
		}
		addr[len(addr)-1-i] = byte(v)
	}
	return addr, nil
}

// progressBars shows one bar per transferred image.
type progressBars struct {
	name string
	bar  *progressbar.ProgressBar
}

func (p *progressBars) update(name string, sent, total int) {
	if p.bar == nil || name != p.name {
		p.finish()
		fmt.Printf("\nLoading %s (%d bytes)...\n", name, total)
		p.name = name
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Loading"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(sent)
}

func (p *progressBars) finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

func printReport(r *provision.Report) {
	if r == nil {
		return
	}
	fmt.Println()
	for _, s := range r.Steps {
		line := fmt.Sprintf("  %-16s %s", s.Name, s.Outcome)
		switch {
		case s.Detail != "":
			line += " (" + s.Detail + ")"
		case s.Err != nil:
			line += ": " + s.Err.Error()
		}
		fmt.Println(line)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	devices, err := detect.ListDevices(cmd.Context())
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No supported Bluetooth controllers found")
		return nil
	}

	fmt.Printf("Found %d controller(s):\n", len(devices))
	for _, d := range devices {
		fmt.Printf("  %s\n", d)
	}
	return nil
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func runFirmwareList(cmd *cobra.Command, args []string) error {
	repo := repository()
	for _, name := range firmware.Known() {
		mark := " "
		if firmware.Has(repo, name) {
			mark = "*"
		}
		fmt.Printf("  %s %s\n", mark, name)
	}
	fmt.Println("\n* available")
	return nil
}
