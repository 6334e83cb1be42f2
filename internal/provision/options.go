package provision

import (
	"log/slog"
	"time"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/logging"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/transfer"
)

// Config holds provisioning settings.
type Config struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	Progress transfer.Progress

	// BaudRate is written into the HCI transport tag of SoC NVM images.
	BaudRate int

	// BDAddr, when set, is programmed after an SoC HCI reset.
	BDAddr *[6]byte

	// ShutdownAfter sends the SoC pre-shutdown command as the last step.
	ShutdownAfter bool
}

// Option configures provisioning.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Logger:   logging.Discard(),
		Timeout:  protocol.DefaultTimeout,
		BaudRate: 115200,
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithTimeout sets the per-request completion timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithProgress sets the transfer progress callback.
func WithProgress(fn transfer.Progress) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

// WithBaudRate sets the UART speed advertised in SoC NVM images.
func WithBaudRate(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.BaudRate = baud
		}
	}
}

// WithBDAddr programs addr on SoC chips.
func WithBDAddr(addr [6]byte) Option {
	return func(c *Config) {
		c.BDAddr = &addr
	}
}

// WithShutdownAfter appends the SoC pre-shutdown command.
func WithShutdownAfter(enabled bool) Option {
	return func(c *Config) {
		c.ShutdownAfter = enabled
	}
}
