package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Component identifies a subsystem for log filtering.
type Component string

// Engine component identifiers.
const (
	ComponentChannel   Component = "channel"
	ComponentNegotiate Component = "negotiate"
	ComponentTransfer  Component = "transfer"
	ComponentProvision Component = "provision"
	ComponentUSB       Component = "usb"
	ComponentSerial    Component = "serial"
)

// Format specifies the output format for logging.
type Format int

// Log format options.
const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat converts a --log-format flag value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format %q", s)
}

// New creates a logger writing to w at the given level.
func New(w io.Writer, level slog.Level, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// For tags logger with component. A nil logger yields Discard.
func For(logger *slog.Logger, component Component) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	return logger.With("component", string(component))
}
