// Package transfer moves firmware images to the controller, either as raw
// bulk blocks or as TLV segments over HCI vendor commands.
package transfer

import (
	"fmt"
	"log/slog"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/logging"
)

// Progress is called after each block or segment with the bytes sent so far
// out of total.
type Progress func(name string, sent, total int)

// Engine runs transfers over a channel.
type Engine struct {
	ch       *channel.Channel
	logger   *slog.Logger
	progress Progress
}

// New creates an engine. progress may be nil.
func New(ch *channel.Channel, logger *slog.Logger, progress Progress) *Engine {
	return &Engine{
		ch:       ch,
		logger:   logging.For(logger, logging.ComponentTransfer),
		progress: progress,
	}
}

func (e *Engine) report(name string, sent, total int) {
	if e.progress != nil {
		e.progress(name, sent, total)
	}
}

// BlockError reports the bulk block that failed.
type BlockError struct {
	Index  int
	Offset int
	Err    error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("bulk block %d at offset %d failed: %v", e.Index, e.Offset, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// SegmentError reports the TLV segment that failed.
type SegmentError struct {
	Index  int
	Offset int
	Err    error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("tlv segment %d at offset %d failed: %v", e.Index, e.Offset, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}
