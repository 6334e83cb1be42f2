package transfer

import (
	"context"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/firmware"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// Bulk sends the first headerLen bytes of blob as a DOWNLOAD control request
// and the rest through the bulk pipe in blocks of at most BulkBlockSize.
func (e *Engine) Bulk(ctx context.Context, blob *firmware.Blob, headerLen int) error {
	data := blob.Data
	if headerLen < 0 || len(data) < headerLen {
		return protocol.Errorf(protocol.KindTransfer, "bulk transfer",
			"%s: image of %d bytes is shorter than its %d byte header", blob.Name, len(data), headerLen)
	}

	e.logger.Info("bulk transfer", "name", blob.Name, "size", len(data), "header", headerLen)

	if _, err := e.ch.ControlTransfer(ctx, channel.Out, protocol.ReqDownload, data[:headerLen]); err != nil {
		return protocol.Wrap(protocol.KindTransfer, "send header", err)
	}

	total := len(data)
	sent := headerLen
	e.report(blob.Name, sent, total)

	for idx := 0; sent < total; idx++ {
		end := sent + protocol.BulkBlockSize
		if end > total {
			end = total
		}

		if _, err := e.ch.WriteBulk(ctx, data[sent:end]); err != nil {
			return protocol.Wrap(protocol.KindTransfer, "bulk transfer", &BlockError{Index: idx, Offset: sent, Err: err})
		}
		e.logger.Debug("bulk block", "index", idx, "offset", sent, "len", end-sent)

		sent = end
		e.report(blob.Name, sent, total)
	}

	return nil
}
