package transfer

import (
	"context"
	"fmt"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/firmware"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// PrepareTLV parses blob and, for NVM records, applies nvm to the image in
// place.
func (e *Engine) PrepareTLV(blob *firmware.Blob, nvm protocol.NVMPatch) (*protocol.TLV, error) {
	tlv, err := protocol.ParseTLV(blob.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", blob.Name, err)
	}

	e.logger.Info("tlv image", "name", blob.Name, "type", tlv.Type, "length", tlv.Length)

	switch tlv.Type {
	case protocol.TLVTypePatch:
		p := tlv.Patch
		e.logger.Info("patch tlv",
			"total", p.TotalSize,
			"data", p.DataLength,
			"format", fmt.Sprintf("0x%X", p.FormatVersion),
			"signature", fmt.Sprintf("0x%X", p.Signature),
			"mode", p.DownloadMode,
			"product", fmt.Sprintf("0x%04X", p.ProductID),
			"rom", fmt.Sprintf("0x%04X", p.ROMBuild),
			"patch", fmt.Sprintf("0x%04X", p.PatchVersion),
			"entry", fmt.Sprintf("0x%X", p.Entry))
	case protocol.TLVTypeNVM:
		untouched, err := tlv.ApplyNVMPatch(blob.Data, nvm)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", blob.Name, err)
		}
		for _, id := range untouched {
			e.logger.Debug("nvm tag left unmodified", "tag", id)
		}
	default:
		e.logger.Warn("unknown tlv type", "name", blob.Name, "type", tlv.Type)
	}

	return tlv, nil
}

// segmentAck returns the acknowledgement shape of a TLV segment.
func segmentAck(late bool) (channel.Wait, protocol.EDLExpect) {
	if late {
		return channel.WaitCommandComplete, protocol.EDLExpect{
			Length: protocol.EDLHeaderSize,
			CResp:  protocol.EDLCmdReqResEvt,
			RType:  protocol.EDLPatchTLVReq,
		}
	}
	return channel.WaitVendorEvent, protocol.EDLExpect{
		Length: protocol.EDLHeaderSize + 1,
		CResp:  protocol.EDLCmdReqResEvt,
		RType:  protocol.EDLTLVDnldResEvt,
	}
}

// SendTLV streams the TLV record of blob in segments of at most
// MaxTLVSegmentSize bytes. Under a skipping download mode only the last
// segment waits for its acknowledgement. late selects the WCN3991-and-later
// response framing.
func (e *Engine) SendTLV(ctx context.Context, blob *firmware.Blob, tlv *protocol.TLV, mode protocol.DownloadMode, late bool) error {
	image := blob.Data[:protocol.TLVHeaderSize+tlv.Length]
	total := len(image)
	wait, want := segmentAck(late)

	e.logger.Info("tlv transfer", "name", blob.Name, "size", total, "mode", mode, "late", late)
	e.report(blob.Name, 0, total)

	offset := 0
	for idx := 0; offset < total; idx++ {
		size := total - offset
		if size > protocol.MaxTLVSegmentSize {
			size = protocol.MaxTLVSegmentSize
		}
		remain := total - offset - size
		last := remain == 0 || size < protocol.MaxTLVSegmentSize

		params := protocol.TLVSegmentParams(image[offset : offset+size])

		if !last && mode.SkipsIntermediateAck() {
			if err := e.ch.HCISend(ctx, protocol.OpEDLPatch, params); err != nil {
				return protocol.Wrap(protocol.KindTransfer, "tlv transfer", &SegmentError{Index: idx, Offset: offset, Err: err})
			}
		} else {
			payload, err := e.ch.HCIVendorCommand(ctx, protocol.OpEDLPatch, params, wait)
			if err != nil {
				return protocol.Wrap(protocol.KindTransfer, "tlv transfer", &SegmentError{Index: idx, Offset: offset, Err: err})
			}
			resp, err := protocol.DecodeEDL(payload, want)
			if err != nil {
				return protocol.Wrap(protocol.KindProtocolMismatch, "tlv transfer", &SegmentError{Index: idx, Offset: offset, Err: err})
			}
			if !late && resp.Data[0] != 0 {
				e.logger.Warn("tlv segment reported error", "index", idx, "tlv_resp", fmt.Sprintf("0x%02X", resp.Data[0]))
			}
		}
		e.logger.Debug("tlv segment", "index", idx, "offset", offset, "len", size, "last", last)

		offset += size
		e.report(blob.Name, offset, total)
	}

	return nil
}
