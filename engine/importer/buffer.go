package importer

import "time"

// BufferCooker passes raw buffer payloads through, validating stride
// consistency. Buffers arrive pre-packed from the source tools.
type BufferCooker struct{}

func (BufferCooker) Kind() string { return "buffer" }

func (BufferCooker) Validate(item *WorkItem) *Diagnostic {
	if len(item.Payload) == 0 {
		d := errorDiag(CodeReadFailed, item.SourcePath, "empty source payload")
		return &d
	}
	if stride := item.Params.ElementStride; stride != 0 && uint64(len(item.Payload))%uint64(stride) != 0 {
		d := errorDiag(CodeInvalidDimensions, item.SourcePath,
			"payload size %d is not a multiple of stride %d", len(item.Payload), stride)
		return &d
	}
	return nil
}

func (BufferCooker) Cook(item *WorkItem, tel *Telemetry) ([]byte, CookedMeta, *Diagnostic) {
	start := time.Now()
	payload := item.Payload
	tel.CookMs = float64(time.Since(start).Microseconds()) / 1000
	return payload, CookedMeta{}, nil
}

func (BufferCooker) MakeEntry(item *WorkItem, _ CookedMeta, hash uint64, size uint64, res Reservation) BufferTableEntry {
	alignment := item.Params.Alignment
	if alignment == 0 {
		alignment = CookedAlignmentDefault
	}
	return BufferTableEntry{
		DataOffset:    res.AlignedOffset,
		SizeBytes:     size,
		ContentHash:   hash,
		UsageFlags:    item.Params.UsageFlags,
		ElementStride: item.Params.ElementStride,
		ElementFormat: item.Params.ElementFormat,
		Alignment:     alignment,
	}
}
