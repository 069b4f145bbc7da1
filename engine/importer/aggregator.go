package importer

import (
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/resources/serial"
)

// Reservation is a claimed range in a type's data file. Bytes in
// [Start, AlignedOffset) are zero padding owed by the claimant.
type Reservation struct {
	Start         uint64
	AlignedOffset uint64
	Padding       uint64
}

// TableEntry is implemented by per-type descriptor records.
type TableEntry interface {
	// Signature is the dedup key, normally the content hash.
	Signature() uint64
	// EncodeTo serializes the packed descriptor.
	EncodeTo(w *serial.Writer) error
}

// TableAggregator accumulates descriptors for one resource type and hands
// out data-file ranges. Entry indices are dense and monotonic; a signature
// already present resolves to its existing index without reserving space.
// Safe for concurrent use by pipeline workers.
type TableAggregator[E TableEntry] struct {
	name      string
	tablePath string
	writer    *FileWriter

	mu          sync.Mutex
	entries     []E
	bySignature map[uint64]uint32

	nextIndex    atomic.Uint32
	dataFileSize atomic.Uint64

	requests   atomic.Uint64
	newEntries atomic.Uint64

	finalizeStarted atomic.Bool
}

func NewTableAggregator[E TableEntry](name, tablePath string, writer *FileWriter) *TableAggregator[E] {
	return &TableAggregator[E]{
		name:        name,
		tablePath:   tablePath,
		writer:      writer,
		bySignature: map[uint64]uint32{},
	}
}

// AcquireOrInsert returns the index for signature, inserting a new entry
// built by build when the signature is unseen. The second result reports
// whether a new entry was created.
func (a *TableAggregator[E]) AcquireOrInsert(signature uint64, build func() (E, error)) (uint32, bool, error) {
	a.requests.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx, ok := a.bySignature[signature]; ok {
		return idx, false, nil
	}
	entry, err := build()
	if err != nil {
		var zero uint32
		return zero, false, err
	}
	idx := a.nextIndex.Load()
	a.entries = append(a.entries, entry)
	a.bySignature[signature] = idx
	a.nextIndex.Store(idx + 1)
	a.newEntries.Add(1)
	return idx, true, nil
}

// ReserveDataRange atomically claims payloadSize bytes at the next offset
// aligned to alignment. Workers call this without taking the table lock.
func (a *TableAggregator[E]) ReserveDataRange(payloadSize, alignment uint64) (Reservation, error) {
	if payloadSize == 0 {
		return Reservation{}, core.NewError(core.KindInvalidRequest, "zero-size payload for %s", a.name)
	}
	if alignment == 0 || alignment&(alignment-1) != 0 {
		return Reservation{}, core.NewError(core.KindInvalidRequest, "alignment %d is not a power of two", alignment)
	}
	for {
		current := a.dataFileSize.Load()
		aligned := serial.AlignUp(current, alignment)
		next := aligned + payloadSize
		if a.dataFileSize.CompareAndSwap(current, next) {
			return Reservation{Start: current, AlignedOffset: aligned, Padding: aligned - current}, nil
		}
	}
}

// EntryCount returns the number of published entries.
func (a *TableAggregator[E]) EntryCount() uint32 { return a.nextIndex.Load() }

// DataFileSize returns the total reserved data-file length.
func (a *TableAggregator[E]) DataFileSize() uint64 { return a.dataFileSize.Load() }

// Stats returns total requests and how many created new entries.
func (a *TableAggregator[E]) Stats() (requests, newEntries uint64) {
	return a.requests.Load(), a.newEntries.Load()
}

// Entry returns the descriptor at idx.
func (a *TableAggregator[E]) Entry(idx uint32) (E, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx >= uint32(len(a.entries)) {
		var zero E
		return zero, core.NewError(core.KindInvalidRequest, "%s entry %d out of range", a.name, idx)
	}
	return a.entries[idx], nil
}

// Finalize serializes the whole table to the output file, packed with
// 1-byte alignment. Repeated calls after the first are no-ops.
func (a *TableAggregator[E]) Finalize() error {
	if !a.finalizeStarted.CompareAndSwap(false, true) {
		return nil
	}
	a.mu.Lock()
	w := serial.NewWriter()
	var err error
	for _, e := range a.entries {
		if err = e.EncodeTo(w); err != nil {
			break
		}
	}
	a.mu.Unlock()
	if err != nil {
		return core.WrapError(core.KindIntegrityError, err, "serializing %s table", a.name)
	}
	if err := a.writer.Write(a.tablePath, w.Bytes(), WriteOptions{CreateDirectories: true, Overwrite: true}); err != nil {
		return core.WrapError(core.KindIOError, err, "writing %s table", a.name)
	}
	core.LogInfo("finalized %s table, %d entries, data size %d", a.name, a.EntryCount(), a.DataFileSize())
	return nil
}
