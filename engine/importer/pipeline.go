package importer

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/oxygen/engine/core"
)

// CookParams carries the per-item knobs a submitter may set.
type CookParams struct {
	GenerateMips  bool
	EncodeBC7     bool
	Hashing       bool
	Alignment     uint32
	UsageFlags    uint32
	ElementStride uint32
	ElementFormat uint32
	Kind          AssetKind
}

// WorkItem is one asset travelling through a pipeline.
type WorkItem struct {
	SourceID   string
	SourcePath string
	ObjectPath string
	// Raw source bytes, read by the job before submission.
	Payload []byte
	Params  CookParams
	Stop    *StopToken
	// Reply, when set, receives this item's result instead of the shared
	// collect channel. Jobs sharing one pipeline use it to keep their
	// results apart.
	Reply chan WorkResult
}

// Telemetry accumulates per-item stage timings in milliseconds.
type Telemetry struct {
	DecodeMs float64 `json:"decode_ms"`
	CookMs   float64 `json:"cook_ms"`
	HashMs   float64 `json:"hash_ms"`
	EmitMs   float64 `json:"emit_ms"`
	IOMs     float64 `json:"io_ms"`
}

// WorkResult reports one item's outcome. A cancelled item carries no
// diagnostics and has had no effect on the cooked output.
type WorkResult struct {
	SourceID     string
	Success      bool
	Index        uint32
	Deduplicated bool
	Diagnostics  []Diagnostic
	Telemetry    Telemetry
}

// Cooker turns raw source bytes of one asset type into a cooked payload
// and its table descriptor. Implementations must be safe for concurrent
// use by pipeline workers.
type Cooker[E TableEntry] interface {
	Kind() string
	// Validate rejects malformed input before cooking starts.
	Validate(item *WorkItem) *Diagnostic
	// Cook produces the payload written to the data file.
	Cook(item *WorkItem, tel *Telemetry) ([]byte, CookedMeta, *Diagnostic)
	// MakeEntry builds the descriptor once a data range is reserved.
	MakeEntry(item *WorkItem, meta CookedMeta, hash uint64, size uint64, res Reservation) E
}

// CookedMeta is the type-specific metadata produced while cooking.
type CookedMeta struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    TextureFormat
}

// Pipeline runs one asset type's import stages across a worker pool fed by
// a work channel. Results come back in completion order via Collect.
type Pipeline[E TableEntry] struct {
	kind     string
	cooker   Cooker[E]
	agg      *TableAggregator[E]
	writer   *FileWriter
	dataPath string

	work    chan *WorkItem
	results chan WorkResult
	grp     *errgroup.Group
}

func NewPipeline[E TableEntry](cooker Cooker[E], agg *TableAggregator[E], writer *FileWriter, dataPath string, workers, queueSize int) *Pipeline[E] {
	p := &Pipeline[E]{
		kind:     cooker.Kind(),
		cooker:   cooker,
		agg:      agg,
		writer:   writer,
		dataPath: dataPath,
		work:     make(chan *WorkItem, queueSize),
		results:  make(chan WorkResult, queueSize),
		grp:      &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		p.grp.Go(p.worker)
	}
	return p
}

// Submit queues an item. Blocks when the queue is full.
func (p *Pipeline[E]) Submit(item *WorkItem) {
	p.work <- item
}

// Collect suspends until the next result is available.
func (p *Pipeline[E]) Collect(ctx context.Context) (WorkResult, error) {
	select {
	case r, ok := <-p.results:
		if !ok {
			return WorkResult{}, core.NewError(core.KindNotReady, "%s pipeline closed", p.kind)
		}
		return r, nil
	case <-ctx.Done():
		return WorkResult{}, coopCancelled(ctx)
	}
}

// Close stops accepting work and waits for in-flight items to finish.
func (p *Pipeline[E]) Close() {
	close(p.work)
	_ = p.grp.Wait()
	close(p.results)
}

func (p *Pipeline[E]) worker() error {
	for item := range p.work {
		res := p.process(item)
		if item.Reply != nil {
			item.Reply <- res
		} else {
			p.results <- res
		}
	}
	return nil
}

func (p *Pipeline[E]) process(item *WorkItem) WorkResult {
	res := WorkResult{SourceID: item.SourceID}
	if item.Stop.Stopped() {
		return res
	}

	// Validation.
	if d := p.cooker.Validate(item); d != nil {
		res.Diagnostics = append(res.Diagnostics, *d)
		return res
	}
	if item.Stop.Stopped() {
		return res
	}

	// Cooking.
	payload, meta, diag := p.cooker.Cook(item, &res.Telemetry)
	if diag != nil {
		res.Diagnostics = append(res.Diagnostics, *diag)
		return res
	}
	if item.Stop.Stopped() {
		return res
	}

	// Hashing over the cooked payload.
	var hash uint64
	if item.Params.Hashing {
		start := time.Now()
		hash = ContentHash(payload)
		res.Telemetry.HashMs = float64(time.Since(start).Microseconds()) / 1000
	} else {
		hash = ContentHash([]byte(item.SourcePath))
	}
	if item.Stop.Stopped() {
		return res
	}

	// Emit.
	start := time.Now()
	idx, created, err := p.emit(item, payload, meta, hash)
	res.Telemetry.EmitMs = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		res.Diagnostics = append(res.Diagnostics,
			errorDiag(CodeEmitFailed, item.SourcePath, "emitting %s: %v", item.SourceID, err))
		return res
	}
	res.Success = true
	res.Index = idx
	res.Deduplicated = !created
	return res
}

// emit reserves a data range and queues the padding and payload writes.
// A deduplicated signature resolves to its existing index and writes
// nothing.
func (p *Pipeline[E]) emit(item *WorkItem, payload []byte, meta CookedMeta, hash uint64) (uint32, bool, error) {
	alignment := uint64(item.Params.Alignment)
	if alignment == 0 {
		alignment = CookedAlignmentDefault
	}
	return p.agg.AcquireOrInsert(hash, func() (E, error) {
		resv, err := p.agg.ReserveDataRange(uint64(len(payload)), alignment)
		if err != nil {
			var zero E
			return zero, err
		}
		if resv.Padding > 0 {
			pad := make([]byte, resv.Padding)
			if err := p.writer.WriteAtAsync(p.dataPath, resv.Start, pad, WriteOptions{CreateDirectories: true, Overwrite: true}, nil); err != nil {
				var zero E
				return zero, err
			}
		}
		if err := p.writer.WriteAtAsync(p.dataPath, resv.AlignedOffset, payload, WriteOptions{CreateDirectories: true, Overwrite: true}, nil); err != nil {
			var zero E
			return zero, err
		}
		return p.cooker.MakeEntry(item, meta, hash, uint64(len(payload)), resv), nil
	})
}

func coopCancelled(ctx context.Context) error {
	return core.WrapError(core.KindCancelled, ctx.Err(), "collect interrupted")
}
