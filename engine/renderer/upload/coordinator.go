package upload

import (
	"context"

	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer"
)

// TicketID identifies one submitted upload.
type TicketID uint64

// Ticket tracks an upload against the transfer queue fence.
type Ticket struct {
	ID TicketID
	// FenceValue is the fence value expected on completion; zero until the
	// upload has been submitted.
	FenceValue uint64
	Done       bool
}

// UploadDesc describes one buffer upload. Data is copied into staging at
// submission time.
type UploadDesc struct {
	DstBuffer renderer.Buffer
	DstOffset uint64
	Data      []byte
}

type pendingUpload struct {
	ticket  TicketID
	staging Allocation
	desc    UploadDesc
}

// Coordinator accepts upload descriptors, stages their payloads, submits
// copies on the transfer queue at frame start and retires tickets as the
// queue fence advances. Writes issued before a submission complete before
// the associated fence value signals.
type Coordinator struct {
	gfx      renderer.Graphics
	staging  *RingBufferStaging
	transfer renderer.CommandQueue

	nextTicket TicketID
	pending    []pendingUpload
	inFlight   map[TicketID]*Ticket
}

func NewCoordinator(gfx renderer.Graphics, staging *RingBufferStaging, transfer renderer.CommandQueue) *Coordinator {
	return &Coordinator{
		gfx:      gfx,
		staging:  staging,
		transfer: transfer,
		inFlight: make(map[TicketID]*Ticket),
	}
}

// SubmitBufferUpload stages the payload and queues the copy for the next
// submission. The returned ticket completes once the transfer fence reaches
// the value assigned at submission.
func (c *Coordinator) SubmitBufferUpload(desc UploadDesc) (TicketID, error) {
	if desc.DstBuffer == nil {
		return 0, core.NewError(core.KindInvalidRequest, "upload without destination buffer")
	}
	if len(desc.Data) == 0 {
		return 0, core.NewError(core.KindInvalidRequest, "upload with empty payload")
	}
	alloc, err := c.staging.Allocate(uint64(len(desc.Data)))
	if err != nil {
		return 0, core.WrapError(core.KindUploadError, err, "staging %d bytes", len(desc.Data))
	}
	copy(alloc.Bytes, desc.Data)

	c.nextTicket++
	id := c.nextTicket
	c.pending = append(c.pending, pendingUpload{ticket: id, staging: alloc, desc: desc})
	c.inFlight[id] = &Ticket{ID: id}
	return id, nil
}

// OnFrameStart rotates staging to the new slot, submits pending copies and
// returns the tickets that completed since the previous frame.
func (c *Coordinator) OnFrameStart(slot uint32) ([]TicketID, error) {
	if err := c.submitPending(); err != nil {
		return nil, err
	}
	if err := c.staging.OnFrameStart(slot); err != nil {
		return nil, err
	}
	return c.retireCompleted(c.transfer.CompletedFenceValue()), nil
}

func (c *Coordinator) submitPending() error {
	if len(c.pending) == 0 {
		return nil
	}
	rec, err := c.gfx.CreateCommandRecorder(renderer.QueueRoleTransfer)
	if err != nil {
		return core.WrapError(core.KindUploadError, err, "creating transfer recorder")
	}
	for _, p := range c.pending {
		if err := rec.CopyBuffer(p.staging.Buffer, p.staging.Offset, p.desc.DstBuffer, p.desc.DstOffset, uint64(len(p.desc.Data))); err != nil {
			return core.WrapError(core.KindUploadError, err, "recording copy for ticket %d", p.ticket)
		}
	}
	if err := rec.Close(); err != nil {
		return core.WrapError(core.KindUploadError, err, "closing transfer recorder")
	}
	if err := c.gfx.SubmitRecorder(rec, c.transfer); err != nil {
		return core.WrapError(core.KindUploadError, err, "submitting transfer work")
	}
	fence := c.transfer.QueueSignalCommand()
	for _, p := range c.pending {
		c.inFlight[p.ticket].FenceValue = fence
	}
	c.pending = c.pending[:0]
	return nil
}

// retireCompleted marks tickets whose fence value has been reached and
// returns their ids.
func (c *Coordinator) retireCompleted(completedFence uint64) []TicketID {
	var done []TicketID
	for id, tk := range c.inFlight {
		if tk.FenceValue != 0 && tk.FenceValue <= completedFence {
			tk.Done = true
			done = append(done, id)
			delete(c.inFlight, id)
		}
	}
	return done
}

// IsComplete reports whether the ticket has retired.
func (c *Coordinator) IsComplete(id TicketID) bool {
	_, inFlight := c.inFlight[id]
	return !inFlight
}

// Flush submits all pending uploads and blocks until the transfer queue has
// drained.
func (c *Coordinator) Flush(ctx context.Context) error {
	if err := c.submitPending(); err != nil {
		return err
	}
	if err := c.transfer.Flush(ctx); err != nil {
		return core.WrapError(core.KindUploadError, err, "flushing transfer queue")
	}
	c.retireCompleted(c.transfer.CompletedFenceValue())
	return nil
}
