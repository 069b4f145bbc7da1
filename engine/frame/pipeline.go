package frame

import (
	"context"
	"time"

	"github.com/spaghettifunk/oxygen/engine/coop"
	"github.com/spaghettifunk/oxygen/engine/core"
)

// Module is one participant in the frame pipeline. OnPhase is called for
// every phase in order; during the render phase all modules run
// concurrently, so render-phase work must only read the published snapshot.
type Module interface {
	Name() string
	OnAttached(fc *FrameContext) error
	OnFrameStart(ctx context.Context, fc *FrameContext) error
	OnPhase(ctx context.Context, fc *FrameContext, phase Phase) error
	OnFrameEnd(ctx context.Context, fc *FrameContext) error
	OnShutdown(fc *FrameContext)
}

// InputProvider produces the per-frame input capture during the input
// phase. Nil captures are allowed when no devices exist.
type InputProvider interface {
	CaptureInput() *InputSnapshot
}

// Driver receives control at the top of every frame, before the input
// phase. Implementations rotate the backend's frame-in-flight machinery
// (deferred reclaim, staging partitions, upload retirement) for the slot.
type Driver interface {
	BeginFrame(ctx context.Context, slot uint32) error
}

// Pipeline drives the ordered per-frame phases as one long-running task.
type Pipeline struct {
	fc      *FrameContext
	modules []Module
	input   InputProvider
	clock   *core.Clock
	driver  Driver
	slots   uint32

	// Indices captured at present time, exposed for the engine loop.
	lastPresented []int
}

func NewPipeline(fc *FrameContext, input InputProvider) *Pipeline {
	return &Pipeline{
		fc:    fc,
		input: input,
		clock: core.NewClock(),
	}
}

// UseDriver installs the per-frame backend hook. Slots is the number of
// frames in flight; the rotation slot is the frame index modulo slots.
func (p *Pipeline) UseDriver(d Driver, slots uint32) {
	if slots == 0 {
		slots = 1
	}
	p.driver = d
	p.slots = slots
}

// Attach registers a module; modules run in attachment order.
func (p *Pipeline) Attach(m Module) error {
	if err := m.OnAttached(p.fc); err != nil {
		return core.WrapError(core.KindInvalidRequest, err, "attaching module %s", m.Name())
	}
	p.modules = append(p.modules, m)
	core.LogDebug("attached pipeline module %s", m.Name())
	return nil
}

// Run executes frames until ctx is cancelled, then shuts the modules down.
func (p *Pipeline) Run(ctx context.Context) error {
	p.fc.epoch.Add(1)
	defer func() {
		for i := len(p.modules) - 1; i >= 0; i-- {
			p.modules[i].OnShutdown(p.fc)
		}
	}()
	for {
		if err := coop.Cancelled(ctx); err != nil {
			return nil
		}
		if err := p.RunFrame(ctx); err != nil {
			if coop.IsCancelled(err) {
				return nil
			}
			return err
		}
	}
}

// RunFrame advances the context through every phase exactly once.
func (p *Pipeline) RunFrame(ctx context.Context) error {
	fc := p.fc
	p.clock.Start()
	fc.frameStartTime = time.Now()
	fc.clearErrors()

	if p.driver != nil {
		slot := uint32(fc.FrameIndex() % uint64(p.slots))
		if err := p.driver.BeginFrame(ctx, slot); err != nil {
			return core.WrapError(core.KindNotReady, err, "backend frame start")
		}
	}

	// Input is captured by the coordinator alone.
	fc.setPhase(PhaseInput)
	if p.input != nil {
		fc.PublishInput(p.input.CaptureInput())
	}

	for _, phase := range []Phase{PhaseGameplayUpdate, PhaseSceneMutation} {
		fc.setPhase(phase)
		if err := p.dispatch(ctx, phase); err != nil {
			return err
		}
	}

	fc.setPhase(PhaseTransformPropagation)
	if s := fc.Scene(); s != nil {
		s.UpdateTransforms()
	}
	if err := p.dispatch(ctx, PhaseTransformPropagation); err != nil {
		return err
	}

	fc.setPhase(PhaseSnapshot)
	if err := p.dispatch(ctx, PhaseSnapshot); err != nil {
		return err
	}
	if _, err := fc.PublishSnapshots(); err != nil {
		return err
	}

	// Render fans out across modules; each reads only the snapshot.
	fc.setPhase(PhaseRender)
	nursery, _ := coop.OpenNursery(ctx)
	for _, m := range p.modules {
		m := m
		nursery.StartSoon(m.Name(), func(c context.Context) error {
			return m.OnPhase(c, fc, PhaseRender)
		})
	}
	if err := nursery.Wait(); err != nil {
		return err
	}

	// The flag set is latched and cleared before entering present.
	presented := fc.takePresentable()
	fc.setPhase(PhasePresent)
	if fc.CanPresent() {
		surfaces := fc.Surfaces()
		for _, i := range presented {
			if err := surfaces[i].Present(); err != nil {
				fc.ReportError(FrameError{
					Source:      "present",
					Key:         surfaces[i].Name(),
					Message:     err.Error(),
					Recoverable: true,
				})
			}
		}
		p.lastPresented = presented
	} else {
		core.LogWarn("skipping present for frame %d, unrecoverable errors reported", fc.FrameIndex())
		p.lastPresented = nil
	}
	if err := p.dispatch(ctx, PhasePresent); err != nil {
		return err
	}

	for _, m := range p.modules {
		if err := m.OnFrameEnd(ctx, fc); err != nil {
			return core.WrapError(core.KindInvalidRequest, err, "module %s frame end", m.Name())
		}
	}

	p.clock.Update()
	fc.metrics.Update(p.clock.Elapsed())
	fc.frameIndex.Add(1)
	fc.setPhase(PhaseInput)
	return nil
}

// LastPresented returns the surface indices presented by the previous
// frame.
func (p *Pipeline) LastPresented() []int { return p.lastPresented }

func (p *Pipeline) dispatch(ctx context.Context, phase Phase) error {
	fc := p.fc
	if phase == PhaseGameplayUpdate {
		for _, m := range p.modules {
			if err := m.OnFrameStart(ctx, fc); err != nil {
				return core.WrapError(core.KindInvalidRequest, err, "module %s frame start", m.Name())
			}
		}
	}
	for _, m := range p.modules {
		if err := m.OnPhase(ctx, fc, phase); err != nil {
			return core.WrapError(core.KindInvalidRequest, err, "module %s in phase %s", m.Name(), phase)
		}
	}
	return nil
}
