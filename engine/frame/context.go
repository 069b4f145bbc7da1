package frame

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer"
	"github.com/spaghettifunk/oxygen/engine/scene"
)

// Phase identifies one stage of the per-frame pipeline. Phases advance in
// strict declaration order within a frame.
type Phase uint8

const (
	PhaseInput Phase = iota
	PhaseGameplayUpdate
	PhaseSceneMutation
	PhaseTransformPropagation
	PhaseSnapshot
	PhaseRender
	PhasePresent
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseGameplayUpdate:
		return "gameplay-update"
	case PhaseSceneMutation:
		return "scene-mutation"
	case PhaseTransformPropagation:
		return "transform-propagation"
	case PhaseSnapshot:
		return "snapshot"
	case PhaseRender:
		return "render"
	case PhasePresent:
		return "present"
	}
	return "unknown"
}

// PhaseCanMutateGameState reports whether authoritative game state may be
// mutated in p. Everything from the snapshot phase onward reads only.
func PhaseCanMutateGameState(p Phase) bool {
	return p < PhaseSnapshot
}

// RenderView describes one view into the scene rendered this frame.
type RenderView struct {
	Name    string
	Camera  scene.NodeHandle
	Width   uint32
	Height  uint32
	Enabled bool
}

// InputSnapshot is an immutable capture of input device state. It is
// published once per frame and shared by reference afterwards.
type InputSnapshot struct {
	KeysDown     map[uint32]bool
	MouseX       float32
	MouseY       float32
	MouseButtons uint8
	WheelDelta   float32
}

// FrameBudget bounds how much wall time a frame may spend.
type FrameBudget struct {
	TargetFrameTime time.Duration
	RenderShare     float64
}

// FrameError is a per-frame diagnostic reported by a module or the render
// path. Recoverable errors do not prevent presenting the frame.
type FrameError struct {
	Source      string
	Key         string
	Message     string
	Recoverable bool
}

// FrameContext holds the authoritative mutable per-frame game state plus
// the double-buffered published snapshots. Mutation is gated by the current
// phase; render-time readers only ever see published snapshots.
type FrameContext struct {
	mu       sync.RWMutex
	scene    *scene.Scene
	views    []RenderView
	surfaces []renderer.Surface
	// Parallel to surfaces. Stored behind pointers so appends never move a
	// live atomic.
	presentable []*atomic.Bool

	gameDataMu sync.Mutex
	gameData   map[string]interface{}

	input atomic.Pointer[InputSnapshot]

	errMu  sync.RWMutex
	errors []FrameError

	metrics *core.FrameMetrics
	budget  FrameBudget

	epoch          atomic.Uint64
	currentPhase   atomic.Uint32
	frameIndex     atomic.Uint64
	frameStartTime time.Time

	snapshots    [2]UnifiedSnapshot
	visibleIndex atomic.Uint32
	version      atomic.Uint64
}

func NewFrameContext(budget FrameBudget) *FrameContext {
	fc := &FrameContext{
		gameData: map[string]interface{}{},
		metrics:  core.NewFrameMetrics(),
		budget:   budget,
	}
	return fc
}

// CurrentPhase returns the phase the pipeline is executing right now.
func (fc *FrameContext) CurrentPhase() Phase {
	return Phase(fc.currentPhase.Load())
}

func (fc *FrameContext) setPhase(p Phase) {
	fc.currentPhase.Store(uint32(p))
}

// FrameIndex returns the index of the frame currently being built.
func (fc *FrameContext) FrameIndex() uint64 { return fc.frameIndex.Load() }

// Epoch increments whenever the engine restarts its pipeline.
func (fc *FrameContext) Epoch() uint64 { return fc.epoch.Load() }

// Metrics exposes the rolling frame statistics.
func (fc *FrameContext) Metrics() *core.FrameMetrics { return fc.metrics }

// Budget returns the configured frame budget.
func (fc *FrameContext) Budget() FrameBudget { return fc.budget }

func (fc *FrameContext) guardMutable(what string) error {
	if p := fc.CurrentPhase(); !PhaseCanMutateGameState(p) {
		return core.NewError(core.KindInvalidRequest,
			"%s is not allowed in phase %s", what, p)
	}
	return nil
}

// SetScene replaces the authoritative scene pointer.
func (fc *FrameContext) SetScene(s *scene.Scene) error {
	if err := fc.guardMutable("replacing the scene"); err != nil {
		return err
	}
	fc.mu.Lock()
	fc.scene = s
	fc.mu.Unlock()
	return nil
}

// Scene returns the authoritative scene.
func (fc *FrameContext) Scene() *scene.Scene {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.scene
}

// AddView appends a render view and returns its index.
func (fc *FrameContext) AddView(v RenderView) (int, error) {
	if err := fc.guardMutable("adding a view"); err != nil {
		return -1, err
	}
	fc.mu.Lock()
	fc.views = append(fc.views, v)
	idx := len(fc.views) - 1
	fc.mu.Unlock()
	return idx, nil
}

// RemoveView removes the view at index i, preserving order.
func (fc *FrameContext) RemoveView(i int) error {
	if err := fc.guardMutable("removing a view"); err != nil {
		return err
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if i < 0 || i >= len(fc.views) {
		return core.NewError(core.KindInvalidRequest, "view index %d out of range", i)
	}
	fc.views = append(fc.views[:i], fc.views[i+1:]...)
	return nil
}

// Views returns a copy of the ordered view list.
func (fc *FrameContext) Views() []RenderView {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	out := make([]RenderView, len(fc.views))
	copy(out, fc.views)
	return out
}

// AddSurface appends a presentable surface and returns its index.
func (fc *FrameContext) AddSurface(s renderer.Surface) (int, error) {
	if err := fc.guardMutable("adding a surface"); err != nil {
		return -1, err
	}
	fc.mu.Lock()
	fc.surfaces = append(fc.surfaces, s)
	fc.presentable = append(fc.presentable, &atomic.Bool{})
	idx := len(fc.surfaces) - 1
	fc.mu.Unlock()
	return idx, nil
}

// Surfaces returns a copy of the ordered surface list.
func (fc *FrameContext) Surfaces() []renderer.Surface {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	out := make([]renderer.Surface, len(fc.surfaces))
	copy(out, fc.surfaces)
	return out
}

// SetSurfacePresentable marks surface i as holding valid rendered content
// for this frame. Legal from any thread up until the present phase.
func (fc *FrameContext) SetSurfacePresentable(i int) error {
	if p := fc.CurrentPhase(); p >= PhasePresent {
		return core.NewError(core.KindInvalidRequest,
			"marking a surface presentable is not allowed in phase %s", p)
	}
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	if i < 0 || i >= len(fc.presentable) {
		return core.NewError(core.KindInvalidRequest, "surface index %d out of range", i)
	}
	fc.presentable[i].Store(true)
	return nil
}

// IsSurfacePresentable reports the presentable flag for surface i.
func (fc *FrameContext) IsSurfacePresentable(i int) bool {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	if i < 0 || i >= len(fc.presentable) {
		return false
	}
	return fc.presentable[i].Load()
}

// takePresentable captures and clears all presentable flags, returning the
// indices that were set. Called once per frame before present.
func (fc *FrameContext) takePresentable() []int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	var out []int
	for i, f := range fc.presentable {
		if f.Swap(false) {
			out = append(out, i)
		}
	}
	return out
}

// StageGameData stores a module contribution destined for the next
// snapshot. Writes are allowed in any mutation phase and in the snapshot
// phase itself, which is the intended write path for snapshot-time modules.
func (fc *FrameContext) StageGameData(key string, value interface{}) error {
	if p := fc.CurrentPhase(); !PhaseCanMutateGameState(p) && p != PhaseSnapshot {
		return core.NewError(core.KindInvalidRequest,
			"staging game data is not allowed in phase %s", p)
	}
	fc.gameDataMu.Lock()
	fc.gameData[key] = value
	fc.gameDataMu.Unlock()
	return nil
}

// PublishInput atomically publishes the input capture for this frame.
func (fc *FrameContext) PublishInput(in *InputSnapshot) {
	fc.input.Store(in)
}

// Input returns the most recently published input capture.
func (fc *FrameContext) Input() *InputSnapshot {
	return fc.input.Load()
}

// ReportError records a per-frame diagnostic. Safe from any thread in any
// phase.
func (fc *FrameContext) ReportError(e FrameError) {
	fc.errMu.Lock()
	fc.errors = append(fc.errors, e)
	fc.errMu.Unlock()
	if e.Recoverable {
		core.LogWarn("frame error from %s: %s", e.Source, e.Message)
	} else {
		core.LogError("frame error from %s: %s", e.Source, e.Message)
	}
}

// Errors returns a copy of the collected frame errors.
func (fc *FrameContext) Errors() []FrameError {
	fc.errMu.RLock()
	defer fc.errMu.RUnlock()
	out := make([]FrameError, len(fc.errors))
	copy(out, fc.errors)
	return out
}

// RemoveErrorsFromSource drops every error reported by source, optionally
// narrowed to a key. Used by retry orchestration between frames.
func (fc *FrameContext) RemoveErrorsFromSource(source, key string) int {
	fc.errMu.Lock()
	defer fc.errMu.Unlock()
	kept := fc.errors[:0]
	removed := 0
	for _, e := range fc.errors {
		if e.Source == source && (key == "" || e.Key == key) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	fc.errors = kept
	return removed
}

// CanPresent reports whether only recoverable errors are present.
func (fc *FrameContext) CanPresent() bool {
	fc.errMu.RLock()
	defer fc.errMu.RUnlock()
	for _, e := range fc.errors {
		if !e.Recoverable {
			return false
		}
	}
	return true
}

func (fc *FrameContext) clearErrors() {
	fc.errMu.Lock()
	fc.errors = fc.errors[:0]
	fc.errMu.Unlock()
}
