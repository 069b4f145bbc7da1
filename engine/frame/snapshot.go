package frame

import (
	"time"

	"github.com/jinzhu/copier"

	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer"
)

// GameStateSnapshot is an immutable copy of the authoritative game state
// taken at snapshot time. Render-side readers only ever touch snapshots.
type GameStateSnapshot struct {
	Views       []RenderView
	Surfaces    []renderer.Surface
	Presentable []bool
	GameData    map[string]interface{}
	Input       *InputSnapshot
	Version     uint64
}

// FrameSnapshot carries the timing and validation context derived for the
// same frame.
type FrameSnapshot struct {
	FrameIndex     uint64
	Epoch          uint64
	FrameStartTime time.Time
	DeltaTime      float64
	Budget         FrameBudget
}

// UnifiedSnapshot bundles the game state capture with its frame context.
type UnifiedSnapshot struct {
	Game  GameStateSnapshot
	Frame FrameSnapshot
}

// SnapshotVersion returns the version of the currently visible snapshot.
func (fc *FrameContext) SnapshotVersion() uint64 {
	return fc.version.Load()
}

// VisibleSnapshotIndex returns which of the two snapshot slots readers see.
func (fc *FrameContext) VisibleSnapshotIndex() int {
	return int(fc.visibleIndex.Load())
}

// VisibleSnapshot returns the currently published snapshot. The returned
// pointer stays valid and unchanged until the slot is republished two
// frames later.
func (fc *FrameContext) VisibleSnapshot() *UnifiedSnapshot {
	return &fc.snapshots[fc.visibleIndex.Load()]
}

// PublishSnapshots builds the next UnifiedSnapshot from the current views,
// surfaces, game data and input, then flips the visible index and bumps the
// version. Only the pipeline coordinator calls this, in the snapshot phase.
func (fc *FrameContext) PublishSnapshots() (*UnifiedSnapshot, error) {
	if p := fc.CurrentPhase(); p != PhaseSnapshot {
		return nil, core.NewError(core.KindInvalidRequest,
			"snapshots can only be published in the snapshot phase, not %s", p)
	}

	next := 1 - fc.visibleIndex.Load()
	slot := &fc.snapshots[next]
	version := fc.version.Load() + 1

	fc.mu.RLock()
	views := make([]RenderView, len(fc.views))
	copy(views, fc.views)
	surfaces := make([]renderer.Surface, len(fc.surfaces))
	copy(surfaces, fc.surfaces)
	presentable := make([]bool, len(fc.presentable))
	for i, f := range fc.presentable {
		presentable[i] = f.Load()
	}
	fc.mu.RUnlock()

	// Deep-copy the staged module data so later staging writes cannot leak
	// into an already published snapshot.
	gameData := map[string]interface{}{}
	fc.gameDataMu.Lock()
	err := copier.CopyWithOption(&gameData, fc.gameData, copier.Option{DeepCopy: true})
	fc.gameDataMu.Unlock()
	if err != nil {
		return nil, core.WrapError(core.KindIntegrityError, err, "copying staged game data")
	}

	*slot = UnifiedSnapshot{
		Game: GameStateSnapshot{
			Views:       views,
			Surfaces:    surfaces,
			Presentable: presentable,
			GameData:    gameData,
			Input:       fc.input.Load(),
			Version:     version,
		},
		Frame: FrameSnapshot{
			FrameIndex:     fc.frameIndex.Load(),
			Epoch:          fc.epoch.Load(),
			FrameStartTime: fc.frameStartTime,
			DeltaTime:      fc.metrics.FrameTime(),
			Budget:         fc.budget,
		},
	}

	fc.version.Store(version)
	fc.visibleIndex.Store(next)
	return slot, nil
}
