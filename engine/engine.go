package engine

import (
	"context"
	"time"

	"github.com/spaghettifunk/oxygen/engine/config"
	"github.com/spaghettifunk/oxygen/engine/coop"
	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/frame"
	"github.com/spaghettifunk/oxygen/engine/importer"
	"github.com/spaghettifunk/oxygen/engine/renderer"
	"github.com/spaghettifunk/oxygen/engine/renderer/upload"
	"github.com/spaghettifunk/oxygen/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Engine wires the frame pipeline, the scene, the upload machinery and the
// import service together on top of an injected graphics backend.
type Engine struct {
	currentStage Stage
	cfg          *config.Config
	loop         *coop.Loop
	graphics     renderer.Graphics

	frameContext *frame.FrameContext
	pipeline     *frame.Pipeline
	scene        *scene.Scene
	imports      *importer.Service
	staging      *upload.RingBufferStaging
	uploads      *upload.Coordinator

	cancel context.CancelFunc
}

// backendDriver rotates the frame-in-flight machinery at the top of every
// frame: it waits for the backend, retires deferred releases for the slot
// and advances the upload coordinator.
type backendDriver struct {
	gfx       renderer.Graphics
	reclaimer renderer.DeferredReclaimer
	uploads   *upload.Coordinator
}

func (d *backendDriver) BeginFrame(ctx context.Context, slot uint32) error {
	if err := d.gfx.OnRenderStart(ctx); err != nil {
		return err
	}
	d.reclaimer.OnFrameStart(slot)
	_, err := d.uploads.OnFrameStart(slot)
	return err
}

func New(cfg *config.Config, graphics renderer.Graphics, input frame.InputProvider) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if graphics == nil {
		return nil, core.NewError(core.KindInvalidRequest, "a graphics backend is required")
	}

	fc := frame.NewFrameContext(frame.FrameBudget{
		TargetFrameTime: frameDuration(cfg.Engine.TargetFPS),
	})
	e := &Engine{
		currentStage: EngineStageUninitialized,
		cfg:          cfg,
		loop:         coop.NewLoop(),
		graphics:     graphics,
		frameContext: fc,
		pipeline:     frame.NewPipeline(fc, input),
	}
	e.currentStage = EngineStageBootComplete
	return e, nil
}

// Initialize creates the default scene and starts the import service.
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return core.NewError(core.KindNotReady, "engine must finish booting before initialization")
	}
	e.currentStage = EngineStageInitializing

	e.scene = scene.NewScene(e.cfg.Engine.Name)
	if err := e.frameContext.SetScene(e.scene); err != nil {
		return err
	}

	reclaimer := e.graphics.GetDeferredReclaimer()
	staging, err := upload.NewRingBufferStaging(e.graphics, reclaimer, upload.RingBufferStagingConfig{
		PartitionsCount: e.cfg.Engine.FramesInFlight,
		BaselineBytes:   e.cfg.Staging.BaselineBytes,
		GrowthSlack:     e.cfg.Staging.GrowthSlack,
		TrimIdleFrames:  e.cfg.Staging.TrimIdleFrames,
		Alignment:       e.cfg.Staging.Alignment,
	})
	if err != nil {
		return err
	}
	e.staging = staging
	e.uploads = upload.NewCoordinator(e.graphics, staging, e.graphics.GetCommandQueue(renderer.QueueRoleTransfer))
	e.pipeline.UseDriver(&backendDriver{
		gfx:       e.graphics,
		reclaimer: reclaimer,
		uploads:   e.uploads,
	}, e.cfg.Engine.FramesInFlight)

	e.imports = importer.NewService(e.cfg.Importer)

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine %s initialized", e.cfg.Engine.Name)
	return nil
}

// AttachModule registers a pipeline module. Must happen before Run.
func (e *Engine) AttachModule(m frame.Module) error {
	if e.currentStage != EngineStageInitialized {
		return core.NewError(core.KindNotReady, "modules attach after initialization, before run")
	}
	return e.pipeline.Attach(m)
}

// FrameContext exposes the authoritative per-frame state.
func (e *Engine) FrameContext() *frame.FrameContext { return e.frameContext }

// Scene returns the engine's scene graph.
func (e *Engine) Scene() *scene.Scene { return e.scene }

// Imports returns the asset import service.
func (e *Engine) Imports() *importer.Service { return e.imports }

// Uploads returns the GPU upload coordinator.
func (e *Engine) Uploads() *upload.Coordinator { return e.uploads }

// Graphics returns the injected backend.
func (e *Engine) Graphics() renderer.Graphics { return e.graphics }

// Run drives the frame pipeline on the engine's event loop until Shutdown
// is requested. Blocks the calling goroutine.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return core.NewError(core.KindNotReady, "engine is not initialized")
	}
	e.currentStage = EngineStageRunning

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	err := e.loop.RunTask(ctx, func(ctx context.Context) error {
		return e.pipeline.Run(ctx)
	})

	e.currentStage = EngineStageShuttingDown
	if e.imports != nil {
		if serr := e.imports.Stop(); serr != nil && err == nil {
			err = serr
		}
	}
	core.LogInfo("engine %s stopped", e.cfg.Engine.Name)
	return err
}

// Shutdown requests a cooperative stop of the running engine. Safe from
// any goroutine.
func (e *Engine) Shutdown() {
	if e.cancel != nil {
		e.cancel()
	}
}

func frameDuration(fps uint32) time.Duration {
	if fps == 0 {
		fps = 60
	}
	return time.Second / time.Duration(fps)
}
