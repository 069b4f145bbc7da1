package importer

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/oxygen/engine/config"
	"github.com/spaghettifunk/oxygen/engine/coop"
	"github.com/spaghettifunk/oxygen/engine/core"
)

// AssetType selects the pipeline an import request runs through.
type AssetType uint8

const (
	AssetAuto AssetType = iota
	AssetTexture
	AssetBuffer
	AssetMaterial
	AssetGeometry
	AssetScene
)

// ImportRequest describes one source asset to cook.
type ImportRequest struct {
	SourcePath string
	Type       AssetType
	Params     CookParams
}

// JobResult is delivered to the completion callback on the service
// goroutine.
type JobResult struct {
	JobID       uuid.UUID
	Source      string
	Success     bool
	Diagnostics []Diagnostic
	Items       []WorkResult
	StartedAt   time.Time
	FinishedAt  time.Time
}

// CompleteFunc receives the final job outcome on the service goroutine.
type CompleteFunc func(JobResult)

type job struct {
	id       uuid.UUID
	request  ImportRequest
	stop     *StopToken
	complete CompleteFunc
	progress ProgressFunc
}

// Service owns the import pipelines, their worker pools and the cooked
// output files. It runs a dedicated event loop; all callbacks fire there.
type Service struct {
	cfg      config.ImporterConfig
	loop     *coop.Loop
	loopDone chan struct{}
	writer   *FileWriter

	Textures *TableAggregator[TextureTableEntry]
	Buffers  *TableAggregator[BufferTableEntry]
	Assets   *TableAggregator[AssetTableEntry]

	texPipe   *Pipeline[TextureTableEntry]
	bufPipe   *Pipeline[BufferTableEntry]
	assetPipe *Pipeline[AssetTableEntry]

	mu       sync.Mutex
	jobs     map[uuid.UUID]*job
	draining bool
	jobWG    sync.WaitGroup

	stopOnce sync.Once
}

func NewService(cfg config.ImporterConfig) *Service {
	writer := NewFileWriter(cfg.QueueSize)
	root := cfg.CookedRoot
	s := &Service{
		cfg:      cfg,
		loop:     coop.NewLoop(),
		loopDone: make(chan struct{}),
		writer:   writer,
		jobs:     map[uuid.UUID]*job{},
	}
	s.Textures = NewTableAggregator[TextureTableEntry]("textures", filepath.Join(root, "textures.table"), writer)
	s.Buffers = NewTableAggregator[BufferTableEntry]("buffers", filepath.Join(root, "buffers.table"), writer)
	s.Assets = NewTableAggregator[AssetTableEntry]("assets", filepath.Join(root, "assets.table"), writer)

	s.texPipe = NewPipeline[TextureTableEntry](TextureCooker{}, s.Textures, writer,
		filepath.Join(root, "textures.data"), cfg.Workers, cfg.QueueSize)
	s.bufPipe = NewPipeline[BufferTableEntry](BufferCooker{}, s.Buffers, writer,
		filepath.Join(root, "buffers.data"), cfg.Workers, cfg.QueueSize)
	s.assetPipe = NewPipeline[AssetTableEntry](AssetCooker{}, s.Assets, writer,
		filepath.Join(root, "assets.data"), cfg.Workers, cfg.QueueSize)

	go func() {
		s.loop.Run()
		close(s.loopDone)
	}()
	core.LogInfo("import service started, %d workers, cooked root %s", cfg.Workers, root)
	return s
}

// SubmitImport queues a job and returns its id. Fails once shutdown has
// been requested.
func (s *Service) SubmitImport(req ImportRequest, onComplete CompleteFunc, onProgress ProgressFunc) (uuid.UUID, error) {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return uuid.Nil, core.NewError(core.KindNotReady, "import service is shutting down")
	}
	j := &job{
		id:       uuid.New(),
		request:  req,
		stop:     NewStopToken(),
		complete: onComplete,
		progress: onProgress,
	}
	s.jobs[j.id] = j
	s.jobWG.Add(1)
	s.mu.Unlock()

	go s.runJob(j)
	return j.id, nil
}

// CancelJob flags the job's stop token. Safe from any goroutine.
func (s *Service) CancelJob(id uuid.UUID) {
	s.loop.Post(func() {
		s.mu.Lock()
		j, ok := s.jobs[id]
		s.mu.Unlock()
		if ok {
			j.stop.Stop()
		}
	})
}

// CancelAll cancels every in-flight job.
func (s *Service) CancelAll() {
	s.loop.Post(func() {
		s.mu.Lock()
		for _, j := range s.jobs {
			j.stop.Stop()
		}
		s.mu.Unlock()
	})
}

// RequestShutdown refuses new submissions and cancels in-flight jobs.
func (s *Service) RequestShutdown() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.CancelAll()
}

// Drain waits for in-flight jobs without cancelling them, then finalizes
// tables. Used by the CLI where jobs must run to completion.
func (s *Service) Drain() error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.jobWG.Wait()
	return s.finalize()
}

// Stop shuts the service down: cancels jobs, waits for them, finalizes the
// tables and releases the loop and writer. Pending completion and progress
// callbacks have all run once Stop returns.
func (s *Service) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.RequestShutdown()
		s.jobWG.Wait()
		err = s.finalize()
		s.texPipe.Close()
		s.bufPipe.Close()
		s.assetPipe.Close()
		s.writer.Close()
		s.loop.Stop()
		// Join the pump so posted callbacks are ordered before return.
		<-s.loopDone
	})
	return err
}

func (s *Service) finalize() error {
	for _, fin := range []func() error{s.Textures.Finalize, s.Buffers.Finalize, s.Assets.Finalize} {
		if err := fin(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) runJob(j *job) {
	defer s.jobWG.Done()
	started := time.Now()
	s.emitProgress(j, ProgressEvent{Kind: ProgressJobStarted, Overall: 0, At: started})

	result := JobResult{
		JobID:     j.id,
		Source:    j.request.SourcePath,
		StartedAt: started,
	}
	result.Items, result.Diagnostics = s.execute(j)
	result.Success = len(result.Items) > 0 && !hasErrors(result.Diagnostics)
	for _, item := range result.Items {
		if !item.Success {
			result.Success = false
		}
	}
	result.FinishedAt = time.Now()

	s.emitProgress(j, ProgressEvent{Kind: ProgressJobFinished, Overall: 1, At: result.FinishedAt})

	s.mu.Lock()
	delete(s.jobs, j.id)
	s.mu.Unlock()

	if j.complete != nil {
		s.loop.Post(func() { j.complete(result) })
	}
}

func (s *Service) execute(j *job) ([]WorkResult, []Diagnostic) {
	req := j.request
	if j.stop.Stopped() {
		return nil, []Diagnostic{{
			Code:       CodeCanceled,
			Message:    "job canceled before it started",
			Severity:   SeverityWarning,
			SourcePath: req.SourcePath,
		}}
	}

	readStart := time.Now()
	payload, err := os.ReadFile(req.SourcePath)
	if err != nil {
		return nil, []Diagnostic{errorDiag(CodeReadFailed, req.SourcePath, "reading source: %v", err)}
	}
	readMs := float64(time.Since(readStart).Microseconds()) / 1000

	assetType := req.Type
	if assetType == AssetAuto {
		assetType = GuessAssetType(req.SourcePath)
	}

	item := &WorkItem{
		SourceID:   s.sourceID(j, req.SourcePath),
		SourcePath: req.SourcePath,
		Payload:    payload,
		Params:     req.Params,
		Stop:       j.stop,
		Reply:      make(chan WorkResult, 1),
	}
	if s.cfg.Hashing {
		item.Params.Hashing = true
	}

	s.emitProgress(j, ProgressEvent{
		Kind: ProgressItemStarted, Phase: PhaseValidation, Overall: 0.1,
		ItemKind: assetTypeName(assetType), ItemName: item.SourceID, At: time.Now(),
	})

	switch assetType {
	case AssetTexture:
		s.texPipe.Submit(item)
	case AssetBuffer:
		s.bufPipe.Submit(item)
	case AssetMaterial, AssetGeometry, AssetScene:
		item.Params.Kind = assetKindOf(assetType)
		s.assetPipe.Submit(item)
	default:
		return nil, []Diagnostic{errorDiag(CodeUnsupportedFormat, req.SourcePath,
			"cannot determine asset type for %q", req.SourcePath)}
	}
	s.emitProgress(j, ProgressEvent{Kind: ProgressPhaseUpdate, Phase: PhaseCooking, Overall: 0.5, At: time.Now()})
	res := <-item.Reply
	res.Telemetry.IOMs = readMs

	s.emitProgress(j, ProgressEvent{
		Kind: ProgressItemCollected, Phase: PhaseEmit, Overall: 0.9,
		ItemKind: assetTypeName(assetType), ItemName: item.SourceID, At: time.Now(),
	})

	s.emitProgress(j, ProgressEvent{
		Kind: ProgressItemFinished, Phase: PhaseEmit, Overall: 0.95,
		ItemKind: assetTypeName(assetType), ItemName: item.SourceID, At: time.Now(),
	})

	var diags []Diagnostic
	if j.stop.Stopped() && !res.Success {
		diags = append(diags, Diagnostic{
			Code:       CodeCanceled,
			Message:    "job canceled",
			Severity:   SeverityWarning,
			SourcePath: req.SourcePath,
		})
	}
	return []WorkResult{res}, diags
}

func (s *Service) sourceID(j *job, path string) string {
	if s.cfg.NamingStrategy == "uuid" {
		return j.id.String()
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *Service) emitProgress(j *job, ev ProgressEvent) {
	if j.progress == nil {
		return
	}
	s.loop.Post(func() { j.progress(ev) })
}

func hasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// GuessAssetType maps a source file extension to its pipeline.
func GuessAssetType(path string) AssetType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return AssetTexture
	case ".bin", ".buf":
		return AssetBuffer
	case ".material", ".mat":
		return AssetMaterial
	case ".geo", ".mesh":
		return AssetGeometry
	case ".scene":
		return AssetScene
	}
	return AssetAuto
}

func assetTypeName(t AssetType) string {
	switch t {
	case AssetTexture:
		return "texture"
	case AssetBuffer:
		return "buffer"
	case AssetMaterial:
		return "material"
	case AssetGeometry:
		return "geometry"
	case AssetScene:
		return "scene"
	}
	return "auto"
}

func assetKindOf(t AssetType) AssetKind {
	switch t {
	case AssetGeometry:
		return AssetKindGeometry
	case AssetScene:
		return AssetKindScene
	default:
		return AssetKindMaterial
	}
}
