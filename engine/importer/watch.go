package importer

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/oxygen/engine/core"
)

const watchDebounce = 200 * time.Millisecond

// Watcher resubmits source files to the import service when they change on
// disk. Events for unrecognized extensions are ignored.
type Watcher struct {
	svc    *Service
	fs     *fsnotify.Watcher
	params CookParams

	mu   sync.Mutex
	last map[string]time.Time

	done chan struct{}
}

// NewWatcher starts watching the given directories. Watches are not
// recursive, so roots must list every directory to observe.
func NewWatcher(svc *Service, roots []string, params CookParams) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, core.WrapError(core.KindIOError, err, "creating filesystem watcher")
	}
	w := &Watcher{
		svc:    svc,
		fs:     fs,
		params: params,
		last:   map[string]time.Time{},
		done:   make(chan struct{}),
	}
	for _, root := range roots {
		if err := fs.Add(root); err != nil {
			fs.Close()
			return nil, core.WrapError(core.KindIOError, err, "watching %q", root)
		}
		core.LogInfo("watching %s for asset changes", root)
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.handle(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %v", err)
		}
	}
}

func (w *Watcher) handle(path string) {
	if GuessAssetType(path) == AssetAuto {
		return
	}
	// Editors fire several events per save; collapse them.
	now := time.Now()
	w.mu.Lock()
	if last, ok := w.last[path]; ok && now.Sub(last) < watchDebounce {
		w.mu.Unlock()
		return
	}
	w.last[path] = now
	w.mu.Unlock()

	core.LogDebug("source changed, reimporting %s", filepath.Base(path))
	_, err := w.svc.SubmitImport(ImportRequest{SourcePath: path, Params: w.params}, func(res JobResult) {
		if res.Success {
			core.LogInfo("reimported %s", res.Source)
		} else {
			core.LogWarn("reimport of %s failed", res.Source)
		}
	}, nil)
	if err != nil {
		core.LogWarn("reimport submission for %s rejected: %v", path, err)
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() {
	w.fs.Close()
	<-w.done
}
