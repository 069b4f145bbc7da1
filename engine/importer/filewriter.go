package importer

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/oxygen/engine/core"
)

// WriteOptions control how the file writer opens its targets.
type WriteOptions struct {
	CreateDirectories bool
	Overwrite         bool
	// ShareWrite permits concurrent writers on platforms with mandatory
	// share modes. Advisory elsewhere.
	ShareWrite bool
}

type writeRequest struct {
	path     string
	offset   int64 // -1 writes the whole file
	data     []byte
	opts     WriteOptions
	callback func(error)
}

// FileWriter serializes file output for the import pipelines on a single
// goroutine. Positional writes at disjoint offsets may be enqueued in any
// order; the queue preserves submission order per writer.
type FileWriter struct {
	queue chan writeRequest
	done  chan struct{}

	mu    sync.Mutex
	files map[string]*os.File

	writesIssued    atomic.Uint64
	writesCompleted atomic.Uint64
	bytesWritten    atomic.Uint64
}

func NewFileWriter(queueSize int) *FileWriter {
	w := &FileWriter{
		queue: make(chan writeRequest, queueSize),
		done:  make(chan struct{}),
		files: map[string]*os.File{},
	}
	go w.run()
	return w
}

func (w *FileWriter) run() {
	defer close(w.done)
	for req := range w.queue {
		err := w.perform(req)
		w.writesCompleted.Add(1)
		if req.callback != nil {
			req.callback(err)
		} else if err != nil {
			core.LogError("async write to %s failed: %v", req.path, err)
		}
	}
	w.closeAll()
}

// WriteAtAsync enqueues a positional write. The callback runs on the writer
// goroutine once the write completes.
func (w *FileWriter) WriteAtAsync(path string, offset uint64, data []byte, opts WriteOptions, callback func(error)) error {
	return w.enqueue(writeRequest{
		path:     path,
		offset:   int64(offset),
		data:     data,
		opts:     opts,
		callback: callback,
	})
}

// Write replaces the whole file synchronously.
func (w *FileWriter) Write(path string, data []byte, opts WriteOptions) error {
	errc := make(chan error, 1)
	err := w.enqueue(writeRequest{
		path:     path,
		offset:   -1,
		data:     data,
		opts:     opts,
		callback: func(err error) { errc <- err },
	})
	if err != nil {
		return err
	}
	return <-errc
}

func (w *FileWriter) enqueue(req writeRequest) error {
	select {
	case <-w.done:
		return core.NewError(core.KindNotReady, "file writer is closed")
	default:
	}
	w.writesIssued.Add(1)
	w.queue <- req
	return nil
}

// Close drains pending writes and closes all open files.
func (w *FileWriter) Close() {
	close(w.queue)
	<-w.done
}

// Stats returns issued writes, completed writes, and total bytes written.
func (w *FileWriter) Stats() (issued, completed, bytes uint64) {
	return w.writesIssued.Load(), w.writesCompleted.Load(), w.bytesWritten.Load()
}

func (w *FileWriter) perform(req writeRequest) error {
	if req.opts.CreateDirectories {
		if err := os.MkdirAll(filepath.Dir(req.path), 0o755); err != nil {
			return core.WrapError(core.KindIOError, err, "creating directories for %q", req.path)
		}
	}

	if req.offset < 0 {
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if !req.opts.Overwrite {
			flags |= os.O_EXCL
		}
		f, err := os.OpenFile(req.path, flags, 0o644)
		if err != nil {
			return core.WrapError(core.KindIOError, err, "opening %q", req.path)
		}
		defer f.Close()
		n, err := f.Write(req.data)
		w.bytesWritten.Add(uint64(n))
		if err != nil {
			return core.WrapError(core.KindIOError, err, "writing %q", req.path)
		}
		return nil
	}

	f, err := w.open(req.path)
	if err != nil {
		return err
	}
	n, err := f.WriteAt(req.data, req.offset)
	w.bytesWritten.Add(uint64(n))
	if err != nil {
		return core.WrapError(core.KindIOError, err, "writing %q at %d", req.path, req.offset)
	}
	return nil
}

// open returns a cached handle usable for positional writes.
func (w *FileWriter) open(path string) (*os.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if f, ok := w.files[path]; ok {
		return f, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, core.WrapError(core.KindIOError, err, "opening %q", path)
	}
	w.files[path] = f
	return f, nil
}

func (w *FileWriter) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, f := range w.files {
		if err := f.Close(); err != nil {
			core.LogWarn("closing %s: %v", path, err)
		}
	}
	w.files = map[string]*os.File{}
}
