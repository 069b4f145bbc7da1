// Package registry caches backend resource views keyed by (resource, view
// description), deduplicating descriptor allocations across identical view
// requests.
package registry

import (
	"sync"

	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer"
	"github.com/spaghettifunk/oxygen/engine/renderer/metadata"
)

// Resource is the minimal surface the registry needs from a backend
// resource.
type Resource interface {
	ID() uint64
}

// ViewFactory instantiates a backend view; normally Graphics.CreateView.
type ViewFactory func(resourceID uint64, desc metadata.ViewDescription) (uint64, error)

type entry struct {
	resource Resource
	views    map[metadata.ViewDescription]renderer.NativeView
}

// Registry tracks registered resources and their cached views. Safe for
// concurrent use from render tasks.
type Registry struct {
	mu          sync.Mutex
	allocator   renderer.DescriptorAllocator
	createView  ViewFactory
	entries     map[uint64]*entry
	generations map[metadata.ShaderVisibleIndex]metadata.Generation
}

func NewRegistry(allocator renderer.DescriptorAllocator, createView ViewFactory) *Registry {
	return &Registry{
		allocator:   allocator,
		createView:  createView,
		entries:     make(map[uint64]*entry),
		generations: make(map[metadata.ShaderVisibleIndex]metadata.Generation),
	}
}

// Register starts tracking a resource. Registering twice is an error.
func (r *Registry) Register(res Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[res.ID()]; ok {
		return core.NewError(core.KindInvalidRequest, "resource %d already registered", res.ID())
	}
	r.entries[res.ID()] = &entry{
		resource: res,
		views:    make(map[metadata.ViewDescription]renderer.NativeView),
	}
	return nil
}

// UnRegister stops tracking a resource and evicts all of its views.
func (r *Registry) UnRegister(res Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(res.ID())
}

// UnRegisterViews evicts every view of the identified resource.
func (r *Registry) UnRegisterViews(nativeResourceID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(nativeResourceID)
}

func (r *Registry) unregisterLocked(id uint64) error {
	e, ok := r.entries[id]
	if !ok {
		return core.NewError(core.KindInvalidRequest, "resource %d is not registered", id)
	}
	for desc, view := range e.views {
		r.releaseViewLocked(desc, view)
	}
	delete(r.entries, id)
	return nil
}

func (r *Registry) releaseViewLocked(desc metadata.ViewDescription, view renderer.NativeView) {
	if err := r.allocator.Release(desc.ViewType, desc.Visibility, view.Heap); err != nil {
		core.LogError("releasing descriptor for view %d: %v", view.ViewID, err)
	}
	if view.Shader.IsValid() {
		// A future reuse of this shader slot must not validate stale handles.
		r.generations[view.Shader]++
	}
}

// Contains reports whether the resource is registered; with a description,
// whether that exact view is cached.
func (r *Registry) Contains(res Resource, desc ...metadata.ViewDescription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[res.ID()]
	if !ok {
		return false
	}
	if len(desc) == 0 {
		return true
	}
	_, ok = e.views[desc[0]]
	return ok
}

// Find returns the cached view for (resource, desc), if any.
func (r *Registry) Find(res Resource, desc metadata.ViewDescription) (renderer.NativeView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[res.ID()]
	if !ok {
		return renderer.NativeView{}, false
	}
	v, ok := e.views[desc]
	return v, ok
}

// RegisterView returns the cached view for an identical (resource, desc)
// pair, otherwise allocates a descriptor, creates the backend view and
// caches it.
func (r *Registry) RegisterView(res Resource, desc metadata.ViewDescription) (renderer.NativeView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[res.ID()]
	if !ok {
		return renderer.NativeView{}, core.NewError(core.KindNotReady, "resource %d is not registered", res.ID())
	}
	if v, ok := e.views[desc]; ok {
		return v, nil
	}

	heapIdx, err := r.allocator.Allocate(desc.ViewType, desc.Visibility)
	if err != nil {
		return renderer.NativeView{}, err
	}
	viewID, err := r.createView(res.ID(), desc)
	if err != nil {
		if relErr := r.allocator.Release(desc.ViewType, desc.Visibility, heapIdx); relErr != nil {
			core.LogError("rolling back descriptor %d: %v", heapIdx, relErr)
		}
		return renderer.NativeView{}, err
	}

	view := renderer.NativeView{
		ViewID: viewID,
		Heap:   heapIdx,
		Shader: metadata.InvalidShaderVisibleIndex,
	}
	if desc.Visibility == metadata.VisibilityShaderVisible {
		// The shader-visible mapping is allocator-defined; this allocator
		// exposes the heap index directly.
		view.Shader = metadata.ShaderVisibleIndex(heapIdx)
	}
	e.views[desc] = view
	return view, nil
}

// VersionedHandle returns the current versioned bindless handle for a
// shader-visible view.
func (r *Registry) VersionedHandle(view renderer.NativeView) metadata.VersionedBindlessHandle {
	if !view.Shader.IsValid() {
		return metadata.InvalidVersionedBindlessHandle
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return metadata.VersionedBindlessHandle{
		Index:      view.Shader,
		Generation: r.generations[view.Shader],
	}
}

// IsHandleCurrent reports whether a handle still refers to the live
// occupant of its shader slot.
func (r *Registry) IsHandleCurrent(h metadata.VersionedBindlessHandle) bool {
	if !h.IsValid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[h.Index] == h.Generation
}

// Purge evicts entries whose resources report dead via the predicate. Used
// to drop views of resources the backend has already destroyed.
func (r *Registry) Purge(alive func(resourceID uint64) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	purged := 0
	for id := range r.entries {
		if !alive(id) {
			if err := r.unregisterLocked(id); err == nil {
				purged++
			}
		}
	}
	return purged
}
