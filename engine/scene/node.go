// Package scene implements the engine's scene graph: a flat arena of nodes
// addressed by generational handles, with intrusive sibling links, cached
// world transforms and hierarchical flags.
package scene

import (
	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/math"
)

// NodeHandle is a stable reference to a scene node. Handles survive arena
// reallocation; a reused slot bumps its generation so stale handles are
// recognized.
type NodeHandle struct {
	index      uint32
	generation uint32
}

// InvalidNodeHandle refers to no node.
var InvalidNodeHandle = NodeHandle{index: core32Invalid}

const core32Invalid uint32 = 0xFFFFFFFF

func (h NodeHandle) IsValid() bool {
	return h.index != core32Invalid
}

// NodeFlags are per-node boolean properties. Effective values honor
// ancestor overrides: a flag is effectively set only when set on the node
// and on every ancestor.
type NodeFlags uint32

const (
	NodeFlagVisible NodeFlags = 1 << iota
	NodeFlagCastsShadows
	NodeFlagStatic
)

// DefaultNodeFlags are assigned to newly created nodes.
const DefaultNodeFlags = NodeFlagVisible | NodeFlagCastsShadows

// Renderable attaches renderable geometry metadata to a node.
type Renderable struct {
	GeometryID uint64
	MaterialID uint64
	// Local-space bounds; world bounds are refreshed during transform
	// propagation.
	LocalBounds math.Extents3D
	WorldBounds math.Extents3D
}

// Camera attaches view parameters to a node.
type Camera struct {
	FOVDegrees  float32
	NearClip    float32
	FarClip     float32
	AspectRatio float32
}

// Light attaches a light source to a node.
type Light struct {
	Color     math.Vec3
	Intensity float32
	Range     float32
}

type node struct {
	name string

	parent      NodeHandle
	firstChild  NodeHandle
	nextSibling NodeHandle
	prevSibling NodeHandle

	flags NodeFlags

	transform      math.Transform
	world          math.Mat4
	transformDirty bool
	// When set, the node's world transform ignores its parent chain.
	ignoreParent bool

	renderable *Renderable
	camera     *Camera
	light      *Light
}

type nodeSlot struct {
	generation uint32
	live       bool
	node       node
}

// Scene owns the node arena. Not safe for concurrent mutation; the frame
// pipeline confines writes to the scene-mutation phase.
type Scene struct {
	name     string
	slots    []nodeSlot
	freeList []uint32
	root     NodeHandle
}

// NewScene creates a scene with a root node named name.
func NewScene(name string) *Scene {
	s := &Scene{name: name}
	s.root = s.allocate(name)
	rn := s.get(s.root)
	rn.parent = InvalidNodeHandle
	return s
}

func (s *Scene) Name() string { return s.name }

// Root returns the scene's root node handle.
func (s *Scene) Root() NodeHandle { return s.root }

func (s *Scene) allocate(name string) NodeHandle {
	var idx uint32
	if n := len(s.freeList); n > 0 {
		idx = s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
	} else {
		s.slots = append(s.slots, nodeSlot{})
		idx = uint32(len(s.slots) - 1)
	}
	slot := &s.slots[idx]
	slot.live = true
	slot.node = node{
		name:           name,
		parent:         InvalidNodeHandle,
		firstChild:     InvalidNodeHandle,
		nextSibling:    InvalidNodeHandle,
		prevSibling:    InvalidNodeHandle,
		flags:          DefaultNodeFlags,
		transform:      math.TransformCreate(),
		world:          math.NewMat4Identity(),
		transformDirty: true,
	}
	return NodeHandle{index: idx, generation: slot.generation}
}

func (s *Scene) get(h NodeHandle) *node {
	if !h.IsValid() || h.index >= uint32(len(s.slots)) {
		return nil
	}
	slot := &s.slots[h.index]
	if !slot.live || slot.generation != h.generation {
		return nil
	}
	return &slot.node
}

// IsAlive reports whether the handle refers to a live node.
func (s *Scene) IsAlive(h NodeHandle) bool {
	return s.get(h) != nil
}

// CreateNode creates a child of parent.
func (s *Scene) CreateNode(parent NodeHandle, name string) (NodeHandle, error) {
	p := s.get(parent)
	if p == nil {
		return InvalidNodeHandle, core.NewError(core.KindInvalidRequest, "parent handle is stale or invalid")
	}
	h := s.allocate(name)
	// The arena may have reallocated; refetch the parent.
	p = s.get(parent)
	n := s.get(h)
	n.parent = parent

	// Push-front into the parent's doubly linked child list.
	n.nextSibling = p.firstChild
	if p.firstChild.IsValid() {
		s.get(p.firstChild).prevSibling = h
	}
	p.firstChild = h
	return h, nil
}

// DestroyNode removes the node and its entire subtree. Destroying the root
// is rejected.
func (s *Scene) DestroyNode(h NodeHandle) error {
	if h == s.root {
		return core.NewError(core.KindInvalidRequest, "cannot destroy the scene root")
	}
	n := s.get(h)
	if n == nil {
		return core.NewError(core.KindInvalidRequest, "node handle is stale or invalid")
	}

	// Unlink from the sibling list.
	if n.prevSibling.IsValid() {
		s.get(n.prevSibling).nextSibling = n.nextSibling
	} else if p := s.get(n.parent); p != nil {
		p.firstChild = n.nextSibling
	}
	if n.nextSibling.IsValid() {
		s.get(n.nextSibling).prevSibling = n.prevSibling
	}

	s.destroySubtree(h)
	return nil
}

func (s *Scene) destroySubtree(h NodeHandle) {
	n := s.get(h)
	child := n.firstChild
	for child.IsValid() {
		next := s.get(child).nextSibling
		s.destroySubtree(child)
		child = next
	}
	slot := &s.slots[h.index]
	slot.live = false
	slot.generation++
	s.freeList = append(s.freeList, h.index)
}

// Reparent moves the node under a new parent, keeping its local transform.
// Moving a node under its own descendant is rejected.
func (s *Scene) Reparent(h, newParent NodeHandle) error {
	if h == s.root {
		return core.NewError(core.KindInvalidRequest, "cannot reparent the scene root")
	}
	n := s.get(h)
	np := s.get(newParent)
	if n == nil || np == nil {
		return core.NewError(core.KindInvalidRequest, "node handle is stale or invalid")
	}
	for cur := newParent; cur.IsValid(); cur = s.get(cur).parent {
		if cur == h {
			return core.NewError(core.KindInvalidRequest, "cannot reparent a node under its own subtree")
		}
	}

	// Unlink.
	if n.prevSibling.IsValid() {
		s.get(n.prevSibling).nextSibling = n.nextSibling
	} else if p := s.get(n.parent); p != nil {
		p.firstChild = n.nextSibling
	}
	if n.nextSibling.IsValid() {
		s.get(n.nextSibling).prevSibling = n.prevSibling
	}

	// Relink under the new parent.
	n.parent = newParent
	n.prevSibling = InvalidNodeHandle
	n.nextSibling = np.firstChild
	if np.firstChild.IsValid() {
		s.get(np.firstChild).prevSibling = h
	}
	np.firstChild = h
	n.transformDirty = true
	return nil
}

// NodeName returns the node's name.
func (s *Scene) NodeName(h NodeHandle) string {
	if n := s.get(h); n != nil {
		return n.name
	}
	return ""
}

// Parent returns the node's parent handle.
func (s *Scene) Parent(h NodeHandle) NodeHandle {
	if n := s.get(h); n != nil {
		return n.parent
	}
	return InvalidNodeHandle
}

// Children collects the node's direct children in sibling order.
func (s *Scene) Children(h NodeHandle) []NodeHandle {
	n := s.get(h)
	if n == nil {
		return nil
	}
	var out []NodeHandle
	for c := n.firstChild; c.IsValid(); c = s.get(c).nextSibling {
		out = append(out, c)
	}
	return out
}

// SetFlags replaces the node's local flags.
func (s *Scene) SetFlags(h NodeHandle, flags NodeFlags) {
	if n := s.get(h); n != nil {
		n.flags = flags
	}
}

// Flags returns the node's local flags.
func (s *Scene) Flags(h NodeHandle) NodeFlags {
	if n := s.get(h); n != nil {
		return n.flags
	}
	return 0
}

// EffectiveFlag reports the flag honoring ancestor overrides: set only when
// present on the node and every ancestor.
func (s *Scene) EffectiveFlag(h NodeHandle, flag NodeFlags) bool {
	for cur := h; cur.IsValid(); {
		n := s.get(cur)
		if n == nil || n.flags&flag == 0 {
			return false
		}
		cur = n.parent
	}
	return true
}

// Transform returns a mutable pointer to the node's local transform.
// Mutations must be followed by MarkTransformDirty.
func (s *Scene) Transform(h NodeHandle) *math.Transform {
	if n := s.get(h); n != nil {
		return &n.transform
	}
	return nil
}

// MarkTransformDirty flags the node's world matrix for recomputation.
func (s *Scene) MarkTransformDirty(h NodeHandle) {
	if n := s.get(h); n != nil {
		n.transformDirty = true
	}
}

// IsTransformDirty reports whether the node's world matrix is stale.
func (s *Scene) IsTransformDirty(h NodeHandle) bool {
	if n := s.get(h); n != nil {
		return n.transformDirty
	}
	return false
}

// SetIgnoreParent makes the node's world transform equal its local one.
func (s *Scene) SetIgnoreParent(h NodeHandle, ignore bool) {
	if n := s.get(h); n != nil {
		n.ignoreParent = ignore
		n.transformDirty = true
	}
}

// WorldMatrix returns the cached world matrix. Valid only when the node and
// all of its ancestors are clean.
func (s *Scene) WorldMatrix(h NodeHandle) math.Mat4 {
	if n := s.get(h); n != nil {
		return n.world
	}
	return math.NewMat4Identity()
}

// SetRenderable attaches renderable metadata to the node.
func (s *Scene) SetRenderable(h NodeHandle, r *Renderable) {
	if n := s.get(h); n != nil {
		n.renderable = r
	}
}

// GetRenderable returns the renderable component, or nil.
func (s *Scene) GetRenderable(h NodeHandle) *Renderable {
	if n := s.get(h); n != nil {
		return n.renderable
	}
	return nil
}

// SetCamera attaches a camera component to the node.
func (s *Scene) SetCamera(h NodeHandle, c *Camera) {
	if n := s.get(h); n != nil {
		n.camera = c
	}
}

// GetCamera returns the camera component, or nil.
func (s *Scene) GetCamera(h NodeHandle) *Camera {
	if n := s.get(h); n != nil {
		return n.camera
	}
	return nil
}

// SetLight attaches a light component to the node.
func (s *Scene) SetLight(h NodeHandle, l *Light) {
	if n := s.get(h); n != nil {
		n.light = l
	}
}

// GetLight returns the light component, or nil.
func (s *Scene) GetLight(h NodeHandle) *Light {
	if n := s.get(h); n != nil {
		return n.light
	}
	return nil
}

// NodeCount returns the number of live nodes including the root.
func (s *Scene) NodeCount() int {
	count := 0
	for i := range s.slots {
		if s.slots[i].live {
			count++
		}
	}
	return count
}
