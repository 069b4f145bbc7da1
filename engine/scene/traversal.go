package scene

// FilterResult controls which nodes a traversal visits.
type FilterResult uint8

const (
	// Accept visits the node and descends into its children.
	FilterAccept FilterResult = iota
	// Reject skips the node but still descends into its children.
	FilterReject
	// RejectSubtree skips the node and its entire subtree.
	FilterRejectSubtree
)

// VisitResult controls whether a traversal continues.
type VisitResult uint8

const (
	VisitContinue VisitResult = iota
	VisitStop
)

// Filter decides per node whether it is visited.
type Filter func(s *Scene, h NodeHandle) FilterResult

// Visitor is invoked for each accepted node in pre-order.
type Visitor func(s *Scene, h NodeHandle) VisitResult

// AcceptAll accepts every node.
func AcceptAll(*Scene, NodeHandle) FilterResult { return FilterAccept }

// DirtyTransformFilter accepts nodes whose transform is dirty. Children of
// an accepted node are visited regardless of their own dirty flag, because
// a parent change propagates downward.
func DirtyTransformFilter(s *Scene, h NodeHandle) FilterResult {
	if s.IsTransformDirty(h) {
		return FilterAccept
	}
	return FilterReject
}

// Traverse walks the scene pre-order from root, applying filter before
// visitor. Returns false if the visitor stopped the traversal.
func (s *Scene) Traverse(filter Filter, visitor Visitor) bool {
	return s.traverseFrom(s.root, filter, visitor)
}

// TraverseFrom walks pre-order starting at h.
func (s *Scene) TraverseFrom(h NodeHandle, filter Filter, visitor Visitor) bool {
	return s.traverseFrom(h, filter, visitor)
}

func (s *Scene) traverseFrom(h NodeHandle, filter Filter, visitor Visitor) bool {
	if s.get(h) == nil {
		return true
	}
	switch filter(s, h) {
	case FilterRejectSubtree:
		return true
	case FilterAccept:
		if visitor(s, h) == VisitStop {
			return false
		}
	}
	for c := s.get(h).firstChild; c.IsValid(); c = s.get(c).nextSibling {
		if !s.traverseFrom(c, filter, visitor) {
			return false
		}
	}
	return true
}

// UpdateTransforms refreshes world matrices from dirty roots downward.
// After it returns, every reachable node satisfies
// world == parent.world · local (or world == local for roots and
// ignore-parent nodes) and is no longer dirty. Returns the number of nodes
// recomputed.
func (s *Scene) UpdateTransforms() int {
	updated := 0
	s.updateTransformsRec(s.root, false, &updated)
	return updated
}

func (s *Scene) updateTransformsRec(h NodeHandle, forced bool, updated *int) {
	n := s.get(h)
	if n == nil {
		return
	}
	refresh := forced || n.transformDirty
	if refresh {
		local := n.transform.Local()
		if p := s.get(n.parent); p != nil && !n.ignoreParent {
			n.world = p.world.Mul(local)
		} else {
			n.world = local
		}
		n.transformDirty = false
		if n.renderable != nil {
			refreshWorldBounds(n)
		}
		*updated++
	}
	// An accepted parent forces descent: children inherit the new world.
	for c := n.firstChild; c.IsValid(); c = s.get(c).nextSibling {
		s.updateTransformsRec(c, refresh, updated)
	}
}

func refreshWorldBounds(n *node) {
	lb := n.renderable.LocalBounds
	minW := n.world.MulVec3(lb.Min)
	maxW := n.world.MulVec3(lb.Max)
	// Re-order per axis; rotations can flip the corners.
	if minW.X > maxW.X {
		minW.X, maxW.X = maxW.X, minW.X
	}
	if minW.Y > maxW.Y {
		minW.Y, maxW.Y = maxW.Y, minW.Y
	}
	if minW.Z > maxW.Z {
		minW.Z, maxW.Z = maxW.Z, minW.Z
	}
	n.renderable.WorldBounds.Min = minW
	n.renderable.WorldBounds.Max = maxW
}
