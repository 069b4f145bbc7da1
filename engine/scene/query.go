package scene

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/spaghettifunk/oxygen/engine/core"
)

// Predicate selects nodes for query operations.
type Predicate func(s *Scene, h NodeHandle) bool

// Query is a read-only query surface over a scene. It must not outlive a
// scene-mutation phase.
type Query struct {
	scene *Scene
	// Non-nil while ExecuteBatch runs.
	batch *batchState
}

func NewQuery(s *Scene) *Query {
	return &Query{scene: s}
}

// FindFirst returns the first node in pre-order satisfying pred.
func (q *Query) FindFirst(pred Predicate) (NodeHandle, bool) {
	if q.batch != nil {
		return q.batch.addFindFirst(pred), false
	}
	found := InvalidNodeHandle
	q.scene.Traverse(AcceptAll, func(s *Scene, h NodeHandle) VisitResult {
		if pred(s, h) {
			found = h
			return VisitStop
		}
		return VisitContinue
	})
	return found, found.IsValid()
}

// Any reports whether any node satisfies pred.
func (q *Query) Any(pred Predicate) bool {
	if q.batch != nil {
		q.batch.addFindFirst(pred)
		return false
	}
	_, ok := q.FindFirst(pred)
	return ok
}

// Count returns how many nodes satisfy pred.
func (q *Query) Count(pred Predicate) int {
	if q.batch != nil {
		q.batch.addCount(pred)
		return 0
	}
	count := 0
	q.scene.Traverse(AcceptAll, func(s *Scene, h NodeHandle) VisitResult {
		if pred(s, h) {
			count++
		}
		return VisitContinue
	})
	return count
}

// Collect appends all nodes satisfying pred to dst and returns how many
// were appended.
func (q *Query) Collect(dst *[]NodeHandle, pred Predicate) int {
	if q.batch != nil {
		q.batch.addCollect(dst, pred)
		return 0
	}
	appended := 0
	q.scene.Traverse(AcceptAll, func(s *Scene, h NodeHandle) VisitResult {
		if pred(s, h) {
			*dst = append(*dst, h)
			appended++
		}
		return VisitContinue
	})
	return appended
}

// FindFirstByPath resolves an absolute path of node names like "/a/b/c".
// The leading segment matches the root's children.
func (q *Query) FindFirstByPath(path string) (NodeHandle, error) {
	if q.batch != nil {
		return InvalidNodeHandle, core.NewError(core.KindInvalidRequest, "path queries are invalid inside a batch")
	}
	segments, err := splitPath(path)
	if err != nil {
		return InvalidNodeHandle, err
	}
	current := q.scene.Root()
	for _, seg := range segments {
		next := InvalidNodeHandle
		for _, c := range q.scene.Children(current) {
			if q.scene.NodeName(c) == seg {
				next = c
				break
			}
		}
		if !next.IsValid() {
			return InvalidNodeHandle, nil
		}
		current = next
	}
	return current, nil
}

// CollectByPath appends every node whose path matches the glob pattern,
// segment by segment (e.g. "/enemies/*/weapon").
func (q *Query) CollectByPath(dst *[]NodeHandle, pattern string) (int, error) {
	if q.batch != nil {
		return 0, core.NewError(core.KindInvalidRequest, "path queries are invalid inside a batch")
	}
	segments, err := splitPath(pattern)
	if err != nil {
		return 0, err
	}
	globs := make([]glob.Glob, len(segments))
	for i, seg := range segments {
		g, err := glob.Compile(seg)
		if err != nil {
			return 0, core.WrapError(core.KindInvalidRequest, err, "bad path segment %q", seg)
		}
		globs[i] = g
	}

	level := []NodeHandle{q.scene.Root()}
	for _, g := range globs {
		var next []NodeHandle
		for _, h := range level {
			for _, c := range q.scene.Children(h) {
				if g.Match(q.scene.NodeName(c)) {
					next = append(next, c)
				}
			}
		}
		level = next
		if len(level) == 0 {
			break
		}
	}
	*dst = append(*dst, level...)
	return len(level), nil
}

func splitPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, core.NewError(core.KindInvalidRequest, "path %q must be absolute", path)
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, core.NewError(core.KindInvalidRequest, "path %q has no segments", path)
	}
	return strings.Split(trimmed, "/"), nil
}

// --- batched execution ---

type batchOpKind uint8

const (
	batchFindFirst batchOpKind = iota
	batchCount
	batchCollect
)

type batchOp struct {
	kind batchOpKind
	pred Predicate
	done bool

	found NodeHandle
	count int
	dst   *[]NodeHandle
}

type batchState struct {
	ops []*batchOp
}

func (b *batchState) addFindFirst(pred Predicate) NodeHandle {
	b.ops = append(b.ops, &batchOp{kind: batchFindFirst, pred: pred, found: InvalidNodeHandle})
	return InvalidNodeHandle
}

func (b *batchState) addCount(pred Predicate) {
	b.ops = append(b.ops, &batchOp{kind: batchCount, pred: pred})
}

func (b *batchState) addCollect(dst *[]NodeHandle, pred Predicate) {
	b.ops = append(b.ops, &batchOp{kind: batchCollect, pred: pred, dst: dst})
}

// BatchResults exposes per-operation outcomes after ExecuteBatch returns,
// in registration order.
type BatchResults struct {
	ops []*batchOp
}

// FindFirstResult returns the node found by the i-th registered operation.
func (r *BatchResults) FindFirstResult(i int) (NodeHandle, bool) {
	op := r.ops[i]
	return op.found, op.found.IsValid()
}

// CountResult returns the count computed by the i-th registered operation.
func (r *BatchResults) CountResult(i int) int {
	return r.ops[i].count
}

// ExecuteBatch runs fn, which registers multiple query operations on the
// receiver, then evaluates all of their predicates in one traversal pass.
// FindFirst/Any operations stop matching once satisfied; Count/Collect run
// to the end. The traversal terminates early only when every operation is
// done.
func (q *Query) ExecuteBatch(fn func(*Query)) (*BatchResults, error) {
	if q.batch != nil {
		return nil, core.NewError(core.KindInvalidRequest, "nested batches are not supported")
	}
	q.batch = &batchState{}
	fn(q)
	state := q.batch
	q.batch = nil

	remaining := len(state.ops)
	q.scene.Traverse(AcceptAll, func(s *Scene, h NodeHandle) VisitResult {
		for _, op := range state.ops {
			if op.done || !op.pred(s, h) {
				continue
			}
			switch op.kind {
			case batchFindFirst:
				op.found = h
				op.done = true
				remaining--
			case batchCount:
				op.count++
			case batchCollect:
				*op.dst = append(*op.dst, h)
				op.count++
			}
		}
		if remaining == 0 {
			return VisitStop
		}
		return VisitContinue
	})
	return &BatchResults{ops: state.ops}, nil
}
