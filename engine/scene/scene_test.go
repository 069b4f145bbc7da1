package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/math"
)

func buildTestScene(t *testing.T) (*Scene, map[string]NodeHandle) {
	t.Helper()
	s := NewScene("world")
	handles := map[string]NodeHandle{}
	add := func(parent NodeHandle, name string) NodeHandle {
		h, err := s.CreateNode(parent, name)
		require.NoError(t, err)
		handles[name] = h
		return h
	}
	// root
	//  ├─ enemies
	//  │   ├─ orc    ── weapon
	//  │   └─ troll  ── weapon
	//  └─ player
	enemies := add(s.Root(), "enemies")
	orc := add(enemies, "orc")
	add(orc, "weapon")
	troll := add(enemies, "troll")
	add(troll, "weapon2")
	add(s.Root(), "player")
	return s, handles
}

func TestCreateDestroyNodes(t *testing.T) {
	s, h := buildTestScene(t)
	assert.Equal(t, 7, s.NodeCount())

	require.NoError(t, s.DestroyNode(h["orc"]))
	// Subtree went with it.
	assert.Equal(t, 5, s.NodeCount())
	assert.False(t, s.IsAlive(h["orc"]))
	assert.False(t, s.IsAlive(h["weapon"]))
	assert.True(t, s.IsAlive(h["troll"]))

	// Stale handles are rejected.
	assert.ErrorIs(t, s.DestroyNode(h["orc"]), core.ErrInvalidRequest)
	assert.ErrorIs(t, s.DestroyNode(s.Root()), core.ErrInvalidRequest)
}

func TestHandleGenerations(t *testing.T) {
	s := NewScene("world")
	a, err := s.CreateNode(s.Root(), "a")
	require.NoError(t, err)
	require.NoError(t, s.DestroyNode(a))

	// The slot is reused but the old handle stays dead.
	b, err := s.CreateNode(s.Root(), "b")
	require.NoError(t, err)
	assert.False(t, s.IsAlive(a))
	assert.True(t, s.IsAlive(b))
}

func TestSiblingLinks(t *testing.T) {
	s, h := buildTestScene(t)
	children := s.Children(h["enemies"])
	require.Len(t, children, 2)
	// Push-front ordering: latest insertion first.
	assert.Equal(t, "troll", s.NodeName(children[0]))
	assert.Equal(t, "orc", s.NodeName(children[1]))

	for _, c := range children {
		assert.Equal(t, h["enemies"], s.Parent(c))
	}
}

func TestReparent(t *testing.T) {
	s, h := buildTestScene(t)
	require.NoError(t, s.Reparent(h["player"], h["enemies"]))
	assert.Equal(t, h["enemies"], s.Parent(h["player"]))
	assert.Len(t, s.Children(h["enemies"]), 3)

	// Cycles are rejected.
	assert.ErrorIs(t, s.Reparent(h["enemies"], h["player"]), core.ErrInvalidRequest)
	assert.ErrorIs(t, s.Reparent(s.Root(), h["player"]), core.ErrInvalidRequest)
}

func TestEffectiveFlags(t *testing.T) {
	s, h := buildTestScene(t)
	assert.True(t, s.EffectiveFlag(h["weapon"], NodeFlagVisible))

	// Hiding an ancestor hides the whole subtree.
	s.SetFlags(h["enemies"], s.Flags(h["enemies"])&^NodeFlagVisible)
	assert.False(t, s.EffectiveFlag(h["weapon"], NodeFlagVisible))
	assert.False(t, s.EffectiveFlag(h["orc"], NodeFlagVisible))
	assert.True(t, s.EffectiveFlag(h["player"], NodeFlagVisible))
}

func TestUpdateTransformsPropagation(t *testing.T) {
	s, h := buildTestScene(t)
	s.UpdateTransforms()

	s.Transform(h["enemies"]).SetPosition(math.NewVec3(10, 0, 0))
	s.MarkTransformDirty(h["enemies"])
	s.Transform(h["orc"]).SetPosition(math.NewVec3(0, 5, 0))
	s.MarkTransformDirty(h["orc"])

	s.UpdateTransforms()

	// world == parent.world · local, all the way down.
	orcWorld := s.WorldMatrix(h["orc"])
	origin := orcWorld.MulVec3(math.NewVec3Zero())
	assert.InDelta(t, 10.0, float64(origin.X), 1e-5)
	assert.InDelta(t, 5.0, float64(origin.Y), 1e-5)

	// Children of a dirty parent refresh even when clean themselves.
	weaponWorld := s.WorldMatrix(h["weapon"])
	wOrigin := weaponWorld.MulVec3(math.NewVec3Zero())
	assert.InDelta(t, 10.0, float64(wOrigin.X), 1e-5)
	assert.InDelta(t, 5.0, float64(wOrigin.Y), 1e-5)

	// Everything is clean afterwards.
	s.Traverse(AcceptAll, func(sc *Scene, n NodeHandle) VisitResult {
		assert.False(t, sc.IsTransformDirty(n))
		return VisitContinue
	})
}

func TestUpdateTransformsDirtyFiltering(t *testing.T) {
	s, h := buildTestScene(t)
	total := s.UpdateTransforms()
	assert.Equal(t, 7, total)

	// A clean scene recomputes nothing.
	assert.Equal(t, 0, s.UpdateTransforms())

	// One dirty leaf recomputes exactly itself.
	s.MarkTransformDirty(h["player"])
	assert.Equal(t, 1, s.UpdateTransforms())

	// A dirty interior node recomputes its subtree.
	s.MarkTransformDirty(h["enemies"])
	assert.Equal(t, 5, s.UpdateTransforms())
}

func TestIgnoreParent(t *testing.T) {
	s, h := buildTestScene(t)
	s.Transform(h["enemies"]).SetPosition(math.NewVec3(100, 0, 0))
	s.MarkTransformDirty(h["enemies"])
	s.SetIgnoreParent(h["orc"], true)
	s.Transform(h["orc"]).SetPosition(math.NewVec3(1, 2, 3))
	s.MarkTransformDirty(h["orc"])

	s.UpdateTransforms()

	origin := s.WorldMatrix(h["orc"]).MulVec3(math.NewVec3Zero())
	assert.InDelta(t, 1.0, float64(origin.X), 1e-5)
	assert.InDelta(t, 2.0, float64(origin.Y), 1e-5)
	assert.InDelta(t, 3.0, float64(origin.Z), 1e-5)
}

func TestRenderableWorldBounds(t *testing.T) {
	s, h := buildTestScene(t)
	s.SetRenderable(h["orc"], &Renderable{
		LocalBounds: math.Extents3D{
			Min: math.NewVec3(-1, -1, -1),
			Max: math.NewVec3(1, 1, 1),
		},
	})
	s.Transform(h["orc"]).SetPosition(math.NewVec3(10, 0, 0))
	s.MarkTransformDirty(h["orc"])
	s.UpdateTransforms()

	r := s.GetRenderable(h["orc"])
	assert.InDelta(t, 9.0, float64(r.WorldBounds.Min.X), 1e-5)
	assert.InDelta(t, 11.0, float64(r.WorldBounds.Max.X), 1e-5)
}

func TestTraversalRejectSubtree(t *testing.T) {
	s, h := buildTestScene(t)
	var visited []string
	s.Traverse(func(sc *Scene, n NodeHandle) FilterResult {
		if n == h["enemies"] {
			return FilterRejectSubtree
		}
		return FilterAccept
	}, func(sc *Scene, n NodeHandle) VisitResult {
		visited = append(visited, sc.NodeName(n))
		return VisitContinue
	})

	assert.Contains(t, visited, "player")
	assert.NotContains(t, visited, "enemies")
	assert.NotContains(t, visited, "orc")
	assert.NotContains(t, visited, "weapon")
}
