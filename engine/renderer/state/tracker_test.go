package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer/metadata"
)

const bufferID uint64 = 1

func TestBeginTrackingTwiceFails(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.BeginTrackingResourceState(bufferID, metadata.ResourceStateCommon, false))
	err := tr.BeginTrackingResourceState(bufferID, metadata.ResourceStateCommon, false)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestRequireUntrackedFails(t *testing.T) {
	tr := NewTracker()
	err := tr.RequireResourceState(99, metadata.ResourceStateCopyDest)
	assert.ErrorIs(t, err, core.ErrNotReady)
}

func TestBarrierMerge(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.BeginTrackingResourceState(bufferID, metadata.ResourceStateCommon, false))

	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateUnorderedAccess))
	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateCopyDest))

	pending := tr.GetPendingBarriers()
	require.Len(t, pending, 1)
	assert.Equal(t, metadata.BarrierTransition, pending[0].Type)
	assert.Equal(t, metadata.ResourceStateCommon, pending[0].Before)
	assert.Equal(t, metadata.ResourceStateUnorderedAccess|metadata.ResourceStateCopyDest, pending[0].After)
}

func TestNoMergeAcrossFlush(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.BeginTrackingResourceState(bufferID, metadata.ResourceStateCommon, false))

	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateCopySource))
	flushed := tr.Flush()
	require.Len(t, flushed, 1)

	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateShaderResource))
	pending := tr.GetPendingBarriers()
	require.Len(t, pending, 1)
	assert.Equal(t, metadata.ResourceStateCopySource, pending[0].Before)
	assert.Equal(t, metadata.ResourceStateShaderResource, pending[0].After)
}

func TestUAVMemoryBarriers(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.BeginTrackingResourceState(bufferID, metadata.ResourceStateUnorderedAccess, false))

	// Auto mode: one memory barrier per require.
	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateUnorderedAccess))
	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateUnorderedAccess))
	pending := tr.GetPendingBarriers()
	require.Len(t, pending, 2)
	for _, b := range pending {
		assert.Equal(t, metadata.BarrierMemory, b.Type)
		assert.Equal(t, metadata.ResourceStateUnorderedAccess, b.Before)
		assert.Equal(t, metadata.ResourceStateUnorderedAccess, b.After)
	}

	// Manual mode: redundant barriers are suppressed until a flush.
	tr.Flush()
	require.NoError(t, tr.DisableAutoMemoryBarriers(bufferID))
	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateUnorderedAccess))
	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateUnorderedAccess))
	assert.Len(t, tr.GetPendingBarriers(), 1)
}

func TestPermanentState(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.BeginTrackingResourceState(bufferID, metadata.ResourceStateCommon, false))
	require.NoError(t, tr.RequireResourceStateFinal(bufferID, metadata.ResourceStateShaderResource))

	// Re-asserting the permanent state is allowed.
	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateShaderResource))

	// Any other state is a violation.
	err := tr.RequireResourceState(bufferID, metadata.ResourceStateCopyDest)
	assert.ErrorIs(t, err, core.ErrPermanentStateViolation)
}

func TestKeepInitialRestoresOnClose(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.BeginTrackingResourceState(bufferID, metadata.ResourceStateShaderResource, true))

	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateCopyDest))
	tr.Flush()
	tr.OnCommandListClosed()

	pending := tr.GetPendingBarriers()
	require.Len(t, pending, 1)
	assert.Equal(t, metadata.ResourceStateCopyDest, pending[0].Before)
	assert.Equal(t, metadata.ResourceStateShaderResource, pending[0].After)
}

func TestKeepInitialSkippedAfterPermanent(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.BeginTrackingResourceState(bufferID, metadata.ResourceStateCommon, true))
	require.NoError(t, tr.RequireResourceStateFinal(bufferID, metadata.ResourceStatePresent))
	tr.Flush()

	tr.OnCommandListClosed()
	assert.Empty(t, tr.GetPendingBarriers())
}

func TestClear(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.BeginTrackingResourceState(bufferID, metadata.ResourceStateCommon, false))
	require.NoError(t, tr.RequireResourceState(bufferID, metadata.ResourceStateCopyDest))
	tr.Clear()

	assert.False(t, tr.IsTracked(bufferID))
	assert.Empty(t, tr.GetPendingBarriers())
}
