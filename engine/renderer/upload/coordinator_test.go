package upload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/renderer"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeGraphics) {
	t.Helper()
	gfx := newFakeGraphics()
	staging := newTestStaging(t, gfx, 2, 1024)
	return NewCoordinator(gfx, staging, gfx.transfer), gfx
}

func TestUploadRoundTrip(t *testing.T) {
	c, gfx := newTestCoordinator(t)

	dst, err := gfx.CreateBuffer(renderer.BufferDesc{Name: "vertices", SizeBytes: 64})
	require.NoError(t, err)

	payload := []byte{9, 8, 7, 6}
	ticket, err := c.SubmitBufferUpload(UploadDesc{DstBuffer: dst, DstOffset: 8, Data: payload})
	require.NoError(t, err)
	assert.False(t, c.IsComplete(ticket))

	done, err := c.OnFrameStart(0)
	require.NoError(t, err)
	assert.Contains(t, done, ticket)
	assert.True(t, c.IsComplete(ticket))

	assert.Equal(t, payload, dst.(*fakeBuffer).data[8:12])
}

func TestUploadValidation(t *testing.T) {
	c, gfx := newTestCoordinator(t)

	_, err := c.SubmitBufferUpload(UploadDesc{DstBuffer: nil, Data: []byte{1}})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	dst, err := gfx.CreateBuffer(renderer.BufferDesc{SizeBytes: 16})
	require.NoError(t, err)
	_, err = c.SubmitBufferUpload(UploadDesc{DstBuffer: dst, Data: nil})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestUploadFlush(t *testing.T) {
	c, gfx := newTestCoordinator(t)
	dst, err := gfx.CreateBuffer(renderer.BufferDesc{SizeBytes: 16})
	require.NoError(t, err)

	ticket, err := c.SubmitBufferUpload(UploadDesc{DstBuffer: dst, Data: []byte{1, 2}})
	require.NoError(t, err)

	require.NoError(t, c.Flush(context.Background()))
	assert.True(t, c.IsComplete(ticket))
	assert.Equal(t, []byte{1, 2}, dst.(*fakeBuffer).data[:2])
}

func TestUploadsBatchIntoOneSubmission(t *testing.T) {
	c, gfx := newTestCoordinator(t)
	dst, err := gfx.CreateBuffer(renderer.BufferDesc{SizeBytes: 64})
	require.NoError(t, err)

	t1, err := c.SubmitBufferUpload(UploadDesc{DstBuffer: dst, DstOffset: 0, Data: []byte{1}})
	require.NoError(t, err)
	t2, err := c.SubmitBufferUpload(UploadDesc{DstBuffer: dst, DstOffset: 1, Data: []byte{2}})
	require.NoError(t, err)

	fenceBefore := gfx.transfer.CompletedFenceValue()
	done, err := c.OnFrameStart(0)
	require.NoError(t, err)

	// One fence signal covers the whole batch.
	assert.Equal(t, fenceBefore+1, gfx.transfer.CompletedFenceValue())
	assert.ElementsMatch(t, []TicketID{t1, t2}, done)
}
