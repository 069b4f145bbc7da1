package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherResubmitsOnChange(t *testing.T) {
	svc, _ := newTestService(t)
	dir := t.TempDir()
	w, err := NewWatcher(svc, []string{dir}, CookParams{GenerateMips: true})
	require.NoError(t, err)

	// Rename into place so the create event observes the full payload.
	staged := filepath.Join(t.TempDir(), "stone.png")
	require.NoError(t, os.WriteFile(staged, encodePNG(t, 8, 8), 0o644))
	require.NoError(t, os.Rename(staged, filepath.Join(dir, "stone.png")))

	deadline := time.Now().Add(10 * time.Second)
	for svc.Textures.EntryCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("changed source was never reimported")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w.Close()
	require.NoError(t, svc.Stop())
	assert.EqualValues(t, 1, svc.Textures.EntryCount())
}

func TestWatcherIgnoresUnknownExtensions(t *testing.T) {
	svc, _ := newTestService(t)
	dir := t.TempDir()
	w, err := NewWatcher(svc, []string{dir}, CookParams{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)

	w.Close()
	require.NoError(t, svc.Stop())
	assert.EqualValues(t, 0, svc.Textures.EntryCount())
	assert.EqualValues(t, 0, svc.Buffers.EntryCount())
}
