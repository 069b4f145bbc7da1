package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/oxygen/engine/config"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	cfg := config.Default().Importer
	cfg.Workers = 2
	cfg.CookedRoot = t.TempDir()
	cfg.Hashing = true
	svc := NewService(cfg)
	return svc, cfg.CookedRoot
}

func waitResult(t *testing.T, ch <-chan JobResult) JobResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for job result")
		return JobResult{}
	}
}

func TestServiceImportsTexture(t *testing.T) {
	svc, root := newTestService(t)
	src := filepath.Join(t.TempDir(), "stone.png")
	require.NoError(t, os.WriteFile(src, encodePNG(t, 16, 16), 0o644))

	done := make(chan JobResult, 1)
	var events []ProgressKind
	id, err := svc.SubmitImport(ImportRequest{
		SourcePath: src,
		Params:     CookParams{GenerateMips: true},
	}, func(res JobResult) {
		done <- res
	}, func(ev ProgressEvent) {
		events = append(events, ev.Kind)
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	res := waitResult(t, done)
	assert.True(t, res.Success)
	assert.Equal(t, id, res.JobID)
	require.Len(t, res.Items, 1)
	assert.True(t, res.Items[0].Success)
	assert.Greater(t, res.Items[0].Telemetry.IOMs, 0.0)
	assert.Greater(t, res.Items[0].Telemetry.DecodeMs, 0.0)

	require.NoError(t, svc.Stop())

	// Finalize wrote the packed table next to the data file.
	table, err := os.Stat(filepath.Join(root, "textures.table"))
	require.NoError(t, err)
	assert.Equal(t, int64(44), table.Size())
	data, err := os.Stat(filepath.Join(root, "textures.data"))
	require.NoError(t, err)
	assert.Greater(t, data.Size(), int64(0))

	// Progress callbacks ran on the service loop in submission order.
	assert.Equal(t, ProgressJobStarted, events[0])
	assert.Equal(t, ProgressJobFinished, events[len(events)-1])
}

func TestServiceRejectsAfterShutdown(t *testing.T) {
	svc, _ := newTestService(t)
	svc.RequestShutdown()
	_, err := svc.SubmitImport(ImportRequest{SourcePath: "x.png"}, nil, nil)
	assert.Error(t, err)
	require.NoError(t, svc.Stop())
}

func TestServiceReportsMissingSource(t *testing.T) {
	svc, _ := newTestService(t)
	done := make(chan JobResult, 1)
	_, err := svc.SubmitImport(ImportRequest{
		SourcePath: filepath.Join(t.TempDir(), "missing.png"),
	}, func(res JobResult) { done <- res }, nil)
	require.NoError(t, err)

	res := waitResult(t, done)
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, CodeReadFailed, res.Diagnostics[0].Code)
	require.NoError(t, svc.Stop())
}

func TestGuessAssetType(t *testing.T) {
	assert.Equal(t, AssetTexture, GuessAssetType("a/b/albedo.PNG"))
	assert.Equal(t, AssetBuffer, GuessAssetType("grid.bin"))
	assert.Equal(t, AssetMaterial, GuessAssetType("rust.material"))
	assert.Equal(t, AssetScene, GuessAssetType("level1.scene"))
	assert.Equal(t, AssetAuto, GuessAssetType("notes.txt"))
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "import.toml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
[[sources]]
path = "textures/stone.png"
type = "texture"
generate_mips = true

[[sources]]
path = "/abs/grid.bin"
type = "buffer"
`), 0o644))

	m, err := LoadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, m.Sources, 2)
	assert.Equal(t, filepath.Join(dir, "textures/stone.png"), m.Sources[0].Path)
	assert.True(t, m.Sources[0].GenerateMips)
	assert.Equal(t, "/abs/grid.bin", m.Sources[1].Path)
}

func TestServiceStopJoinsCallbacks(t *testing.T) {
	svc, _ := newTestService(t)
	src := filepath.Join(t.TempDir(), "grid.bin")
	require.NoError(t, os.WriteFile(src, make([]byte, 64), 0o644))

	completions := 0
	var last JobResult
	_, err := svc.SubmitImport(ImportRequest{
		SourcePath: src,
		Params:     CookParams{ElementStride: 16},
	}, func(res JobResult) {
		completions++
		last = res
	}, nil)
	require.NoError(t, err)

	// No wait on the callback here: Stop must not return until every
	// posted completion has run on the service loop.
	require.NoError(t, svc.Stop())
	assert.Equal(t, 1, completions)
	assert.Equal(t, src, last.Source)
}
