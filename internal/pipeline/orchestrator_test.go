package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posm-tools/replay-core/internal/config"
	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/store"
	"github.com/posm-tools/replay-core/internal/store/memorystore"
	"github.com/posm-tools/replay-core/internal/upstream"
)

const localChangesetPayload = `<osmChange version="0.6">
<modify>
<node id="100" version="2" timestamp="2026-01-01T00:00:00Z" visible="true" lat="1.5" lon="2.5">
<tag k="amenity" v="cafe"/>
</node>
</modify>
</osmChange>`

const localAOIExport = `<osm version="0.6">
<node id="100" version="2" timestamp="2026-01-01T00:00:00Z" visible="true" lat="1.5" lon="2.5">
<tag k="amenity" v="cafe"/>
</node>
</osm>`

const originalAOIContents = `<osm version="0.6">
<node id="999" version="1" timestamp="2025-01-01T00:00:00Z" visible="true" lat="0" lon="0"/>
</osm>`

const upstreamAOIContents = `<osm version="0.6">
</osm>`

type fakeCollector struct{ served bool }

func (f *fakeCollector) Meta(_ context.Context, id int64) (string, bool, error) {
	if f.served || id != 1 {
		return "", false, nil
	}
	return "<osm/>", true, nil
}

func (f *fakeCollector) Payload(_ context.Context, _ int64) (string, error) {
	f.served = true
	return localChangesetPayload, nil
}

type fakeSnapshots struct{}

func (fakeSnapshots) FetchUpstreamAOI(_ context.Context, _ upstream.BBox) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(upstreamAOIContents)), nil
}

type fakeLocalExporter struct{}

func (fakeLocalExporter) ExportLocalAOI(_ context.Context, _ upstream.BBox) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(localAOIExport)), nil
}

type fakeUploader struct {
	created, uploaded, closed bool
}

func (u *fakeUploader) CreateChangeset(_ context.Context, _ string) (int64, error) {
	u.created = true
	return 42, nil
}

func (u *fakeUploader) UploadDiff(_ context.Context, _ int64, _ []byte) error {
	u.uploaded = true
	return nil
}

func (u *fakeUploader) CloseChangeset(_ context.Context, _ int64) error {
	u.closed = true
	return nil
}

func testDeps(t *testing.T) (Deps, *fakeUploader) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "aoi"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aoi", "original_aoi.osm"), []byte(originalAOIContents), 0o644))

	uploader := &fakeUploader{}
	deps := Deps{
		Store:         memorystore.New(),
		Collector:     &fakeCollector{},
		Snapshots:     fakeSnapshots{},
		LocalExporter: fakeLocalExporter{},
		Uploader:      uploader,
		Config: config.ReplayConfig{
			AOIRoot:         dir,
			AOIName:         "aoi",
			OriginalAOIFile: "original_aoi.osm",
		},
	}
	return deps, uploader
}

func TestOrchestrator_TriggerZeroConflictShortcut(t *testing.T) {
	deps, _ := testDeps(t)
	o := NewOrchestrator(deps)

	err := o.Trigger(context.Background(), upstream.BBox{West: -1, South: -1, East: 1, North: 1}, 1)
	require.NoError(t, err)

	assert.Equal(t, StageResolvingConflicts, o.State.Stage)
	assert.True(t, o.State.IsCurrentStageComplete)
	assert.False(t, o.State.HasErrored)
	assert.Equal(t, 1, o.State.ElementsData.Local.Nodes)

	conflicting, err := deps.Store.Query(context.Background(), store.QueryFilter{Query: store.QueryConflicting})
	require.NoError(t, err)
	assert.Empty(t, conflicting)

	tracked, err := deps.Store.Get(context.Background(), store.Key{Kind: osm.KindNode, ID: 100})
	require.NoError(t, err)
	assert.Equal(t, store.StateModified, tracked.LocalState)

	// creating_geojsons leaves one referenced-elements sub-OSM per
	// snapshot next to the original AOI file.
	aoiDir := filepath.Join(deps.Config.AOIRoot, deps.Config.AOIName)
	for _, name := range []string{"referenced_original.osm", "referenced_local.osm", "referenced_upstream.osm"} {
		b, err := os.ReadFile(filepath.Join(aoiDir, name))
		require.NoError(t, err, name)
		assert.Contains(t, string(b), "<osm", name)
	}
	local, err := os.ReadFile(filepath.Join(aoiDir, "referenced_local.osm"))
	require.NoError(t, err)
	assert.Contains(t, string(local), `id="100"`)
}

func TestOrchestrator_PushAfterShortcut(t *testing.T) {
	deps, uploader := testDeps(t)
	o := NewOrchestrator(deps)
	require.NoError(t, o.Trigger(context.Background(), upstream.BBox{}, 1))

	err := o.Push(context.Background(), func(s *State) error {
		assert.Equal(t, StagePushConflicts, s.Stage)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StagePushedUpstream, o.State.Stage)
	assert.True(t, o.State.IsCurrentStageComplete)
	assert.False(t, uploader.created) // Push's upload callback owns the uploader calls in this test double.
}

func TestOrchestrator_Reset(t *testing.T) {
	deps, _ := testDeps(t)
	o := NewOrchestrator(deps)
	require.NoError(t, o.Trigger(context.Background(), upstream.BBox{}, 1))

	require.NoError(t, o.Reset(context.Background()))
	assert.Equal(t, StageNotTriggered, o.State.Stage)
	assert.True(t, o.State.IsCurrentStageComplete)

	_, err := deps.Store.Get(context.Background(), store.Key{Kind: osm.KindNode, ID: 100})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrchestrator_RetriggerDetectingConflicts(t *testing.T) {
	deps, _ := testDeps(t)
	o := NewOrchestrator(deps)
	require.NoError(t, o.Trigger(context.Background(), upstream.BBox{}, 1))

	require.NoError(t, o.Retrigger(context.Background(), StageDetectingConflicts))
	assert.Equal(t, StageExtractingLocalAOI, o.State.Stage)
	assert.True(t, o.State.IsCurrentStageComplete)

	_, err := deps.Store.Get(context.Background(), store.Key{Kind: osm.KindNode, ID: 100})
	assert.ErrorIs(t, err, store.ErrNotFound, "retriggering detecting_conflicts clears the store")
}
