package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posm-tools/replay-core/internal/config"
	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/pipeline"
	"github.com/posm-tools/replay-core/internal/store"
)

func TestParseElementKey(t *testing.T) {
	key, err := parseElementKey("node", "42")
	require.NoError(t, err)
	assert.Equal(t, store.Key{Kind: osm.KindNode, ID: 42}, key)

	// Short forms normalize the same way relation members do.
	key, err = parseElementKey("w", "7")
	require.NoError(t, err)
	assert.Equal(t, store.Key{Kind: osm.KindWay, ID: 7}, key)

	_, err = parseElementKey("polygon", "1")
	assert.Error(t, err)

	_, err = parseElementKey("node", "abc")
	assert.Error(t, err)
}

func TestQueryKind(t *testing.T) {
	for filter, want := range map[string]store.QueryKind{
		"conflicting":        store.QueryConflicting,
		"unresolved":         store.QueryConflicting,
		"resolved":           store.QueryResolved,
		"partially-resolved": store.QueryPartiallyResolved,
		"referring":          store.QueryReferring,
		"added":              store.QueryAdded,
		"all":                store.QueryAll,
	} {
		got, err := queryKind(filter)
		require.NoError(t, err, filter)
		assert.Equal(t, want, got, filter)
	}

	_, err := queryKind("everything")
	assert.Error(t, err)
}

func TestStateRoundTrip(t *testing.T) {
	cfg := config.ReplayConfig{AOIRoot: t.TempDir(), AOIName: "aoi"}

	// Absent file yields a fresh not_triggered state.
	s, err := loadState(cfg)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageNotTriggered, s.Stage)
	assert.True(t, s.IsCurrentStageComplete)

	s.Stage = pipeline.StageResolvingConflicts
	s.ElementsData.Local.Nodes = 12
	require.NoError(t, saveState(cfg, s))

	loaded, err := loadState(cfg)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
	assert.Equal(t, filepath.Join(cfg.AOIRoot, "aoi", "pipeline_state.json"), statePath(cfg))
}
