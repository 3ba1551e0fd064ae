package aoiload

import (
	"strings"
	"testing"

	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLocal = `<?xml version="1.0"?>
<osm version="0.6">
  <node id="50" version="3" visible="true" lat="1" lon="1"/>
  <node id="51" version="1" visible="true" lat="2" lon="2"/>
  <way id="200" version="5" visible="true">
    <nd ref="50"/>
    <nd ref="51"/>
  </way>
  <relation id="300" version="2" visible="true">
    <member type="node" ref="50" role="via"/>
  </relation>
</osm>`

func TestLoad_MaterializesOnlyWanted(t *testing.T) {
	wanted := WantedIDs{
		Nodes:     map[int64]bool{50: true},
		Ways:      map[int64]bool{},
		Relations: map[int64]bool{},
	}
	snap, graph, err := Load(strings.NewReader(sampleLocal), wanted, true)
	require.NoError(t, err)

	assert.Len(t, snap.Nodes, 1)
	assert.Contains(t, snap.Nodes, int64(50))
	assert.NotContains(t, snap.Nodes, int64(51))
	assert.Empty(t, snap.Ways)
	assert.Equal(t, Counts{Nodes: 2, Ways: 1, Relations: 1}, snap.Counts)

	assert.Equal(t, []int64{200}, graph.NodesReferencedByWays[50])
	assert.Equal(t, []int64{300}, graph.NodesReferencedByRelations[50])
}

func TestSnapshot_TombstoneForMissingID(t *testing.T) {
	snap := newSnapshot()
	el := snap.Element(osm.KindNode, 999)
	assert.Equal(t, int64(999), el.ID())
	assert.False(t, el.Visible())
}

func TestReferringWays(t *testing.T) {
	wanted := WantedIDs{Nodes: map[int64]bool{50: true}, Ways: map[int64]bool{}, Relations: map[int64]bool{}}
	_, graph, err := Load(strings.NewReader(sampleLocal), wanted, true)
	require.NoError(t, err)

	referring := ReferringWays(graph, map[int64]bool{50: true}, map[int64]bool{})
	assert.Equal(t, map[int64]bool{200: true}, referring)

	// A way already in the touched set is not "referring".
	referring2 := ReferringWays(graph, map[int64]bool{50: true}, map[int64]bool{200: true})
	assert.Empty(t, referring2)
}

func TestLoadVersions(t *testing.T) {
	v, err := LoadVersions(strings.NewReader(sampleLocal))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Nodes[50])
	assert.Equal(t, int64(5), v.Ways[200])
	assert.Equal(t, int64(2), v.Relations[300])
}
