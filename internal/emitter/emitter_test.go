package emitter

import (
	"testing"

	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id int64, version int64, lat, lon float64, tags ...osm.Tag) osm.Element {
	return osm.NodeElement(&osm.Node{
		ID:   id,
		Meta: osm.Meta{Version: version, Visible: true},
		Lat:  lat,
		Lon:  lon,
		Tags: tags,
	})
}

// A locally created node is emitted with a negative placeholder id and
// version 1.
func TestEmit_LocalOnlyAdd(t *testing.T) {
	el := store.TrackedElement{
		Key:           store.Key{Kind: osm.KindNode, ID: 1001},
		LocalSnapshot: node(1001, 1, 10, 20, osm.Tag{Key: "name", Value: "A"}),
		HasLocal:      true,
		LocalState:    store.StateAdded,
		Status:        store.StatusResolved,
	}

	selected := Select([]store.TrackedElement{el})
	change, err := Emit(selected, 555)
	require.NoError(t, err)

	require.Len(t, change.Create.Nodes, 1)
	n := change.Create.Nodes[0]
	assert.Equal(t, int64(-1), n.ID)
	assert.Equal(t, int64(1), n.Version)
	assert.Equal(t, 10.0, n.Lat)
	assert.Equal(t, 20.0, n.Lon)
	assert.Equal(t, []osm.Tag{{Key: "name", Value: "A"}}, n.Tags)
	assert.True(t, change.Modify.Empty())
	assert.True(t, change.Delete.Empty())
}

// Resolving "theirs" on a tag conflict emits a modify with the chosen
// tag value and upstream.version+1.
func TestEmit_ConflictResolution(t *testing.T) {
	original := node(42, 7, 1, 1, osm.Tag{Key: "name", Value: "Old"})
	upstream := node(42, 8, 1, 1, osm.Tag{Key: "name", Value: "Upstream"})
	resolvedTheirs := node(42, 8, 1, 1, osm.Tag{Key: "name", Value: "Upstream"})

	el := store.TrackedElement{
		Key:              store.Key{Kind: osm.KindNode, ID: 42},
		OriginalSnapshot: original,
		HasOriginal:      true,
		UpstreamSnapshot: upstream,
		HasUpstream:      true,
		ResolvedSnapshot: resolvedTheirs,
		HasResolved:      true,
		ResolvedFrom:     store.ResolvedFromTheirs,
		LocalState:       store.StateConflicting,
		Status:           store.StatusResolved,
	}

	selected := Select([]store.TrackedElement{el})
	change, err := Emit(selected, 555)
	require.NoError(t, err)

	require.Len(t, change.Modify.Nodes, 1)
	n := change.Modify.Nodes[0]
	assert.Equal(t, int64(42), n.ID)
	assert.Equal(t, int64(9), n.Version)
	assert.Equal(t, []osm.Tag{{Key: "name", Value: "Upstream"}}, n.Tags)
}

// A new way referencing new nodes: node placeholders assigned first,
// then the way's refs rewritten to match, in node/way/relation order.
func TestEmit_NewWayWithNewNodes(t *testing.T) {
	n1 := store.TrackedElement{
		Key:           store.Key{Kind: osm.KindNode, ID: 5001},
		LocalSnapshot: node(5001, 1, 1, 1),
		HasLocal:      true,
		LocalState:    store.StateAdded,
		Status:        store.StatusResolved,
	}
	n2 := store.TrackedElement{
		Key:           store.Key{Kind: osm.KindNode, ID: 5002},
		LocalSnapshot: node(5002, 1, 2, 2),
		HasLocal:      true,
		LocalState:    store.StateAdded,
		Status:        store.StatusResolved,
	}
	way := store.TrackedElement{
		Key: store.Key{Kind: osm.KindWay, ID: 6001},
		LocalSnapshot: osm.WayElement(&osm.Way{
			ID:    6001,
			Meta:  osm.Meta{Version: 1, Visible: true},
			Nodes: []int64{5001, 5002},
		}),
		HasLocal:   true,
		LocalState: store.StateAdded,
		Status:     store.StatusResolved,
	}

	selected := Select([]store.TrackedElement{way, n2, n1})
	change, err := Emit(selected, 555)
	require.NoError(t, err)

	require.Len(t, change.Create.Nodes, 2)
	assert.Equal(t, int64(-1), change.Create.Nodes[0].ID)
	assert.Equal(t, int64(-2), change.Create.Nodes[1].ID)

	require.Len(t, change.Create.Ways, 1)
	w := change.Create.Ways[0]
	assert.Equal(t, int64(-1), w.ID)
	assert.Equal(t, []int64{-1, -2}, w.Nodes)
}

func TestSelect_ExcludesReferringAndUnresolved(t *testing.T) {
	referring := store.TrackedElement{Key: store.Key{Kind: osm.KindWay, ID: 1}, LocalState: store.StateReferring, Status: store.StatusUnresolved}
	unresolved := store.TrackedElement{Key: store.Key{Kind: osm.KindNode, ID: 2}, LocalState: store.StateConflicting, Status: store.StatusUnresolved}
	resolved := store.TrackedElement{Key: store.Key{Kind: osm.KindNode, ID: 3}, LocalState: store.StateModified, Status: store.StatusResolved}

	out := Select([]store.TrackedElement{referring, unresolved, resolved})
	require.Len(t, out, 1)
	assert.Equal(t, int64(3), out[0].Key.ID)
}
