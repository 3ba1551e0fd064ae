package memorystore

import (
	"context"
	"testing"

	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert_DuplicateRejectedWithoutUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := store.Key{Kind: osm.KindNode, ID: 1}
	require.NoError(t, s.Insert(ctx, store.TrackedElement{Key: key}, false))
	err := s.Insert(ctx, store.TrackedElement{Key: key}, false)
	assert.ErrorIs(t, err, store.ErrExists)
	require.NoError(t, s.Insert(ctx, store.TrackedElement{Key: key, Status: store.StatusUnresolved}, true))
}

func TestQuery_ConflictingExcludesResolved(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := store.Key{Kind: osm.KindNode, ID: 42}
	require.NoError(t, s.Insert(ctx, store.TrackedElement{
		Key:           key,
		LocalState:    store.StateConflicting,
		Status:        store.StatusUnresolved,
		HasLocal:      true,
		LocalSnapshot: osm.NodeElement(&osm.Node{ID: 42, Tags: []osm.Tag{{Key: "name", Value: "A"}}}),
	}, false))

	results, err := s.Query(ctx, store.QueryFilter{Query: store.QueryConflicting})
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, s.UpdateResolution(ctx, key, store.Resolution{
		ResolvedSnapshot: osm.NodeElement(&osm.Node{ID: 42}),
		ResolvedFrom:     store.ResolvedFromOurs,
	}))

	results, err = s.Query(ctx, store.QueryFilter{Query: store.QueryConflicting})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Query(ctx, store.QueryFilter{Query: store.QueryResolved})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestQuery_UntaggedConflictingNodeHidden(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := store.Key{Kind: osm.KindNode, ID: 50}
	require.NoError(t, s.Insert(ctx, store.TrackedElement{
		Key:           key,
		LocalState:    store.StateConflicting,
		Status:        store.StatusUnresolved,
		HasLocal:      true,
		LocalSnapshot: osm.NodeElement(&osm.Node{ID: 50}),
	}, false))

	results, err := s.Query(ctx, store.QueryFilter{Query: store.QueryConflicting})
	require.NoError(t, err)
	assert.Empty(t, results, "untagged conflicting node should not be surfaced directly")
}

func TestCascade_ResolvingWayResolvesChildNode(t *testing.T) {
	ctx := context.Background()
	s := New()
	wayKey := store.Key{Kind: osm.KindWay, ID: 200}
	nodeKey := store.Key{Kind: osm.KindNode, ID: 50}

	require.NoError(t, s.Insert(ctx, store.TrackedElement{
		Key: wayKey, LocalState: store.StateReferring, Status: store.StatusUnresolved,
	}, false))
	require.NoError(t, s.Insert(ctx, store.TrackedElement{
		Key: nodeKey, LocalState: store.StateConflicting, Status: store.StatusUnresolved,
		ReferredBy: &wayKey,
		HasLocal:   true,
		LocalSnapshot: osm.NodeElement(&osm.Node{ID: 50, Tags: []osm.Tag{{Key: "x", Value: "y"}}}),
	}, false))

	require.NoError(t, s.UpdateResolution(ctx, wayKey, store.Resolution{
		ConflictingNodes: map[store.Key]osm.Element{
			nodeKey: osm.NodeElement(&osm.Node{ID: 50, Lat: 5, Lon: 5}),
		},
	}))

	node, err := s.Get(ctx, nodeKey)
	require.NoError(t, err)
	assert.Equal(t, store.StatusResolved, node.Status)
	assert.Equal(t, 5.0, node.ResolvedSnapshot.Node.Lat)

	way, err := s.Get(ctx, wayKey)
	require.NoError(t, err)
	assert.Equal(t, store.StatusResolved, way.Status)
}

func TestCascade_PartialResolutionWhenNotAllChildrenIncluded(t *testing.T) {
	ctx := context.Background()
	s := New()
	wayKey := store.Key{Kind: osm.KindWay, ID: 200}
	node1 := store.Key{Kind: osm.KindNode, ID: 50}
	node2 := store.Key{Kind: osm.KindNode, ID: 51}

	require.NoError(t, s.Insert(ctx, store.TrackedElement{Key: wayKey, LocalState: store.StateReferring, Status: store.StatusUnresolved}, false))
	require.NoError(t, s.Insert(ctx, store.TrackedElement{Key: node1, LocalState: store.StateConflicting, Status: store.StatusUnresolved, ReferredBy: &wayKey}, false))
	require.NoError(t, s.Insert(ctx, store.TrackedElement{Key: node2, LocalState: store.StateConflicting, Status: store.StatusUnresolved, ReferredBy: &wayKey}, false))

	require.NoError(t, s.UpdateResolution(ctx, wayKey, store.Resolution{
		ConflictingNodes: map[store.Key]osm.Element{
			node1: osm.NodeElement(&osm.Node{ID: 50}),
		},
	}))

	way, err := s.Get(ctx, wayKey)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPartiallyResolved, way.Status)
}

func TestResetElement_ClearsResolutionAndCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	wayKey := store.Key{Kind: osm.KindWay, ID: 200}
	nodeKey := store.Key{Kind: osm.KindNode, ID: 50}
	require.NoError(t, s.Insert(ctx, store.TrackedElement{Key: wayKey, LocalState: store.StateReferring, Status: store.StatusResolved}, false))
	require.NoError(t, s.Insert(ctx, store.TrackedElement{Key: nodeKey, LocalState: store.StateConflicting, Status: store.StatusResolved, ReferredBy: &wayKey}, false))

	require.NoError(t, s.ResetElement(ctx, wayKey))

	way, err := s.Get(ctx, wayKey)
	require.NoError(t, err)
	assert.Equal(t, store.StatusUnresolved, way.Status)

	node, err := s.Get(ctx, nodeKey)
	require.NoError(t, err)
	assert.Equal(t, store.StatusUnresolved, node.Status)
}

func TestClear_RemovesEverything(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Insert(ctx, store.TrackedElement{Key: store.Key{Kind: osm.KindNode, ID: 1}}, false))
	require.NoError(t, s.Clear(ctx))
	results, err := s.Query(ctx, store.QueryFilter{Query: store.QueryAdded})
	require.NoError(t, err)
	assert.Empty(t, results)
}
