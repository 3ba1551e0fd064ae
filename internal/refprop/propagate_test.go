package refprop

import (
	"testing"

	"github.com/posm-tools/replay-core/internal/aoiload"
	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestPropagate_WayTakesPrecedenceOverRelation(t *testing.T) {
	graph := &aoiload.ReferenceGraph{
		NodesReferencedByWays:      map[int64][]int64{50: {200, 201}},
		NodesReferencedByRelations: map[int64][]int64{50: {300}},
	}

	res := Propagate(graph, map[int64]bool{50: true}, map[int64]bool{}, map[int64]bool{})

	assert.Equal(t, map[int64]bool{200: true, 201: true}, res.ReferringWays)
	assert.Equal(t, map[int64]bool{300: true}, res.ReferringRelations)
	assert.Equal(t, store.Key{Kind: osm.KindWay, ID: 200}, res.ReferredBy[50])
}

func TestPropagate_FallsBackToRelationWhenNoWay(t *testing.T) {
	graph := &aoiload.ReferenceGraph{
		NodesReferencedByWays:      map[int64][]int64{},
		NodesReferencedByRelations: map[int64][]int64{50: {300, 301}},
	}

	res := Propagate(graph, map[int64]bool{50: true}, map[int64]bool{}, map[int64]bool{})

	assert.Empty(t, res.ReferringWays)
	assert.Equal(t, map[int64]bool{300: true, 301: true}, res.ReferringRelations)
	assert.Equal(t, store.Key{Kind: osm.KindRelation, ID: 300}, res.ReferredBy[50])
}

func TestPropagate_AlreadyTouchedParentNotPromoted(t *testing.T) {
	graph := &aoiload.ReferenceGraph{
		NodesReferencedByWays:      map[int64][]int64{50: {200}},
		NodesReferencedByRelations: map[int64][]int64{},
	}

	res := Propagate(graph, map[int64]bool{50: true}, map[int64]bool{200: true}, map[int64]bool{})

	assert.Empty(t, res.ReferringWays)
	// The node's canonical parent is still recorded even though the
	// parent itself was already directly touched and not re-promoted.
	assert.Equal(t, store.Key{Kind: osm.KindWay, ID: 200}, res.ReferredBy[50])
}
