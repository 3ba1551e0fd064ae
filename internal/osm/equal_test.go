package osm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEqual_IgnoresMetaDrift(t *testing.T) {
	a := NodeElement(&Node{
		ID:   42,
		Meta: Meta{Version: 7, Timestamp: time.Unix(1000, 0), UID: 1, User: "alice", Changeset: 5, Visible: true},
		Lat:  1.0, Lon: 2.0,
		Tags: []Tag{{Key: "name", Value: "Old"}},
	})
	b := NodeElement(&Node{
		ID:   42,
		Meta: Meta{Version: 8, Timestamp: time.Unix(2000, 0), UID: 2, User: "bob", Changeset: 9, Visible: true},
		Lat:  1.0, Lon: 2.0,
		Tags: []Tag{{Key: "name", Value: "Old"}},
	})
	assert.True(t, Equal(a, b))
	assert.True(t, Equal(b, a), "conflict symmetry")
}

func TestEqual_NodePositionConflicts(t *testing.T) {
	a := NodeElement(&Node{ID: 50, Meta: Meta{Visible: true}, Lat: 1.0, Lon: 2.0})
	b := NodeElement(&Node{ID: 50, Meta: Meta{Visible: true}, Lat: 1.0001, Lon: 2.0})
	assert.False(t, Equal(a, b))
	assert.False(t, Equal(b, a))
}

func TestEqual_TagDifferenceConflicts(t *testing.T) {
	a := NodeElement(&Node{ID: 42, Tags: []Tag{{Key: "name", Value: "Local"}}})
	b := NodeElement(&Node{ID: 42, Tags: []Tag{{Key: "name", Value: "Upstream"}}})
	assert.False(t, Equal(a, b))
	assert.False(t, Equal(b, a))
}

func TestEqual_WayNodeOrderMatters(t *testing.T) {
	a := WayElement(&Way{ID: 1, Nodes: []int64{1, 2, 3}})
	b := WayElement(&Way{ID: 1, Nodes: []int64{3, 2, 1}})
	assert.False(t, Equal(a, b))
}

func TestEqual_RelationMemberOrderAndRoleMatter(t *testing.T) {
	a := RelationElement(&Relation{ID: 1, Members: []Member{{Type: KindWay, Ref: 10, Role: "outer"}}})
	b := RelationElement(&Relation{ID: 1, Members: []Member{{Type: KindWay, Ref: 10, Role: "inner"}}})
	assert.False(t, Equal(a, b))
}

func TestEqual_VisibilityMismatch(t *testing.T) {
	a := NodeElement(&Node{ID: 1, Meta: Meta{Visible: true}})
	b := NodeElement(&Node{ID: 1, Meta: Meta{Visible: false}})
	assert.False(t, Equal(a, b))
}
