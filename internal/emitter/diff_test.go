package emitter

import (
	"testing"

	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/stretchr/testify/assert"
)

// apply(diff(a, original), original) is structurally equal to a.
func TestDiffRoundTrip_Way(t *testing.T) {
	original := osm.WayElement(&osm.Way{
		ID:    200,
		Meta:  osm.Meta{Version: 5, Visible: true},
		Nodes: []int64{1, 2, 3},
		Tags:  []osm.Tag{{Key: "highway", Value: "track"}},
	})
	a := osm.WayElement(&osm.Way{
		ID:    200,
		Meta:  osm.Meta{Version: 6, Visible: true},
		Nodes: []int64{1, 2, 3, 4},
		Tags:  []osm.Tag{{Key: "highway", Value: "residential"}},
	})

	diff := Compute(a, original)
	got := Apply(diff, original)

	assert.True(t, osm.Equal(got, a))
}

func TestDiffRoundTrip_TagOnlyChange(t *testing.T) {
	original := osm.NodeElement(&osm.Node{
		ID:   42,
		Meta: osm.Meta{Version: 7, Visible: true},
		Lat:  1, Lon: 1,
		Tags: []osm.Tag{{Key: "name", Value: "Old"}},
	})
	a := osm.NodeElement(&osm.Node{
		ID:   42,
		Meta: osm.Meta{Version: 8, Visible: true},
		Lat:  1, Lon: 1,
		Tags: []osm.Tag{{Key: "name", Value: "Local"}},
	})

	diff := Compute(a, original)
	got := Apply(diff, original)

	assert.True(t, osm.Equal(got, a))
}

func TestDiffRoundTrip_VisibilityChange(t *testing.T) {
	original := osm.NodeElement(&osm.Node{ID: 9, Meta: osm.Meta{Version: 1, Visible: true}})
	a := osm.NodeElement(&osm.Node{ID: 9, Meta: osm.Meta{Version: 2, Visible: false}})

	diff := Compute(a, original)
	got := Apply(diff, original)

	assert.True(t, osm.Equal(got, a))
	assert.False(t, got.Visible())
}
