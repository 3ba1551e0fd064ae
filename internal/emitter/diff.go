package emitter

import "github.com/posm-tools/replay-core/internal/osm"

// Diff is the delta between a "new" element (a) and a "base" element
// (b): top-level attributes present in a with a value differing from
// b's, plus a tag delta (entries whose key is absent from b or whose
// value differs). Tags removed in a relative to b are not recorded.
type Diff struct {
	ID int64

	Tags []osm.Tag

	VisibleChanged bool
	Visible        bool

	NodesChanged bool
	Nodes        []int64

	MembersChanged bool
	Members        []osm.Member

	LatLonChanged bool
	Lat, Lon      float64
}

// Compute returns the diff of a relative to b.
func Compute(a, b osm.Element) Diff {
	d := Diff{ID: a.ID(), Tags: tagDelta(a.Tags(), b.Tags())}

	if a.Visible() != b.Visible() {
		d.VisibleChanged = true
		d.Visible = a.Visible()
	}

	switch a.Kind {
	case osm.KindNode:
		if a.Node.Lat != b.Node.Lat || a.Node.Lon != b.Node.Lon {
			d.LatLonChanged = true
			d.Lat, d.Lon = a.Node.Lat, a.Node.Lon
		}
	case osm.KindWay:
		bNodes := b.Way.Nodes
		if b.Kind != osm.KindWay {
			bNodes = nil
		}
		if !int64SliceEqual(a.Way.Nodes, bNodes) {
			d.NodesChanged = true
			d.Nodes = append([]int64(nil), a.Way.Nodes...)
		}
	case osm.KindRelation:
		bMembers := b.Relation.Members
		if b.Kind != osm.KindRelation {
			bMembers = nil
		}
		if !membersEqual(a.Relation.Members, bMembers) {
			d.MembersChanged = true
			d.Members = append([]osm.Member(nil), a.Relation.Members...)
		}
	}

	return d
}

// tagDelta returns the tags in a whose key is absent from b or whose
// value differs from b's.
func tagDelta(a, b []osm.Tag) []osm.Tag {
	bm := make(map[string]string, len(b))
	for _, t := range b {
		bm[t.Key] = t.Value
	}
	var out []osm.Tag
	for _, t := range a {
		if bv, ok := bm[t.Key]; !ok || bv != t.Value {
			out = append(out, t)
		}
	}
	return out
}

// Apply reconstructs an element by overlaying d onto base: unchanged
// top-level attributes and tags not named in the delta are taken from
// base. Apply(Compute(a, b), b) equals a except that tags present in b
// but removed in a are kept, since Diff does not record removals.
func Apply(d Diff, base osm.Element) osm.Element {
	switch base.Kind {
	case osm.KindNode:
		n := *base.Node
		n.ID = d.ID
		n.Tags = applyTagDelta(base.Tags(), d.Tags)
		if d.VisibleChanged {
			n.Visible = d.Visible
		}
		if d.LatLonChanged {
			n.Lat, n.Lon = d.Lat, d.Lon
		}
		return osm.NodeElement(&n)
	case osm.KindWay:
		w := *base.Way
		w.ID = d.ID
		w.Tags = applyTagDelta(base.Tags(), d.Tags)
		if d.VisibleChanged {
			w.Visible = d.Visible
		}
		if d.NodesChanged {
			w.Nodes = append([]int64(nil), d.Nodes...)
		}
		return osm.WayElement(&w)
	case osm.KindRelation:
		r := *base.Relation
		r.ID = d.ID
		r.Tags = applyTagDelta(base.Tags(), d.Tags)
		if d.VisibleChanged {
			r.Visible = d.Visible
		}
		if d.MembersChanged {
			r.Members = append([]osm.Member(nil), d.Members...)
		}
		return osm.RelationElement(&r)
	}
	return osm.Element{}
}

// applyTagDelta overlays delta entries onto base's tag set, adding or
// overwriting by key.
func applyTagDelta(base, delta []osm.Tag) []osm.Tag {
	out := make(map[string]string, len(base)+len(delta))
	var order []string
	for _, t := range base {
		if _, ok := out[t.Key]; !ok {
			order = append(order, t.Key)
		}
		out[t.Key] = t.Value
	}
	for _, t := range delta {
		if _, ok := out[t.Key]; !ok {
			order = append(order, t.Key)
		}
		out[t.Key] = t.Value
	}
	tags := make([]osm.Tag, 0, len(order))
	for _, k := range order {
		tags = append(tags, osm.Tag{Key: k, Value: out[k]})
	}
	return tags
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func membersEqual(a, b []osm.Member) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
