package emitter

import "github.com/posm-tools/replay-core/internal/osm"

// IDRewriter maps locally-assigned positive ids for added elements to
// stable per-run negative placeholders. A lookup for an id not present
// in the map returns the id unchanged: it was not locally added, so no
// rewrite applies.
type IDRewriter struct {
	Nodes     map[int64]int64
	Ways      map[int64]int64
	Relations map[int64]int64
}

// NewIDRewriter assigns -1, -2, … to each id in addedNodeIDs,
// addedWayIDs, addedRelationIDs respectively, in the given (caller-
// determined, e.g. ascending-id) order.
func NewIDRewriter(addedNodeIDs, addedWayIDs, addedRelationIDs []int64) *IDRewriter {
	r := &IDRewriter{
		Nodes:     make(map[int64]int64, len(addedNodeIDs)),
		Ways:      make(map[int64]int64, len(addedWayIDs)),
		Relations: make(map[int64]int64, len(addedRelationIDs)),
	}
	for i, id := range addedNodeIDs {
		r.Nodes[id] = -(int64(i) + 1)
	}
	for i, id := range addedWayIDs {
		r.Ways[id] = -(int64(i) + 1)
	}
	for i, id := range addedRelationIDs {
		r.Relations[id] = -(int64(i) + 1)
	}
	return r
}

func (r *IDRewriter) node(id int64) int64 {
	if v, ok := r.Nodes[id]; ok {
		return v
	}
	return id
}

func (r *IDRewriter) way(id int64) int64 {
	if v, ok := r.Ways[id]; ok {
		return v
	}
	return id
}

func (r *IDRewriter) relation(id int64) int64 {
	if v, ok := r.Relations[id]; ok {
		return v
	}
	return id
}

// Rewrite rewrites el's own id (if it was locally added) and every
// internal reference (way node refs, relation member refs) from
// positive-local to negative-placeholder where the referenced id was
// itself locally added. Relation member kinds are normalized to long
// form as part of the same pass.
func (r *IDRewriter) Rewrite(el osm.Element) osm.Element {
	switch el.Kind {
	case osm.KindNode:
		n := *el.Node
		n.ID = r.node(n.ID)
		return osm.NodeElement(&n)
	case osm.KindWay:
		w := *el.Way
		w.ID = r.way(w.ID)
		nodes := make([]int64, len(w.Nodes))
		for i, ref := range w.Nodes {
			nodes[i] = r.node(ref)
		}
		w.Nodes = nodes
		return osm.WayElement(&w)
	case osm.KindRelation:
		rel := *el.Relation
		rel.ID = r.relation(rel.ID)
		members := make([]osm.Member, len(rel.Members))
		for i, m := range rel.Members {
			m.Type = osm.LongMemberKind(m.Type)
			switch m.Type {
			case osm.KindNode:
				m.Ref = r.node(m.Ref)
			case osm.KindWay:
				m.Ref = r.way(m.Ref)
			case osm.KindRelation:
				m.Ref = r.relation(m.Ref)
			}
			members[i] = m
		}
		rel.Members = members
		return osm.RelationElement(&rel)
	}
	return el
}
