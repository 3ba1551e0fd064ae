// Package aoiload implements the AOI Loader: a streaming parse of an OSM
// XML snapshot that materializes only the elements later stages care
// about, and — for the local snapshot — builds the node->way and
// node->relation reference graph.
package aoiload

import (
	"fmt"
	"io"
	"slices"

	"github.com/posm-tools/replay-core/internal/osm"
)

// WantedIDs is the touched ∪ referenced set the loader should
// materialize, per kind. Everything else is counted but discarded.
type WantedIDs struct {
	Nodes     map[int64]bool
	Ways      map[int64]bool
	Relations map[int64]bool
}

func (w WantedIDs) forKind(kind osm.Kind) map[int64]bool {
	switch kind {
	case osm.KindNode:
		return w.Nodes
	case osm.KindWay:
		return w.Ways
	case osm.KindRelation:
		return w.Relations
	}
	return nil
}

// Counts records total elements seen per kind, for reporting.
type Counts struct {
	Nodes, Ways, Relations int
}

// Snapshot is the loader's output for one OSM file.
type Snapshot struct {
	Nodes     map[int64]*osm.Node
	Ways      map[int64]*osm.Way
	Relations map[int64]*osm.Relation
	Counts    Counts
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Nodes:     make(map[int64]*osm.Node),
		Ways:      make(map[int64]*osm.Way),
		Relations: make(map[int64]*osm.Relation),
	}
}

// Element returns the element (kind, id) from the snapshot, or a
// synthetic tombstone if the id is absent — the case where a referenced
// id does not exist in this particular snapshot.
func (s *Snapshot) Element(kind osm.Kind, id int64) osm.Element {
	switch kind {
	case osm.KindNode:
		if n, ok := s.Nodes[id]; ok {
			return osm.NodeElement(n)
		}
		return osm.NodeElement(tombstoneNode(id))
	case osm.KindWay:
		if w, ok := s.Ways[id]; ok {
			return osm.WayElement(w)
		}
		return osm.WayElement(&osm.Way{ID: id})
	case osm.KindRelation:
		if r, ok := s.Relations[id]; ok {
			return osm.RelationElement(r)
		}
		return osm.RelationElement(&osm.Relation{ID: id})
	}
	return osm.Element{}
}

func tombstoneNode(id int64) *osm.Node {
	return &osm.Node{ID: id}
}

// Has reports whether (kind, id) was actually present in the file this
// snapshot was loaded from, as opposed to being synthesized as a
// tombstone by Element. The Conflict Detector's upstream-changed filter
// needs this distinction: a genuinely absent id is skipped, while an id
// present but marked not-visible is a real tombstone with a real version.
func (s *Snapshot) Has(kind osm.Kind, id int64) bool {
	switch kind {
	case osm.KindNode:
		_, ok := s.Nodes[id]
		return ok
	case osm.KindWay:
		_, ok := s.Ways[id]
		return ok
	case osm.KindRelation:
		_, ok := s.Relations[id]
		return ok
	}
	return false
}

// ReferenceGraph is the local-snapshot adjacency built while loading:
// which ways/relations reference a given node. It is acyclic by OSM
// construction and consulted in reverse by the Reference Propagator.
type ReferenceGraph struct {
	NodesReferencedByWays      map[int64][]int64
	NodesReferencedByRelations map[int64][]int64
}

func newReferenceGraph() *ReferenceGraph {
	return &ReferenceGraph{
		NodesReferencedByWays:      make(map[int64][]int64),
		NodesReferencedByRelations: make(map[int64][]int64),
	}
}

// Load streams r and materializes the elements named in wanted, plus
// total per-kind counts. When buildGraph is true (the local snapshot
// only), it also builds the node reference graph over every way and
// relation in the file, not just the wanted ones — a way's membership
// in the graph does not depend on whether the way itself was touched.
func Load(r io.Reader, wanted WantedIDs, buildGraph bool) (*Snapshot, *ReferenceGraph, error) {
	snap := newSnapshot()
	var graph *ReferenceGraph
	if buildGraph {
		graph = newReferenceGraph()
	}

	err := osm.Decode(r, func(el osm.Element) error {
		switch el.Kind {
		case osm.KindNode:
			snap.Counts.Nodes++
			if wanted.forKind(osm.KindNode)[el.ID()] {
				snap.Nodes[el.ID()] = el.Node
			}
		case osm.KindWay:
			snap.Counts.Ways++
			if graph != nil {
				for _, nodeID := range el.Way.Nodes {
					graph.NodesReferencedByWays[nodeID] = append(graph.NodesReferencedByWays[nodeID], el.Way.ID)
				}
			}
			if wanted.forKind(osm.KindWay)[el.ID()] {
				snap.Ways[el.ID()] = el.Way
			}
		case osm.KindRelation:
			snap.Counts.Relations++
			if graph != nil {
				for _, m := range el.Relation.Members {
					if m.Type == osm.KindNode {
						graph.NodesReferencedByRelations[m.Ref] = append(graph.NodesReferencedByRelations[m.Ref], el.Relation.ID)
					}
				}
			}
			if wanted.forKind(osm.KindRelation)[el.ID()] {
				snap.Relations[el.ID()] = el.Relation
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("aoiload: load snapshot: %w", err)
	}
	return snap, graph, nil
}

// WriteReferenced writes the snapshot's materialized elements as a
// reduced sub-OSM document, ids ascending per kind. These files feed the
// external GeoJSON converter.
func (s *Snapshot) WriteReferenced(w io.Writer) error {
	doc := osm.NewDocument()
	for _, id := range sortedKeys(s.Nodes) {
		doc.Nodes = append(doc.Nodes, s.Nodes[id])
	}
	for _, id := range sortedKeys(s.Ways) {
		doc.Ways = append(doc.Ways, s.Ways[id])
	}
	for _, id := range sortedKeys(s.Relations) {
		doc.Relations = append(doc.Relations, s.Relations[id])
	}
	return osm.EncodeDocument(w, doc)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ReferringWays returns, for the local snapshot's way set, the ids of
// ways that reference any node in referencedNodes but are not already
// present in touchedWays: the candidates for "referring" promotion.
func ReferringWays(graph *ReferenceGraph, referencedNodes map[int64]bool, touchedWays map[int64]bool) map[int64]bool {
	out := make(map[int64]bool)
	for nodeID := range referencedNodes {
		for _, wayID := range graph.NodesReferencedByWays[nodeID] {
			if !touchedWays[wayID] {
				out[wayID] = true
			}
		}
	}
	return out
}

// ReferringRelations is the relation analogue of ReferringWays.
func ReferringRelations(graph *ReferenceGraph, referencedNodes map[int64]bool, touchedRelations map[int64]bool) map[int64]bool {
	out := make(map[int64]bool)
	for nodeID := range referencedNodes {
		for _, relID := range graph.NodesReferencedByRelations[nodeID] {
			if !touchedRelations[relID] {
				out[relID] = true
			}
		}
	}
	return out
}
