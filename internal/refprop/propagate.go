// Package refprop implements reference propagation: for every
// conflicting node, it finds the local ways/relations that reference it
// and promotes them to "referring" tracked elements, then assigns each
// conflicting node a single canonical referring parent.
package refprop

import (
	"github.com/posm-tools/replay-core/internal/aoiload"
	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/store"
)

// Result is the output of Propagate: the referring ways/relations to
// insert as tracked elements, and the canonical parent assigned to each
// conflicting node.
type Result struct {
	// ReferringWays/ReferringRelations are the parent ids promoted to
	// local_state=referring, keyed by id, not already in the touched set.
	ReferringWays      map[int64]bool
	ReferringRelations map[int64]bool

	// ReferredBy maps a conflicting node id to its canonical parent key:
	// the first referring way, else the first referring relation, in the
	// local AOI file's reference-graph order.
	ReferredBy map[int64]store.Key
}

// Propagate consults graph (built over the local snapshot) for each
// conflicting node id and computes which parent ways/relations must be
// surfaced, plus each node's canonical referring parent. touchedWays and
// touchedRelations are the ids already directly tracked (from the Change
// Tracker's touched set); a parent already tracked directly is not
// re-promoted to "referring".
func Propagate(graph *aoiload.ReferenceGraph, conflictingNodes map[int64]bool, touchedWays, touchedRelations map[int64]bool) Result {
	res := Result{
		ReferringWays:      make(map[int64]bool),
		ReferringRelations: make(map[int64]bool),
		ReferredBy:         make(map[int64]store.Key),
	}

	for nodeID := range conflictingNodes {
		wayIDs := graph.NodesReferencedByWays[nodeID]
		for _, wayID := range wayIDs {
			if !touchedWays[wayID] {
				res.ReferringWays[wayID] = true
			}
		}
		relIDs := graph.NodesReferencedByRelations[nodeID]
		for _, relID := range relIDs {
			if !touchedRelations[relID] {
				res.ReferringRelations[relID] = true
			}
		}

		switch {
		case len(wayIDs) > 0:
			res.ReferredBy[nodeID] = store.Key{Kind: osm.KindWay, ID: wayIDs[0]}
		case len(relIDs) > 0:
			res.ReferredBy[nodeID] = store.Key{Kind: osm.KindRelation, ID: relIDs[0]}
		}
	}

	return res
}
