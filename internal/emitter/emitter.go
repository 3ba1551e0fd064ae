// Package emitter implements the changeset emitter: it selects the
// tracked elements ready for upload, rewrites locally-created ids to
// negative placeholders, diffs modified/conflicting elements against
// their original snapshot, and serializes the result as an osmChange
// document.
package emitter

import (
	"fmt"
	"sort"

	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/store"
)

// Selectable reports whether el belongs in the emitted changeset: every
// tracked element that is not a referring surfacing element and is not
// still unresolved.
func Selectable(el store.TrackedElement) bool {
	return el.LocalState != store.StateReferring && el.Status != store.StatusUnresolved
}

// Select filters and orders tracked elements for emission: nodes, then
// ways, then relations, each ascending by id. Ascending-id order is this
// implementation's choice for the "query order" the id rewriter consumes
// (see rewrite.go); it is deterministic and stable across runs.
func Select(elements []store.TrackedElement) []store.TrackedElement {
	var out []store.TrackedElement
	for _, el := range elements {
		if Selectable(el) {
			out = append(out, el)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := kindRank(out[i].Key.Kind), kindRank(out[j].Key.Kind)
		if ri != rj {
			return ri < rj
		}
		return out[i].Key.ID < out[j].Key.ID
	})
	return out
}

func kindRank(k osm.Kind) int {
	switch k {
	case osm.KindNode:
		return 0
	case osm.KindWay:
		return 1
	case osm.KindRelation:
		return 2
	}
	return 3
}

// BuildRewriter constructs the id rewriter from the added-element subset
// of selected, in selection order (i.e. ascending id per kind).
func BuildRewriter(selected []store.TrackedElement) *IDRewriter {
	var nodes, ways, relations []int64
	for _, el := range selected {
		if el.LocalState != store.StateAdded {
			continue
		}
		switch el.Key.Kind {
		case osm.KindNode:
			nodes = append(nodes, el.Key.ID)
		case osm.KindWay:
			ways = append(ways, el.Key.ID)
		case osm.KindRelation:
			relations = append(relations, el.Key.ID)
		}
	}
	return NewIDRewriter(nodes, ways, relations)
}

// Emit builds the osmChange document for selected (already filtered by
// Select), assigning changesetID as the changeset attribute on every
// emitted element's version/meta.
func Emit(selected []store.TrackedElement, changesetID int64) (*osm.Change, error) {
	rewriter := BuildRewriter(selected)
	change := osm.NewChange()

	for _, el := range selected {
		action, payload, err := changeData(el)
		if err != nil {
			return nil, fmt.Errorf("emitter: element %s: %w", el.Key, err)
		}
		payload = rewriter.Rewrite(payload)
		setChangeset(&payload, changesetID)
		appendToSection(change, action, payload)
	}

	return change, nil
}

// action is an osmChange section name.
type action string

const (
	actionCreate action = "create"
	actionModify action = "modify"
	actionDelete action = "delete"
)

// changeData builds the per-element payload and target action from its
// local state.
func changeData(el store.TrackedElement) (action, osm.Element, error) {
	switch el.LocalState {
	case store.StateAdded:
		payload := setVersion(el.LocalSnapshot, 1)
		return actionCreate, payload, nil

	case store.StateDeleted:
		version := nextVersion(el)
		payload := setVersion(el.LocalSnapshot, version)
		return actionDelete, payload, nil

	case store.StateModified:
		if !el.HasOriginal {
			return "", osm.Element{}, fmt.Errorf("modified element missing original snapshot")
		}
		diff := Compute(el.LocalSnapshot, el.OriginalSnapshot)
		payload := Apply(diff, el.OriginalSnapshot)
		payload = setVersion(payload, nextVersion(el))
		return actionModify, payload, nil

	case store.StateConflicting:
		if !el.HasResolved {
			return "", osm.Element{}, fmt.Errorf("conflicting element has no resolution")
		}
		if !el.HasOriginal {
			return "", osm.Element{}, fmt.Errorf("conflicting element missing original snapshot")
		}
		diff := Compute(el.ResolvedSnapshot, el.OriginalSnapshot)
		payload := Apply(diff, el.OriginalSnapshot)
		version := nextVersion(el)
		payload = setVersion(payload, version)
		act := actionModify
		if !payload.Visible() {
			act = actionDelete
		}
		return act, payload, nil
	}
	return "", osm.Element{}, fmt.Errorf("unexpected local_state %q for emission", el.LocalState)
}

// nextVersion is upstream.version + 1, falling back to original.version +
// 1 when no upstream row exists (e.g. a deleted element upstream never
// saw touched since clone time).
func nextVersion(el store.TrackedElement) int64 {
	if el.HasUpstream {
		return el.UpstreamSnapshot.Version() + 1
	}
	if el.HasOriginal {
		return el.OriginalSnapshot.Version() + 1
	}
	return 1
}

func setVersion(el osm.Element, version int64) osm.Element {
	switch el.Kind {
	case osm.KindNode:
		n := *el.Node
		n.Version = version
		return osm.NodeElement(&n)
	case osm.KindWay:
		w := *el.Way
		w.Version = version
		return osm.WayElement(&w)
	case osm.KindRelation:
		r := *el.Relation
		r.Version = version
		return osm.RelationElement(&r)
	}
	return el
}

func setChangeset(el *osm.Element, changesetID int64) {
	switch el.Kind {
	case osm.KindNode:
		el.Node.Changeset = changesetID
	case osm.KindWay:
		el.Way.Changeset = changesetID
	case osm.KindRelation:
		el.Relation.Changeset = changesetID
	}
}

func appendToSection(change *osm.Change, act action, el osm.Element) {
	var section *osm.ActionSection
	switch act {
	case actionCreate:
		section = &change.Create
	case actionModify:
		section = &change.Modify
	case actionDelete:
		section = &change.Delete
	}
	switch el.Kind {
	case osm.KindNode:
		section.Nodes = append(section.Nodes, el.Node)
	case osm.KindWay:
		section.Ways = append(section.Ways, el.Way)
	case osm.KindRelation:
		section.Relations = append(section.Relations, el.Relation)
	}
}
