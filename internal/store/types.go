// Package store defines the tracked-element model and the element
// store's resolution API: a keyed store of (kind, id) -> tracked
// element with insert, resolution-update, reset, and query operations.
package store

import (
	"fmt"

	"github.com/posm-tools/replay-core/internal/osm"
)

// LocalState classifies how a tracked element relates to the local
// changesets and upstream.
type LocalState string

const (
	StateAdded       LocalState = "added"
	StateModified    LocalState = "modified"
	StateDeleted     LocalState = "deleted"
	StateConflicting LocalState = "conflicting"
	StateReferring   LocalState = "referring"
)

// Status is the resolution progress of a tracked element.
type Status string

const (
	StatusResolved          Status = "resolved"
	StatusPartiallyResolved Status = "partially_resolved"
	StatusUnresolved        Status = "unresolved"
	StatusPushed            Status = "pushed"
)

// ResolvedFrom records the provenance of a resolution.
type ResolvedFrom string

const (
	ResolvedFromTheirs ResolvedFrom = "theirs"
	ResolvedFromOurs   ResolvedFrom = "ours"
	ResolvedFromCustom ResolvedFrom = "custom"
	ResolvedFromNone   ResolvedFrom = ""
)

// Key identifies a tracked element.
type Key struct {
	Kind osm.Kind
	ID   int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Kind, k.ID)
}

// TrackedElement is the per-(kind,id) record held by the element
// store: the element as it appeared in each of the three snapshots,
// its classification, and its resolution progress.
type TrackedElement struct {
	Key Key

	OriginalSnapshot osm.Element
	HasOriginal      bool
	LocalSnapshot    osm.Element
	HasLocal         bool
	UpstreamSnapshot osm.Element
	HasUpstream      bool

	LocalState LocalState
	Status     Status

	ResolvedSnapshot osm.Element
	HasResolved      bool
	ResolvedFrom     ResolvedFrom

	// ReferredBy is the canonical way/relation that promoted this node
	// into the conflict surfacing set, when LocalState == StateReferring's
	// inverse relationship: this field is set on the conflicting *node*,
	// pointing at its referring parent.
	ReferredBy *Key
}
