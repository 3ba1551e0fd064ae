// Package tracker implements the Change Tracker: a single pass over local
// changeset payloads that classifies every touched element id as added,
// modified, deleted, or referenced.
package tracker

import (
	"io"

	"github.com/posm-tools/replay-core/internal/osm"
)

// kindSet is a mutable per-kind set of element ids.
type kindSet struct {
	Nodes     map[int64]bool
	Ways      map[int64]bool
	Relations map[int64]bool
}

func newKindSet() kindSet {
	return kindSet{
		Nodes:     make(map[int64]bool),
		Ways:      make(map[int64]bool),
		Relations: make(map[int64]bool),
	}
}

func (s kindSet) forKind(kind osm.Kind) map[int64]bool {
	switch kind {
	case osm.KindNode:
		return s.Nodes
	case osm.KindWay:
		return s.Ways
	case osm.KindRelation:
		return s.Relations
	}
	return nil
}

// Tracker accumulates the Added/Modified/Deleted/Referenced classification
// across a sequence of changeset payloads. The zero value is not usable;
// construct with New.
type Tracker struct {
	Added      kindSet
	Modified   kindSet
	Deleted    kindSet
	Referenced kindSet
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		Added:      newKindSet(),
		Modified:   newKindSet(),
		Deleted:    newKindSet(),
		Referenced: newKindSet(),
	}
}

// Observe classifies one element occurrence, in the file order it was
// read. The action label from the enclosing osmChange section is not
// consulted: classification follows the element's own version/visible
// fields, matching the upstream server's semantics (a version-1 element
// is always a creation regardless of which section it was filed under).
func (t *Tracker) Observe(el osm.Element) {
	added := t.Added.forKind(el.Kind)
	deleted := t.Deleted.forKind(el.Kind)
	modified := t.Modified.forKind(el.Kind)
	referenced := t.Referenced.forKind(el.Kind)

	id := el.ID()
	switch {
	case el.Version() == 1:
		added[id] = true
	case !el.Visible():
		if added[id] {
			// A local creation immediately deleted within the same
			// sequence is a no-op.
			delete(added, id)
		} else {
			deleted[id] = true
			referenced[id] = true
		}
	default:
		if !added[id] {
			modified[id] = true
			referenced[id] = true
		}
		// Already-added elements that are further modified remain
		// "added" with their final attribute state; nothing to do.
	}
}

// ObserveAll classifies every element decoded from an osmChange payload,
// in file order.
func (t *Tracker) ObserveAll(r io.Reader) error {
	return osm.DecodeChange(r, func(_ string, el osm.Element) error {
		t.Observe(el)
		return nil
	})
}

// TouchedSet returns the union, per kind, of added ∪ modified ∪ deleted —
// every element id that was touched directly by a local changeset.
func (t *Tracker) TouchedSet(kind osm.Kind) map[int64]bool {
	out := make(map[int64]bool)
	for id := range t.Added.forKind(kind) {
		out[id] = true
	}
	for id := range t.Modified.forKind(kind) {
		out[id] = true
	}
	for id := range t.Deleted.forKind(kind) {
		out[id] = true
	}
	return out
}

// ReferencedSet returns the referenced set for kind, a superset of
// modified ∪ deleted (added ids are excluded since no upstream row
// exists for them to diff against).
func (t *Tracker) ReferencedSet(kind osm.Kind) map[int64]bool {
	return t.Referenced.forKind(kind)
}

// IsAdded reports whether id was classified as added, for kind.
func (t *Tracker) IsAdded(kind osm.Kind, id int64) bool {
	return t.Added.forKind(kind)[id]
}

// IsDeleted reports whether id was classified as deleted, for kind.
func (t *Tracker) IsDeleted(kind osm.Kind, id int64) bool {
	return t.Deleted.forKind(kind)[id]
}

// IsModified reports whether id was classified as modified, for kind.
func (t *Tracker) IsModified(kind osm.Kind, id int64) bool {
	return t.Modified.forKind(kind)[id]
}
