// Package memorystore is the default, in-process element store
// backend: a mutex-guarded map keyed by (kind, id).
package memorystore

import (
	"context"
	"sync"

	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu       sync.Mutex
	elements map[store.Key]store.TrackedElement
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{elements: make(map[store.Key]store.TrackedElement)}
}

var _ store.Store = (*Store)(nil)

// Insert implements store.Store.
func (s *Store) Insert(_ context.Context, el store.TrackedElement, upsert bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.elements[el.Key]; exists && !upsert {
		return store.ErrExists
	}
	s.elements[el.Key] = el
	return nil
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, key store.Key) (store.TrackedElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[key]
	if !ok {
		return store.TrackedElement{}, store.ErrNotFound
	}
	return el, nil
}

// UpdateResolution implements store.Store. It writes the parent's
// resolution and cascades any ConflictingNodes payload to child node
// records in the same call.
func (s *Store) UpdateResolution(_ context.Context, key store.Key, res store.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.elements[key]
	if !ok {
		return store.ErrNotFound
	}
	el.ResolvedSnapshot = res.ResolvedSnapshot
	el.HasResolved = true
	el.ResolvedFrom = res.ResolvedFrom
	el.Status = s.resolutionStatus(el, res.ConflictingNodes)
	s.elements[key] = el

	for childKey, snapshot := range res.ConflictingNodes {
		child, ok := s.elements[childKey]
		if !ok {
			continue
		}
		child.ResolvedSnapshot = snapshot
		child.HasResolved = true
		child.ResolvedFrom = res.ResolvedFrom
		child.Status = store.StatusResolved
		s.elements[childKey] = child
	}
	return nil
}

// resolutionStatus picks resolved vs partially_resolved: resolved when
// every conflicting child that names el as its canonical parent is
// included in cascaded, or when el has no such children (a directly
// resolved primitive); partially_resolved otherwise.
func (s *Store) resolutionStatus(el store.TrackedElement, cascaded map[store.Key]osm.Element) store.Status {
	for childKey, child := range s.elements {
		if child.ReferredBy != nil && *child.ReferredBy == el.Key {
			if _, ok := cascaded[childKey]; !ok {
				return store.StatusPartiallyResolved
			}
		}
	}
	return store.StatusResolved
}

// ResetElement implements store.Store.
func (s *Store) ResetElement(_ context.Context, key store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.elements[key]
	if !ok {
		return store.ErrNotFound
	}
	el.ResolvedSnapshot = osm.Element{}
	el.HasResolved = false
	el.ResolvedFrom = store.ResolvedFromNone
	el.Status = store.StatusUnresolved
	s.elements[key] = el

	for k, child := range s.elements {
		if child.ReferredBy != nil && *child.ReferredBy == key {
			child.ResolvedSnapshot = osm.Element{}
			child.HasResolved = false
			child.ResolvedFrom = store.ResolvedFromNone
			child.Status = store.StatusUnresolved
			s.elements[k] = child
		}
	}
	return nil
}

// Clear implements store.Store.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = make(map[store.Key]store.TrackedElement)
	return nil
}

// Query implements store.Store.
func (s *Store) Query(_ context.Context, filter store.QueryFilter) ([]store.TrackedElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.TrackedElement
	for key, el := range s.elements {
		if filter.Kind != "" && key.Kind != filter.Kind {
			continue
		}
		if !matches(s.elements, el, filter.Query) {
			continue
		}
		if filter.Query != store.QueryAll &&
			el.LocalState == store.StateConflicting && key.Kind == osm.KindNode && !nodeHasTags(el) {
			// Node visibility rule: untagged conflicting nodes are only
			// surfaced through their referring parent. QueryAll bypasses it
			// because the emitter must still upload them once resolved.
			continue
		}
		out = append(out, el)
	}
	return out, nil
}

func nodeHasTags(el store.TrackedElement) bool {
	if el.HasLocal && len(el.LocalSnapshot.Tags()) > 0 {
		return true
	}
	if el.HasUpstream && len(el.UpstreamSnapshot.Tags()) > 0 {
		return true
	}
	return false
}

func matches(all map[store.Key]store.TrackedElement, el store.TrackedElement, query store.QueryKind) bool {
	switch query {
	case store.QueryAll:
		return true
	case store.QueryAdded:
		return el.LocalState == store.StateAdded
	case store.QueryReferring:
		return el.LocalState == store.StateReferring
	case store.QueryConflicting:
		if el.Status == store.StatusResolved {
			return false
		}
		if el.LocalState == store.StateConflicting {
			return true
		}
		if el.LocalState == store.StateReferring {
			return !referringParentResolved(all, el)
		}
		return false
	case store.QueryResolved:
		if el.Status != store.StatusResolved {
			return false
		}
		if el.LocalState == store.StateConflicting {
			return true
		}
		if el.LocalState == store.StateReferring {
			return referringParentResolved(all, el)
		}
		return false
	case store.QueryPartiallyResolved:
		return el.Status == store.StatusPartiallyResolved
	default:
		return false
	}
}

// referringParentResolved reports whether every conflicting node that
// points at this referring element (via ReferredBy) has been resolved.
// A referring way/relation has no status of its own in the upstream
// sense; its conflict surfacing tracks the children that named it as
// their canonical parent.
func referringParentResolved(all map[store.Key]store.TrackedElement, referring store.TrackedElement) bool {
	resolvedAny := false
	for _, el := range all {
		if el.ReferredBy == nil || *el.ReferredBy != referring.Key {
			continue
		}
		resolvedAny = true
		if el.Status != store.StatusResolved {
			return false
		}
	}
	return resolvedAny
}
