package store

import (
	"context"
	"fmt"

	"github.com/posm-tools/replay-core/internal/osm"
)

// ErrNotFound is returned by Store methods when a key does not exist.
var ErrNotFound = fmt.Errorf("store: element not found")

// ErrExists is returned by Insert when the key already exists and upsert
// was not requested.
var ErrExists = fmt.Errorf("store: element already exists")

// Resolution is the payload of an update-resolution call.
// ConflictingNodes cascades a parent (way/relation) resolution down to
// child node snapshots in the same transactional call: a message to the
// store, not a change of ownership.
type Resolution struct {
	ResolvedSnapshot osm.Element
	ResolvedFrom     ResolvedFrom
	// ConflictingNodes maps child node key -> the resolved snapshot chosen
	// for that node as part of resolving the parent.
	ConflictingNodes map[Key]osm.Element
}

// Store is the element store and resolution API.
type Store interface {
	// Insert adds a newly tracked element. It fails with ErrExists if the
	// key is already present, unless upsert is true.
	Insert(ctx context.Context, el TrackedElement, upsert bool) error

	// Get retrieves a single tracked element.
	Get(ctx context.Context, key Key) (TrackedElement, error)

	// UpdateResolution writes a resolution for key, cascading to any
	// listed conflicting child nodes in the same call.
	UpdateResolution(ctx context.Context, key Key, res Resolution) error

	// ResetElement clears a resolution, returning the element (and any
	// cascaded children) to unresolved.
	ResetElement(ctx context.Context, key Key) error

	// Query returns tracked elements matching filter.
	Query(ctx context.Context, filter QueryFilter) ([]TrackedElement, error)

	// Clear removes every tracked element. Used by pipeline reset.
	Clear(ctx context.Context) error
}

// QueryKind selects one of the named listing semantics.
type QueryKind string

const (
	QueryConflicting       QueryKind = "conflicting"
	QueryResolved          QueryKind = "resolved"
	QueryPartiallyResolved QueryKind = "partially_resolved"
	QueryReferring         QueryKind = "referring"
	QueryAdded             QueryKind = "added"
	// QueryAll returns every tracked element with no visibility filtering;
	// it backs the all-changes listing and the emitter's selection pass.
	QueryAll QueryKind = "all"
)

// QueryFilter selects tracked elements by query semantics, optionally
// narrowed to one kind.
type QueryFilter struct {
	Query QueryKind
	Kind  osm.Kind // zero value ("") means all kinds
}
