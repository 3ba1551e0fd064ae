// Package upstream defines the pipeline's external collaborators at
// interface level: the changeset collector, the snapshot acquirer, the
// local AOI exporter, and the upstream uploader. Concrete
// implementations live alongside these interfaces but the core pipeline
// (internal/pipeline) depends only on the interfaces.
package upstream

import (
	"context"
	"io"
)

// Changeset is one collected local changeset: its metadata document, its
// osmChange payload, and whether it has been folded into the tracker
// yet.
type Changeset struct {
	ID        int64
	Meta      string
	Payload   string
	Processed bool
}

// ChangesetCollector fetches local changeset metadata+payload by id:
// GET /{api}/0.6/changeset/{id} and .../download.
type ChangesetCollector interface {
	// Meta returns the changeset's metadata document, or ok=false if the
	// server responded 404 (the sweep has run past the last local
	// changeset id).
	Meta(ctx context.Context, id int64) (doc string, ok bool, err error)
	// Payload returns the changeset's osmChange download.
	Payload(ctx context.Context, id int64) (string, error)
}

// SnapshotAcquirer obtains the upstream AOI extract for a bbox via an
// Overpass-compatible endpoint ("(node(...)...);out meta;").
type SnapshotAcquirer interface {
	FetchUpstreamAOI(ctx context.Context, bbox BBox) (io.ReadCloser, error)
}

// BBox is a west/south/east/north bounding box in decimal degrees.
type BBox struct {
	West, South, East, North float64
}

// LocalExporter delegates the local AOI export to an out-of-process
// tool over two named FIFOs (request + result). A result line beginning
// with "0" is success; any other leading token is treated as an error
// message.
type LocalExporter interface {
	ExportLocalAOI(ctx context.Context, bbox BBox) (io.ReadCloser, error)
}

// Uploader drives the upstream changeset lifecycle: create, upload
// contents, close. Chunking above a fixed element-count limit is left
// as a future extension; UploadDiff always takes the whole diff in one
// call.
type Uploader interface {
	CreateChangeset(ctx context.Context, comment string) (changesetID int64, err error)
	UploadDiff(ctx context.Context, changesetID int64, osmChangeXML []byte) error
	CloseChangeset(ctx context.Context, changesetID int64) error
}
