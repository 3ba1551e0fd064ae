// Package conflict implements the Conflict Detector: the upstream-changed
// filter and structural-equality comparison that decide which touched
// elements conflict with concurrent upstream edits.
package conflict

import (
	"github.com/posm-tools/replay-core/internal/aoiload"
	"github.com/posm-tools/replay-core/internal/osm"
)

// Detect returns the set of ids, among candidateIDs, that conflict: the
// upstream-changed filter passes (upstream version strictly exceeds the
// original version) and structural equality fails between the local and
// upstream snapshots.
func Detect(kind osm.Kind, candidateIDs map[int64]bool, local, upstream *aoiload.Snapshot, originalVersions map[int64]int64) map[int64]bool {
	conflicting := make(map[int64]bool)
	for id := range candidateIDs {
		if !UpstreamChanged(kind, id, upstream, originalVersions) {
			continue
		}
		localEl := local.Element(kind, id)
		upstreamEl := upstream.Element(kind, id)
		if !osm.Equal(localEl, upstreamEl) {
			conflicting[id] = true
		}
	}
	return conflicting
}

// UpstreamChanged reports whether id is a conflict candidate: it must be
// present in the upstream snapshot (absence is skipped, not a conflict)
// with a version strictly greater than its recorded original version
// (unknown-in-original ids are also skipped).
func UpstreamChanged(kind osm.Kind, id int64, upstream *aoiload.Snapshot, originalVersions map[int64]int64) bool {
	origVersion, known := originalVersions[id]
	if !known {
		return false
	}
	if !upstream.Has(kind, id) {
		return false
	}
	upstreamVersion := upstream.Element(kind, id).Version()
	return upstreamVersion > origVersion
}
