package aoiload

import (
	"fmt"
	"io"

	"github.com/posm-tools/replay-core/internal/osm"
)

// Versions holds per-id version numbers for every element kind, read
// from the original AOI snapshot. The Conflict Detector consults these
// to apply the upstream-changed filter.
type Versions struct {
	Nodes     map[int64]int64
	Ways      map[int64]int64
	Relations map[int64]int64
}

// ForKind returns the version map for kind.
func (v *Versions) ForKind(kind osm.Kind) map[int64]int64 {
	switch kind {
	case osm.KindNode:
		return v.Nodes
	case osm.KindWay:
		return v.Ways
	case osm.KindRelation:
		return v.Relations
	}
	return nil
}

// LoadVersions streams r (the original-AOI snapshot) and records every
// element's version, regardless of whether it is in the touched set:
// the Conflict Detector needs an original version for any id a later
// stage might ask about.
func LoadVersions(r io.Reader) (*Versions, error) {
	v := &Versions{
		Nodes:     make(map[int64]int64),
		Ways:      make(map[int64]int64),
		Relations: make(map[int64]int64),
	}
	err := osm.Decode(r, func(el osm.Element) error {
		switch el.Kind {
		case osm.KindNode:
			v.Nodes[el.ID()] = el.Version()
		case osm.KindWay:
			v.Ways[el.ID()] = el.Version()
		case osm.KindRelation:
			v.Relations[el.ID()] = el.Version()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("aoiload: load versions: %w", err)
	}
	return v, nil
}
