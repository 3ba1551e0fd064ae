package sqlstore

import (
	"encoding/xml"
	"fmt"

	"github.com/posm-tools/replay-core/internal/osm"
)

// encodeElement marshals el to its wire-format XML fragment for storage
// in a TEXT column. An empty (zero-value) element encodes to "".
func encodeElement(el osm.Element) (string, error) {
	switch el.Kind {
	case osm.KindNode:
		if el.Node == nil {
			return "", nil
		}
		return marshalNamed("node", el.Node)
	case osm.KindWay:
		if el.Way == nil {
			return "", nil
		}
		return marshalNamed("way", el.Way)
	case osm.KindRelation:
		if el.Relation == nil {
			return "", nil
		}
		return marshalNamed("relation", el.Relation)
	default:
		return "", nil
	}
}

func marshalNamed(name string, v interface{}) (string, error) {
	b, err := xml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("sqlstore: marshal %s: %w", name, err)
	}
	return string(b), nil
}

// decodeElement unmarshals a stored XML fragment back into an
// osm.Element of kind, or the zero Element if raw is empty.
func decodeElement(kind osm.Kind, raw string) (osm.Element, error) {
	if raw == "" {
		return osm.Element{}, nil
	}
	switch kind {
	case osm.KindNode:
		var n osm.Node
		if err := xml.Unmarshal([]byte(raw), &n); err != nil {
			return osm.Element{}, fmt.Errorf("sqlstore: unmarshal node: %w", err)
		}
		return osm.NodeElement(&n), nil
	case osm.KindWay:
		var w osm.Way
		if err := xml.Unmarshal([]byte(raw), &w); err != nil {
			return osm.Element{}, fmt.Errorf("sqlstore: unmarshal way: %w", err)
		}
		return osm.WayElement(&w), nil
	case osm.KindRelation:
		var r osm.Relation
		if err := xml.Unmarshal([]byte(raw), &r); err != nil {
			return osm.Element{}, fmt.Errorf("sqlstore: unmarshal relation: %w", err)
		}
		return osm.RelationElement(&r), nil
	default:
		return osm.Element{}, fmt.Errorf("sqlstore: unknown kind %q", kind)
	}
}
