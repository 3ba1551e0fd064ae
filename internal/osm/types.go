// Package osm defines the OSM primitive types shared across the
// reconciliation pipeline and the streaming XML codec used to read and
// write them.
package osm

import "time"

// Kind identifies an OSM primitive type.
type Kind string

const (
	KindNode     Kind = "node"
	KindWay      Kind = "way"
	KindRelation Kind = "relation"
)

// Tag is a single OSM key/value pair.
type Tag struct {
	Key   string `xml:"k,attr"`
	Value string `xml:"v,attr"`
}

// Member is a relation member reference. Type is always stored in its
// long form ("node", "way", "relation") internally; the short forms used
// on the wire ("n", "w", "r") are normalized at decode/rewrite time.
type Member struct {
	Type Kind   `xml:"type,attr"`
	Ref  int64  `xml:"ref,attr"`
	Role string `xml:"role,attr"`
}

// Meta carries the fields that identify who/when an edit was made. Of
// these, only Visible participates in conflict comparison (see Equal).
type Meta struct {
	Version   int64     `xml:"version,attr"`
	Timestamp time.Time `xml:"timestamp,attr"`
	UID       int64     `xml:"uid,attr,omitempty"`
	User      string    `xml:"user,attr,omitempty"`
	Changeset int64     `xml:"changeset,attr,omitempty"`
	Visible   bool      `xml:"visible,attr"`
}

// Node is an OSM node primitive.
type Node struct {
	ID  int64 `xml:"id,attr"`
	Meta
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Tags []Tag   `xml:"tag"`
}

// Way is an OSM way primitive.
type Way struct {
	ID  int64 `xml:"id,attr"`
	Meta
	Nodes []int64 `xml:"nd>ref"`
	Tags  []Tag   `xml:"tag"`
}

// Relation is an OSM relation primitive.
type Relation struct {
	ID  int64 `xml:"id,attr"`
	Meta
	Members []Member `xml:"member"`
	Tags    []Tag    `xml:"tag"`
}

// Element is a kind-tagged union over the three OSM primitive types,
// used anywhere the pipeline needs to carry a heterogeneous element
// without type-switching at every call site.
type Element struct {
	Kind     Kind
	Node     *Node
	Way      *Way
	Relation *Relation
}

// ID returns the element's OSM id regardless of kind.
func (e Element) ID() int64 {
	switch e.Kind {
	case KindNode:
		return e.Node.ID
	case KindWay:
		return e.Way.ID
	case KindRelation:
		return e.Relation.ID
	}
	return 0
}

// Version returns the element's version regardless of kind.
func (e Element) Version() int64 {
	switch e.Kind {
	case KindNode:
		return e.Node.Version
	case KindWay:
		return e.Way.Version
	case KindRelation:
		return e.Relation.Version
	}
	return 0
}

// Visible returns the element's visibility flag regardless of kind.
func (e Element) Visible() bool {
	switch e.Kind {
	case KindNode:
		return e.Node.Visible
	case KindWay:
		return e.Way.Visible
	case KindRelation:
		return e.Relation.Visible
	}
	return false
}

// Tags returns the element's tag list regardless of kind.
func (e Element) Tags() []Tag {
	switch e.Kind {
	case KindNode:
		return e.Node.Tags
	case KindWay:
		return e.Way.Tags
	case KindRelation:
		return e.Relation.Tags
	}
	return nil
}

// NodeElement wraps n as an Element.
func NodeElement(n *Node) Element { return Element{Kind: KindNode, Node: n} }

// WayElement wraps w as an Element.
func WayElement(w *Way) Element { return Element{Kind: KindWay, Way: w} }

// RelationElement wraps r as an Element.
func RelationElement(r *Relation) Element { return Element{Kind: KindRelation, Relation: r} }
