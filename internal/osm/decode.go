package osm

import (
	"encoding/xml"
	"fmt"
	"io"
)

// VisitFunc is called once per decoded element while streaming an OSM
// document. Returning an error aborts the decode.
type VisitFunc func(Element) error

// Decode streams a plain OSM XML document (an `<osm>` root containing
// top-level `<node>`/`<way>`/`<relation>` children, as produced by the
// original-AOI file, the local AOI export, and the upstream snapshot
// extract) and invokes visit once per element. Only one element is held
// in memory at a time regardless of file size.
func Decode(r io.Reader, visit VisitFunc) error {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("osm: decode token: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		el, handled, err := decodeOneElement(dec, start)
		if err != nil {
			return err
		}
		if !handled {
			continue
		}
		if err := visit(el); err != nil {
			return err
		}
	}
}

// ChangeVisitFunc is called once per element inside an osmChange document,
// along with the action section ("create", "modify", "delete") it was
// found under.
type ChangeVisitFunc func(action string, el Element) error

// DecodeChange streams an osmChange document (root `<osmChange>` with
// `<create>`, `<modify>`, `<delete>` children, each wrapping typed
// elements), as produced by local changeset payload files, and invokes
// visit once per element with the action it belongs to.
func DecodeChange(r io.Reader, visit ChangeVisitFunc) error {
	dec := xml.NewDecoder(r)
	var action string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("osm: decode change token: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "create", "modify", "delete":
				action = t.Name.Local
				continue
			}
			el, handled, err := decodeOneElement(dec, t)
			if err != nil {
				return err
			}
			if !handled {
				continue
			}
			if action == "" {
				return fmt.Errorf("osm: element %s/%d outside create/modify/delete section", t.Name.Local, el.ID())
			}
			if err := visit(action, el); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Local == action {
				action = ""
			}
		}
	}
}

func decodeOneElement(dec *xml.Decoder, start xml.StartElement) (Element, bool, error) {
	switch start.Name.Local {
	case "node":
		var n Node
		if err := dec.DecodeElement(&n, &start); err != nil {
			return Element{}, false, fmt.Errorf("osm: decode node: %w", err)
		}
		return NodeElement(&n), true, nil
	case "way":
		var w Way
		if err := dec.DecodeElement(&w, &start); err != nil {
			return Element{}, false, fmt.Errorf("osm: decode way: %w", err)
		}
		return WayElement(&w), true, nil
	case "relation":
		var rel Relation
		if err := dec.DecodeElement(&rel, &start); err != nil {
			return Element{}, false, fmt.Errorf("osm: decode relation: %w", err)
		}
		normalizeMemberKinds(&rel)
		return RelationElement(&rel), true, nil
	case "osm", "osmChange":
		// Document roots are descended into, not skipped.
		return Element{}, false, nil
	default:
		if err := dec.Skip(); err != nil {
			return Element{}, false, fmt.Errorf("osm: skip %s: %w", start.Name.Local, err)
		}
		return Element{}, false, nil
	}
}

// normalizeMemberKinds rewrites short-form member type codes (n/w/r) to
// their long form in place. Decoding applies this unconditionally so
// every Element in memory carries long-form kinds.
func normalizeMemberKinds(r *Relation) {
	for i := range r.Members {
		r.Members[i].Type = LongMemberKind(r.Members[i].Type)
	}
}

// LongMemberKind normalizes a possibly-short member type to its long
// form. Unknown values are returned unchanged so the caller can detect
// and report them as an invariant violation.
func LongMemberKind(k Kind) Kind {
	switch k {
	case "n":
		return KindNode
	case "w":
		return KindWay
	case "r":
		return KindRelation
	default:
		return k
	}
}
