package osm

import (
	"encoding/xml"
	"fmt"
	"io"
)

// ActionSection is one of the three osmChange containers. Elements
// within each are emitted in the order they were appended: nodes, then
// ways, then relations, per the emitter's nodes->ways->relations
// ordering contract.
type ActionSection struct {
	Nodes     []*Node     `xml:"node"`
	Ways      []*Way      `xml:"way"`
	Relations []*Relation `xml:"relation"`
}

// Empty reports whether the section has no elements at all.
func (s ActionSection) Empty() bool {
	return len(s.Nodes) == 0 && len(s.Ways) == 0 && len(s.Relations) == 0
}

// Change is an in-memory osmChange document.
type Change struct {
	XMLName xml.Name      `xml:"osmChange"`
	Version string        `xml:"version,attr"`
	Create  ActionSection `xml:"create"`
	Modify  ActionSection `xml:"modify"`
	Delete  ActionSection `xml:"delete"`
}

// NewChange returns an empty osmChange document at protocol version 0.6.
func NewChange() *Change {
	return &Change{Version: "0.6"}
}

// Document is an in-memory plain `<osm>` document, as written for the
// referenced-elements sub-OSM files the external GeoJSON converter
// consumes.
type Document struct {
	XMLName   xml.Name    `xml:"osm"`
	Version   string      `xml:"version,attr"`
	Nodes     []*Node     `xml:"node"`
	Ways      []*Way      `xml:"way"`
	Relations []*Relation `xml:"relation"`
}

// NewDocument returns an empty OSM document at protocol version 0.6.
func NewDocument() *Document {
	return &Document{Version: "0.6"}
}

// EncodeDocument serializes d as a plain OSM XML document.
func EncodeDocument(w io.Writer, d *Document) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("osm: write header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("osm: encode document: %w", err)
	}
	return enc.Flush()
}

// EncodeChange serializes c as an osmChange XML document.
func EncodeChange(w io.Writer, c *Change) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("osm: write header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("osm: encode change: %w", err)
	}
	return enc.Flush()
}
