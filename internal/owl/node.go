// Package owl writes semantic events as an OWL/RDF experiment document.
package owl

import (
	"encoding/xml"
	"io"
	"strings"
)

const indentStep = "\t"

// Attr is one prefixed attribute, rendered as prefix:name="value".
type Attr struct {
	Name  string
	Value string
}

// Node is an XML element. A node carries either a value or children, never
// both; Comment, if set, is written on the line above the element.
type Node struct {
	Name     string
	Attrs    []Attr
	Value    string
	Children []Node
	Comment  string
}

// Resource builds an element whose single rdf:resource attribute points at
// the entity-prefixed id, e.g. <knowrob:startTime rdf:resource="&log;timepoint_1"/>.
func Resource(name, prefix, id string) Node {
	return Node{Name: name, Attrs: []Attr{{Name: "rdf:resource", Value: entityRef(prefix, id)}}}
}

// Individual builds an owl:NamedIndividual of the knowrob class.
func Individual(prefix, id, class string) Node {
	return Node{
		Name:     "owl:NamedIndividual",
		Attrs:    []Attr{{Name: "rdf:about", Value: entityRef(prefix, id)}},
		Children: []Node{Resource("rdf:type", "knowrob", class)},
	}
}

// Add appends children and returns the node for chaining.
func (n *Node) Add(children ...Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// entityRef is kept unescaped: the entity is declared in the DOCTYPE.
func entityRef(prefix, id string) string {
	return "&" + prefix + ";" + escape(id)
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func (n Node) write(w *strings.Builder, indent string) {
	if n.Comment != "" {
		w.WriteString("\n" + indent + "<!-- " + n.Comment + " -->\n")
	}
	w.WriteString(indent + "<" + n.Name)
	for i, a := range n.Attrs {
		if i > 0 {
			w.WriteString("\n" + indent + indentStep)
		}
		w.WriteString(" " + a.Name + "=\"" + a.Value + "\"")
	}
	switch {
	case len(n.Children) == 0 && n.Value == "":
		w.WriteString("/>\n")
	case n.Value != "":
		w.WriteString(">" + escape(n.Value) + "</" + n.Name + ">\n")
	default:
		w.WriteString(">\n")
		for _, c := range n.Children {
			c.write(w, indent+indentStep)
		}
		w.WriteString(indent + "</" + n.Name + ">\n")
	}
}

// WriteTo renders the node and its subtree.
func (n Node) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	n.write(&b, "")
	c, err := io.WriteString(w, b.String())
	return int64(c), err
}
