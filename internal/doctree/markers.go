package doctree

import (
	"regexp"
	"strings"
)

// markerRe matches legacy inline markers such as @wohnung.miete.
// Segments are letters, digits and underscore; 2-3 segments per marker.
var markerRe = regexp.MustCompile(`@([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+){1,2})`)

// Marker is one @category.field occurrence in a legacy string.
type Marker struct {
	Start int // byte offset of '@'
	End   int // byte offset after the last segment
	ID    string
}

// FindMarkers returns the markers in s in order of appearance. A marker
// directly preceded by a word character (as in an e-mail address) is ignored.
func FindMarkers(s string) []Marker {
	var out []Marker
	for _, m := range markerRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > 0 && isWordByte(s[m[0]-1]) {
			continue
		}
		out = append(out, Marker{Start: m[0], End: m[1], ID: s[m[2]:m[3]]})
	}
	return out
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// References returns every distinct variable id referenced by d, in order of
// first occurrence.
func (d Document) References() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	switch d.kind {
	case KindTree:
		Walk(d.root, func(n *Node) bool {
			if n.IsVariable() {
				add(n.VariableID())
				return false
			}
			return true
		})
	case KindLegacy:
		for _, m := range FindMarkers(d.text) {
			add(m.ID)
		}
	}
	return ids
}

// Substitute returns a copy of d where every variable reference is replaced
// by the text fn returns for its id. In a tree, the variable node becomes a
// text node carrying the variable's marks; an empty replacement drops the
// node. All other nodes are copied unchanged. d itself is never modified.
func (d Document) Substitute(fn func(id string) (string, error)) (Document, error) {
	switch d.kind {
	case KindTree:
		root, err := substituteNode(d.root, fn)
		if err != nil {
			return Document{}, err
		}
		if root == nil {
			root = &Node{Type: TypeText}
		}
		return Tree(root), nil
	case KindLegacy:
		markers := FindMarkers(d.text)
		if len(markers) == 0 {
			return d, nil
		}
		var sb strings.Builder
		last := 0
		for _, m := range markers {
			sb.WriteString(d.text[last:m.Start])
			text, err := fn(m.ID)
			if err != nil {
				return Document{}, err
			}
			sb.WriteString(text)
			last = m.End
		}
		sb.WriteString(d.text[last:])
		return Legacy(sb.String()), nil
	}
	return d.Clone(), nil
}

func substituteNode(n *Node, fn func(id string) (string, error)) (*Node, error) {
	if n.IsVariable() {
		text, err := fn(n.VariableID())
		if err != nil {
			return nil, err
		}
		if text == "" {
			return nil, nil
		}
		return &Node{Type: TypeText, Text: text, Marks: cloneMarks(n.Marks)}, nil
	}
	out := n.shallowClone()
	if n.Content != nil {
		out.Content = make([]*Node, 0, len(n.Content))
		for _, c := range n.Content {
			if c == nil {
				continue
			}
			sub, err := substituteNode(c, fn)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				out.Content = append(out.Content, sub)
			}
		}
	}
	return out, nil
}

// LiftMarkers returns a copy of n where legacy @markers inside text nodes are
// split out into variable nodes. label supplies each variable's display label.
func LiftMarkers(n *Node, label func(id string) string) *Node {
	if n == nil {
		return nil
	}
	out := n.shallowClone()
	if n.Content == nil {
		return out
	}
	out.Content = make([]*Node, 0, len(n.Content))
	for _, c := range n.Content {
		if c == nil {
			continue
		}
		if c.Type != TypeText {
			out.Content = append(out.Content, LiftMarkers(c, label))
			continue
		}
		out.Content = append(out.Content, splitText(c, label)...)
	}
	return out
}

func splitText(n *Node, label func(id string) string) []*Node {
	markers := FindMarkers(n.Text)
	if len(markers) == 0 {
		return []*Node{n.shallowClone()}
	}
	var out []*Node
	last := 0
	for _, m := range markers {
		if m.Start > last {
			out = append(out, &Node{Type: TypeText, Text: n.Text[last:m.Start], Marks: cloneMarks(n.Marks)})
		}
		v := NewVariable(m.ID, label(m.ID))
		v.Marks = cloneMarks(n.Marks)
		out = append(out, v)
		last = m.End
	}
	if last < len(n.Text) {
		out = append(out, &Node{Type: TypeText, Text: n.Text[last:], Marks: cloneMarks(n.Marks)})
	}
	return out
}
