package doctree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind tells which representation a Document holds.
type Kind int

const (
	KindEmpty Kind = iota
	KindTree
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindTree:
		return "tree"
	case KindLegacy:
		return "legacy"
	}
	return "empty"
}

// Document is a template body: a node tree, a legacy string with inline
// @category.field markers, or empty. Empty documents keep the raw JSON they
// were decoded from so that malformed input can be echoed back unchanged.
type Document struct {
	kind Kind
	root *Node
	text string
	raw  json.RawMessage
}

// Tree wraps a node tree. A nil root yields an empty document.
func Tree(root *Node) Document {
	if root == nil {
		return Document{}
	}
	return Document{kind: KindTree, root: root}
}

// Legacy wraps a legacy marker string.
func Legacy(s string) Document {
	return Document{kind: KindLegacy, text: s}
}

// Kind returns the representation held by d.
func (d Document) Kind() Kind { return d.kind }

// Root returns the tree root, nil unless d is a tree.
func (d Document) Root() *Node { return d.root }

// Text returns the legacy string, empty unless d is a legacy document.
func (d Document) Text() string { return d.text }

// IsMalformed reports whether d was decoded from a value that is neither a
// node tree nor a string (null is not malformed, just empty).
func (d Document) IsMalformed() bool {
	return d.kind == KindEmpty && len(d.raw) > 0 && !bytes.Equal(d.raw, []byte("null"))
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := Document{kind: d.kind, text: d.text, root: d.root.Clone()}
	if d.raw != nil {
		out.raw = append(json.RawMessage(nil), d.raw...)
	}
	return out
}

// Parse decodes JSON bytes into a Document. It never fails: anything that is
// not a string or a well-formed node tree becomes an empty document.
func Parse(data []byte) Document {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Document{}
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return Document{}
	}
	switch t := v.(type) {
	case string:
		return Legacy(t)
	case map[string]any:
		root, err := decodeNode(t, 0)
		if err == nil {
			return Tree(root)
		}
	}
	return Document{raw: append(json.RawMessage(nil), trimmed...)}
}

// Decode converts an arbitrary value (a decoded JSON/YAML value, a string, a
// *Node, raw JSON bytes) into a Document.
func Decode(v any) Document {
	switch t := v.(type) {
	case nil:
		return Document{}
	case Document:
		return t
	case *Node:
		return Tree(t)
	case string:
		return Legacy(t)
	case json.RawMessage:
		return Parse(t)
	case []byte:
		return Parse(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Document{}
	}
	return Parse(data)
}

// MarshalJSON encodes trees as node objects and legacy documents as strings.
func (d Document) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case KindTree:
		return json.Marshal(d.root)
	case KindLegacy:
		return json.Marshal(d.text)
	}
	if len(d.raw) > 0 {
		return d.raw, nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes any JSON value; malformed shapes become empty.
func (d *Document) UnmarshalJSON(data []byte) error {
	*d = Parse(data)
	return nil
}

// MarshalYAML mirrors MarshalJSON for YAML output.
func (d Document) MarshalYAML() (any, error) {
	switch d.kind {
	case KindTree:
		return d.root, nil
	case KindLegacy:
		return d.text, nil
	}
	if len(d.raw) > 0 {
		var v any
		if err := json.Unmarshal(d.raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, nil
}

const maxDepth = 256

var errMalformed = errors.New("malformed node")

func decodeNode(m map[string]any, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", errMalformed, maxDepth)
	}
	typ, ok := m["type"].(string)
	if !ok || strings.TrimSpace(typ) == "" {
		return nil, fmt.Errorf("%w: missing type", errMalformed)
	}
	n := &Node{Type: NodeType(typ)}

	if v, present := m["text"]; present {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: text of %s node is not a string", errMalformed, typ)
		}
		n.Text = s
	}
	if v, present := m["attrs"]; present && v != nil {
		attrs, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: attrs of %s node is not an object", errMalformed, typ)
		}
		n.Attrs = attrs
	}
	if v, present := m["marks"]; present && v != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: marks of %s node is not an array", errMalformed, typ)
		}
		n.Marks = make([]Mark, 0, len(list))
		for _, item := range list {
			mm, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: mark is not an object", errMalformed)
			}
			mt, ok := mm["type"].(string)
			if !ok {
				return nil, fmt.Errorf("%w: mark missing type", errMalformed)
			}
			mark := Mark{Type: mt}
			if a, ok := mm["attrs"].(map[string]any); ok {
				mark.Attrs = a
			}
			n.Marks = append(n.Marks, mark)
		}
	}
	if v, present := m["content"]; present && v != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: content of %s node is not an array", errMalformed, typ)
		}
		n.Content = make([]*Node, 0, len(list))
		for _, item := range list {
			cm, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: child of %s node is not an object", errMalformed, typ)
			}
			child, err := decodeNode(cm, depth+1)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
	}
	return n, nil
}
