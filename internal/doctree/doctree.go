package doctree

import "regexp"

// NodeType identifies the kind of a node in an editor document.
type NodeType string

const (
	TypeDoc         NodeType = "doc"
	TypeText        NodeType = "text"
	TypeParagraph   NodeType = "paragraph"
	TypeHeading     NodeType = "heading"
	TypeBulletList  NodeType = "bulletList"
	TypeOrderedList NodeType = "orderedList"
	TypeListItem    NodeType = "listItem"
	TypeBlockquote  NodeType = "blockquote"
	TypeHardBreak   NodeType = "hardBreak"
	TypeVariable    NodeType = "variable"

	// TypeMention is what the editor's suggestion extension emits for a variable.
	TypeMention NodeType = "mention"
)

// Common mark types.
const (
	MarkBold   = "bold"
	MarkItalic = "italic"
)

// Mark is an inline formatting annotation on a text node.
type Mark struct {
	Type  string         `json:"type" yaml:"type"`
	Attrs map[string]any `json:"attrs,omitzero" yaml:"attrs,omitempty"`
}

// Node is one element of a document tree. Text nodes carry Text and Marks,
// block nodes carry Content, variable nodes carry Attrs["id"] and Attrs["label"].
// Children are owned by their parent and never shared. Empty but present
// containers survive a JSON round trip; absent ones stay absent.
type Node struct {
	Type    NodeType       `json:"type" yaml:"type"`
	Text    string         `json:"text,omitempty" yaml:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitzero" yaml:"marks,omitempty"`
	Attrs   map[string]any `json:"attrs,omitzero" yaml:"attrs,omitempty"`
	Content []*Node        `json:"content,omitzero" yaml:"content,omitempty"`
}

var pathRe = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+){0,2}$`)

// ValidPath reports whether id is a dotted variable path of 1-3 segments.
func ValidPath(id string) bool {
	return pathRe.MatchString(id)
}

// NewText returns a text node.
func NewText(text string, marks ...Mark) *Node {
	n := &Node{Type: TypeText, Text: text}
	if len(marks) > 0 {
		n.Marks = marks
	}
	return n
}

// NewBlock returns a block node of type t with the given children.
func NewBlock(t NodeType, children ...*Node) *Node {
	return &Node{Type: t, Content: children}
}

// NewHeading returns a heading block of the given level.
func NewHeading(level int, children ...*Node) *Node {
	return &Node{Type: TypeHeading, Attrs: map[string]any{"level": level}, Content: children}
}

// NewVariable returns a variable reference node.
func NewVariable(id, label string) *Node {
	return &Node{Type: TypeVariable, Attrs: map[string]any{"id": id, "label": label}}
}

// NewDoc returns a document root.
func NewDoc(children ...*Node) *Node {
	return NewBlock(TypeDoc, children...)
}

// IsVariable reports whether n is a variable reference with a well-formed id.
// Variable nodes with a malformed id are treated as opaque pass-through nodes.
func (n *Node) IsVariable() bool {
	if n == nil || (n.Type != TypeVariable && n.Type != TypeMention) {
		return false
	}
	return ValidPath(n.VariableID())
}

// VariableID returns the raw id attribute of a variable node.
func (n *Node) VariableID() string {
	id, _ := n.Attrs["id"].(string)
	return id
}

// VariableLabel returns the display label attribute of a variable node.
func (n *Node) VariableLabel() string {
	label, _ := n.Attrs["label"].(string)
	return label
}

// HeadingLevel returns the heading level, 0 if absent. Decoded JSON carries
// numbers as float64, nodes built in Go carry int.
func (n *Node) HeadingLevel() int {
	switch v := n.Attrs["level"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// HasMark reports whether the node carries a mark of the given type.
func (n *Node) HasMark(t string) bool {
	for _, m := range n.Marks {
		if m.Type == t {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := n.shallowClone()
	if n.Content != nil {
		out.Content = make([]*Node, 0, len(n.Content))
		for _, c := range n.Content {
			if c != nil {
				out.Content = append(out.Content, c.Clone())
			}
		}
	}
	return out
}

// shallowClone copies everything except Content.
func (n *Node) shallowClone() *Node {
	return &Node{
		Type:  n.Type,
		Text:  n.Text,
		Marks: cloneMarks(n.Marks),
		Attrs: cloneAttrs(n.Attrs),
	}
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Content {
		Walk(c, fn)
	}
}

func cloneMarks(marks []Mark) []Mark {
	if marks == nil {
		return nil
	}
	out := make([]Mark, len(marks))
	for i, m := range marks {
		out[i] = Mark{Type: m.Type, Attrs: cloneAttrs(m.Attrs)}
	}
	return out
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAttrs(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
