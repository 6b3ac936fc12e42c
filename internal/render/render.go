// Package render turns processed documents into exportable formats.
package render

import (
	"strconv"
	"strings"

	"github.com/dgallion1/mietdoc/internal/doctree"
)

// PlainText renders doc as text. Blocks are separated by a blank line, list
// items are prefixed with "- " or "1. ", unprocessed variables appear as
// @id.
func PlainText(doc doctree.Document) string {
	switch doc.Kind() {
	case doctree.KindLegacy:
		return doc.Text()
	case doctree.KindTree:
		w := &textWriter{}
		w.blocks(doc.Root().Content, "")
		return strings.TrimRight(w.sb.String(), "\n") + "\n"
	}
	return ""
}

// Markdown renders doc as CommonMark with bold, italic and link marks.
func Markdown(doc doctree.Document) string {
	switch doc.Kind() {
	case doctree.KindLegacy:
		return doc.Text()
	case doctree.KindTree:
		w := &textWriter{markdown: true}
		w.blocks(doc.Root().Content, "")
		return strings.TrimRight(w.sb.String(), "\n") + "\n"
	}
	return ""
}

type textWriter struct {
	sb       strings.Builder
	markdown bool
}

// blocks writes each block followed by a blank line. prefix is prepended to
// every line (blockquotes, list indentation).
func (w *textWriter) blocks(nodes []*doctree.Node, prefix string) {
	for _, n := range nodes {
		w.block(n, prefix)
	}
}

func (w *textWriter) block(n *doctree.Node, prefix string) {
	switch n.Type {
	case doctree.TypeHeading:
		head := ""
		if w.markdown {
			level := n.HeadingLevel()
			if level < 1 {
				level = 1
			}
			head = strings.Repeat("#", level) + " "
		}
		w.line(prefix, head+w.inline(n.Content))
	case doctree.TypeParagraph:
		w.line(prefix, w.inline(n.Content))
	case doctree.TypeBlockquote:
		q := "> "
		if !w.markdown {
			q = "  "
		}
		sub := textWriter{markdown: w.markdown}
		sub.blocks(n.Content, prefix+q)
		w.sb.WriteString(strings.TrimSuffix(sub.sb.String(), strings.TrimRight(prefix+q, " ")+"\n"))
		w.sb.WriteString(strings.TrimRight(prefix, " ") + "\n")
	case doctree.TypeBulletList, doctree.TypeOrderedList:
		start := 1
		if s, ok := n.Attrs["start"]; ok {
			start = toInt(s, 1)
		}
		for i, item := range n.Content {
			marker := "- "
			if n.Type == doctree.TypeOrderedList {
				marker = strconv.Itoa(start+i) + ". "
			}
			w.listItem(item, prefix, marker)
		}
		w.sb.WriteString(strings.TrimRight(prefix, " ") + "\n")
	case "horizontalRule":
		w.line(prefix, "---")
	default:
		if len(n.Content) > 0 && isBlock(n.Content[0]) {
			w.blocks(n.Content, prefix)
		} else if text := w.inline([]*doctree.Node{n}); text != "" {
			w.line(prefix, text)
		}
	}
}

// listItem writes an item's first paragraph after the marker and indents
// the rest.
func (w *textWriter) listItem(item *doctree.Node, prefix, marker string) {
	indent := prefix + strings.Repeat(" ", len(marker))
	first := true
	for _, c := range item.Content {
		if first && c.Type == doctree.TypeParagraph {
			text := strings.ReplaceAll(w.inline(c.Content), "\n", "\n"+indent)
			w.sb.WriteString(prefix + marker + text + "\n")
			first = false
			continue
		}
		if first {
			w.sb.WriteString(prefix + marker + "\n")
			first = false
		}
		w.nested(c, indent)
	}
	if first {
		w.sb.WriteString(prefix + marker + "\n")
	}
}

// nested writes a block inside a list item without the trailing blank line.
func (w *textWriter) nested(n *doctree.Node, indent string) {
	var sub textWriter
	sub.markdown = w.markdown
	sub.block(n, indent)
	w.sb.WriteString(strings.TrimRight(sub.sb.String(), "\n") + "\n")
}

func (w *textWriter) line(prefix, text string) {
	for _, l := range strings.Split(text, "\n") {
		w.sb.WriteString(strings.TrimRight(prefix+l, " ") + "\n")
	}
	w.sb.WriteString(strings.TrimRight(prefix, " ") + "\n")
}

func (w *textWriter) inline(nodes []*doctree.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		switch {
		case n.IsVariable():
			sb.WriteString("@" + n.VariableID())
		case n.Type == doctree.TypeHardBreak:
			if w.markdown {
				sb.WriteString("\\")
			}
			sb.WriteString("\n")
		case n.Type == doctree.TypeText:
			sb.WriteString(w.decorate(n))
		default:
			sb.WriteString(w.inline(n.Content))
		}
	}
	return sb.String()
}

func (w *textWriter) decorate(n *doctree.Node) string {
	text := n.Text
	if !w.markdown || text == "" {
		return text
	}
	if n.HasMark(doctree.MarkItalic) {
		text = "*" + text + "*"
	}
	if n.HasMark(doctree.MarkBold) {
		text = "**" + text + "**"
	}
	for _, m := range n.Marks {
		if m.Type == "link" {
			if href, _ := m.Attrs["href"].(string); href != "" {
				text = "[" + text + "](" + href + ")"
			}
		}
	}
	return text
}

func isBlock(n *doctree.Node) bool {
	switch n.Type {
	case doctree.TypeText, doctree.TypeHardBreak, doctree.TypeVariable, doctree.TypeMention:
		return false
	}
	return true
}

func toInt(v any, def int) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case int64:
		return int(t)
	}
	return def
}
