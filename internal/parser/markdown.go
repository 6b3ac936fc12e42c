package parser

import (
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/mietdoc/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Template, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	return finish(titleFrom(filename), mdBlocks(doc, src)), nil
}

func mdBlocks(parent ast.Node, src []byte) []*doctree.Node {
	var out []*doctree.Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if b := mdBlock(n, src); b != nil {
			out = append(out, b)
		}
	}
	return out
}

func mdBlock(n ast.Node, src []byte) *doctree.Node {
	switch node := n.(type) {
	case *ast.Heading:
		return doctree.NewHeading(node.Level, mdInline(node, src)...)
	case *ast.Paragraph, *ast.TextBlock:
		inline := mdInline(n, src)
		if len(inline) == 0 {
			return nil
		}
		return doctree.NewBlock(doctree.TypeParagraph, inline...)
	case *ast.List:
		if node.IsOrdered() {
			list := doctree.NewBlock(doctree.TypeOrderedList, mdBlocks(node, src)...)
			if node.Start > 1 {
				list.Attrs = map[string]any{"start": node.Start}
			}
			return list
		}
		return doctree.NewBlock(doctree.TypeBulletList, mdBlocks(node, src)...)
	case *ast.ListItem:
		return doctree.NewBlock(doctree.TypeListItem, mdBlocks(node, src)...)
	case *ast.Blockquote:
		return doctree.NewBlock(doctree.TypeBlockquote, mdBlocks(node, src)...)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		// The editor has no code blocks; keep the lines as a paragraph.
		t := strings.TrimRight(rawLines(n, src), "\n")
		if t == "" {
			return nil
		}
		return paragraph(t)
	case *ast.ThematicBreak:
		return &doctree.Node{Type: "horizontalRule"}
	}
	return nil
}

func rawLines(n ast.Node, src []byte) string {
	var buf strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.String()
}

func mdInline(parent ast.Node, src []byte) []*doctree.Node {
	var b inlineBuilder
	mdInlineInto(&b, parent, src, nil)
	return b.result()
}

func mdInlineInto(b *inlineBuilder, parent ast.Node, src []byte, marks []doctree.Mark) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			b.text(string(node.Value(src)), marks)
			if node.HardLineBreak() {
				b.hardBreak()
			} else if node.SoftLineBreak() {
				b.text(" ", marks)
			}
		case *ast.String:
			b.text(string(node.Value), marks)
		case *ast.Emphasis:
			m := doctree.Mark{Type: doctree.MarkItalic}
			if node.Level >= 2 {
				m = doctree.Mark{Type: doctree.MarkBold}
			}
			mdInlineInto(b, node, src, withMark(marks, m))
		case *ast.Link:
			link := doctree.Mark{Type: "link", Attrs: map[string]any{"href": string(node.Destination)}}
			mdInlineInto(b, node, src, withMark(marks, link))
		case *ast.AutoLink:
			b.text(string(node.Label(src)), marks)
		case *ast.RawHTML:
			// Inline HTML is dropped; the editor cannot represent it.
		default:
			mdInlineInto(b, c, src, marks)
		}
	}
}
