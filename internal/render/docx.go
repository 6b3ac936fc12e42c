package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/mietdoc/internal/doctree"
)

// Heading font sizes in half-points, by level.
var headingSizes = map[int]string{1: "32", 2: "28", 3: "26"}

// DOCX writes doc as a Word document. Headings become bold runs in a larger
// size, list items get a bullet or number prefix, hard breaks start a new
// paragraph.
func DOCX(doc doctree.Document, w io.Writer) error {
	d := docx.New().WithDefaultTheme()

	switch doc.Kind() {
	case doctree.KindLegacy:
		for _, line := range strings.Split(doc.Text(), "\n") {
			d.AddParagraph().AddText(line)
		}
	case doctree.KindTree:
		b := &docxWriter{doc: d}
		b.blocks(doc.Root().Content, "")
	}

	if _, err := d.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

type docxWriter struct {
	doc *docx.Docx
}

func (b *docxWriter) blocks(nodes []*doctree.Node, prefix string) {
	for _, n := range nodes {
		b.block(n, prefix)
	}
}

func (b *docxWriter) block(n *doctree.Node, prefix string) {
	switch n.Type {
	case doctree.TypeHeading:
		size, ok := headingSizes[n.HeadingLevel()]
		if !ok {
			size = "24"
		}
		b.paragraph(prefix, n.Content, func(r *docx.Run) { r.Bold().Size(size) })
	case doctree.TypeParagraph:
		b.paragraph(prefix, n.Content, nil)
	case doctree.TypeBlockquote:
		b.blocks(n.Content, prefix+"    ")
	case doctree.TypeBulletList, doctree.TypeOrderedList:
		start := 1
		if s, ok := n.Attrs["start"]; ok {
			start = toInt(s, 1)
		}
		for i, item := range n.Content {
			marker := "• "
			if n.Type == doctree.TypeOrderedList {
				marker = strconv.Itoa(start+i) + ". "
			}
			for j, c := range item.Content {
				p := prefix + strings.Repeat(" ", len([]rune(marker)))
				if j == 0 {
					p = prefix + marker
				}
				b.block(c, p)
			}
		}
	case "horizontalRule":
		b.doc.AddParagraph().AddText("―――")
	default:
		if len(n.Content) > 0 && isBlock(n.Content[0]) {
			b.blocks(n.Content, prefix)
		} else {
			b.paragraph(prefix, []*doctree.Node{n}, nil)
		}
	}
}

// paragraph writes inline nodes as runs. Every hard break starts a new
// paragraph with the same prefix.
func (b *docxWriter) paragraph(prefix string, inline []*doctree.Node, style func(*docx.Run)) {
	para := b.doc.AddParagraph()
	if prefix != "" {
		para.AddText(prefix)
	}
	var emit func(nodes []*doctree.Node)
	emit = func(nodes []*doctree.Node) {
		for _, n := range nodes {
			switch {
			case n.IsVariable():
				para.AddText("@" + n.VariableID())
			case n.Type == doctree.TypeHardBreak:
				para = b.doc.AddParagraph()
				if prefix != "" {
					para.AddText(strings.Repeat(" ", len([]rune(prefix))))
				}
			case n.Type == doctree.TypeText:
				if n.Text == "" {
					continue
				}
				r := para.AddText(n.Text)
				if n.HasMark(doctree.MarkBold) {
					r.Bold()
				}
				if n.HasMark(doctree.MarkItalic) {
					r.Italic()
				}
				if style != nil {
					style(r)
				}
			default:
				emit(n.Content)
			}
		}
	}
	emit(inline)
}
