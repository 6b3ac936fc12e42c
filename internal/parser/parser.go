package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
)

// Template is an imported file converted into an editor document.
type Template struct {
	Title   string
	Content doctree.Document
}

// Parser converts raw file bytes into a template document.
type Parser interface {
	Parse(r io.Reader, filename string) (*Template, error)
}

// Options tunes Import.
type Options struct {
	// PDFFallback runs pdftotext when the Go PDF reader fails.
	PDFFallback bool
}

// SupportedExtensions lists file extensions that can be imported as templates.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".json":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".json":
		return &JSONParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Import picks a parser for filename and runs it.
func Import(r io.Reader, filename string, opts Options) (*Template, error) {
	p, err := ForFile(filename)
	if err != nil {
		return nil, err
	}
	if pp, ok := p.(*PDFParser); ok {
		pp.FallbackPdftotext = opts.PDFFallback
	}
	t, err := p.Parse(r, filename)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", filename, err)
	}
	return t, nil
}

func titleFrom(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// finish wraps blocks into a document and turns @markers in text into
// variable nodes labelled from the default catalog.
func finish(title string, blocks []*doctree.Node) *Template {
	if blocks == nil {
		blocks = []*doctree.Node{}
	}
	root := doctree.LiftMarkers(doctree.NewDoc(blocks...), catalog.Default().Label)
	return &Template{Title: title, Content: doctree.Tree(root)}
}

// paragraph builds a paragraph from text whose lines become hard breaks.
func paragraph(text string, marks ...doctree.Mark) *doctree.Node {
	p := doctree.NewBlock(doctree.TypeParagraph)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			p.Content = append(p.Content, &doctree.Node{Type: doctree.TypeHardBreak})
		}
		if line != "" {
			p.Content = append(p.Content, doctree.NewText(line, marks...))
		}
	}
	return p
}

// inlineBuilder collects inline nodes, merging adjacent text runs that carry
// the same marks so @markers are never split across nodes.
type inlineBuilder struct {
	nodes []*doctree.Node
}

func (b *inlineBuilder) text(s string, marks []doctree.Mark) {
	if s == "" {
		return
	}
	if n := len(b.nodes); n > 0 {
		last := b.nodes[n-1]
		if last.Type == doctree.TypeText && sameMarks(last.Marks, marks) {
			last.Text += s
			return
		}
	}
	var ms []doctree.Mark
	if len(marks) > 0 {
		ms = append([]doctree.Mark(nil), marks...)
	}
	b.nodes = append(b.nodes, doctree.NewText(s, ms...))
}

func (b *inlineBuilder) hardBreak() {
	b.nodes = append(b.nodes, &doctree.Node{Type: doctree.TypeHardBreak})
}

// result trims surrounding whitespace and drops the run if nothing but
// whitespace and breaks remain.
func (b *inlineBuilder) result() []*doctree.Node {
	nodes := b.nodes
	for len(nodes) > 0 && isBlankInline(nodes[0]) {
		nodes = nodes[1:]
	}
	for len(nodes) > 0 && isBlankInline(nodes[len(nodes)-1]) {
		nodes = nodes[:len(nodes)-1]
	}
	if len(nodes) == 0 {
		return nil
	}
	if first := nodes[0]; first.Type == doctree.TypeText {
		first.Text = strings.TrimLeft(first.Text, " \t\n")
	}
	if last := nodes[len(nodes)-1]; last.Type == doctree.TypeText {
		last.Text = strings.TrimRight(last.Text, " \t\n")
	}
	return nodes
}

func isBlankInline(n *doctree.Node) bool {
	switch n.Type {
	case doctree.TypeHardBreak:
		return true
	case doctree.TypeText:
		return strings.TrimSpace(n.Text) == ""
	}
	return false
}

func withMark(marks []doctree.Mark, m doctree.Mark) []doctree.Mark {
	for _, existing := range marks {
		if existing.Type == m.Type {
			return marks
		}
	}
	out := make([]doctree.Mark, 0, len(marks)+1)
	out = append(out, marks...)
	return append(out, m)
}

func sameMarks(a, b []doctree.Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || !reflect.DeepEqual(a[i].Attrs, b[i].Attrs) {
			return false
		}
	}
	return true
}
