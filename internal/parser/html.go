package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/mietdoc/internal/doctree"
)

// HTMLParser handles HTML files, e.g. templates exported from a word
// processor or another editor.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*Template, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := titleFrom(filename)
	if t := findTitle(doc); t != "" {
		title = t
	}

	root := findBody(doc)
	if root == nil {
		root = doc
	}
	return finish(title, htmlBlocks(root)), nil
}

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true, "header": true,
	"head": true, "noscript": true, "template": true,
}

var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "blockquote": true, "hr": true, "pre": true,
	"div": true, "section": true, "article": true, "main": true, "aside": true,
	"table": true, "thead": true, "tbody": true, "tr": true, "td": true, "th": true,
}

// htmlBlocks converts the children of parent into block nodes. Loose inline
// content between blocks is gathered into paragraphs.
func htmlBlocks(parent *html.Node) []*doctree.Node {
	var out []*doctree.Node
	var pending inlineBuilder
	flush := func() {
		if inline := pending.result(); len(inline) > 0 {
			out = append(out, doctree.NewBlock(doctree.TypeParagraph, inline...))
		}
		pending = inlineBuilder{}
	}

	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if skipTags[c.Data] {
				continue
			}
			if blockTags[c.Data] {
				flush()
				out = append(out, htmlBlock(c)...)
				continue
			}
		}
		htmlInlineInto(&pending, c, nil)
	}
	flush()
	return out
}

func htmlBlock(n *html.Node) []*doctree.Node {
	if level := headingLevel(n.Data); level > 0 {
		inline := htmlInline(n)
		if len(inline) == 0 {
			return nil
		}
		return []*doctree.Node{doctree.NewHeading(level, inline...)}
	}
	switch n.Data {
	case "p":
		inline := htmlInline(n)
		if len(inline) == 0 {
			return nil
		}
		return []*doctree.Node{doctree.NewBlock(doctree.TypeParagraph, inline...)}
	case "ul", "ol":
		typ := doctree.TypeBulletList
		if n.Data == "ol" {
			typ = doctree.TypeOrderedList
		}
		list := doctree.NewBlock(typ)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "li" {
				list.Content = append(list.Content, htmlBlock(c)...)
			}
		}
		return []*doctree.Node{list}
	case "li":
		return []*doctree.Node{doctree.NewBlock(doctree.TypeListItem, htmlBlocks(n)...)}
	case "blockquote":
		return []*doctree.Node{doctree.NewBlock(doctree.TypeBlockquote, htmlBlocks(n)...)}
	case "hr":
		return []*doctree.Node{{Type: "horizontalRule"}}
	case "pre":
		t := strings.Trim(textContent(n), "\n")
		if t == "" {
			return nil
		}
		return []*doctree.Node{paragraph(t)}
	}
	// Containers (div, section, table cells, ...) contribute their children.
	return htmlBlocks(n)
}

func htmlInline(n *html.Node) []*doctree.Node {
	var b inlineBuilder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		htmlInlineInto(&b, c, nil)
	}
	return b.result()
}

func htmlInlineInto(b *inlineBuilder, n *html.Node, marks []doctree.Mark) {
	switch n.Type {
	case html.TextNode:
		b.text(collapseSpace(n.Data), marks)
		return
	case html.ElementNode:
		if skipTags[n.Data] {
			return
		}
		switch n.Data {
		case "br":
			b.hardBreak()
			return
		case "strong", "b":
			marks = withMark(marks, doctree.Mark{Type: doctree.MarkBold})
		case "em", "i":
			marks = withMark(marks, doctree.Mark{Type: doctree.MarkItalic})
		case "a":
			if href := attr(n, "href"); href != "" {
				marks = withMark(marks, doctree.Mark{Type: "link", Attrs: map[string]any{"href": href}})
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		htmlInlineInto(b, c, marks)
	}
}

func collapseSpace(s string) string {
	if s == "" {
		return s
	}
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if len(fields) > 0 && isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == '\f'
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return strings.TrimSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
