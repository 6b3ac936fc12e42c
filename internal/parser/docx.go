package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/mietdoc/internal/doctree"
)

// DOCXParser handles .docx files. Heading styles become headings, bold and
// italic runs keep their marks.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*Template, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "mietdoc-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var blocks []*doctree.Node
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		inline := docxInline(para)
		if len(inline) == 0 {
			continue
		}
		if level := docxHeadingLevel(para); level > 0 {
			blocks = append(blocks, doctree.NewHeading(level, inline...))
			continue
		}
		blocks = append(blocks, doctree.NewBlock(doctree.TypeParagraph, inline...))
	}

	return finish(titleFrom(filename), blocks), nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	}
	return 0
}

func docxInline(para *docx.Paragraph) []*doctree.Node {
	var b inlineBuilder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var marks []doctree.Mark
		if rp := run.RunProperties; rp != nil {
			if rp.Bold != nil {
				marks = withMark(marks, doctree.Mark{Type: doctree.MarkBold})
			}
			if rp.Italic != nil {
				marks = withMark(marks, doctree.Mark{Type: doctree.MarkItalic})
			}
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				b.text(t.Text, marks)
			}
		}
	}
	return b.result()
}
