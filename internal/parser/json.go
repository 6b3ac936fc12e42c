package parser

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/dgallion1/mietdoc/internal/doctree"
)

// JSONParser imports an editor document. It accepts the bare document, a
// JSON string (legacy template) or an exported {"title", "content"} object.
type JSONParser struct{}

var errNotDocument = errors.New("not an editor document")

func (p *JSONParser) Parse(r io.Reader, filename string) (*Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := doctree.Parse(data)
	if doc.Kind() != doctree.KindEmpty {
		return &Template{Title: titleFrom(filename), Content: doc}, nil
	}

	var wrapped struct {
		Title   string          `json:"title"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil || len(wrapped.Content) == 0 {
		return nil, errNotDocument
	}
	doc = doctree.Parse(wrapped.Content)
	if doc.Kind() == doctree.KindEmpty {
		return nil, errNotDocument
	}
	title := wrapped.Title
	if title == "" {
		title = titleFrom(filename)
	}
	return &Template{Title: title, Content: doc}, nil
}
