// Package validate checks templates before they are stored: required
// fields, content safety, placeholder ids and category compatibility.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
	"github.com/dgallion1/mietdoc/internal/processor"
)

// Input is a template as submitted for creation or update.
type Input struct {
	Title    string           `json:"title"`
	Category string           `json:"category"`
	Content  doctree.Document `json:"content"`
}

// Result is the outcome of Validate. Errors block creation; warnings do not.
type Result struct {
	IsValid      bool     `json:"isValid" yaml:"isValid"`
	Errors       []string `json:"errors" yaml:"errors"`
	Warnings     []string `json:"warnings" yaml:"warnings"`
	Placeholders []string `json:"placeholders" yaml:"placeholders"`
}

// Validator is safe for concurrent use.
type Validator struct {
	catalog *catalog.Catalog
}

// New creates a validator backed by cat.
func New(cat *catalog.Catalog) *Validator {
	return &Validator{catalog: cat}
}

// Validate runs every check on in. It never fails; problems are reported in
// the result.
func (v *Validator) Validate(in Input) Result {
	res := Result{
		Errors:       []string{},
		Warnings:     []string{},
		Placeholders: []string{},
	}

	if strings.TrimSpace(in.Title) == "" {
		res.Errors = append(res.Errors, "title is required")
	}
	tc, known := v.catalog.TemplateCategory(in.Category)
	switch {
	case strings.TrimSpace(in.Category) == "":
		res.Errors = append(res.Errors, "category is required")
	case !known:
		res.Errors = append(res.Errors, fmt.Sprintf("unknown category %q", in.Category))
	}

	doc := in.Content
	if doc.IsMalformed() {
		res.Errors = append(res.Errors, "content is not a valid document")
	} else if isBlank(doc) {
		res.Warnings = append(res.Warnings, "content is empty")
	}

	for _, f := range contentMarkup(doc) {
		res.Errors = append(res.Errors, "content contains disallowed "+f)
	}
	for _, id := range invalidVariableIDs(doc) {
		res.Errors = append(res.Errors, fmt.Sprintf("invalid placeholder id %q", id))
	}

	ids := doc.References()
	res.Placeholders = append(res.Placeholders, ids...)
	for _, id := range ids {
		if _, ok := v.catalog.Lookup(id); !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown placeholder %q", id))
		}
	}

	if known && len(tc.Requires) > 0 {
		used := make(map[catalog.Category]bool)
		for _, c := range RequiredContext(doc) {
			used[c] = true
		}
		var missing []string
		for _, c := range tc.Requires {
			if !used[c] {
				missing = append(missing, string(c))
			}
		}
		if len(missing) > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"category %q usually references %s; template does not use %s",
				tc.Name, joinCategories(tc.Requires), strings.Join(missing, ", ")))
		}
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

// RequiredContext returns the known context categories referenced by doc,
// in first-reference order. This is what gets stored as the template's
// kontext_anforderungen.
func RequiredContext(doc doctree.Document) []catalog.Category {
	out := []catalog.Category{}
	for _, c := range processor.ReferencedCategories(doc) {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

func joinCategories(cs []catalog.Category) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func isBlank(doc doctree.Document) bool {
	switch doc.Kind() {
	case doctree.KindLegacy:
		return strings.TrimSpace(doc.Text()) == ""
	case doctree.KindTree:
		blank := true
		doctree.Walk(doc.Root(), func(n *doctree.Node) bool {
			if n.IsVariable() || strings.TrimSpace(n.Text) != "" {
				blank = false
			}
			return blank
		})
		return blank
	}
	return true
}

// contentMarkup scans every string a document carries: legacy text, text
// nodes, and string attributes on nodes and marks.
func contentMarkup(doc doctree.Document) []string {
	seen := make(map[string]bool)
	var out []string
	scan := func(s string) {
		for _, f := range FindMarkup(s) {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	switch doc.Kind() {
	case doctree.KindLegacy:
		scan(doc.Text())
	case doctree.KindTree:
		doctree.Walk(doc.Root(), func(n *doctree.Node) bool {
			scan(n.Text)
			scanAttrs(n.Attrs, scan)
			for _, m := range n.Marks {
				scanAttrs(m.Attrs, scan)
			}
			return true
		})
	}
	return out
}

func scanAttrs(attrs map[string]any, scan func(string)) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch t := attrs[k].(type) {
		case string:
			scan(t)
		case map[string]any:
			scanAttrs(t, scan)
		}
	}
}

// invalidVariableIDs returns ids of variable and mention nodes that do not
// follow the category.field grammar. Such nodes are passed through by the
// processor untouched, so they never resolve.
func invalidVariableIDs(doc doctree.Document) []string {
	var out []string
	doctree.Walk(doc.Root(), func(n *doctree.Node) bool {
		if (n.Type == doctree.TypeVariable || n.Type == doctree.TypeMention) && !n.IsVariable() {
			id, _ := n.Attrs["id"].(string)
			out = append(out, id)
		}
		return true
	})
	return out
}
