// Package processor substitutes variable references in a template with
// values resolved from a context.
package processor

import (
	"fmt"
	"strings"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
	"github.com/dgallion1/mietdoc/internal/resolve"
)

// Resolver resolves one dotted path against a context.
type Resolver interface {
	Resolve(path string, ctx resolve.Context) (resolve.Resolution, error)
}

// Result is the outcome of processing one document.
type Result struct {
	ProcessedContent       doctree.Document `json:"processedContent" yaml:"processedContent"`
	UnresolvedPlaceholders []string         `json:"unresolvedPlaceholders" yaml:"unresolvedPlaceholders"`
	Success                bool             `json:"success" yaml:"success"`
	Errors                 []string         `json:"errors" yaml:"errors"`
}

// ContextCheck lists the referenced categories that have no context entity.
type ContextCheck struct {
	IsValid        bool               `json:"isValid" yaml:"isValid"`
	MissingContext []catalog.Category `json:"missingContext" yaml:"missingContext"`
}

// Processor is stateless and safe for concurrent use.
type Processor struct {
	catalog  *catalog.Catalog
	resolver Resolver
}

// New creates a processor.
func New(cat *catalog.Catalog, r Resolver) *Processor {
	return &Processor{catalog: cat, resolver: r}
}

// Process resolves every variable reference in doc against ctx. It never
// panics: a formatter error or any internal failure yields Success false
// with doc returned unchanged as ProcessedContent.
func (p *Processor) Process(doc doctree.Document, ctx resolve.Context) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = failed(doc, fmt.Sprintf("process template: %v", rec))
		}
	}()

	unresolved := []string{}
	seen := make(map[string]bool)
	out, err := doc.Substitute(func(id string) (string, error) {
		r, err := p.resolver.Resolve(id, ctx)
		if err != nil {
			return "", err
		}
		if r.Resolved {
			return r.Value, nil
		}
		if !seen[id] {
			seen[id] = true
			unresolved = append(unresolved, id)
		}
		return p.Fallback(id), nil
	})
	if err != nil {
		return failed(doc, fmt.Sprintf("process template: %v", err))
	}
	return Result{
		ProcessedContent:       out,
		UnresolvedPlaceholders: unresolved,
		Success:                true,
		Errors:                 []string{},
	}
}

func failed(doc doctree.Document, msg string) Result {
	return Result{
		ProcessedContent:       doc,
		UnresolvedPlaceholders: []string{},
		Success:                false,
		Errors:                 []string{msg},
	}
}

// Fallback returns the visible marker used for an unresolved id, e.g.
// "[Wohnung Adresse]". Tree and legacy documents use the same text.
func (p *Processor) Fallback(id string) string {
	return "[" + p.catalog.Label(id) + "]"
}

// UsedPlaceholders returns a definition for every distinct id referenced by
// doc, in first-occurrence order. Ids missing from the catalog get a
// synthesized definition.
func (p *Processor) UsedPlaceholders(doc doctree.Document) []catalog.Definition {
	ids := doc.References()
	out := make([]catalog.Definition, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.catalog.Describe(id))
	}
	return out
}

// ReferencedCategories returns the distinct leading segments of the ids
// referenced by doc, in first-reference order.
func ReferencedCategories(doc doctree.Document) []catalog.Category {
	seen := make(map[catalog.Category]bool)
	out := []catalog.Category{}
	for _, id := range doc.References() {
		cat := catalog.Category(strings.SplitN(id, ".", 2)[0])
		if !seen[cat] {
			seen[cat] = true
			out = append(out, cat)
		}
	}
	return out
}

// ValidateContext reports which referenced categories have no entity in ctx
// at all. It does not look at individual fields.
func (p *Processor) ValidateContext(doc doctree.Document, ctx resolve.Context) ContextCheck {
	missing := []catalog.Category{}
	for _, cat := range ReferencedCategories(doc) {
		if !ctx.Has(cat) {
			missing = append(missing, cat)
		}
	}
	return ContextCheck{IsValid: len(missing) == 0, MissingContext: missing}
}

// Coverage counts how many distinct references in doc resolve against ctx.
type Coverage struct {
	Total    int `json:"total"`
	Resolved int `json:"resolved"`
}

// Percent returns the resolved share in the range 0-100. A document without
// references is fully covered.
func (c Coverage) Percent() int {
	if c.Total == 0 {
		return 100
	}
	return c.Resolved * 100 / c.Total
}

// Coverage resolves each distinct reference once. Formatter errors count as
// resolved: the field exists, it just cannot be rendered.
func (p *Processor) Coverage(doc doctree.Document, ctx resolve.Context) Coverage {
	ids := doc.References()
	c := Coverage{Total: len(ids)}
	for _, id := range ids {
		r, err := p.resolver.Resolve(id, ctx)
		if err != nil || r.Resolved {
			c.Resolved++
		}
	}
	return c
}
