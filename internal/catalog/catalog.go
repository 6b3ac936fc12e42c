package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Category names the context entity a placeholder resolves against.
type Category string

const (
	Mieter    Category = "mieter"
	Wohnung   Category = "wohnung"
	Haus      Category = "haus"
	Vermieter Category = "vermieter"
	Datum     Category = "datum"
)

// Categories lists the known context categories in display order.
var Categories = []Category{Mieter, Wohnung, Haus, Vermieter, Datum}

// Valid reports whether c is a known context category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Formatter selects how a resolved value is rendered.
type Formatter string

const (
	FormatPlain    Formatter = "plain"
	FormatCurrency Formatter = "currency"
	FormatDate     Formatter = "date"
)

// Definition describes one known placeholder.
type Definition struct {
	ID          string    `json:"id" yaml:"id"`
	Category    Category  `json:"category" yaml:"category"`
	Label       string    `json:"label" yaml:"label"`
	Description string    `json:"description" yaml:"description"`
	Formatter   Formatter `json:"formatter,omitempty" yaml:"formatter,omitempty"`
}

// TemplateCategory is a declared template category and the context
// categories templates of that kind conventionally reference.
type TemplateCategory struct {
	Name     string     `json:"name" yaml:"name"`
	Label    string     `json:"label" yaml:"label"`
	Requires []Category `json:"requires" yaml:"requires"`
}

// Catalog is a read-only placeholder registry. It has no mutators and is
// safe for concurrent use.
type Catalog struct {
	defs       []Definition
	byID       map[string]int
	categories []TemplateCategory
	byName     map[string]int
}

type catalogFile struct {
	Placeholders       []Definition       `yaml:"placeholders"`
	TemplateCategories []TemplateCategory `yaml:"template_categories"`
}

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the process-wide catalog built from the embedded
// definition file. It panics if the embedded file is invalid.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(defaultCatalog)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded definitions: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

// Load parses a YAML catalog definition.
func Load(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Placeholders, f.TemplateCategories)
}

// New builds a catalog from definitions. Inputs are copied.
func New(defs []Definition, categories []TemplateCategory) (*Catalog, error) {
	c := &Catalog{
		defs:       make([]Definition, 0, len(defs)),
		byID:       make(map[string]int, len(defs)),
		categories: make([]TemplateCategory, 0, len(categories)),
		byName:     make(map[string]int, len(categories)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("placeholder without id")
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate placeholder %q", d.ID)
		}
		if !d.Category.Valid() {
			return nil, fmt.Errorf("placeholder %q: unknown category %q", d.ID, d.Category)
		}
		if !strings.HasPrefix(d.ID, string(d.Category)+".") {
			return nil, fmt.Errorf("placeholder %q: id does not start with category %q", d.ID, d.Category)
		}
		switch d.Formatter {
		case "":
			d.Formatter = FormatPlain
		case FormatPlain, FormatCurrency, FormatDate:
		default:
			return nil, fmt.Errorf("placeholder %q: unknown formatter %q", d.ID, d.Formatter)
		}
		c.byID[d.ID] = len(c.defs)
		c.defs = append(c.defs, d)
	}
	for _, tc := range categories {
		if tc.Name == "" {
			return nil, fmt.Errorf("template category without name")
		}
		if _, dup := c.byName[tc.Name]; dup {
			return nil, fmt.Errorf("duplicate template category %q", tc.Name)
		}
		for _, r := range tc.Requires {
			if !r.Valid() {
				return nil, fmt.Errorf("template category %q: unknown context category %q", tc.Name, r)
			}
		}
		tc.Requires = append([]Category{}, tc.Requires...)
		c.byName[tc.Name] = len(c.categories)
		c.categories = append(c.categories, tc)
	}
	return c, nil
}

// Lookup returns the definition registered under id.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// All returns every definition in file order.
func (c *Catalog) All() []Definition {
	return append([]Definition(nil), c.defs...)
}

// Describe returns the registered definition for id, or one synthesized from
// the id itself: category from the first segment, label from the humanized
// segments ("mieter.geburts_datum" -> "Mieter Geburts Datum").
func (c *Catalog) Describe(id string) Definition {
	if d, ok := c.Lookup(id); ok {
		return d
	}
	cat, _, _ := strings.Cut(id, ".")
	return Definition{
		ID:        id,
		Category:  Category(cat),
		Label:     Humanize(id),
		Formatter: FormatPlain,
	}
}

// Label returns the display label for id.
func (c *Catalog) Label(id string) string {
	return c.Describe(id).Label
}

// FilterOptions tunes Filter.
type FilterOptions struct {
	// PrefixFirst moves matches whose label starts with the query to the front.
	PrefixFirst bool
	// Limit caps the number of results; zero or negative means no cap.
	Limit int
}

// Filter returns definitions whose label or description contains query,
// case-insensitively. An empty query matches everything.
func (c *Catalog) Filter(query string, opts FilterOptions) []Definition {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Definition
	for _, d := range c.defs {
		if q == "" ||
			strings.Contains(strings.ToLower(d.Label), q) ||
			strings.Contains(strings.ToLower(d.Description), q) {
			out = append(out, d)
		}
	}
	if opts.PrefixFirst && q != "" {
		sort.SliceStable(out, func(i, j int) bool {
			pi := strings.HasPrefix(strings.ToLower(out[i].Label), q)
			pj := strings.HasPrefix(strings.ToLower(out[j].Label), q)
			return pi && !pj
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// TemplateCategory returns the declared template category called name.
func (c *Catalog) TemplateCategory(name string) (TemplateCategory, bool) {
	i, ok := c.byName[name]
	if !ok {
		return TemplateCategory{}, false
	}
	tc := c.categories[i]
	tc.Requires = append([]Category{}, tc.Requires...)
	return tc, true
}

// TemplateCategories returns all declared template categories.
func (c *Catalog) TemplateCategories() []TemplateCategory {
	out := make([]TemplateCategory, len(c.categories))
	for i, tc := range c.categories {
		tc.Requires = append([]Category{}, tc.Requires...)
		out[i] = tc
	}
	return out
}

// Humanize turns a dotted id into a title-cased label.
func Humanize(id string) string {
	fields := strings.FieldsFunc(id, func(r rune) bool { return r == '.' || r == '_' })
	for i, f := range fields {
		r, size := utf8.DecodeRuneInString(f)
		fields[i] = string(unicode.ToUpper(r)) + f[size:]
	}
	return strings.Join(fields, " ")
}
