package resolve

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
)

// Entity is a bag of fields for one context category (a tenant, an
// apartment, ...). Nested maps are walked for three-segment paths.
type Entity map[string]any

// Context maps each category to the entity supplied for this run. A missing
// key and a nil entity both mean the category was not supplied.
type Context map[catalog.Category]Entity

// Has reports whether an entity was supplied for cat.
func (c Context) Has(cat catalog.Category) bool {
	return c[cat] != nil
}

// With returns a copy of c with cat set to e. c is not modified.
func (c Context) With(cat catalog.Category, e Entity) Context {
	out := make(Context, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[cat] = e
	return out
}

// Today returns a datum entity for the given day.
func Today(t time.Time) Entity {
	return Entity{"heute": t}
}

// Resolution is the outcome of resolving one path. A resolved path may
// still have an empty Value when the field exists but is empty.
type Resolution struct {
	Resolved bool   `json:"resolved"`
	Value    string `json:"value"`
}

// Options configures value formatting.
type Options struct {
	Locale         string // BCP 47 tag, e.g. "de-DE"
	CurrencySymbol string
}

// DefaultOptions returns German formatting with a euro symbol.
func DefaultOptions() Options {
	return Options{Locale: "de-DE", CurrencySymbol: "€"}
}

// Resolver resolves dotted variable paths against a Context. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	catalog *catalog.Catalog
	opts    Options
	locale  locale
}

// New creates a resolver. Empty option fields fall back to DefaultOptions.
func New(cat *catalog.Catalog, opts Options) (*Resolver, error) {
	def := DefaultOptions()
	if opts.Locale == "" {
		opts.Locale = def.Locale
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = def.CurrencySymbol
	}
	loc, err := lookupLocale(opts.Locale)
	if err != nil {
		return nil, err
	}
	return &Resolver{catalog: cat, opts: opts, locale: loc}, nil
}

// Resolve looks up path in ctx. A path whose category is absent, whose
// fields are missing, or which ends on a nested object is unresolved; that
// is not an error. An error is returned only when a formatter cannot render
// the value it found (see FormatError).
func (r *Resolver) Resolve(path string, ctx Context) (Resolution, error) {
	if !doctree.ValidPath(path) {
		return Resolution{}, nil
	}
	segs := strings.Split(path, ".")
	entity := ctx[catalog.Category(segs[0])]
	if entity == nil || len(segs) < 2 {
		return Resolution{}, nil
	}

	var (
		value any
		found bool
	)
	if fn, ok := derivedFields[path]; ok {
		var err error
		value, found, err = fn(r, entity)
		if err != nil {
			return Resolution{}, &FormatError{Path: path, Formatter: r.catalog.Describe(path).Formatter, Value: value, Err: err}
		}
	} else {
		value, found = walk(entity, segs[1:])
	}
	if !found {
		return Resolution{}, nil
	}

	text, err := r.Format(path, value)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Resolved: true, Value: text}, nil
}

// walk follows segs through nested maps. It fails on a missing key, on a
// non-map intermediate, and on a map leaf.
func walk(entity Entity, segs []string) (any, bool) {
	var cur any = map[string]any(entity)
	for _, seg := range segs {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		v, exists := m[seg]
		if !exists {
			return nil, false
		}
		cur = v
	}
	if _, isMap := asMap(cur); isMap {
		return nil, false
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Entity:
		return t, true
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}

// FormatError reports a value a formatter could not render.
type FormatError struct {
	Path      string
	Formatter catalog.Formatter
	Value     any
	Err       error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format %s as %s: %v", e.Path, e.Formatter, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
