package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/parser"
	"github.com/dgallion1/mietdoc/internal/resolve"
)

func loadTemplate(path string) (*parser.Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parser.Import(f, path, parser.Options{PDFFallback: true})
}

// loadContext reads a YAML or JSON file mapping categories to entities. An
// empty path yields an empty context.
func loadContext(path string) (resolve.Context, error) {
	if path == "" {
		return resolve.Context{}, nil
	}
	var raw map[string]any
	if err := decodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("read context: %w", err)
	}
	ctx := resolve.Context{}
	for k, v := range raw {
		cat := catalog.Category(k)
		if !cat.Valid() {
			return nil, fmt.Errorf("read context: unknown category %q", k)
		}
		if v == nil {
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("read context: %s must be a mapping, got %T", k, v)
		}
		ctx[cat] = resolve.Entity(m)
	}
	return ctx, nil
}

// loadEntities reads a CSV file or a YAML/JSON list of entities.
func loadEntities(path string) ([]resolve.Entity, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return parser.ParseEntities(f)
	}

	var raw []map[string]any
	if err := decodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("read entities: %w", err)
	}
	out := make([]resolve.Entity, len(raw))
	for i, m := range raw {
		if m != nil {
			out[i] = resolve.Entity(m)
		}
	}
	return out, nil
}

// decodeFile decodes JSON files with encoding/json and everything else as
// YAML.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		return dec.Decode(v)
	}
	return yaml.Unmarshal(data, v)
}
