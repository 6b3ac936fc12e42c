package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/mietdoc/internal/resolve"
)

// ParseEntities reads a CSV entity list for bulk generation. The header row
// names the fields; a dotted header such as "bank.iban" becomes a nested
// field. Cells are kept as strings, blank rows are skipped.
func ParseEntities(r io.Reader) ([]resolve.Entity, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	entities := []resolve.Entity{}
	if len(records) == 0 {
		return entities, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	for rowIdx, row := range records[1:] {
		if blankRow(row) {
			continue
		}
		e := resolve.Entity{}
		for j, cell := range row {
			if j >= len(headers) || headers[j] == "" {
				continue
			}
			if err := setPath(e, headers[j], cell); err != nil {
				return nil, fmt.Errorf("row %d: %w", rowIdx+2, err)
			}
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func setPath(e resolve.Entity, path, value string) error {
	segs := strings.Split(path, ".")
	cur := map[string]any(e)
	for _, seg := range segs[:len(segs)-1] {
		next, exists := cur[seg]
		if !exists {
			m := map[string]any{}
			cur[seg] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("column %q conflicts with column %q", path, seg)
		}
		cur = m
	}
	leaf := segs[len(segs)-1]
	if _, isMap := cur[leaf].(map[string]any); isMap {
		return fmt.Errorf("column %q conflicts with nested columns", path)
	}
	cur[leaf] = value
	return nil
}
