package resolve

import "strings"

// derivedFunc computes a field that is not stored on the entity. found is
// false when the inputs it needs are missing.
type derivedFunc func(r *Resolver, e Entity) (value any, found bool, err error)

// derivedFields take precedence over stored fields of the same name.
var derivedFields = map[string]derivedFunc{
	"wohnung.jahresmiete": jahresmiete,
	"wohnung.warmmiete":   warmmiete,
	"mieter.name":         mieterName,
	"datum.lang":          datumLang,
	"datum.kurz":          datumKurz,
	"datum.monat":         datumMonat,
	"datum.jahr":          datumJahr,
}

// IsDerived reports whether path is computed rather than looked up.
func IsDerived(path string) bool {
	_, ok := derivedFields[path]
	return ok
}

// blank reports whether v is nil or a whitespace-only string. A derived
// field with a blank input resolves to "", the same as an empty stored field.
func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func jahresmiete(r *Resolver, e Entity) (any, bool, error) {
	miete, ok := e["miete"]
	if !ok {
		return nil, false, nil
	}
	if blank(miete) {
		return "", true, nil
	}
	f, err := r.number(miete)
	if err != nil {
		return miete, false, err
	}
	return f * 12, true, nil
}

func warmmiete(r *Resolver, e Entity) (any, bool, error) {
	miete, ok1 := e["miete"]
	nk, ok2 := e["nebenkosten"]
	if !ok1 || !ok2 {
		return nil, false, nil
	}
	if blank(miete) || blank(nk) {
		return "", true, nil
	}
	m, err := r.number(miete)
	if err != nil {
		return miete, false, err
	}
	n, err := r.number(nk)
	if err != nil {
		return nk, false, err
	}
	return m + n, true, nil
}

// mieterName prefers a stored name and falls back to "vorname nachname"
// when the stored name is missing or blank.
func mieterName(r *Resolver, e Entity) (any, bool, error) {
	name, hasName := e["name"]
	if hasName && !blank(name) {
		return name, true, nil
	}
	var parts []string
	for _, key := range []string{"vorname", "nachname"} {
		if v, ok := e[key]; ok && v != nil {
			if s := strings.TrimSpace(r.plain(v)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	if len(parts) == 0 {
		if hasName {
			return "", true, nil
		}
		return nil, false, nil
	}
	return strings.Join(parts, " "), true, nil
}

func datumLang(r *Resolver, e Entity) (any, bool, error) {
	v, ok := e["heute"]
	if !ok {
		return nil, false, nil
	}
	if blank(v) {
		return "", true, nil
	}
	t, err := toTime(v)
	if err != nil {
		return v, false, err
	}
	return r.longDate(t), true, nil
}

func datumKurz(r *Resolver, e Entity) (any, bool, error) {
	v, ok := e["heute"]
	if !ok {
		return nil, false, nil
	}
	if blank(v) {
		return "", true, nil
	}
	s, err := r.date(v)
	if err != nil {
		return v, false, err
	}
	return s, true, nil
}

func datumMonat(r *Resolver, e Entity) (any, bool, error) {
	v, ok := e["heute"]
	if !ok {
		return nil, false, nil
	}
	if blank(v) {
		return "", true, nil
	}
	t, err := toTime(v)
	if err != nil {
		return v, false, err
	}
	return r.monthName(t), true, nil
}

func datumJahr(_ *Resolver, e Entity) (any, bool, error) {
	v, ok := e["heute"]
	if !ok {
		return nil, false, nil
	}
	if blank(v) {
		return "", true, nil
	}
	t, err := toTime(v)
	if err != nil {
		return v, false, err
	}
	return t.Year(), true, nil
}
