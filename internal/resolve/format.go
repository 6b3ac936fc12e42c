package resolve

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/dgallion1/mietdoc/internal/catalog"
)

type locale struct {
	tag     language.Tag
	short   string // numeric date layout
	long    string // written-out date layout
	monday  monday.Locale
	decimal byte // decimal separator of numeric strings
}

var locales = map[string]locale{
	"de": {short: "02.01.2006", long: "2. January 2006", monday: monday.LocaleDeDE, decimal: ','},
	"en": {short: "01/02/2006", long: "January 2, 2006", monday: monday.LocaleEnUS, decimal: '.'},
	"fr": {short: "02/01/2006", long: "2 January 2006", monday: monday.LocaleFrFR, decimal: ','},
}

func lookupLocale(tag string) (locale, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return locale{}, fmt.Errorf("parse locale %q: %w", tag, err)
	}
	base, _ := t.Base()
	loc, ok := locales[base.String()]
	if !ok {
		return locale{}, fmt.Errorf("unsupported locale %q", tag)
	}
	loc.tag = t
	return loc, nil
}

// SupportedLocale reports whether tag can be used in Options.Locale.
func SupportedLocale(tag string) bool {
	_, err := lookupLocale(tag)
	return err == nil
}

// Format renders value with the formatter registered for path.
func (r *Resolver) Format(path string, value any) (string, error) {
	f := r.catalog.Describe(path).Formatter
	var (
		out string
		err error
	)
	switch {
	case value == nil:
		return "", nil
	case f == catalog.FormatCurrency:
		out, err = r.currency(value)
	case f == catalog.FormatDate:
		out, err = r.date(value)
	default:
		out = r.plain(value)
	}
	if err != nil {
		return "", &FormatError{Path: path, Formatter: f, Value: value, Err: err}
	}
	return out, nil
}

func (r *Resolver) currency(v any) (string, error) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return "", nil
	}
	f, err := r.number(v)
	if err != nil {
		return "", err
	}
	p := message.NewPrinter(r.locale.tag)
	return p.Sprint(number.Decimal(f, number.Scale(2))) + " " + r.opts.CurrencySymbol, nil
}

func (r *Resolver) date(v any) (string, error) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return "", nil
	}
	t, err := toTime(v)
	if err != nil {
		return "", err
	}
	return monday.Format(t, r.locale.short, r.locale.monday), nil
}

func (r *Resolver) longDate(t time.Time) string {
	return monday.Format(t, r.locale.long, r.locale.monday)
}

func (r *Resolver) monthName(t time.Time) string {
	return monday.Format(t, "January", r.locale.monday)
}

func (r *Resolver) plain(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case time.Time:
		return monday.Format(t, r.locale.short, r.locale.monday)
	case *time.Time:
		if t == nil {
			return ""
		}
		return monday.Format(*t, r.locale.short, r.locale.monday)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if e != nil {
				parts = append(parts, r.plain(e))
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// number converts v to a float, reading numeric strings with the
// resolver's decimal separator.
func (r *Resolver) number(v any) (float64, error) {
	return toFloat(v, r.locale.decimal)
}

// toFloat accepts Go numbers, json.Number and numeric strings. decimal is
// the separator used to read grouped strings such as "1.200" or "1,200".
func toFloat(v any, decimal byte) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("unsupported value %q", t.String())
		}
		f = n
	case string:
		n, err := parseNumber(t, decimal)
		if err != nil {
			return 0, err
		}
		f = n
	default:
		return 0, fmt.Errorf("unsupported value of type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("unsupported value %v", f)
	}
	return f, nil
}

var (
	dotGrouped   = regexp.MustCompile(`^[-+]?\d{1,3}(\.\d{3})+$`)
	commaGrouped = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)
	groupSpaces  = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")
)

// parseNumber reads s in the notation of the given decimal separator. With
// ',' a string of dot-separated groups is a thousands amount ("1.200" is
// 1200); with '.' the same holds for comma groups ("1,200").
func parseNumber(in string, decimal byte) (float64, error) {
	s := strings.TrimSpace(in)
	if decimal == ',' {
		s = groupSpaces.Replace(s)
		switch {
		case strings.Contains(s, ","):
			s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		case dotGrouped.MatchString(s):
			s = strings.ReplaceAll(s, ".", "")
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, nil
		}
		return 0, fmt.Errorf("unsupported value %q", in)
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n, nil
	}
	if commaGrouped.MatchString(s) {
		if n, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return n, nil
		}
	}
	if strings.Contains(s, ",") {
		de := strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		if n, err := strconv.ParseFloat(de, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("unsupported value %q", in)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02.01.2006",
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t != nil {
			return *t, nil
		}
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unsupported date %q", t)
	}
	return time.Time{}, fmt.Errorf("unsupported value of type %T", v)
}
