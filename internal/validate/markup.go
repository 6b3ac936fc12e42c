package validate

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// markupGate is a cheap pre-check; only strings that match it are tokenized.
var markupGate = regexp.MustCompile(
	`(?i)(<\s*/?\s*(script|iframe|object|embed|style)\b|\bon[a-z]+\s*=|javascript\s*:)`,
)

var forbiddenTags = map[string]bool{
	"script": true,
	"iframe": true,
	"object": true,
	"embed":  true,
	"style":  true,
}

// FindMarkup returns a short description of each disallowed construct in s:
// script-like tags, on* event handler attributes and javascript: URLs. It
// reports, it never rewrites s.
func FindMarkup(s string) []string {
	if !markupGate.MatchString(s) {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			tok := z.Token()
			if forbiddenTags[tok.Data] {
				add(fmt.Sprintf("<%s> tag", tok.Data))
			}
			for _, a := range tok.Attr {
				if strings.HasPrefix(a.Key, "on") && len(a.Key) > 2 {
					add(fmt.Sprintf("%s event handler", a.Key))
				}
				if isJavascriptURL(a.Val) {
					add("javascript: URL")
				}
			}
		case html.TextToken:
			text := string(z.Text())
			if m := eventAttrRe.FindStringSubmatch(text); m != nil {
				add(fmt.Sprintf("%s event handler", strings.ToLower(m[1])))
			}
			if isJavascriptURL(text) {
				add("javascript: URL")
			}
		}
	}
	// The tokenizer reads "< script>" as text; report what the gate saw.
	if len(out) == 0 {
		add(fmt.Sprintf("markup %q", markupGate.FindString(s)))
	}
	return out
}

var (
	eventAttrRe = regexp.MustCompile(`(?i)\b(on[a-z]+)\s*=`)
	jsURLRe     = regexp.MustCompile(`(?i)javascript\s*:`)
)

func isJavascriptURL(s string) bool {
	return jsURLRe.MatchString(s)
}
