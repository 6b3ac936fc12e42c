package validate

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
	"github.com/dgallion1/mietdoc/internal/processor"
	"github.com/dgallion1/mietdoc/internal/resolve"
)

func validInput() Input {
	return Input{
		Title:    "Mietvertrag",
		Category: "vertrag",
		Content:  doctree.Legacy("Zwischen @mieter.name und uns über @wohnung.adresse in @haus.name."),
	}
}

func contains(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestValidate_ValidPasses(t *testing.T) {
	res := New(catalog.Default()).Validate(validInput())
	if !res.IsValid {
		t.Errorf("expected valid, got errors %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", res.Warnings)
	}
	want := []string{"mieter.name", "wohnung.adresse", "haus.name"}
	if !reflect.DeepEqual(res.Placeholders, want) {
		t.Errorf("expected %v, got %v", want, res.Placeholders)
	}
}

func TestValidate_ScriptInTextNode(t *testing.T) {
	in := validInput()
	in.Content = doctree.Tree(doctree.NewDoc(
		doctree.NewBlock(doctree.TypeParagraph, doctree.NewText("Hallo <script>alert(1)</script>")),
	))
	res := New(catalog.Default()).Validate(in)
	if res.IsValid {
		t.Fatal("expected invalid")
	}
	if !contains(res.Errors, "<script> tag") {
		t.Errorf("expected script error, got %v", res.Errors)
	}
}

func TestValidate_JavascriptLinkMark(t *testing.T) {
	text := doctree.NewText("hier klicken", doctree.Mark{Type: "link", Attrs: map[string]any{"href": "javascript:alert(1)"}})
	in := validInput()
	in.Content = doctree.Tree(doctree.NewDoc(doctree.NewBlock(doctree.TypeParagraph, text)))
	res := New(catalog.Default()).Validate(in)
	if res.IsValid || !contains(res.Errors, "javascript: URL") {
		t.Errorf("expected javascript URL error, got %v", res.Errors)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	v := New(catalog.Default())
	tests := []struct {
		name  string
		input Input
		want  string
	}{
		{"empty title", Input{Title: "  ", Category: "vertrag"}, "title is required"},
		{"empty category", Input{Title: "T"}, "category is required"},
		{"unknown category", Input{Title: "T", Category: "einkaufsliste"}, `unknown category "einkaufsliste"`},
	}
	for _, tt := range tests {
		res := v.Validate(tt.input)
		if res.IsValid {
			t.Errorf("%s: expected invalid", tt.name)
		}
		if !contains(res.Errors, tt.want) {
			t.Errorf("%s: expected error %q, got %v", tt.name, tt.want, res.Errors)
		}
	}
}

func TestValidate_MalformedContent(t *testing.T) {
	in := validInput()
	in.Content = doctree.Parse([]byte(`{"content":[{"text":"x"}]}`))
	res := New(catalog.Default()).Validate(in)
	if res.IsValid || !contains(res.Errors, "not a valid document") {
		t.Errorf("expected malformed error, got %v", res.Errors)
	}
	if len(res.Placeholders) != 0 {
		t.Errorf("expected no placeholders, got %v", res.Placeholders)
	}
}

func TestValidate_NullContentWarns(t *testing.T) {
	in := Input{Title: "Notiz", Category: "sonstiges", Content: doctree.Parse([]byte(`null`))}
	res := New(catalog.Default()).Validate(in)
	if !res.IsValid {
		t.Errorf("expected valid, got %v", res.Errors)
	}
	if !contains(res.Warnings, "content is empty") {
		t.Errorf("expected empty warning, got %v", res.Warnings)
	}
}

func TestValidate_InvalidVariableID(t *testing.T) {
	in := validInput()
	in.Content = doctree.Tree(doctree.NewDoc(doctree.NewVariable("mieter name", "x")))
	res := New(catalog.Default()).Validate(in)
	if res.IsValid || !contains(res.Errors, `invalid placeholder id "mieter name"`) {
		t.Errorf("expected invalid id error, got %v", res.Errors)
	}
}

func TestValidate_InvalidMentionID(t *testing.T) {
	in := validInput()
	mention := &doctree.Node{Type: doctree.TypeMention, Attrs: map[string]any{"id": "wohnung.miete.netto.x", "label": "Miete"}}
	in.Content = doctree.Tree(doctree.NewDoc(doctree.NewBlock(doctree.TypeParagraph,
		doctree.NewText("Miete: "), mention,
	)))
	res := New(catalog.Default()).Validate(in)
	if res.IsValid || !contains(res.Errors, `invalid placeholder id "wohnung.miete.netto.x"`) {
		t.Errorf("expected invalid mention id error, got %v", res.Errors)
	}
}

func TestValidate_CategoryCompatibilityWarning(t *testing.T) {
	in := validInput()
	in.Content = doctree.Legacy("Sehr geehrte/r @mieter.name")
	res := New(catalog.Default()).Validate(in)
	if !res.IsValid {
		t.Fatalf("expected warning only, got errors %v", res.Errors)
	}
	if !contains(res.Warnings, "does not use wohnung, haus") {
		t.Errorf("expected compatibility warning, got %v", res.Warnings)
	}
}

func TestValidate_UnknownPlaceholderWarning(t *testing.T) {
	in := Input{Title: "T", Category: "sonstiges", Content: doctree.Legacy("@mieter.schuhgroesse")}
	res := New(catalog.Default()).Validate(in)
	if !res.IsValid {
		t.Errorf("expected valid, got %v", res.Errors)
	}
	if !contains(res.Warnings, `unknown placeholder "mieter.schuhgroesse"`) {
		t.Errorf("expected unknown placeholder warning, got %v", res.Warnings)
	}
}

func TestValidate_PlaceholdersMatchUsed(t *testing.T) {
	r, err := resolve.New(catalog.Default(), resolve.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := processor.New(catalog.Default(), r)
	doc := doctree.Parse([]byte(`{"type":"doc","content":[
		{"type":"variable","attrs":{"id":"wohnung.miete"}},
		{"type":"paragraph","content":[{"type":"mention","attrs":{"id":"datum.heute"}},{"type":"variable","attrs":{"id":"wohnung.miete"}}]}
	]}`))
	res := New(catalog.Default()).Validate(Input{Title: "T", Category: "sonstiges", Content: doc})
	var ids []string
	for _, d := range p.UsedPlaceholders(doc) {
		ids = append(ids, d.ID)
	}
	if !reflect.DeepEqual(res.Placeholders, ids) {
		t.Errorf("expected %v, got %v", ids, res.Placeholders)
	}
}

func TestRequiredContext(t *testing.T) {
	doc := doctree.Legacy("@wohnung.miete @foo.bar @mieter.name @wohnung.adresse")
	want := []catalog.Category{catalog.Wohnung, catalog.Mieter}
	if got := RequiredContext(doc); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFindMarkup(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Miete bitte bis zum 3. überweisen.", nil},
		{"<b>fett</b> und <i>kursiv</i>", nil},
		{"Person=Max", nil},
		{"<script>alert(1)</script>", []string{"<script> tag"}},
		{"<img src=x onerror=alert(1)>", []string{"onerror event handler"}},
		{`<a href="javascript:alert(1)">x</a>`, []string{"javascript: URL"}},
		{"<IFRAME src=x></IFRAME>", []string{"<iframe> tag"}},
		{"Text mit onclick=doIt()", []string{"onclick event handler"}},
	}
	for _, tt := range tests {
		got := FindMarkup(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FindMarkup(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
	if len(FindMarkup("< script>")) == 0 {
		t.Error("expected spaced script tag to be flagged")
	}
}
