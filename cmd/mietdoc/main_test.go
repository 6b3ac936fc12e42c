package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/mietdoc/internal/catalog"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const letter = "Hallo @mieter.name,\nMiete: @wohnung.miete\n"

func TestProcess_Text(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "brief.txt", letter)
	ctx := writeFile(t, dir, "kontext.yaml", "mieter:\n  name: Max Mustermann\nwohnung:\n  miete: 1200\n")

	stdout, stderr, err := run(t, "process", "-t", tpl, "-c", ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hallo Max Mustermann,\nMiete: 1.200,00 €\n", stdout)
	assert.Empty(t, stderr)
}

func TestProcess_JSONReportsUnresolved(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "brief.txt", "Tel: @mieter.telefon")
	ctx := writeFile(t, dir, "kontext.json", `{"mieter":{"name":"Max"}}`)

	stdout, stderr, err := run(t, "process", "-t", tpl, "-c", ctx, "-o", "json")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	var res struct {
		UnresolvedPlaceholders []string `json:"unresolvedPlaceholders"`
		Success                bool     `json:"success"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.True(t, res.Success)
	assert.Equal(t, []string{"mieter.telefon"}, res.UnresolvedPlaceholders)
}

func TestProcess_TextWarnsUnresolved(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "brief.txt", "Tel: @mieter.telefon")

	stdout, stderr, err := run(t, "process", "-t", tpl)
	require.NoError(t, err)
	assert.Equal(t, "Tel: [Mieter Telefon]\n", stdout)
	assert.Contains(t, stderr, "mieter.telefon")
}

func TestProcess_YAML(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "brief.txt", "Hallo")

	stdout, _, err := run(t, "process", "-t", tpl, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "success: true")
	assert.Contains(t, stdout, "unresolvedPlaceholders: []")
}

func TestUnsupportedOutputFormat(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "brief.txt", "Hallo")
	_, _, err := run(t, "process", "-t", tpl, "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "mahnung.txt", letter)

	stdout, _, err := run(t, "validate", "-t", tpl, "--category", "mahnung")
	require.NoError(t, err)
	assert.Contains(t, stdout, "valid")

	stdout, _, err = run(t, "validate", "-t", tpl, "--category", "foo")
	require.ErrorIs(t, err, errInvalid)
	assert.Contains(t, stdout, `unknown category "foo"`)
}

func TestPlaceholders_Search(t *testing.T) {
	stdout, _, err := run(t, "placeholders", "miete", "--limit", "2", "-o", "json")
	require.NoError(t, err)

	var defs []catalog.Definition
	require.NoError(t, json.Unmarshal([]byte(stdout), &defs))
	assert.NotEmpty(t, defs)
	assert.LessOrEqual(t, len(defs), 2)
}

func TestPlaceholders_Template(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "brief.txt", letter)

	stdout, _, err := run(t, "placeholders", "-t", tpl)
	require.NoError(t, err)
	assert.Contains(t, stdout, "@mieter.name")
	assert.Contains(t, stdout, "@wohnung.miete")
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "brief.txt", letter)
	ctx := writeFile(t, dir, "haus.yaml", "wohnung:\n  miete: 800\n")
	entities := writeFile(t, dir, "mieter.csv", "id,name\nm1,Max\nm2,Erika\n")
	out := filepath.Join(dir, "out")

	stdout, _, err := run(t, "generate", "-t", tpl, "-c", ctx, "--category", "mieter",
		"--entities", entities, "--out-dir", out, "--format", "md")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 succeeded, 0 failed")

	data, err := os.ReadFile(filepath.Join(out, "001-m1.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Hallo Max,")
	assert.Contains(t, string(data), "800,00 €")
	_, err = os.Stat(filepath.Join(out, "002-m2.md"))
	assert.NoError(t, err)
}

func TestGenerate_YAMLEntitiesPartial(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "brief.txt", "Hallo @mieter.name")
	entities := writeFile(t, dir, "mieter.yaml", "- name: Max\n- null\n")

	stdout, _, err := run(t, "generate", "-t", tpl, "--entities", entities)
	require.NoError(t, err)
	assert.Contains(t, stdout, "FAIL #2: entity is empty")
	assert.Contains(t, stdout, "1 succeeded, 1 failed")
}

func TestGenerate_InvalidCategory(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "brief.txt", "x")
	entities := writeFile(t, dir, "e.json", `[]`)

	_, _, err := run(t, "generate", "-t", tpl, "--entities", entities, "--category", "datum")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bulk category")
}

func TestLoadContext_UnknownCategory(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "k.yaml", "mandant:\n  name: x\n")
	_, err := loadContext(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown category "mandant"`)
}
