package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/config"
	"github.com/dgallion1/mietdoc/internal/pipeline"
	"github.com/dgallion1/mietdoc/internal/stats"
	"github.com/dgallion1/mietdoc/internal/store"
)

const testKey = "test-key"

type memStore struct {
	mu        sync.Mutex
	templates map[string]store.Template
}

func newMemStore() *memStore {
	return &memStore{templates: map[string]store.Template{}}
}

func (m *memStore) GetTemplate(_ context.Context, id string) (*store.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, &store.NotFoundError{ID: id}
	}
	return &t, nil
}

func (m *memStore) PutTemplate(_ context.Context, t store.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return nil
}

func (m *memStore) ListTemplates(_ context.Context, opts store.ListOptions) ([]store.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Template{}
	for _, t := range m.templates {
		if opts.Category == "" || t.Category == opts.Category {
			out = append(out, t)
		}
	}
	return out, nil
}

func testConfig() config.Config {
	return config.Config{
		MietdocAPIKey:   testKey,
		Locale:          "de-DE",
		CurrencySymbol:  "€",
		BulkConcurrency: 2,
		MaxEntities:     3,
		WorkerCount:     1,
		MaxQueueSize:    4,
		MaxUploadBytes:  1 << 20,
		JobTTL:          time.Hour,
		InjectToday:     true,
	}
}

func newTestServer(t *testing.T, templates TemplateStore) *Server {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := testConfig()
	eng, err := NewEngine(cfg, log)
	require.NoError(t, err)

	st := stats.NewGeneration(time.Hour)
	orch := pipeline.NewOrchestrator(cfg, eng.Bulk, st, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	s := NewServer(eng, orch, templates, st, log, cfg)
	s.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth_NoAuth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/template-categories", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"missing authorization"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/template-categories", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListPlaceholders(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/placeholders?q=miete&limit=2&prefix=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["placeholders"].([]any)
	assert.NotEmpty(t, list)
	assert.LessOrEqual(t, len(list), 2)

	rec = do(t, s, http.MethodGet, "/api/placeholders?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTemplateCategories(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/template-categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["categories"], 7)
}

func TestProcess_Legacy(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/templates/process",
		`{"content":"Miete: @wohnung.miete, Tel: @mieter.telefon","context":{"wohnung":{"miete":1200}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Miete: 1.200,00 €, Tel: [Mieter Telefon]", body["processedContent"])
	assert.Equal(t, []any{"mieter.telefon"}, body["unresolvedPlaceholders"])
	assert.Equal(t, true, body["success"])

	top := s.stats.TopUnresolved(1)
	require.Len(t, top, 1)
	assert.Equal(t, "mieter.telefon", top[0].ID)
}

func TestProcess_InjectsToday(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/templates/process", `{"content":"Berlin, @datum.heute"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Berlin, 19.10.2026", decode(t, rec)["processedContent"])

	// A supplied datum wins.
	rec = do(t, s, http.MethodPost, "/api/templates/process",
		`{"content":"@datum.heute","context":{"datum":{"heute":"2025-01-02"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "02.01.2025", decode(t, rec)["processedContent"])
}

func TestProcess_Tree(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/templates/process", `{
		"content": {"type":"doc","content":[{"type":"paragraph","content":[
			{"type":"text","text":"Sehr geehrte/r "},
			{"type":"variable","attrs":{"id":"mieter.name","label":"Name"},"marks":[{"type":"bold"}]}
		]}]},
		"context": {"mieter": {"vorname":"Max","nachname":"Mustermann"}}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		ProcessedContent json.RawMessage `json:"processedContent"`
		Success          bool            `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Contains(t, string(res.ProcessedContent), `"text":"Max Mustermann"`)
	assert.Contains(t, string(res.ProcessedContent), `"type":"bold"`)
	assert.NotContains(t, string(res.ProcessedContent), `"variable"`)
}

func TestProcess_BadBody(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/templates/process", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "invalid request body")
}

func TestValidate(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/templates/validate",
		`{"title":"Mahnung","category":"mahnung","content":"Hallo @mieter.name, Miete @wohnung.miete"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["isValid"])
	assert.ElementsMatch(t, []any{"mieter.name", "wohnung.miete"}, body["placeholders"])

	rec = do(t, s, http.MethodPost, "/api/templates/validate",
		`{"title":"","category":"mahnung","content":"<script>alert(1)</script>"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, false, body["isValid"])
	assert.Contains(t, body["errors"], "title is required")
}

func TestUsedPlaceholders(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/templates/placeholders",
		`{"content":"@wohnung.miete @mieter.name @wohnung.miete"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["placeholders"], 2)
	assert.ElementsMatch(t, []any{"wohnung", "mieter"}, body["categories"])
}

func TestContextCheck(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/templates/context-check",
		`{"content":"@mieter.name @haus.strasse @datum.heute","context":{"mieter":{"name":"Max"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["isValid"])
	assert.Equal(t, []any{"haus"}, body["missingContext"])
	assert.Equal(t, map[string]any{"total": float64(3), "resolved": float64(2)}, body["coverage"])
	assert.Equal(t, float64(66), body["coveragePercent"])
}

func TestGenerate(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/templates/generate", `{
		"content": "Hallo @mieter.name",
		"category": "mieter",
		"entities": [{"id":"m1","name":"Max"}, null, {"id":"m3","name":"Erika"}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(2), body["succeededCount"])
	assert.Equal(t, float64(1), body["failedCount"])
	results := body["perEntityResults"].([]any)
	require.Len(t, results, 3)
	first := results[0].(map[string]any)
	assert.Equal(t, "m1", first["entityId"])
	assert.Equal(t, "Hallo Max", first["result"].(map[string]any)["processedContent"])
	assert.Equal(t, "entity is empty", results[1].(map[string]any)["reason"])
}

func TestGenerate_Rejects(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name string
		body string
	}{
		{"unknown category", `{"content":"x","category":"mandant","entities":[]}`},
		{"datum category", `{"content":"x","category":"datum","entities":[]}`},
		{"too many", `{"content":"x","category":"mieter","entities":[{},{},{},{}]}`},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodPost, "/api/templates/generate", tt.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
	}
}

func TestGenerateAsync(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/templates/generate/async",
		`{"content":"Hallo @mieter.name","category":"mieter","entities":[{"name":"Max"}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decode(t, rec)["job_id"].(string)
	require.NotEmpty(t, jobID)

	job := s.orchestrator.GetJob(jobID)
	require.NotNil(t, job)
	require.Eventually(t, func() bool {
		return job.Snapshot().Status.Done()
	}, 5*time.Second, 10*time.Millisecond)

	rec = do(t, s, http.MethodGet, "/api/jobs/"+jobID+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(pipeline.StatusCompleted), decode(t, rec)["status"])

	rec = do(t, s, http.MethodGet, "/api/jobs/"+jobID+"/result", "")
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, float64(1), result["succeededCount"])

	rec = do(t, s, http.MethodGet, "/api/jobs/nope/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, s *Server, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestImportTemplate(t *testing.T) {
	s := newTestServer(t, nil)
	rec := upload(t, s, "/api/templates/import", "mahnung.md", "# Mahnung\n\nSehr geehrte/r @mieter.name,\n")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "mahnung", body["title"])
	placeholders := body["placeholders"].([]any)
	require.Len(t, placeholders, 1)
	assert.Equal(t, "mieter.name", placeholders[0].(map[string]any)["id"])

	rec = upload(t, s, "/api/templates/import", "vorlage.exe", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportEntities(t *testing.T) {
	s := newTestServer(t, nil)
	rec := upload(t, s, "/api/entities/import", "mieter.csv", "id,name\nm1,Max\nm2,Erika\n")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["count"])

	rec = upload(t, s, "/api/entities/import", "mieter.csv", "id\n1\n2\n3\n4\n")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestExport(t *testing.T) {
	s := newTestServer(t, nil)
	doc := `{"title":"Mahnung","content":{"type":"doc","content":[
		{"type":"heading","attrs":{"level":1},"content":[{"type":"text","text":"Mahnung"}]},
		{"type":"paragraph","content":[{"type":"text","text":"Bitte zahlen."}]}
	]}}`

	rec := do(t, s, http.MethodPost, "/api/templates/export?format=md", doc)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Mahnung\n\nBitte zahlen.\n", rec.Body.String())
	assert.Equal(t, `attachment; filename="Mahnung.md"`, rec.Header().Get("Content-Disposition"))

	rec = do(t, s, http.MethodPost, "/api/templates/export?format=docx", doc)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = do(t, s, http.MethodPost, "/api/templates/export?format=rtf", doc)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoredTemplates_Disabled(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/templates", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoredTemplates(t *testing.T) {
	ms := newMemStore()
	s := newTestServer(t, ms)

	rec := do(t, s, http.MethodPost, "/api/templates",
		`{"id":"t1","title":"Mahnung","category":"mahnung","content":"Hallo @mieter.name, offen: @wohnung.miete"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	stored := ms.templates["t1"]
	assert.ElementsMatch(t, []catalog.Category{catalog.Mieter, catalog.Wohnung}, stored.KontextAnforderungen)
	assert.Len(t, stored.ContentHash, 64)

	rec = do(t, s, http.MethodPost, "/api/templates", `{"title":"","category":"mahnung","content":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/templates/t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mahnung", decode(t, rec)["title"])

	rec = do(t, s, http.MethodGet, "/api/templates/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/templates?category=mahnung", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["templates"], 1)

	rec = do(t, s, http.MethodPost, "/api/templates/t1/process",
		`{"context":{"mieter":{"name":"Max"},"wohnung":{"miete":"850"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hallo Max, offen: 850,00 €", decode(t, rec)["processedContent"])

	rec = do(t, s, http.MethodPost, "/api/templates/t1/generate",
		`{"category":"mieter","context":{"wohnung":{"miete":500}},"entities":[{"name":"A"},{"name":"B"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["succeededCount"])

	rec = do(t, s, http.MethodPost, "/api/templates/t1/generate?async=true",
		`{"category":"mieter","entities":[{"name":"A"}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	job := s.orchestrator.GetJob(decode(t, rec)["job_id"].(string))
	require.NotNil(t, job)
	assert.Equal(t, "t1", job.Snapshot().TemplateID)
}

func TestGenerationStats(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, http.MethodPost, "/api/templates/process", `{"content":"@mieter.telefon"}`)

	rec := do(t, s, http.MethodGet, "/api/stats/generation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode(t, rec)["stats"].(map[string]any)
	assert.Equal(t, float64(1), st["process"].(map[string]any)["count"])
	top := st["top_unresolved"].([]any)
	require.Len(t, top, 1)
	assert.Equal(t, "mieter.telefon", top[0].(map[string]any)["id"])
}
