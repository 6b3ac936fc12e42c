// Package store talks to the external template store over HTTP.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dgallion1/mietdoc/internal/catalog"
	"github.com/dgallion1/mietdoc/internal/doctree"
)

// Template is a stored template record.
type Template struct {
	ID                   string             `json:"id"`
	Title                string             `json:"title"`
	Category             string             `json:"category"`
	Content              doctree.Document   `json:"content"`
	KontextAnforderungen []catalog.Category `json:"kontext_anforderungen"`
	ContentHash          string             `json:"content_hash,omitempty"`
	UpdatedAt            time.Time          `json:"updated_at,omitzero"`
}

// NotFoundError is returned when the store has no template with the id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template %s not found", e.ID)
}

// ListOptions filters ListTemplates.
type ListOptions struct {
	Category string
	Limit    int
}

// Client communicates with the template store HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PutTemplate stores or replaces the template under t.ID.
func (c *Client) PutTemplate(ctx context.Context, t Template) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.templateURL(t.ID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("put template: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("put template %s: status %d: %s", t.ID, resp.StatusCode, string(respBody))
	}
	return nil
}

// GetTemplate retrieves a template by id.
func (c *Client) GetTemplate(ctx context.Context, id string) (*Template, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.templateURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{ID: id}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("get template %s: status %d: %s", id, resp.StatusCode, string(respBody))
	}

	var t Template
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return &t, nil
}

// ListTemplates returns stored templates, optionally filtered by category.
func (c *Client) ListTemplates(ctx context.Context, opts ListOptions) ([]Template, error) {
	q := url.Values{}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	u := c.baseURL + "/templates"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("list templates: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Templates []Template `json:"templates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if result.Templates == nil {
		result.Templates = []Template{}
	}
	return result.Templates, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) templateURL(id string) string {
	return c.baseURL + "/templates/" + url.PathEscape(id)
}

func (c *Client) authorize(r *http.Request) {
	if c.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
