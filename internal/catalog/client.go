// Package catalog is a thin HTTP client for the document catalog service:
// documents, tags and the job queue status.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 8 << 20

// Client talks to one catalog server. Safe for concurrent use.
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter // paces mutations only; reads are not limited
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithMutationRate limits mutating calls to r per second with the given burst.
// rate.Inf disables limiting.
func WithMutationRate(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// NewClient creates a Client for baseURL (e.g. "http://localhost:8000").
// The timeout applies to each request; a timeout surfaces as a TransportError.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(10), 4),
		userAgent: "docfeed/0.1",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListDocuments fetches one page of documents. params carries count, offset
// and the optional order, query and tag parameters.
func (c *Client) ListDocuments(ctx context.Context, params url.Values) ([]Document, error) {
	var docs []Document
	if err := c.getJSON(ctx, "list documents", "/documents/json", params, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// GetDocument fetches a single document.
func (c *Client) GetDocument(ctx context.Context, id DocID) (Document, error) {
	var doc Document
	err := c.getJSON(ctx, "get document", "/documents/"+docPath(id)+"/json", nil, &doc)
	return doc, err
}

// ListTags returns every tag, deactivated ones included.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.getJSON(ctx, "list tags", "/tags/json", nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// JobStatus returns the current state of the processing queue.
func (c *Client) JobStatus(ctx context.Context) (JobStatus, error) {
	var status JobStatus
	err := c.getJSON(ctx, "job status", "/api/job", nil, &status)
	return status, err
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id DocID) error {
	return c.mutate(ctx, "delete document", http.MethodDelete, "/documents/"+docPath(id), nil, nil)
}

// ReprocessDocument queues a document for reimport. forceOCR skips the
// embedded text layer and runs OCR.
func (c *Client) ReprocessDocument(ctx context.Context, id DocID, forceOCR bool) error {
	var q url.Values
	if forceOCR {
		q = url.Values{"ocr": {"true"}}
	}
	return c.mutate(ctx, "reprocess document", http.MethodPut, "/documents/"+docPath(id)+"/reimport", q, nil)
}

// AddTag attaches tag to a document. Adding a present tag is a no-op server side.
func (c *Client) AddTag(ctx context.Context, id DocID, tag TagID) error {
	return c.mutate(ctx, "add tag", http.MethodPost, tagPath(id, tag), nil, nil)
}

// RemoveTag detaches tag from a document.
func (c *Client) RemoveTag(ctx context.Context, id DocID, tag TagID) error {
	return c.mutate(ctx, "remove tag", http.MethodDelete, tagPath(id, tag), nil, nil)
}

// PatchDocument updates metadata fields of a document.
func (c *Client) PatchDocument(ctx context.Context, id DocID, patch Patch) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	return c.mutate(ctx, "patch document", http.MethodPatch, "/documents/"+docPath(id), nil, body)
}

// DeleteTag removes a tag from the server's tag repository.
func (c *Client) DeleteTag(ctx context.Context, id TagID) error {
	return c.mutate(ctx, "delete tag", http.MethodDelete, "/api/tags/"+strconv.FormatUint(uint64(id), 10), nil, nil)
}

func docPath(id DocID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func tagPath(id DocID, tag TagID) string {
	return "/documents/" + docPath(id) + "/tags/" + strconv.FormatUint(uint64(tag), 10)
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	body, err := c.do(ctx, op, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, op, method, path string, query url.Values, body []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}
	_, err := c.do(ctx, op, method, path, query, body)
	return err
}

// do performs one request and returns the body of a 2xx response.
// Every failure short of a readable 2xx is a TransportError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, &TransportError{Op: op, Err: ctx.Err()}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		cause := errors.New(msg)
		if resp.StatusCode == http.StatusNotFound {
			cause = ErrNotFound
		}
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: cause}
	}

	return data, nil
}
