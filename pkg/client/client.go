package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rackstat/rackstat/internal/store"
)

// Client talks to a running rackstat server.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string // e.g. http://localhost:8080/api
	Timeout time.Duration
	Logger  *slog.Logger // optional
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a rackstat API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  &http.Client{Timeout: config.Timeout},
		logger:  config.Logger,
	}
}

// Computers returns all records in ID order.
func (c *Client) Computers(ctx context.Context) ([]store.Record, error) {
	var out []store.Record
	if err := c.get(ctx, "/computers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Computer returns a single record.
func (c *Client) Computer(ctx context.Context, id string) (store.Record, error) {
	var out store.Record
	err := c.get(ctx, "/computers?id="+url.QueryEscape(id), &out)
	return out, err
}

// Stats returns derived counters.
func (c *Client) Stats(ctx context.Context) (store.Stats, error) {
	var out store.Stats
	err := c.get(ctx, "/stats", &out)
	return out, err
}

// Toggle flips the status of id and returns the new record.
func (c *Client) Toggle(ctx context.Context, id string) (store.Record, error) {
	var out store.Record
	err := c.post(ctx, "/toggle", toggleRequest{ComputerID: id}, &out)
	return out, err
}

// BulkSet sets every record to status and returns the updated count.
func (c *Client) BulkSet(ctx context.Context, status store.Status) (int, error) {
	var out bulkResponse
	if err := c.post(ctx, "/bulk", bulkRequest{Status: string(status)}, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// UpdateNotes replaces the notes of id. Empty notes clear the field.
func (c *Client) UpdateNotes(ctx context.Context, id, notes string) (store.Record, error) {
	var out store.Record
	err := c.post(ctx, "/notes", notesRequest{ComputerID: id, Notes: &notes}, &out)
	return out, err
}

// Export downloads an export in the given format ("csv", "json" or "page")
// and returns the body and the server-suggested filename.
func (c *Client) Export(ctx context.Context, format string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/export/"+format, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, "", decodeError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, suggestedFilename(resp.Header.Get("Content-Disposition")), nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	c.logger.Debug("api request", "method", req.Method, "url", req.URL.String())
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError turns an API error body back into the store taxonomy so CLI
// callers can distinguish caller errors from storage failures.
func decodeError(resp *http.Response) error {
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", store.ErrNotFound, er.Error)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", store.ErrInvalidStatus, er.Error)
	default:
		return fmt.Errorf("server error: %s", er.Error)
	}
}

func suggestedFilename(disposition string) string {
	const marker = "filename="
	i := strings.Index(disposition, marker)
	if i < 0 {
		return ""
	}
	return strings.Trim(disposition[i+len(marker):], `"`)
}
