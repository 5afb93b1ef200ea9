// Package httpremote implements engine.RemoteClient over a JSON HTTP API.
// Each entity kind maps to a REST collection: POST /{collection} creates,
// PUT /{collection}/{id} updates, DELETE /{collection}/{id} deletes, and
// GET /{collection}?userId={id} returns the full snapshot.
package httpremote

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

	"github.com/openlift/syncengine/engine"
	"github.com/openlift/syncengine/entity"
	syncErrors "github.com/openlift/syncengine/errors"
	"github.com/openlift/syncengine/logging"
)

// Limits bounds response handling.
type Limits struct {
	// MaxBodyBytes is the maximum response body size in bytes.
	MaxBodyBytes int64
}

// Client is an HTTP implementation of engine.RemoteClient.
type Client struct {
	baseURL   string
	http      *http.Client
	limits    Limits
	authToken string
	logger    *slog.Logger
}

// Option configures a Client using the functional options pattern.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLimits sets response size limits.
func WithLimits(l Limits) Option {
	return func(c *Client) {
		c.limits = l
	}
}

// WithAuthToken attaches a bearer token to every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a remote client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limits:  Limits{MaxBodyBytes: 8 << 20}, // 8MB
		logger:  logging.Default().Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createResponse struct {
	ID string `json:"id"`
}

// Create implements engine.RemoteClient.
func (c *Client) Create(ctx context.Context, kind entity.Kind, payload map[string]any) (string, error) {
	var resp createResponse
	err := c.do(ctx, http.MethodPost, c.collectionURL(kind, ""), payload, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", syncErrors.NewValidationError(syncErrors.OpRemote,
			fmt.Errorf("%s create response carried no id", kind.Collection()))
	}
	return resp.ID, nil
}

// Update implements engine.RemoteClient.
func (c *Client) Update(ctx context.Context, kind entity.Kind, remoteID string, payload map[string]any) error {
	return c.do(ctx, http.MethodPut, c.collectionURL(kind, remoteID), payload, nil)
}

// Delete implements engine.RemoteClient.
func (c *Client) Delete(ctx context.Context, kind entity.Kind, remoteID string) error {
	return c.do(ctx, http.MethodDelete, c.collectionURL(kind, remoteID), nil, nil)
}

// List implements engine.RemoteClient.
func (c *Client) List(ctx context.Context, kind entity.Kind, userID string) ([]engine.RemoteRecord, error) {
	u := c.collectionURL(kind, "") + "?userId=" + url.QueryEscape(userID)

	var raw []map[string]any
	if err := c.do(ctx, http.MethodGet, u, nil, &raw); err != nil {
		return nil, err
	}

	records := make([]engine.RemoteRecord, 0, len(raw))
	for _, item := range raw {
		rec := engine.RemoteRecord{Fields: item}
		if id, ok := item["id"].(string); ok {
			rec.ID = id
			delete(item, "id")
		}
		if ts, ok := item["updatedAt"].(float64); ok {
			rec.UpdatedAt = int64(ts)
		}
		if rec.ID == "" {
			return nil, syncErrors.NewValidationError(syncErrors.OpRemote,
				fmt.Errorf("%s snapshot entry carried no id", kind.Collection()))
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) collectionURL(kind entity.Kind, remoteID string) string {
	u := c.baseURL + "/" + kind.Collection()
	if remoteID != "" {
		u += "/" + url.PathEscape(remoteID)
	}
	return u
}

// do runs one JSON request/response round trip. Non-2xx responses become
// errors carrying the server's message so the engine can surface it
// verbatim.
func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return syncErrors.NewValidationError(syncErrors.OpRemote, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return syncErrors.NewNetworkError(syncErrors.OpRemote, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("remote request failed", "method", method, "url", u, "error", err)
		return syncErrors.NewNetworkError(syncErrors.OpRemote, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.limits.MaxBodyBytes)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return syncErrors.NewNetworkError(syncErrors.OpRemote, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return syncErrors.NewNetworkError(syncErrors.OpRemote,
			fmt.Errorf("%s %s: %s", method, u, errorMessage(resp.StatusCode, raw)))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return syncErrors.NewValidationError(syncErrors.OpRemote,
				fmt.Errorf("decode %s %s response: %w", method, u, err))
		}
	}
	return nil
}

// errorMessage extracts the server's human-readable message from an error
// body, falling back to the HTTP status text.
func errorMessage(status int, body []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	if len(body) > 0 && len(body) <= 256 {
		return strings.TrimSpace(string(body))
	}
	return http.StatusText(status)
}
