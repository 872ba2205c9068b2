// Package rest implements domain.DocumentStore against an HTTP document API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kitbuilder/backend/internal/domain"
)

var _ domain.DocumentStore = (*Client)(nil)

const (
	maxReadAttempts  = 3
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 10
	apiKeyHeader     = "X-API-Key"
)

// Config holds document API connection settings
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client talks to the document API. Reads are retried on transient failures; writes are not.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	logger      *zap.Logger
}

// listResponse is the body returned by the list endpoint. Total counts all matches before pagination.
type listResponse struct {
	Total     int                `json:"total"`
	Documents []domain.RawRecord `json:"documents"`
}

type writeRequest struct {
	DocumentID string         `json:"documentId,omitempty"`
	Data       map[string]any `json:"data"`
}

// NewClient creates a new document API client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRateLimit
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		backoff:     exponentialBackoff,
		logger:      logger,
	}
}

// exponentialBackoff returns the wait before the next attempt: 500ms, 1s, 2s, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// ListDocuments returns one page of documents matching the fragments
func (c *Client) ListDocuments(ctx context.Context, collection string, fragments []domain.Fragment) (domain.DocumentList, error) {
	reqURL, err := c.listURL(collection, fragments)
	if err != nil {
		return domain.DocumentList{}, err
	}

	var resp listResponse
	if err := c.read(ctx, "list "+collection, reqURL, &resp); err != nil {
		return domain.DocumentList{}, err
	}
	if resp.Documents == nil {
		resp.Documents = []domain.RawRecord{}
	}
	return domain.DocumentList{Documents: resp.Documents, Total: len(resp.Documents)}, nil
}

// CountDocuments asks for a single document and reads the unpaginated total
func (c *Client) CountDocuments(ctx context.Context, collection string, fragments []domain.Fragment) (int, error) {
	predicates := append(domain.WithoutPagination(fragments), domain.Limit(1))
	reqURL, err := c.listURL(collection, predicates)
	if err != nil {
		return 0, err
	}

	var resp listResponse
	if err := c.read(ctx, "count "+collection, reqURL, &resp); err != nil {
		return 0, err
	}
	return resp.Total, nil
}

func (c *Client) GetDocument(ctx context.Context, collection, id string) (domain.RawRecord, error) {
	var doc domain.RawRecord
	if err := c.read(ctx, "get "+collection+"/"+id, c.documentURL(collection, id), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.RawRecord, error) {
	body := writeRequest{DocumentID: id, Data: fields}
	var doc domain.RawRecord
	if err := c.write(ctx, http.MethodPost, "create "+collection+"/"+id, c.collectionURL(collection), body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.RawRecord, error) {
	body := writeRequest{Data: fields}
	var doc domain.RawRecord
	if err := c.write(ctx, http.MethodPatch, "update "+collection+"/"+id, c.documentURL(collection, id), body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, collection, id string) error {
	return c.write(ctx, http.MethodDelete, "delete "+collection+"/"+id, c.documentURL(collection, id), nil, nil)
}

func (c *Client) collectionURL(collection string) string {
	return fmt.Sprintf("%s/collections/%s/documents", c.baseURL, url.PathEscape(collection))
}

func (c *Client) documentURL(collection, id string) string {
	return c.collectionURL(collection) + "/" + url.PathEscape(id)
}

// listURL encodes each fragment as a JSON queries[] parameter
func (c *Client) listURL(collection string, fragments []domain.Fragment) (string, error) {
	params := url.Values{}
	for _, f := range fragments {
		encoded, err := json.Marshal(f)
		if err != nil {
			return "", fmt.Errorf("encode query fragment: %w", err)
		}
		params.Add("queries[]", string(encoded))
	}
	if len(params) == 0 {
		return c.collectionURL(collection), nil
	}
	return c.collectionURL(collection) + "?" + params.Encode(), nil
}

// read performs a GET, retrying transport errors, 429 and 5xx responses with exponential backoff
func (c *Client) read(ctx context.Context, op, reqURL string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= maxReadAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.backoff(attempt-1)); err != nil {
				return err
			}
		}

		status, body, err := c.do(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("document api request failed",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		}

		if retryable(status) {
			c.logger.Warn("document api transient error",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Int("status", status))
			lastErr = statusError(op, status, body)
			continue
		}
		if status != http.StatusOK {
			return statusError(op, status, body)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s: decode response: %v: %w", op, err, domain.ErrStoreFailure)
		}
		return nil
	}

	c.logger.Error("document api retries exhausted", zap.String("op", op), zap.Error(lastErr))
	return lastErr
}

// write performs a single non-GET request
func (c *Client) write(ctx context.Context, method, op, reqURL string, payload any, out any) error {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	status, body, err := c.do(ctx, method, reqURL, reader)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return statusError(op, status, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %v: %w", op, err, domain.ErrStoreFailure)
	}
	return nil
}

// do executes one rate-limited request and returns status and body
func (c *Client) do(ctx context.Context, method, reqURL string, body io.Reader) (int, []byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "KitBuilder/1.0")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", domain.ErrStoreFailure, err)
	}
	return resp.StatusCode, data, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// statusError maps a response status onto the domain sentinels
func statusError(op string, status int, body []byte) error {
	var sentinel error
	switch status {
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusConflict:
		sentinel = domain.ErrConflict
	case http.StatusBadRequest:
		sentinel = domain.ErrInvalidRequest
	default:
		sentinel = domain.ErrStoreFailure
	}
	message := apiMessage(body)
	if message == "" {
		return fmt.Errorf("%s: status %d: %w", op, status, sentinel)
	}
	return fmt.Errorf("%s: status %d: %s: %w", op, status, message, sentinel)
}

// apiMessage extracts {"message": "..."} from an error body
func apiMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

