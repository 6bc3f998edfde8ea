package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/moodiary/moodiary/internal/config"
	"github.com/moodiary/moodiary/internal/events"
	"github.com/moodiary/moodiary/internal/models"
)

// HTTPStore talks to the remote entry store over its REST interface.
type HTTPStore struct {
	client    *http.Client
	baseURL   string
	anonKey   string
	userAgent string
	token     string
	logger    *events.Logger

	// Retry configuration
	maxRetries int
	retryDelay time.Duration
}

// NewHTTPStore creates the HTTP remote store adapter.
func NewHTTPStore(cfg *config.APIConfig, logger *events.Logger) *HTTPStore {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &HTTPStore{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:    cfg.BaseURL,
		anonKey:    cfg.AnonKey,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Second,
		logger:     logger.WithField("component", "remote_store"),
	}
}

// SetToken sets the user's access token. An empty token clears it.
func (c *HTTPStore) SetToken(token string) {
	c.token = token
}

// UpsertMany pushes records keyed on id.
func (c *HTTPStore) UpsertMany(ctx context.Context, records []models.RemoteRecord) error {
	if len(records) == 0 {
		return nil
	}

	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"records": len(records),
		"size":    len(body),
	}).Debug("Pushing records")

	endpoint := c.baseURL + "/rest/v1/entries?on_conflict=id"
	if _, err := c.doWithRetry(ctx, http.MethodPost, endpoint, body, map[string]string{
		"Content-Type": "application/json",
		"Prefer":       "resolution=merge-duplicates,return=minimal",
	}); err != nil {
		return err
	}

	return nil
}

// FetchChangedSince pulls records with updated_at strictly greater than
// the watermark, oldest first.
func (c *HTTPStore) FetchChangedSince(ctx context.Context, since models.Checkpoint) ([]models.RemoteRecord, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("updated_at", "gt."+since.Time().Format(time.RFC3339Nano))
	query.Set("order", "updated_at.asc")

	endpoint := c.baseURL + "/rest/v1/entries?" + query.Encode()

	c.logger.WithField("since", since.Time()).Debug("Fetching changed records")

	respBody, err := c.doWithRetry(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}

	var records []models.RemoteRecord
	if err := json.Unmarshal(respBody, &records); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	c.logger.WithField("records", len(records)).Debug("Fetched changed records")
	return records, nil
}

// doWithRetry executes a request with exponential backoff on retryable
// failures and maps terminal failures to the sync error taxonomy.
func (c *HTTPStore) doWithRetry(ctx context.Context, method, endpoint string, body []byte, headers map[string]string) ([]byte, error) {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying request")

			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", models.ErrNetworkUnreachable, ctx.Err())
			}
		}

		respBody, retryable, err := c.do(ctx, method, endpoint, body, headers)
		if err == nil {
			return respBody, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: retries exhausted: %v", models.ErrNetworkUnreachable, lastErr)
}

func (c *HTTPStore) do(ctx context.Context, method, endpoint string, body []byte, headers map[string]string) (respBody []byte, retryable bool, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Dial failures and timeouts are transient.
		return nil, true, fmt.Errorf("%w: %v", models.ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read response: %v", models.ErrNetworkUnreachable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, false, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, fmt.Errorf("%w: HTTP %d", models.ErrAuthExpired, resp.StatusCode)

	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusRequestEntityTooLarge ||
		resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, false, &models.ValidationError{
			StatusCode: resp.StatusCode,
			Message:    apiMessage(data),
		}

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error %d: %s", resp.StatusCode, data)

	default:
		return nil, false, &models.APIError{
			StatusCode: resp.StatusCode,
			Code:       http.StatusText(resp.StatusCode),
			Message:    apiMessage(data),
		}
	}
}

// apiMessage extracts the message field from an error body, falling
// back to the raw body.
func apiMessage(data []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return string(data)
}

var _ Store = (*HTTPStore)(nil)
