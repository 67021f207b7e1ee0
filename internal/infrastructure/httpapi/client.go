// Package httpapi is a small JSON-over-HTTP client for model-serving sidecars
// (cross-encoder, hosted classifier) with the shared resilience policy.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/requirements-guard/internal/infrastructure/resilience"
)

type Client struct {
	service    string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	APIKey             string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(service, baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     options.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON posts payload to path and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	fn := func(callCtx context.Context) error {
		return c.post(callCtx, path, payload, out, operation)
	}

	var err error
	if c.executor == nil {
		err = fn(ctx)
	} else {
		err = c.executor.Execute(ctx, c.service+"."+operation, fn, Classify)
	}
	return resilience.MarkTemporary(Classify, c.service+" "+operation, err)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request: %w", c.service, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{
			Service:    c.service,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

type StatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// Classify decides retry and breaker accounting for sidecar errors.
var Classify = resilience.Classifier(func(err error) (resilience.ErrorClassification, bool) {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return resilience.ErrorClassification{}, false
	}
	return resilience.HTTPStatus(statusErr.StatusCode), true
})
