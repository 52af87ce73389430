// Package httprequest provides the http_request system tool.
package httprequest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/fera765/flui/pkg/protocol"
)

const (
	Type = "http_request"

	defaultTimeoutSeconds = 30
)

var (
	ErrURLRequired      = errors.New("missing required field 'url'")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

type Factory struct {
	client *http.Client
}

// NewFactory returns a factory whose tools use client. A nil client gets a
// default client with a per-request timeout.
func NewFactory(client *http.Client) *Factory {
	return &Factory{client: client}
}

func (*Factory) ID() string { return Type }

func (*Factory) Name() string { return "HTTP Request" }

func (*Factory) Description() string {
	return "Performs an HTTP request. Linked inputs override the configured url, method, headers and body."
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":     "string",
				"examples": []string{"https://api.example.com/orders"},
			},
			"method": map[string]any{
				"type":    "string",
				"default": "GET",
				"enum":    []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"description": "String bodies are sent as is, anything else as JSON.",
			},
			"timeout_seconds": map[string]any{
				"type":    "integer",
				"default": defaultTimeoutSeconds,
			},
			"fail_on_error": map[string]any{
				"type":        "boolean",
				"default":     false,
				"description": "Treat non-2xx responses as a node error",
			},
		},
	}
}

func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.ToolExecutor, error) {
	defaults := map[string]any{}
	maps.Copy(defaults, config)

	return &Tool{client: f.client, defaults: defaults}, nil
}

type Tool struct {
	client   *http.Client
	defaults map[string]any
}

type request struct {
	url         string
	method      string
	headers     map[string]string
	body        any
	timeout     time.Duration
	failOnError bool
}

func (t *Tool) Execute(ctx context.Context, input map[string]any, logger *slog.Logger) (map[string]any, error) {
	params := map[string]any{}
	maps.Copy(params, t.defaults)
	maps.Copy(params, input)

	req, err := parseRequest(params)
	if err != nil {
		return nil, err
	}

	logger = logger.With("tool_type", Type)
	logger.DebugContext(ctx, "Sending HTTP request", "method", req.method, "url", req.url)

	bodyReader, contentType, err := encodeBody(req.body)
	if err != nil {
		return nil, err
	}

	httpRequest, err := http.NewRequestWithContext(ctx, req.method, req.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if contentType != "" {
		httpRequest.Header.Set("Content-Type", contentType)
	}

	for key, value := range req.headers {
		httpRequest.Header.Set(key, value)
	}

	client := t.client
	if client == nil {
		client = &http.Client{Timeout: req.timeout}
	}

	resp, err := client.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	output, err := decodeResponse(ctx, resp, logger)
	if err != nil {
		return nil, err
	}

	if req.failOnError && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return output, nil
}

func parseRequest(params map[string]any) (*request, error) {
	req := &request{
		method:  http.MethodGet,
		headers: map[string]string{},
		timeout: defaultTimeoutSeconds * time.Second,
		body:    params["body"],
	}

	req.url, _ = params["url"].(string)
	if req.url == "" {
		return nil, ErrURLRequired
	}

	if method, ok := params["method"].(string); ok && method != "" {
		req.method = strings.ToUpper(method)
	}

	if headers, ok := params["headers"].(map[string]any); ok {
		for key, value := range headers {
			req.headers[key] = fmt.Sprint(value)
		}
	}

	switch timeout := params["timeout_seconds"].(type) {
	case float64:
		req.timeout = time.Duration(timeout * float64(time.Second))
	case int:
		req.timeout = time.Duration(timeout) * time.Second
	}

	req.failOnError, _ = params["fail_on_error"].(bool)

	return req, nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch value := body.(type) {
	case nil:
		return http.NoBody, "", nil
	case string:
		return strings.NewReader(value), "", nil
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal body: %w", err)
		}

		return bytes.NewReader(raw), "application/json", nil
	}
}

func decodeResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) (map[string]any, error) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	if len(bodyBytes) > 0 {
		err = json.Unmarshal(bodyBytes, &body)
		if err != nil {
			body = string(bodyBytes)

			logger.DebugContext(ctx, "Response is not JSON, returning as string")
		}
	}

	headers := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}, nil
}
