// Package httpgate is the JSON-over-HTTP wire shared by the gate vendors:
// a bearer-authenticated POST of {user_id, gate_id}.
package httpgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/gymgate/internal/gateprovider/domain"
	"github.com/smallbiznis/gymgate/internal/observability/tracing"
	"github.com/smallbiznis/gymgate/pkg/telemetry/correlation"
)

const (
	defaultTimeout  = 5 * time.Second
	maxResponseBody = 64 << 10
)

type Client struct {
	BaseURL string
	APIKey  string
	Headers map[string]string
	HTTP    *http.Client
}

type commandRequest struct {
	UserID string `json:"user_id"`
	GateID string `json:"gate_id"`
}

// New validates the shared settings and builds a client.
func New(cfg domain.Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" || !(strings.HasPrefix(baseURL, "http://") || strings.HasPrefix(baseURL, "https://")) {
		return nil, domain.ErrInvalidConfig
	}
	apiKey, _ := ReadString(cfg.Settings, "api_key")
	if apiKey == "" {
		return nil, domain.ErrInvalidConfig
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Headers: map[string]string{},
		HTTP:    httpClient,
	}, nil
}

// Post sends one command. Non-2xx replies are returned alongside
// ErrActuationFailed so callers can still log the vendor message.
func (c *Client) Post(ctx context.Context, path, memberID, gateID string) (*domain.Result, error) {
	payload, err := json.Marshal(commandRequest{UserID: memberID, GateID: gateID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}
	correlation.Apply(req)
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrActuationFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrActuationFailed, err)
	}

	result := &domain.Result{StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(raw)) > 0 {
		var body map[string]any
		if json.Unmarshal(raw, &body) == nil {
			result.Body = body
			if message, ok := ReadString(body, "message"); ok {
				result.Message = message
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, fmt.Errorf("%w: status %d", domain.ErrActuationFailed, resp.StatusCode)
	}
	result.Success = true
	if success, ok := result.Body["success"].(bool); ok {
		result.Success = success
	}
	return result, nil
}

func ReadString(values map[string]any, key string) (string, bool) {
	value, ok := values[key]
	if !ok {
		return "", false
	}
	cast, ok := value.(string)
	if !ok {
		return "", false
	}
	cast = strings.TrimSpace(cast)
	return cast, cast != ""
}
