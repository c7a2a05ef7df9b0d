// Package client is the REST client for facility access hardware.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/gymgate/internal/config"
	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	"github.com/smallbiznis/gymgate/internal/hardwaresync/domain"
	"github.com/smallbiznis/gymgate/internal/observability/tracing"
	"github.com/smallbiznis/gymgate/pkg/telemetry/correlation"
)

const maxResponseBody = 64 << 10

type Client struct {
	http *http.Client
}

func New(cfg config.Config) domain.Client {
	return NewClient(&http.Client{Timeout: cfg.HardwareTimeout})
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{http: httpClient}
}

type syncResponse struct {
	HardwareUserID string `json:"hardware_user_id"`
}

func (c *Client) Sync(ctx context.Context, hw gymconfigdomain.HardwareSettings, payload domain.SyncPayload) (string, error) {
	status, body, err := c.do(ctx, hw, http.MethodPost, "/users/sync", payload)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: sync status %d", domain.ErrSyncFailed, status)
	}

	var resp syncResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode sync response: %v", domain.ErrSyncFailed, err)
	}
	id := strings.TrimSpace(resp.HardwareUserID)
	if id == "" {
		return "", fmt.Errorf("%w: missing hardware_user_id", domain.ErrSyncFailed)
	}
	return id, nil
}

func (c *Client) Remove(ctx context.Context, hw gymconfigdomain.HardwareSettings, hardwareUserID string) error {
	status, _, err := c.do(ctx, hw, http.MethodDelete, "/users/"+url.PathEscape(hardwareUserID), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound || (status >= 200 && status <= 299) {
		return nil
	}
	return fmt.Errorf("%w: remove status %d", domain.ErrSyncFailed, status)
}

func (c *Client) do(ctx context.Context, hw gymconfigdomain.HardwareSettings, method, path string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := strings.TrimRight(strings.TrimSpace(hw.APIURL), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+hw.APIKey)
	correlation.Apply(req)
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrSyncFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", domain.ErrSyncFailed, err)
	}
	return resp.StatusCode, body, nil
}
