// Package matcher is the REST client for the biometric matching service.
package matcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/face/domain"
	"github.com/smallbiznis/gymgate/internal/observability/tracing"
	"github.com/smallbiznis/gymgate/pkg/telemetry/correlation"
)

const maxResponseBody = 256 << 10

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(cfg config.Config) domain.Matcher {
	return NewClient(cfg.Face.APIURL, cfg.Face.APIKey, &http.Client{Timeout: cfg.Face.Timeout})
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    httpClient,
	}
}

type indexRequest struct {
	Image      string `json:"image"`
	ExternalID string `json:"external_id"`
	MaxFaces   int    `json:"max_faces"`
	Quality    string `json:"quality_filter"`
}

type indexResponse struct {
	FaceRecords []struct {
		FaceID string `json:"face_id"`
	} `json:"face_records"`
}

type deleteRequest struct {
	FaceIDs []string `json:"face_ids"`
}

type searchRequest struct {
	Image     string  `json:"image"`
	Threshold float64 `json:"threshold"`
	MaxFaces  int     `json:"max_faces"`
}

type searchResponse struct {
	Matches []struct {
		FaceID     string  `json:"face_id"`
		ExternalID string  `json:"external_id"`
		Similarity float64 `json:"similarity"`
	} `json:"matches"`
}

func (c *Client) CreateCollection(ctx context.Context, collectionID string) error {
	status, _, err := c.do(ctx, http.MethodPut, c.collectionPath(collectionID), nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusConflict:
		return domain.ErrCollectionExists
	case status >= 200 && status <= 299:
		return nil
	default:
		return fmt.Errorf("%w: create collection status %d", domain.ErrMatcherUnavailable, status)
	}
}

func (c *Client) IndexFace(ctx context.Context, collectionID string, image []byte, externalID string) (string, error) {
	status, body, err := c.do(ctx, http.MethodPost, c.collectionPath(collectionID)+"/faces", indexRequest{
		Image:      base64.StdEncoding.EncodeToString(image),
		ExternalID: externalID,
		MaxFaces:   1,
		Quality:    "AUTO",
	})
	if err != nil {
		return "", err
	}
	if status == http.StatusUnprocessableEntity {
		return "", domain.ErrNoFaceDetected
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: index status %d", domain.ErrMatcherUnavailable, status)
	}

	var resp indexResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode index response: %v", domain.ErrMatcherUnavailable, err)
	}
	if len(resp.FaceRecords) == 0 || strings.TrimSpace(resp.FaceRecords[0].FaceID) == "" {
		return "", domain.ErrNoFaceDetected
	}
	return resp.FaceRecords[0].FaceID, nil
}

func (c *Client) DeleteFaces(ctx context.Context, collectionID string, faceIDs []string) error {
	status, _, err := c.do(ctx, http.MethodPost, c.collectionPath(collectionID)+"/faces/delete", deleteRequest{FaceIDs: faceIDs})
	if err != nil {
		return err
	}
	// A face or collection that is already gone is the desired end state.
	if status == http.StatusNotFound || (status >= 200 && status <= 299) {
		return nil
	}
	return fmt.Errorf("%w: delete status %d", domain.ErrMatcherUnavailable, status)
}

func (c *Client) SearchFaces(ctx context.Context, collectionID string, image []byte, threshold float64) (*domain.Match, error) {
	status, body, err := c.do(ctx, http.MethodPost, c.collectionPath(collectionID)+"/search", searchRequest{
		Image:     base64.StdEncoding.EncodeToString(image),
		Threshold: threshold,
		MaxFaces:  1,
	})
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound, status == http.StatusUnprocessableEntity:
		// Unknown collection or no face in the submitted image.
		return nil, nil
	case status < 200 || status > 299:
		return nil, fmt.Errorf("%w: search status %d", domain.ErrMatcherUnavailable, status)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", domain.ErrMatcherUnavailable, err)
	}
	var best *domain.Match
	for _, m := range resp.Matches {
		if m.Similarity < threshold {
			continue
		}
		if best == nil || m.Similarity > best.Similarity {
			best = &domain.Match{FaceID: m.FaceID, ExternalID: m.ExternalID, Similarity: m.Similarity}
		}
	}
	return best, nil
}

func (c *Client) collectionPath(collectionID string) string {
	return "/collections/" + url.PathEscape(collectionID)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	correlation.Apply(req)
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrMatcherUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", domain.ErrMatcherUnavailable, err)
	}
	return resp.StatusCode, body, nil
}
