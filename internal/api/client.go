// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api implements the HTTP clients for the discovery backend: the
// streaming multi-source search endpoint, the deep-rescore endpoint, and the
// ingestion status endpoint. The backend itself — querying, scoring, PDF
// processing — is out of scope; these clients only speak its wire formats.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/pdiddy/paperflow/internal/httputil"
	"github.com/pdiddy/paperflow/pkg/types"
)

// Search modes accepted by the streaming endpoint.
const (
	// ModeQuery searches with a free-text query string.
	ModeQuery = "query"

	// ModeTopic searches around a standing research topic.
	ModeTopic = "topic"

	// ModeSimilar finds papers similar to an existing paper, optionally
	// using its full content.
	ModeSimilar = "similar"
)

// maxRescoreCandidates is the backend's per-request candidate limit.
const maxRescoreCandidates = 20

// SearchRequest is the JSON body of a streaming search call.
type SearchRequest struct {
	Mode          string   `json:"mode"`
	Query         string   `json:"query,omitempty"`
	ResearchTopic string   `json:"researchTopic,omitempty"`
	PaperID       string   `json:"paperId,omitempty"`
	UseContent    bool     `json:"useContent,omitempty"`
	Sources       []string `json:"sources"`
	MaxResults    int      `json:"maxResults"`
}

// RescoreRequest is the JSON body of a deep-rescore call.
type RescoreRequest struct {
	Mode       string                  `json:"mode"`
	Context    string                  `json:"context,omitempty"`
	Candidates []types.DiscoveredPaper `json:"candidates"`
}

// RescoreResult is the deep-rescore response.
type RescoreResult struct {
	Items    []types.DiscoveredPaper `json:"items"`
	Rescored int                     `json:"rescored"`
	Method   string                  `json:"method"`
}

// Client speaks to the discovery backend.
type Client struct {
	httpClient *http.Client
	discovery  types.DiscoveryConfig
	ingest     types.IngestConfig
}

// NewClient builds a backend client. A nil httpClient uses a default client
// with the configured discovery timeout.
func NewClient(httpClient *http.Client, discovery types.DiscoveryConfig, ingest types.IngestConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: discovery.Timeout}
	}
	return &Client{
		httpClient: httpClient,
		discovery:  discovery,
		ingest:     ingest,
	}
}

// SearchStream issues a streaming search and returns the raw response body
// for the stream decoder to consume. The caller owns the body and must close
// it; cancelling ctx aborts the transfer. No retry is attempted — a search
// that needed a retry would already be superseded by the time it ran.
func (c *Client) SearchStream(ctx context.Context, req SearchRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.discovery.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	c.setHeaders(httpReq, c.discovery.HTTPConfig)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("search endpoint returned HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Rescore sends up to 20 candidates for deep rescoring. Longer candidate
// lists are truncated to the backend limit.
func (c *Client) Rescore(ctx context.Context, req RescoreRequest) (*RescoreResult, error) {
	if c.discovery.RescoreEndpoint == "" {
		return nil, fmt.Errorf("rescore endpoint not configured")
	}
	if len(req.Candidates) > maxRescoreCandidates {
		req.Candidates = req.Candidates[:maxRescoreCandidates]
	}

	var result RescoreResult
	if err := c.postJSON(ctx, c.discovery.RescoreEndpoint, c.discovery.HTTPConfig, req, &result); err != nil {
		return nil, fmt.Errorf("rescore: %w", err)
	}
	return &result, nil
}

// ingestStatusRequest and ingestStatusResponse are the status endpoint wire
// structures.
type ingestStatusRequest struct {
	ReferenceIDs []string `json:"referenceIds"`
}

type ingestStatusResponse struct {
	Statuses map[string]types.IngestStatus `json:"statuses"`
}

// IngestionStatuses maps reference IDs to their server-reported ingest
// status. References the server does not know are absent from the result.
func (c *Client) IngestionStatuses(ctx context.Context, referenceIDs []string) (map[string]types.IngestStatus, error) {
	if len(referenceIDs) == 0 {
		return map[string]types.IngestStatus{}, nil
	}

	var resp ingestStatusResponse
	req := ingestStatusRequest{ReferenceIDs: referenceIDs}
	if err := c.postJSON(ctx, c.ingest.StatusEndpoint, c.ingest.HTTPConfig, req, &resp); err != nil {
		return nil, fmt.Errorf("ingestion statuses: %w", err)
	}
	if resp.Statuses == nil {
		resp.Statuses = map[string]types.IngestStatus{}
	}
	return resp.Statuses, nil
}

// postJSON sends payload to url with retry on 429/503 and decodes the JSON
// response into out.
func (c *Client) postJSON(ctx context.Context, url string, hc types.HTTPConfig, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, hc)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// setHeaders applies the shared request headers: content type, user agent,
// bearer auth, and a per-transfer request ID for backend log correlation.
func (c *Client) setHeaders(req *http.Request, hc types.HTTPConfig) {
	req.Header.Set("Content-Type", "application/json")
	if hc.UserAgent != "" {
		req.Header.Set("User-Agent", hc.UserAgent)
	}
	if c.discovery.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.discovery.APIKey)
	}
	req.Header.Set("X-Request-Id", uuid.New().String())
}
