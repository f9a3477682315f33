// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperflow/pkg/types"
)

func testDiscoveryCfg(endpoint, rescore string) types.DiscoveryConfig {
	return types.DiscoveryConfig{
		HTTPConfig:      types.HTTPConfig{UserAgent: "paperflow-test/0.1"},
		Endpoint:        endpoint,
		RescoreEndpoint: rescore,
		Sources:         []string{"arxiv", "openalex"},
		MaxResults:      10,
		APIKey:          "dk_test",
	}
}

func TestSearchStreamSendsRequestBody(t *testing.T) {
	var got SearchRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer dk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "paperflow-test/0.1", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, `data: {"type":"final","papers":[{"id":"p1","title":"A","source":"arxiv"}]}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"done"}`+"\n\n")
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), testDiscoveryCfg(ts.URL, ""), types.IngestConfig{})
	body, err := c.SearchStream(context.Background(), SearchRequest{
		Mode:       ModeQuery,
		Query:      "transformer models",
		Sources:    []string{"arxiv", "openalex"},
		MaxResults: 10,
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"final"`)

	assert.Equal(t, ModeQuery, got.Mode)
	assert.Equal(t, "transformer models", got.Query)
	assert.Equal(t, 10, got.MaxResults)
}

func TestSearchStreamNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), testDiscoveryCfg(ts.URL, ""), types.IngestConfig{})
	_, err := c.SearchStream(context.Background(), SearchRequest{Mode: ModeQuery, Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestRescoreTruncatesCandidates(t *testing.T) {
	var got RescoreRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(RescoreResult{
			Items:    got.Candidates,
			Rescored: len(got.Candidates),
			Method:   "content",
		})
	}))
	defer ts.Close()

	candidates := make([]types.DiscoveredPaper, 25)
	for i := range candidates {
		candidates[i] = types.DiscoveredPaper{ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("T%d", i), Source: "arxiv"}
	}

	c := NewClient(ts.Client(), testDiscoveryCfg(ts.URL, ts.URL), types.IngestConfig{})
	result, err := c.Rescore(context.Background(), RescoreRequest{Mode: ModeQuery, Candidates: candidates})
	require.NoError(t, err)

	assert.Len(t, got.Candidates, 20, "client truncates to the backend limit")
	assert.Equal(t, 20, result.Rescored)
	assert.Equal(t, "content", result.Method)
}

func TestRescoreUnconfigured(t *testing.T) {
	c := NewClient(nil, testDiscoveryCfg("http://unused", ""), types.IngestConfig{})
	_, err := c.Rescore(context.Background(), RescoreRequest{Mode: ModeQuery})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestIngestionStatuses(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ingestStatusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"ref-1", "ref-2"}, req.ReferenceIDs)

		json.NewEncoder(w).Encode(ingestStatusResponse{
			Statuses: map[string]types.IngestStatus{
				"ref-1": types.IngestSuccess,
				"ref-2": types.IngestNoPDF,
			},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), types.DiscoveryConfig{}, types.IngestConfig{StatusEndpoint: ts.URL})
	statuses, err := c.IngestionStatuses(context.Background(), []string{"ref-1", "ref-2"})
	require.NoError(t, err)

	assert.Equal(t, types.IngestSuccess, statuses["ref-1"])
	assert.Equal(t, types.IngestNoPDF, statuses["ref-2"])
}

func TestIngestionStatusesEmptyInput(t *testing.T) {
	// No HTTP call is made for an empty reference list.
	c := NewClient(nil, types.DiscoveryConfig{}, types.IngestConfig{StatusEndpoint: "http://unreachable.invalid"})
	statuses, err := c.IngestionStatuses(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}
