// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperflow/internal/api"
	"github.com/pdiddy/paperflow/pkg/types"
)

// QueryFile is the on-disk representation of a discovery search and its
// results. The researcher can save a channel's queue to a file and reload
// it later without re-querying the backend.
type QueryFile struct {
	Query   QueryParams             `yaml:"query"`
	Papers  []types.DiscoveredPaper `yaml:"papers"`
	Summary QuerySummary            `yaml:"summary"`
}

// QueryParams stores the search request in a serializable form.
type QueryParams struct {
	Mode          string   `yaml:"mode"`
	FreeText      string   `yaml:"free_text,omitempty"`
	ResearchTopic string   `yaml:"research_topic,omitempty"`
	PaperID       string   `yaml:"paper_id,omitempty"`
	Sources       []string `yaml:"sources,omitempty"`
	MaxResults    int      `yaml:"max_results"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total     int           `yaml:"total"`
	Elapsed   time.Duration `yaml:"elapsed"`
	Timestamp time.Time     `yaml:"timestamp"`
}

// WriteQueryFile saves a channel snapshot and the request that produced it
// to a YAML file.
func WriteQueryFile(path string, req api.SearchRequest, snap Snapshot) error {
	qf := QueryFile{
		Query: QueryParams{
			Mode:          req.Mode,
			FreeText:      req.Query,
			ResearchTopic: req.ResearchTopic,
			PaperID:       req.PaperID,
			Sources:       req.Sources,
			MaxResults:    req.MaxResults,
		},
		Papers: snap.Papers,
		Summary: QuerySummary{
			Total:     len(snap.Papers),
			Elapsed:   snap.SearchDuration,
			Timestamp: time.Now(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// ToRequest converts stored QueryParams back into a SearchRequest.
func (p QueryParams) ToRequest() api.SearchRequest {
	return api.SearchRequest{
		Mode:          p.Mode,
		Query:         p.FreeText,
		ResearchTopic: p.ResearchTopic,
		PaperID:       p.PaperID,
		Sources:       p.Sources,
		MaxResults:    p.MaxResults,
	}
}
