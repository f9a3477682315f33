// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. Streaming transfers ignore it;
	// they are bounded by cancellation instead.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperflow/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// DiscoveryConfig holds settings for the streaming search stage.
type DiscoveryConfig struct {
	HTTPConfig `yaml:",inline"`

	// Endpoint is the streaming multi-source search URL.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// RescoreEndpoint is the deep-rescore URL. Optional; rescoring is
	// disabled when empty.
	RescoreEndpoint string `json:"rescore_endpoint,omitempty" yaml:"rescore_endpoint,omitempty"`

	// Sources lists the databases the backend should query
	// (e.g. "arxiv", "semantic_scholar", "openalex").
	Sources []string `json:"sources" yaml:"sources"`

	// MaxResults is the result count requested for a fresh search (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// LoadMoreIncrement is added to the requested result count on each
	// load-more search (default 10).
	LoadMoreIncrement int `json:"load_more_increment" yaml:"load_more_increment"`

	// APIKey authenticates against the discovery backend. Usually loaded
	// from .secrets/discovery-api-key rather than the config file.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// IngestConfig holds settings for ingestion status reconciliation.
type IngestConfig struct {
	HTTPConfig `yaml:",inline"`

	// StatusEndpoint is the URL that maps reference IDs to ingest statuses.
	StatusEndpoint string `json:"status_endpoint" yaml:"status_endpoint"`

	// PollInterval is the cadence of background reconciliation (default 10s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// StalenessWindow is how recent a poll response must be for a manual
	// refresh to reuse it instead of refetching (default 5s). Shorter than
	// PollInterval so a just-triggered refresh is not superseded by a stale
	// cached read.
	StalenessWindow time.Duration `json:"staleness_window" yaml:"staleness_window"`
}

// StorageConfig holds settings for the durable dismissal store.
type StorageConfig struct {
	// StateDir is the directory holding paperflow.db (default ".paperflow").
	StateDir string `json:"state_dir" yaml:"state_dir"`
}

// CoordinatorConfig groups all stage configurations for the coordinator.
type CoordinatorConfig struct {
	// Project scopes the durable dismissed sets. Channels belong to a project.
	Project string `json:"project" yaml:"project"`

	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
}

// Default configuration values applied by ApplyDefaults.
const (
	DefaultMaxResults        = 10
	DefaultLoadMoreIncrement = 10
	DefaultPollInterval      = 10 * time.Second
	DefaultStalenessWindow   = 5 * time.Second
	DefaultStateDir          = ".paperflow"
)

// ApplyDefaults fills zero-valued fields with their defaults and returns
// the updated config.
func (c CoordinatorConfig) ApplyDefaults() CoordinatorConfig {
	if c.Discovery.MaxResults <= 0 {
		c.Discovery.MaxResults = DefaultMaxResults
	}
	if c.Discovery.LoadMoreIncrement <= 0 {
		c.Discovery.LoadMoreIncrement = DefaultLoadMoreIncrement
	}
	if c.Ingest.PollInterval <= 0 {
		c.Ingest.PollInterval = DefaultPollInterval
	}
	if c.Ingest.StalenessWindow <= 0 {
		c.Ingest.StalenessWindow = DefaultStalenessWindow
	}
	if c.Storage.StateDir == "" {
		c.Storage.StateDir = DefaultStateDir
	}
	return c
}
