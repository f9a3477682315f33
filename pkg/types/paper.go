// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paperflow coordinator:
// discovered papers, stream events, ingestion states, and stage configuration.
package types

// DiscoveredPaper represents a candidate paper returned by the streaming
// discovery backend. Papers are immutable once received; only their membership
// in filtered views changes as the user dismisses them.
type DiscoveredPaper struct {
	// ID is the backend-assigned identifier for this result.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Year is the publication year, if known.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// DOI is the paper DOI, if known.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL is the landing-page URL, if known.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source identifies which database found this result
	// (e.g. "arxiv", "semantic_scholar", "openalex").
	Source string `json:"source" yaml:"source"`

	// RelevanceScore is a value between 0.0 and 1.0 assigned by the backend.
	RelevanceScore float64 `json:"relevanceScore" yaml:"relevance_score"`

	// PDFURL is a direct PDF link, if the source exposes one. Papers without
	// a PDF URL typically end their ingestion in the no_pdf state.
	PDFURL string `json:"pdfUrl,omitempty" yaml:"pdf_url,omitempty"`

	// IsOpenAccess reports whether the source marked the paper open access.
	IsOpenAccess bool `json:"isOpenAccess,omitempty" yaml:"is_open_access,omitempty"`
}

// DedupKey returns the identity key used when merging result batches: the
// exact title and source joined by "|". The comparison is deliberately
// case- and whitespace-sensitive; tightening it would silently change
// user-visible result counts.
func (p DiscoveredPaper) DedupKey() string {
	return p.Title + "|" + p.Source
}
