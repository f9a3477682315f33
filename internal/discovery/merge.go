// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discovery implements the streaming paper-discovery coordinator:
// search sessions with supersession, result merging, and the per-channel
// discovery queue with durable dismissal filtering.
package discovery

import "github.com/pdiddy/paperflow/pkg/types"

// MergeMode selects how an incoming batch combines with existing results.
type MergeMode string

const (
	// MergeReplace discards the existing list in favor of the incoming batch.
	MergeReplace MergeMode = "replace"

	// MergeAppend keeps the existing list and appends unseen incoming papers
	// in stream order.
	MergeAppend MergeMode = "append"
)

// Merge combines an incoming batch into the existing per-channel result
// list. In append mode papers whose dedup key already appears in existing
// (or earlier in incoming) are dropped, so merging the same batch twice
// yields the same result as merging it once, and existing order is never
// disturbed. The inputs are not mutated.
func Merge(existing, incoming []types.DiscoveredPaper, mode MergeMode) []types.DiscoveredPaper {
	if mode == MergeReplace {
		merged := make([]types.DiscoveredPaper, len(incoming))
		copy(merged, incoming)
		return merged
	}

	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]types.DiscoveredPaper, 0, len(existing)+len(incoming))
	for _, p := range existing {
		seen[p.DedupKey()] = struct{}{}
		merged = append(merged, p)
	}
	for _, p := range incoming {
		key := p.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, p)
	}
	return merged
}
