// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest tracks per-channel paper ingestion: the local state
// machine seeded when a paper is attached and the background poller that
// reconciles it against the backend.
package ingest

import (
	"sort"
	"sync"

	"github.com/pdiddy/paperflow/pkg/types"
)

// Tracker holds the local ingestion states, keyed by channel and paper.
// The backend is the source of truth for terminal statuses; the tracker
// seeds optimistic pending entries and overwrites them from poll results.
type Tracker struct {
	mu       sync.Mutex
	channels map[string]map[string]*types.IngestionState
	verified map[string]bool
}

// NewTracker builds an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		channels: make(map[string]map[string]*types.IngestionState),
		verified: make(map[string]bool),
	}
}

// Attach records that the paper was handed to the backend for ingestion.
// The entry starts pending with the adding flag set; a later poll moves it
// to its real status. Re-attaching an existing paper resets its entry.
func (t *Tracker) Attach(channelID, paperID, referenceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	refs, ok := t.channels[channelID]
	if !ok {
		refs = make(map[string]*types.IngestionState)
		t.channels[channelID] = refs
	}
	refs[paperID] = &types.IngestionState{
		PaperID:     paperID,
		ReferenceID: referenceID,
		Status:      types.IngestPending,
		IsAdding:    true,
	}
}

// Apply reconciles a poll result into the channel's entries. Statuses that
// differ from the local view are overwritten; entries the poll does not
// mention are left alone. The channel is marked verified once any poll
// result has been applied, which unlocks summary reporting.
func (t *Tracker) Apply(channelID string, statuses map[string]types.IngestStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	refs := t.channels[channelID]
	for _, state := range refs {
		status, ok := statuses[state.ReferenceID]
		if !ok || !status.IsValid() {
			continue
		}
		state.Status = status
		state.IsAdding = status == types.IngestPending
	}
	t.verified[channelID] = true
}

// States returns the channel's entries ordered by paper ID.
func (t *Tracker) States(channelID string) []types.IngestionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	refs := t.channels[channelID]
	states := make([]types.IngestionState, 0, len(refs))
	for _, state := range refs {
		states = append(states, *state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].PaperID < states[j].PaperID })
	return states
}

// PendingReferenceIDs returns the reference IDs that have not reached
// success, ordered by paper ID. An empty result means the channel has
// nothing left to poll.
func (t *Tracker) PendingReferenceIDs(channelID string) []string {
	var ids []string
	for _, state := range t.States(channelID) {
		if state.Status != types.IngestSuccess {
			ids = append(ids, state.ReferenceID)
		}
	}
	return ids
}

// Summary counts the channel's entries by status. Until a poll result has
// been applied the summary is unverified and callers must not display it:
// the optimistic pending seeds would misreport progress.
func (t *Tracker) Summary(channelID string) types.IngestionSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	sum := types.IngestionSummary{Verified: t.verified[channelID]}
	for _, state := range t.channels[channelID] {
		switch state.Status {
		case types.IngestSuccess:
			sum.Success++
		case types.IngestFailed:
			sum.Failed++
		case types.IngestNoPDF:
			sum.NoPDF++
		default:
			sum.Pending++
		}
	}
	return sum
}

// Reset drops the channel's entries and its verified mark.
func (t *Tracker) Reset(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.channels, channelID)
	delete(t.verified, channelID)
}
