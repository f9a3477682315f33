// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"time"

	"github.com/pdiddy/paperflow/internal/api"
	"github.com/pdiddy/paperflow/pkg/types"
)

// queueEntry is the raw per-channel aggregate. Dismissed papers stay in the
// list; filtering happens at snapshot time so dismissal is reversible via
// reset without losing the raw search history.
type queueEntry struct {
	query          string
	papers         []types.DiscoveredPaper
	isSearching    bool
	notification   string
	searchStarted  time.Time
	searchDuration time.Duration

	// lastRequest remembers the request that produced the current list so
	// load-more can reissue it with a larger result count.
	lastRequest api.SearchRequest
}

// Snapshot is the read view of one channel's discovery queue. Papers are
// already filtered through the project's dismissed set and appear in
// arrival order.
type Snapshot struct {
	ChannelID      string
	Query          string
	Papers         []types.DiscoveredPaper
	IsSearching    bool
	Notification   string
	SearchDuration time.Duration
}

// ensureEntryLocked returns the channel's entry, creating it if absent.
// Callers must hold the coordinator mutex.
func (c *Coordinator) ensureEntryLocked(channelID string) *queueEntry {
	entry, ok := c.queues[channelID]
	if !ok {
		entry = &queueEntry{}
		c.queues[channelID] = entry
	}
	return entry
}

// snapshotLocked builds the filtered read view. Callers must hold the
// coordinator mutex.
func (c *Coordinator) snapshotLocked(channelID string) Snapshot {
	snap := Snapshot{ChannelID: channelID}
	entry, ok := c.queues[channelID]
	if !ok {
		return snap
	}

	snap.Query = entry.query
	snap.IsSearching = entry.isSearching
	snap.Notification = entry.notification
	snap.SearchDuration = entry.searchDuration
	snap.Papers = make([]types.DiscoveredPaper, 0, len(entry.papers))
	for _, p := range entry.papers {
		if _, dismissed := c.dismissedPapers[p.ID]; dismissed {
			continue
		}
		snap.Papers = append(snap.Papers, p)
	}
	return snap
}

// Subscribe registers a listener for the channel's filtered snapshots.
// The listener is invoked after every state change, outside the coordinator
// lock. The returned function removes the subscription.
func (c *Coordinator) Subscribe(channelID string, listener func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs, ok := c.subscribers[channelID]
	if !ok {
		subs = make(map[int]func(Snapshot))
		c.subscribers[channelID] = subs
	}
	id := c.subscriberSeq
	c.subscriberSeq++
	subs[id] = listener

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers[channelID], id)
	}
}

// GetSnapshot returns the channel's current filtered view.
func (c *Coordinator) GetSnapshot(channelID string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(channelID)
}

// notify delivers the channel's current snapshot to its subscribers.
// Must be called without the coordinator mutex held.
func (c *Coordinator) notify(channelID string) {
	c.mu.Lock()
	snap := c.snapshotLocked(channelID)
	listeners := make([]func(Snapshot), 0, len(c.subscribers[channelID]))
	for _, fn := range c.subscribers[channelID] {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
