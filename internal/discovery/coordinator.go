// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pdiddy/paperflow/internal/api"
	"github.com/pdiddy/paperflow/internal/stream"
	"github.com/pdiddy/paperflow/pkg/types"
)

// SearchClient is the transport dependency: it opens the streaming search
// transfer. *api.Client satisfies it; tests substitute doubles.
type SearchClient interface {
	SearchStream(ctx context.Context, req api.SearchRequest) (io.ReadCloser, error)
}

// DismissalStore is the durable storage dependency for the per-project
// dismissed sets. *dismiss.Store satisfies it. All methods are best-effort:
// the coordinator logs failures and continues on its in-memory sets.
type DismissalStore interface {
	DismissedPapers(project string) (map[string]struct{}, error)
	DismissedNotifications(project string) (map[string]struct{}, error)
	AddDismissedPaper(project, paperID string) error
	AddDismissedNotification(project, channelID string) error
	Reset(project string) error
}

// session is one logical search attempt on a channel. Superseded sessions
// are abandoned, not deleted, until the next search overwrites them; their
// events are discarded at apply time by comparing IDs against the live
// counter.
type session struct {
	id     int64
	cancel context.CancelFunc
}

// Coordinator owns the per-channel discovery state: search sessions,
// result queues, and dismissal sets. All mutations are serialized through
// the coordinator mutex, and every stream-event application is gated on
// the event's session still being the channel's current one.
type Coordinator struct {
	cfg    types.CoordinatorConfig
	client SearchClient
	store  DismissalStore
	logger *slog.Logger

	mu            sync.Mutex
	sessionSeq    int64
	sessions      map[string]*session
	queues        map[string]*queueEntry
	subscribers   map[string]map[int]func(Snapshot)
	subscriberSeq int
	closed        bool

	dismissedPapers        map[string]struct{}
	dismissedNotifications map[string]struct{}

	wg sync.WaitGroup
}

// NewCoordinator builds a coordinator with injected transport and storage.
// The dismissed sets are loaded once at construction; storage read failures
// fall back to empty sets. A nil logger discards diagnostics.
func NewCoordinator(cfg types.CoordinatorConfig, client SearchClient, store DismissalStore, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg = cfg.ApplyDefaults()

	c := &Coordinator{
		cfg:         cfg,
		client:      client,
		store:       store,
		logger:      logger,
		sessions:    make(map[string]*session),
		queues:      make(map[string]*queueEntry),
		subscribers: make(map[string]map[int]func(Snapshot)),
	}

	papers, err := store.DismissedPapers(cfg.Project)
	if err != nil {
		logger.Warn("loading dismissed papers", "error", err)
	}
	notifications, err := store.DismissedNotifications(cfg.Project)
	if err != nil {
		logger.Warn("loading dismissed notifications", "error", err)
	}
	if papers == nil {
		papers = make(map[string]struct{})
	}
	if notifications == nil {
		notifications = make(map[string]struct{})
	}
	c.dismissedPapers = papers
	c.dismissedNotifications = notifications
	return c
}

// StartSearch begins a new search session on the channel. Any in-flight
// transfer for the channel is aborted first, and the session counter is
// incremented so late events from the superseded session are discarded.
// The request's sources and result count are defaulted from configuration
// when unset. The transfer runs until ctx is cancelled, the coordinator is
// closed, or a newer search supersedes it.
func (c *Coordinator) StartSearch(ctx context.Context, channelID string, req api.SearchRequest) (int64, error) {
	if req.MaxResults <= 0 {
		req.MaxResults = c.cfg.Discovery.MaxResults
	}
	if len(req.Sources) == 0 {
		req.Sources = c.cfg.Discovery.Sources
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, errors.New("coordinator is closed")
	}

	if prev := c.sessions[channelID]; prev != nil {
		prev.cancel()
	}
	c.sessionSeq++
	sid := c.sessionSeq

	streamCtx, cancel := context.WithCancel(ctx)
	c.sessions[channelID] = &session{id: sid, cancel: cancel}

	entry := c.ensureEntryLocked(channelID)
	entry.query = displayQuery(req)
	entry.isSearching = true
	entry.notification = ""
	entry.searchStarted = time.Now()
	entry.searchDuration = 0
	entry.lastRequest = req
	c.mu.Unlock()

	c.notify(channelID)

	c.wg.Add(1)
	go c.consume(streamCtx, channelID, sid, req, MergeReplace)
	return sid, nil
}

// LoadMore reissues the channel's last request with an increased result
// count in append mode. It does not increment the session counter — the
// accumulated list stays valid — but it does start a fresh transfer, which
// a subsequent fresh search can cancel like any other.
func (c *Coordinator) LoadMore(ctx context.Context, channelID string) (int64, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, errors.New("coordinator is closed")
	}
	sess := c.sessions[channelID]
	entry, ok := c.queues[channelID]
	if sess == nil || !ok || entry.lastRequest.Mode == "" {
		c.mu.Unlock()
		return 0, fmt.Errorf("no prior search on channel %s", channelID)
	}

	sess.cancel()
	req := entry.lastRequest
	req.MaxResults += c.cfg.Discovery.LoadMoreIncrement
	entry.lastRequest = req
	entry.isSearching = true
	entry.notification = ""
	entry.searchStarted = time.Now()

	streamCtx, cancel := context.WithCancel(ctx)
	sid := sess.id
	c.sessions[channelID] = &session{id: sid, cancel: cancel}
	c.mu.Unlock()

	c.notify(channelID)

	c.wg.Add(1)
	go c.consume(streamCtx, channelID, sid, req, MergeAppend)
	return sid, nil
}

// consume opens the transfer and applies decoded events to the channel
// until the stream ends, fails, or is superseded. Every application is
// gated on the session still being current; a cancelled transfer exits
// silently because supersession is an expected outcome, not a failure.
func (c *Coordinator) consume(ctx context.Context, channelID string, sid int64, req api.SearchRequest, mode MergeMode) {
	defer c.wg.Done()

	body, err := c.client.SearchStream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.finishWithError(channelID, sid, fmt.Sprintf("Search failed: %v", err))
		return
	}
	defer body.Close()

	// Close the body as soon as the session is cancelled so a blocked
	// read unblocks without waiting for the next chunk.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			body.Close()
		case <-watchDone:
		}
	}()

	decoder := stream.NewDecoder(body, c.logger)
	batchMode := mode
	for {
		event, err := decoder.Next()
		if err != nil {
			if err == io.EOF {
				c.finishSearch(channelID, sid)
				return
			}
			if ctx.Err() != nil {
				return
			}
			var streamErr *stream.StreamError
			if errors.As(err, &streamErr) {
				c.finishWithError(channelID, sid, streamErr.Message)
				return
			}
			c.finishWithError(channelID, sid, fmt.Sprintf("Search failed: %v", err))
			return
		}

		switch event.Type {
		case types.StreamEventFinal:
			papers := event.Papers
			applied := c.applyIfCurrent(channelID, sid, func(entry *queueEntry) {
				entry.papers = Merge(entry.papers, papers, batchMode)
			})
			if !applied {
				return
			}
			// Later batches in the same stream accumulate onto the first.
			batchMode = MergeAppend
		case types.StreamEventDone:
			// Elapsed time is measured at the done frame; the io.EOF that
			// follows finalizes the search flags.
			c.applyIfCurrent(channelID, sid, func(entry *queueEntry) {
				entry.searchDuration = time.Since(entry.searchStarted)
			})
		}
	}
}

// finishSearch marks a successful completion: search flag cleared, status
// notification set, prior results intact.
func (c *Coordinator) finishSearch(channelID string, sid int64) {
	c.applyIfCurrent(channelID, sid, func(entry *queueEntry) {
		entry.isSearching = false
		if entry.searchDuration == 0 {
			entry.searchDuration = time.Since(entry.searchStarted)
		}
		if n := len(entry.papers); n == 1 {
			entry.notification = "Found 1 paper"
		} else {
			entry.notification = fmt.Sprintf("Found %d papers", n)
		}
	})
}

// finishWithError surfaces a transfer or backend failure as the channel
// notification. Prior results are retained. Backends may send error frames
// with no message; the notification must still be non-empty so watchers can
// tell the search settled.
func (c *Coordinator) finishWithError(channelID string, sid int64, message string) {
	if message == "" {
		message = "Search failed"
	}
	c.logger.Warn("search failed", "channel", channelID, "session", sid, "message", message)
	c.applyIfCurrent(channelID, sid, func(entry *queueEntry) {
		entry.isSearching = false
		entry.notification = message
	})
}

// applyIfCurrent runs fn against the channel's entry only if sid is still
// the channel's live session, then notifies subscribers. It reports whether
// the mutation was applied. This apply-time gate — not any check at issue
// time — is what keeps late events from a superseded search out of the
// current view.
func (c *Coordinator) applyIfCurrent(channelID string, sid int64, fn func(entry *queueEntry)) bool {
	c.mu.Lock()
	sess := c.sessions[channelID]
	if sess == nil || sess.id != sid {
		c.mu.Unlock()
		return false
	}
	fn(c.ensureEntryLocked(channelID))
	c.mu.Unlock()

	c.notify(channelID)
	return true
}

// DismissPaper permanently hides the paper from the project's views. The
// ID is persisted immediately and eagerly pruned from every channel's raw
// list for memory hygiene; the durable set is what keeps it hidden after
// a reload. Storage failures are logged and swallowed.
func (c *Coordinator) DismissPaper(channelID, paperID string) {
	c.mu.Lock()
	c.dismissedPapers[paperID] = struct{}{}
	for _, entry := range c.queues {
		pruned := entry.papers[:0:0]
		for _, p := range entry.papers {
			if p.ID != paperID {
				pruned = append(pruned, p)
			}
		}
		entry.papers = pruned
	}
	c.mu.Unlock()

	if err := c.store.AddDismissedPaper(c.cfg.Project, paperID); err != nil {
		c.logger.Warn("persisting dismissed paper", "paper", paperID, "error", err)
	}
	c.notify(channelID)
}

// DismissNotification records that the channel's ingestion banner was
// dismissed, which also stops the ingestion poller for the channel.
func (c *Coordinator) DismissNotification(channelID string) {
	c.mu.Lock()
	c.dismissedNotifications[channelID] = struct{}{}
	if entry, ok := c.queues[channelID]; ok {
		entry.notification = ""
	}
	c.mu.Unlock()

	if err := c.store.AddDismissedNotification(c.cfg.Project, channelID); err != nil {
		c.logger.Warn("persisting dismissed notification", "channel", channelID, "error", err)
	}
	c.notify(channelID)
}

// NotificationDismissed reports whether the channel's banner was dismissed.
func (c *Coordinator) NotificationDismissed(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, dismissed := c.dismissedNotifications[channelID]
	return dismissed
}

// ResetDismissed clears the project's dismissed sets, both in memory and
// in the durable store, making previously dismissed papers visible again.
func (c *Coordinator) ResetDismissed() {
	c.mu.Lock()
	c.dismissedPapers = make(map[string]struct{})
	c.dismissedNotifications = make(map[string]struct{})
	channels := make([]string, 0, len(c.queues))
	for channelID := range c.queues {
		channels = append(channels, channelID)
	}
	c.mu.Unlock()

	if err := c.store.Reset(c.cfg.Project); err != nil {
		c.logger.Warn("resetting dismissed sets", "error", err)
	}
	for _, channelID := range channels {
		c.notify(channelID)
	}
}

// ResetChannel drops the channel's queue state and abandons its session.
func (c *Coordinator) ResetChannel(channelID string) {
	c.mu.Lock()
	if sess := c.sessions[channelID]; sess != nil {
		sess.cancel()
	}
	delete(c.sessions, channelID)
	delete(c.queues, channelID)
	c.mu.Unlock()

	c.notify(channelID)
}

// Close aborts every in-flight transfer and waits for their consumers to
// exit. The coordinator accepts no new searches afterwards.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, sess := range c.sessions {
		sess.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// displayQuery picks the human-readable query string for the queue entry.
func displayQuery(req api.SearchRequest) string {
	switch {
	case req.Query != "":
		return req.Query
	case req.ResearchTopic != "":
		return req.ResearchTopic
	case req.PaperID != "":
		return "similar to " + req.PaperID
	default:
		return ""
	}
}
