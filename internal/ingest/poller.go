// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pdiddy/paperflow/pkg/types"
)

// StatusClient fetches backend ingestion statuses for a set of reference
// IDs. *api.Client satisfies it.
type StatusClient interface {
	IngestionStatuses(ctx context.Context, referenceIDs []string) (map[string]types.IngestStatus, error)
}

// DismissChecker reports whether a channel's ingestion notification was
// dismissed, which stops polling for the channel. *discovery.Coordinator
// satisfies it.
type DismissChecker interface {
	NotificationDismissed(channelID string) bool
}

type channelPoll struct {
	cancel   context.CancelFunc
	lastPoll time.Time
}

// Poller reconciles tracker state against the backend on a fixed interval.
// Each channel gets its own loop, started on attach and stopped when every
// reference has succeeded or the channel's notification is dismissed. Poll
// failures are logged and retried on the next tick.
type Poller struct {
	cfg       types.IngestConfig
	client    StatusClient
	tracker   *Tracker
	dismissed DismissChecker
	logger    *slog.Logger

	mu       sync.Mutex
	channels map[string]*channelPoll
	wg       sync.WaitGroup
}

// NewPoller builds a poller over the tracker. A nil logger discards
// diagnostics.
func NewPoller(cfg types.IngestConfig, client StatusClient, tracker *Tracker, dismissed DismissChecker, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		cfg:       cfg,
		client:    client,
		tracker:   tracker,
		dismissed: dismissed,
		logger:    logger,
		channels:  make(map[string]*channelPoll),
	}
}

// Start launches the channel's poll loop if one is not already running.
// The loop exits when ctx is cancelled, the notification is dismissed, or
// every reference reaches success.
func (p *Poller) Start(ctx context.Context, channelID string) {
	p.mu.Lock()
	if _, running := p.channels[channelID]; running {
		p.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.channels[channelID] = &channelPoll{cancel: cancel}
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(loopCtx, channelID)
}

// RefreshNow polls the channel immediately unless a poll completed within
// the staleness window, in which case the cached state is considered fresh
// enough and no request is made. It reports whether a request was issued.
func (p *Poller) RefreshNow(ctx context.Context, channelID string) bool {
	p.mu.Lock()
	state := p.channels[channelID]
	if state != nil && time.Since(state.lastPoll) < p.cfg.StalenessWindow {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	p.pollOnce(ctx, channelID)
	return true
}

// Stop cancels the channel's poll loop if one is running.
func (p *Poller) Stop(channelID string) {
	p.mu.Lock()
	state := p.channels[channelID]
	delete(p.channels, channelID)
	p.mu.Unlock()

	if state != nil {
		state.cancel()
	}
}

// Close stops every loop and waits for them to exit.
func (p *Poller) Close() {
	p.mu.Lock()
	for channelID, state := range p.channels {
		state.cancel()
		delete(p.channels, channelID)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context, channelID string) {
	defer p.wg.Done()
	defer p.Stop(channelID)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	// First reconciliation happens without waiting a full interval.
	if done := p.tick(ctx, channelID); done {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := p.tick(ctx, channelID); done {
				return
			}
		}
	}
}

// tick runs one reconciliation and reports whether the loop should stop.
func (p *Poller) tick(ctx context.Context, channelID string) bool {
	if p.dismissed != nil && p.dismissed.NotificationDismissed(channelID) {
		p.logger.Debug("notification dismissed, stopping poll", "channel", channelID)
		return true
	}
	if len(p.tracker.PendingReferenceIDs(channelID)) == 0 && p.tracker.Summary(channelID).Verified {
		return true
	}
	p.pollOnce(ctx, channelID)
	return false
}

// pollOnce fetches statuses for the channel's unfinished references and
// applies them. Failures leave the tracker untouched.
func (p *Poller) pollOnce(ctx context.Context, channelID string) {
	refs := p.tracker.PendingReferenceIDs(channelID)
	if len(refs) == 0 {
		return
	}

	statuses, err := p.client.IngestionStatuses(ctx, refs)
	if err != nil {
		p.logger.Warn("ingestion status poll failed", "channel", channelID, "error", err)
		return
	}

	p.tracker.Apply(channelID, statuses)

	p.mu.Lock()
	if state := p.channels[channelID]; state != nil {
		state.lastPoll = time.Now()
	}
	p.mu.Unlock()
}
