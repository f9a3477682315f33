// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperflow/pkg/types"
)

// scriptedStatusClient returns one scripted response per call, then keeps
// repeating the last one.
type scriptedStatusClient struct {
	mu        sync.Mutex
	responses []map[string]types.IngestStatus
	errs      []error
	calls     int
}

func (s *scriptedStatusClient) IngestionStatuses(ctx context.Context, refs []string) (map[string]types.IngestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if len(s.responses) == 0 {
		return map[string]types.IngestStatus{}, nil
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *scriptedStatusClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type staticDismiss bool

func (d staticDismiss) NotificationDismissed(string) bool { return bool(d) }

func fastConfig() types.IngestConfig {
	return types.IngestConfig{
		PollInterval:    5 * time.Millisecond,
		StalenessWindow: time.Hour,
	}
}

func TestPollerReconcilesNoPDF(t *testing.T) {
	tr := NewTracker()
	tr.Attach("ch1", "p1", "ref1")

	client := &scriptedStatusClient{responses: []map[string]types.IngestStatus{
		{"ref1": types.IngestNoPDF},
	}}
	p := NewPoller(fastConfig(), client, tr, staticDismiss(false), nil)
	defer p.Close()

	p.Start(context.Background(), "ch1")

	require.Eventually(t, func() bool {
		states := tr.States("ch1")
		return len(states) == 1 && states[0].Status == types.IngestNoPDF
	}, 2*time.Second, time.Millisecond)

	states := tr.States("ch1")
	assert.False(t, states[0].IsAdding)
	assert.True(t, tr.Summary("ch1").Verified)
}

func TestPollerStopsWhenAllSuccess(t *testing.T) {
	tr := NewTracker()
	tr.Attach("ch1", "p1", "ref1")

	client := &scriptedStatusClient{responses: []map[string]types.IngestStatus{
		{"ref1": types.IngestSuccess},
	}}
	p := NewPoller(fastConfig(), client, tr, staticDismiss(false), nil)
	defer p.Close()

	p.Start(context.Background(), "ch1")

	require.Eventually(t, func() bool {
		return len(tr.PendingReferenceIDs("ch1")) == 0
	}, 2*time.Second, time.Millisecond)

	// After success the loop winds down and stops issuing requests.
	require.Eventually(t, func() bool {
		settled := client.callCount()
		time.Sleep(25 * time.Millisecond)
		return client.callCount() == settled
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPollerRetriesAfterFailure(t *testing.T) {
	tr := NewTracker()
	tr.Attach("ch1", "p1", "ref1")

	client := &scriptedStatusClient{
		errs:      []error{errors.New("backend unavailable")},
		responses: []map[string]types.IngestStatus{nil, {"ref1": types.IngestSuccess}},
	}
	p := NewPoller(fastConfig(), client, tr, staticDismiss(false), nil)
	defer p.Close()

	p.Start(context.Background(), "ch1")

	require.Eventually(t, func() bool {
		states := tr.States("ch1")
		return states[0].Status == types.IngestSuccess
	}, 2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, client.callCount(), 2)
}

func TestDismissedNotificationStopsPolling(t *testing.T) {
	tr := NewTracker()
	tr.Attach("ch1", "p1", "ref1")

	client := &scriptedStatusClient{responses: []map[string]types.IngestStatus{
		{"ref1": types.IngestPending},
	}}
	p := NewPoller(fastConfig(), client, tr, staticDismiss(true), nil)
	defer p.Close()

	p.Start(context.Background(), "ch1")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, client.callCount())
	assert.Equal(t, types.IngestPending, tr.States("ch1")[0].Status)
}

func TestRefreshNowSkipsWithinStalenessWindow(t *testing.T) {
	tr := NewTracker()
	tr.Attach("ch1", "p1", "ref1")

	client := &scriptedStatusClient{responses: []map[string]types.IngestStatus{
		{"ref1": types.IngestUploading},
	}}
	cfg := types.IngestConfig{PollInterval: time.Hour, StalenessWindow: time.Hour}
	p := NewPoller(cfg, client, tr, staticDismiss(false), nil)
	defer p.Close()

	// The loop's initial reconciliation records a fresh poll time.
	p.Start(context.Background(), "ch1")
	require.Eventually(t, func() bool { return client.callCount() == 1 }, 2*time.Second, time.Millisecond)

	issued := p.RefreshNow(context.Background(), "ch1")
	assert.False(t, issued)
	assert.Equal(t, 1, client.callCount())
}

func TestRefreshNowPollsWhenStale(t *testing.T) {
	tr := NewTracker()
	tr.Attach("ch1", "p1", "ref1")

	client := &scriptedStatusClient{responses: []map[string]types.IngestStatus{
		{"ref1": types.IngestUploading},
	}}
	cfg := types.IngestConfig{PollInterval: time.Hour, StalenessWindow: time.Nanosecond}
	p := NewPoller(cfg, client, tr, staticDismiss(false), nil)
	defer p.Close()

	issued := p.RefreshNow(context.Background(), "ch1")
	assert.True(t, issued)
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, types.IngestUploading, tr.States("ch1")[0].Status)
}

func TestStartIsIdempotentPerChannel(t *testing.T) {
	tr := NewTracker()
	tr.Attach("ch1", "p1", "ref1")

	client := &scriptedStatusClient{responses: []map[string]types.IngestStatus{
		{"ref1": types.IngestSuccess},
	}}
	p := NewPoller(fastConfig(), client, tr, staticDismiss(false), nil)
	defer p.Close()

	ctx := context.Background()
	p.Start(ctx, "ch1")
	p.Start(ctx, "ch1")
	p.Start(ctx, "ch1")

	require.Eventually(t, func() bool {
		return len(tr.PendingReferenceIDs("ch1")) == 0
	}, 2*time.Second, time.Millisecond)
}
