package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []domain.FeedSnapshot
}

func (p *recordingPublisher) Publish(_ context.Context, snap domain.FeedSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
	return nil
}

func (p *recordingPublisher) published() []domain.FeedSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.FeedSnapshot(nil), p.snaps...)
}

func startPoller(t *testing.T, gw *stubGateway, pubs ...ports.SnapshotPublisher) *Poller {
	t.Helper()
	f := newTestFetcher(gw, &stubStore{session: activeSession()})
	p := NewPoller(f, time.Hour, pubs, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("poller did not stop")
		}
	})
	return p
}

func TestPollerRefreshReturnsFreshSnapshot(t *testing.T) {
	gw := &stubGateway{fetch: func(string, string, int) (*ports.RawFeed, error) {
		return &ports.RawFeed{Entries: []ports.RawEntry{{TypeTag: "news", ID: "n1", Title: "T"}}}, nil
	}}
	p := startPoller(t, gw)

	snap, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, "blokka", snap.OrgSlug)
	assert.NoError(t, snap.LastError)
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestPollerCoalescesConcurrentRefreshes(t *testing.T) {
	release := make(chan struct{})
	gw := &stubGateway{fetch: func(string, string, int) (*ports.RawFeed, error) {
		<-release
		return &ports.RawFeed{Entries: []ports.RawEntry{{TypeTag: "news", ID: "n1", Title: "T"}}}, nil
	}}
	p := startPoller(t, gw)

	// Let the startup cycle drain first so the counts below are deterministic.
	release <- struct{}{}
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return !p.running
	})

	const callers = 4
	var wg sync.WaitGroup
	snaps := make([]domain.FeedSnapshot, callers)
	refresh := func(i int) {
		defer wg.Done()
		snap, err := p.Refresh(context.Background())
		assert.NoError(t, err)
		snaps[i] = snap
	}

	// The first request starts a cycle which then blocks in the gateway.
	wg.Add(1)
	go refresh(0)
	waitFor(t, func() bool { return gw.fetchCount() == 2 })

	// Requests arriving while that cycle is in flight become waiters on it.
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go refresh(i)
	}
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.waiters) == callers
	})

	release <- struct{}{}
	wg.Wait()

	assert.Equal(t, 2, gw.fetchCount(), "one startup cycle plus one coalesced cycle")
	for _, snap := range snaps {
		assert.Len(t, snap.Items, 1)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPollerFailureKeepsPreviousItems(t *testing.T) {
	var failing bool
	var mu sync.Mutex
	gw := &stubGateway{}
	gw.fetch = func(string, string, int) (*ports.RawFeed, error) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return nil, domerrors.ErrNetwork
		}
		return &ports.RawFeed{Entries: []ports.RawEntry{{TypeTag: "news", ID: "n1", Title: "T"}}}, nil
	}
	p := startPoller(t, gw)

	snap, err := p.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	firstFetched := snap.FetchedAt

	mu.Lock()
	failing = true
	mu.Unlock()

	snap, err = p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1, "previous items retained on failure")
	assert.ErrorIs(t, snap.LastError, domerrors.ErrNetwork)
	assert.True(t, snap.FetchedAt.After(firstFetched) || snap.FetchedAt.Equal(firstFetched))
	assert.True(t, snap.Stale())
}

func TestPollerRecoveryReplacesSnapshot(t *testing.T) {
	var failing bool
	var mu sync.Mutex
	gw := &stubGateway{}
	gw.fetch = func(string, string, int) (*ports.RawFeed, error) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return nil, domerrors.ErrNetwork
		}
		return &ports.RawFeed{Entries: []ports.RawEntry{{TypeTag: "post", ID: "p1", Title: "Ny"}}}, nil
	}
	p := startPoller(t, gw)

	mu.Lock()
	failing = true
	mu.Unlock()
	snap, err := p.Refresh(context.Background())
	require.NoError(t, err)
	require.Error(t, snap.LastError)

	mu.Lock()
	failing = false
	mu.Unlock()
	snap, err = p.Refresh(context.Background())
	require.NoError(t, err)
	assert.NoError(t, snap.LastError)
	assert.False(t, snap.Stale())
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "p1", snap.Items[0].ID)
}

func TestPollerPublishesOnSuccessOnly(t *testing.T) {
	var failing bool
	var mu sync.Mutex
	gw := &stubGateway{}
	gw.fetch = func(string, string, int) (*ports.RawFeed, error) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return nil, domerrors.ErrNetwork
		}
		return &ports.RawFeed{Entries: []ports.RawEntry{{TypeTag: "news", ID: "n1", Title: "T"}}}, nil
	}
	pub := &recordingPublisher{}
	p := startPoller(t, gw, pub)

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)
	successCount := len(pub.published())
	require.GreaterOrEqual(t, successCount, 1)

	mu.Lock()
	failing = true
	mu.Unlock()
	snap, err := p.Refresh(context.Background())
	require.NoError(t, err)
	require.Error(t, snap.LastError)
	assert.Equal(t, successCount, len(pub.published()), "failed cycles are not published")
}

func TestPollerSnapshotBeforeFirstCycle(t *testing.T) {
	f := newTestFetcher(&stubGateway{}, &stubStore{session: activeSession()})
	p := NewPoller(f, time.Hour, nil, zerolog.Nop())
	snap := p.Snapshot()
	assert.Empty(t, snap.Items)
	assert.True(t, snap.FetchedAt.IsZero())
}
