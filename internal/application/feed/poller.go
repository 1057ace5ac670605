package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

const (
	// DefaultInterval between scheduled cycles.
	DefaultInterval = 30 * time.Minute
	// DefaultCycleTimeout bounds one whole cycle including retries.
	DefaultCycleTimeout = 2 * time.Minute
)

// Poller drives fetch+normalize cycles on a fixed interval and on demand.
// At most one cycle runs at a time; a refresh request arriving while a
// cycle is in flight is satisfied by that cycle's result instead of
// starting another.
type Poller struct {
	fetcher      *Fetcher
	publishers   []ports.SnapshotPublisher
	interval     time.Duration
	cycleTimeout time.Duration
	log          zerolog.Logger

	mu       sync.Mutex
	running  bool
	waiters  []chan domain.FeedSnapshot
	snapshot domain.FeedSnapshot

	trigger chan struct{}
}

func NewPoller(fetcher *Fetcher, interval time.Duration, publishers []ports.SnapshotPublisher, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetcher:      fetcher,
		publishers:   publishers,
		interval:     interval,
		cycleTimeout: DefaultCycleTimeout,
		log:          log,
		trigger:      make(chan struct{}, 1),
	}
}

// Run blocks until ctx is done, executing cycles serially. An immediate
// first cycle runs on startup so consumers have data without waiting a full
// interval. An in-flight cycle finishes (bounded by the cycle timeout)
// before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc("@every "+p.interval.String(), p.requestCycle); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	p.requestCycle()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.trigger:
			p.runCycle(ctx)
		}
	}
}

// Refresh requests an on-demand cycle and returns the snapshot produced by
// the cycle that satisfies it. With a cycle already in flight no second
// fetch is issued; the in-flight result is returned.
func (p *Poller) Refresh(ctx context.Context) (domain.FeedSnapshot, error) {
	done := make(chan domain.FeedSnapshot, 1)
	p.mu.Lock()
	p.waiters = append(p.waiters, done)
	if !p.running {
		select {
		case p.trigger <- struct{}{}:
		default:
		}
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return domain.FeedSnapshot{}, ctx.Err()
	case snap := <-done:
		return snap, nil
	}
}

// Snapshot returns the latest published snapshot.
func (p *Poller) Snapshot() domain.FeedSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// requestCycle coalesces: with a cycle running or already pending the
// trigger is dropped, not queued.
func (p *Poller) requestCycle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) runCycle(ctx context.Context) {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	// The cycle is detached from the run loop's cancellation so shutdown
	// never aborts a credential write mid-flight; the timeout still bounds it.
	cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cycleTimeout)
	defer cancel()

	start := time.Now()
	snap := p.executeCycle(cycleCtx, start)

	p.mu.Lock()
	p.snapshot = snap
	p.running = false
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w <- snap
	}

	if snap.LastError == nil {
		p.publish(cycleCtx, snap)
	}
}

func (p *Poller) executeCycle(ctx context.Context, start time.Time) domain.FeedSnapshot {
	raw, actx, err := p.fetcher.Fetch(ctx)
	org := actx.OrgSlug

	if err != nil {
		pollCycles.WithLabelValues(org, "failure").Inc()
		pollCycleDuration.WithLabelValues(org).Observe(time.Since(start).Seconds())

		// Network-class failures are routine: keep the previous items and
		// flag staleness. Only a dead session needs user action.
		if errors.Is(err, domerrors.ErrUnauthenticated) {
			p.log.Error().Err(err).Str("org", org).Msg("session invalid; re-login required")
		} else {
			p.log.Warn().Err(err).Str("org", org).Msg("poll cycle failed; keeping previous snapshot")
		}

		p.mu.Lock()
		prev := p.snapshot
		p.mu.Unlock()
		prev.FetchedAt = start
		prev.LastError = err
		if prev.OrgSlug == "" {
			prev.OrgSlug = org
		}
		return prev
	}

	items := Normalize(raw, p.log)
	pollCycles.WithLabelValues(org, "success").Inc()
	pollCycleDuration.WithLabelValues(org).Observe(time.Since(start).Seconds())
	feedItems.WithLabelValues(org).Set(float64(len(items)))
	p.log.Info().Str("org", org).Int("items", len(items)).Msg("poll cycle complete")

	return domain.FeedSnapshot{
		Items:     items,
		OrgSlug:   org,
		FetchedAt: start,
	}
}

func (p *Poller) publish(ctx context.Context, snap domain.FeedSnapshot) {
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, snap); err != nil {
			p.log.Warn().Err(err).Msg("snapshot publish failed")
		}
	}
}
