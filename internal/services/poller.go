package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/AnshRaj112/rockhunter-backend/internal/store"
)

const pollTimeout = 10 * time.Second

// SnapshotPoller runs SyncSnapshot on a timer and whenever a notifier or
// Trigger asks for an early pass.
type SnapshotPoller struct {
	sync         *SyncService
	notifiers    []store.Notifier
	interval     time.Duration
	initialDelay time.Duration
	nudges       chan struct{}
	limiter      *rate.Limiter
	logger       *slog.Logger
}

func NewSnapshotPoller(svc *SyncService, interval, initialDelay time.Duration, logger *slog.Logger, notifiers ...store.Notifier) *SnapshotPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotPoller{
		sync:         svc,
		notifiers:    notifiers,
		interval:     interval,
		initialDelay: initialDelay,
		nudges:       make(chan struct{}, 1),
		// Bursts of nudges collapse into at most one extra pass per second
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
	}
}

// Trigger requests an early pass. It never blocks.
func (p *SnapshotPoller) Trigger() {
	select {
	case p.nudges <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done.
func (p *SnapshotPoller) Run(ctx context.Context) {
	for _, n := range p.notifiers {
		if err := n.Watch(ctx, p.Trigger); err != nil {
			p.logger.Warn("snapshot change notifications unavailable", "err", err)
		}
	}

	timer := time.NewTimer(p.initialDelay)
	defer timer.Stop()

	p.logger.Info("snapshot poller started", "interval", p.interval.String(), "initial_delay", p.initialDelay.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.poll(ctx)
			timer.Reset(p.interval)
		case <-p.nudges:
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
			p.poll(ctx)
		}
	}
}

func (p *SnapshotPoller) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	res, err := p.sync.SyncSnapshot(ctx)
	if err != nil {
		p.logger.Warn("snapshot poll failed", "err", err)
		return
	}
	if res.Changed() {
		p.logger.Info("snapshot poll merged rocks", "added", res.Added, "updated", res.Updated)
	}
}
