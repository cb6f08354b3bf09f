package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AnshRaj112/rockhunter-backend/internal/store"
)

// ListenerAdapter applies the remote change feed to the rock list.
type ListenerAdapter struct {
	sync     *SyncService
	remote   store.RemoteStore
	guard    *MutationGuard
	fallback func()
	logger   *slog.Logger

	mu       sync.Mutex
	received bool
}

// NewListenerAdapter wires the feed of remote into svc. fallback, when
// set, is called whenever the feed cannot be relied on, typically to
// trigger a snapshot poll.
func NewListenerAdapter(svc *SyncService, remote store.RemoteStore, fallback func(), logger *slog.Logger) *ListenerAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListenerAdapter{
		sync:     svc,
		remote:   remote,
		guard:    svc.Guard(),
		fallback: fallback,
		logger:   logger,
	}
}

// Start subscribes to the remote feed. The returned func unsubscribes.
func (l *ListenerAdapter) Start(ctx context.Context) (func(), error) {
	stop, err := l.remote.Subscribe(ctx, l.HandleBatch, l.HandleError)
	if err != nil {
		l.logger.Warn("real-time listener unavailable, falling back to snapshot", "err", err)
		l.triggerFallback()
		return nil, fmt.Errorf("subscribe to remote rocks: %w", err)
	}
	l.logger.Info("real-time listener started")
	return stop, nil
}

// HandleBatch applies one notification. The first one replaces the list;
// later ones apply each change on its own.
func (l *ListenerAdapter) HandleBatch(batch store.Batch) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.received {
		l.received = true
		l.sync.replaceAll(batch.Rocks, "remote")
		if len(batch.Rocks) == 0 {
			// An empty collection may just mean other devices only use the snapshot
			l.triggerFallback()
		}
		return
	}

	book := l.sync.book
	changed := false
	for _, c := range batch.Changes {
		if c.Kind != store.ChangeRemoved && l.guard.Consume(c.ID) {
			l.logger.Debug("skipping echo of local write", "rock_id", c.ID, "kind", string(c.Kind))
			continue
		}

		switch c.Kind {
		case store.ChangeAdded:
			if c.Rock != nil && book.Insert(*c.Rock) {
				changed = true
			}
		case store.ChangeModified:
			if c.Rock != nil && book.Replace(*c.Rock) {
				changed = true
			}
		case store.ChangeRemoved:
			if _, _, ok := book.Remove(c.ID); ok {
				changed = true
			}
		}
	}

	if changed {
		l.sync.persistBestEffort()
		l.sync.Redraw()
		l.logger.Info("applied remote changes", "changes", len(batch.Changes))
	}
}

func (l *ListenerAdapter) HandleError(err error) {
	l.logger.Warn("real-time listener error, falling back to snapshot", "err", err)
	l.triggerFallback()
}

func (l *ListenerAdapter) triggerFallback() {
	if l.fallback != nil {
		l.fallback()
	}
}
