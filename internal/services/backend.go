package services

import (
	"context"
	"errors"
	"time"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
	"github.com/AnshRaj112/rockhunter-backend/internal/store"
)

// ErrRemoteTimeout marks a shared-store call that outlived its timeout.
var ErrRemoteTimeout = errors.New("remote operation timed out")

// Outcome is the user-facing result of a save.
type Outcome string

const (
	OutcomeRemoteSuccess   Outcome = "remote-success"
	OutcomeFallbackSuccess Outcome = "fallback-success"
	OutcomeLocalOnly       Outcome = "local-only"
)

func (o Outcome) Message() string {
	switch o {
	case OutcomeRemoteSuccess:
		return "Rock saved and shared with team instantly!"
	case OutcomeFallbackSuccess:
		return "Rock saved and queued for team sync!"
	default:
		return "Rock saved locally, cloud sync will retry"
	}
}

func (o Outcome) rank() int {
	switch o {
	case OutcomeRemoteSuccess:
		return 2
	case OutcomeFallbackSuccess:
		return 1
	default:
		return 0
	}
}

// Backend is one shared store a save is propagated to.
type Backend interface {
	Name() string
	// Success is the outcome a successful Share reports.
	Success() Outcome
	// Stamp applies bookkeeping to the rock before it is written locally.
	Stamp(rock models.Rock, now time.Time) models.Rock
	Share(ctx context.Context, rock models.Rock) error
}

// SelectBackends picks the sharing strategy once, at startup: the remote
// store when configured, else a writable snapshot, else nothing.
func SelectBackends(remote store.RemoteStore, snapshot *store.SharedSnapshot) []Backend {
	if remote != nil {
		return []Backend{&RemoteBackend{remote: remote}}
	}
	if snapshot != nil && snapshot.Writable() {
		return []Backend{&SnapshotBackend{snapshot: snapshot}}
	}
	return nil
}

type RemoteBackend struct {
	remote store.RemoteStore
}

func (b *RemoteBackend) Name() string     { return "remote" }
func (b *RemoteBackend) Success() Outcome { return OutcomeRemoteSuccess }

func (b *RemoteBackend) Stamp(rock models.Rock, _ time.Time) models.Rock {
	return rock
}

func (b *RemoteBackend) Share(ctx context.Context, rock models.Rock) error {
	return b.remote.Set(ctx, rock.ID, rock)
}

// SnapshotBackend queues rocks in the shared snapshot for other nodes'
// pollers. The local copy stays pending; the queued copy is marked shared.
type SnapshotBackend struct {
	snapshot *store.SharedSnapshot
}

func (b *SnapshotBackend) Name() string     { return "snapshot" }
func (b *SnapshotBackend) Success() Outcome { return OutcomeFallbackSuccess }

func (b *SnapshotBackend) Stamp(rock models.Rock, now time.Time) models.Rock {
	out := rock.Clone()
	shared := now.UTC()
	out.SharedTimestamp = &shared
	out.CloudSyncStatus = models.SyncPending
	return out
}

func (b *SnapshotBackend) Share(ctx context.Context, rock models.Rock) error {
	return b.snapshot.Upsert(ctx, rock)
}

// callWithTimeout runs op on a context detached from ctx's cancellation.
// When the timer fires first the call counts as failed, keeps running in
// the background and its result is dropped.
func callWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	done := make(chan error, 1)
	opCtx := context.WithoutCancel(ctx)
	go func() {
		done <- op(opCtx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrRemoteTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
