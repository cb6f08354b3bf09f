package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

const (
	// SnapshotChannel carries a nudge whenever the Redis snapshot changes.
	SnapshotChannel = "rocks:snapshot"

	maxTxRetries = 5
)

var ErrSnapshotContention = errors.New("snapshot update kept conflicting")

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSnapshot keeps the shared snapshot under SharedKey so every node on
// the same Redis sees queued rocks.
type RedisSnapshot struct {
	client  *redis.Client
	key     string
	channel string
	logger  *slog.Logger
	now     func() time.Time
}

func NewRedisSnapshot(client *redis.Client, logger *slog.Logger) *RedisSnapshot {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSnapshot{
		client:  client,
		key:     SharedKey,
		channel: SnapshotChannel,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *RedisSnapshot) read(ctx context.Context, g redisGetter) (Snapshot, error) {
	data, err := g.Get(ctx, s.key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

func (s *RedisSnapshot) Fetch(ctx context.Context) ([]models.Rock, error) {
	snap, err := s.read(ctx, s.client)
	if err != nil {
		return nil, err
	}
	return snap.Rocks, nil
}

func (s *RedisSnapshot) Upsert(ctx context.Context, rock models.Rock) error {
	return s.update(ctx, func(snap *Snapshot, now time.Time) { snap.put(rock, now) })
}

func (s *RedisSnapshot) Remove(ctx context.Context, id string) error {
	return s.update(ctx, func(snap *Snapshot, now time.Time) { snap.remove(id, now) })
}

// update applies fn inside an optimistic WATCH/MULTI transaction and
// publishes a nudge once it commits.
func (s *RedisSnapshot) update(ctx context.Context, fn func(*Snapshot, time.Time)) error {
	txf := func(tx *redis.Tx) error {
		snap, err := s.read(ctx, tx)
		if err != nil {
			return err
		}
		fn(&snap, s.now())
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.client.Publish(ctx, s.channel, s.key).Err(); err != nil {
			s.logger.Warn("snapshot nudge not published", "err", err)
		}
		return nil
	}
	return ErrSnapshotContention
}

// Watch subscribes to the nudge channel and calls onChange for every message.
// It reconnects with backoff until ctx is done.
func (s *RedisSnapshot) Watch(ctx context.Context, onChange func()) error {
	go func() {
		backoff := time.Second

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			func() {
				pubsub := s.client.Subscribe(ctx, s.channel)
				defer pubsub.Close()

				s.logger.Info("snapshot subscriber started", "channel", s.channel)

				for {
					_, err := pubsub.ReceiveMessage(ctx)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						s.logger.Warn("snapshot subscriber error", "err", err, "retry_in", backoff)
						select {
						case <-time.After(backoff):
						case <-ctx.Done():
						}
						backoff *= 2
						if backoff > 30*time.Second {
							backoff = 30 * time.Second
						}
						return
					}
					backoff = time.Second
					onChange()
				}
			}()
		}
	}()
	return nil
}
