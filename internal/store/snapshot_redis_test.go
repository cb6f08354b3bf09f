package store

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
	"github.com/AnshRaj112/rockhunter-backend/pkg/logging"
)

func newRedisSnapshot(t *testing.T) (*RedisSnapshot, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSnapshot(client, logging.Discard()), mr, client
}

func TestRedisSnapshotUpsertAndRemove(t *testing.T) {
	ctx := context.Background()
	snap, mr, _ := newRedisSnapshot(t)

	rocks, err := snap.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, rocks)

	require.NoError(t, snap.Upsert(ctx, models.Rock{ID: "1", Name: "Red Rock", CloudSyncStatus: models.SyncPending}))
	require.NoError(t, snap.Upsert(ctx, models.Rock{ID: "2", Name: "Blue Rock"}))
	require.NoError(t, snap.Upsert(ctx, models.Rock{ID: "1", Name: "Red Rock v2"}))

	rocks, err = snap.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, rocks, 2)
	assert.Equal(t, "2", rocks[0].ID)
	assert.Equal(t, "Red Rock v2", rocks[1].Name)
	assert.Equal(t, models.SyncShared, rocks[1].CloudSyncStatus)

	require.NoError(t, snap.Remove(ctx, "2"))
	rocks, err = snap.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, rocks, 1)
	assert.Equal(t, "1", rocks[0].ID)

	raw, err := mr.Get(SharedKey)
	require.NoError(t, err)
	var doc Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.NotNil(t, doc.LastUpdated)
}

func TestRedisSnapshotRejectsCorruptDocument(t *testing.T) {
	snap, mr, _ := newRedisSnapshot(t)
	require.NoError(t, mr.Set(SharedKey, "{not json"))

	_, err := snap.Fetch(context.Background())
	assert.Error(t, err)
	assert.Error(t, snap.Upsert(context.Background(), models.Rock{ID: "1"}))
}

func TestRedisSnapshotRetriesConflictingWrite(t *testing.T) {
	ctx := context.Background()
	snap, _, client := newRedisSnapshot(t)

	// Another node writes the key between WATCH and EXEC on the first attempt only
	var attempts atomic.Int32
	err := snap.update(ctx, func(s *Snapshot, now time.Time) {
		if attempts.Add(1) == 1 {
			require.NoError(t, client.Set(ctx, SharedKey, `{"rocks":[{"id":"peer"}]}`, 0).Err())
		}
		s.put(models.Rock{ID: "mine"}, now)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())

	rocks, err := snap.Fetch(ctx)
	require.NoError(t, err)
	ids := []string{}
	for _, r := range rocks {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"peer", "mine"}, ids, "the retry starts from the peer's write")
}

func TestRedisSnapshotGivesUpUnderContention(t *testing.T) {
	ctx := context.Background()
	snap, _, client := newRedisSnapshot(t)

	var attempts atomic.Int32
	err := snap.update(ctx, func(s *Snapshot, now time.Time) {
		attempts.Add(1)
		require.NoError(t, client.Set(ctx, SharedKey, `{"rocks":[]}`, 0).Err())
		s.put(models.Rock{ID: "mine"}, now)
	})
	assert.ErrorIs(t, err, ErrSnapshotContention)
	assert.Equal(t, int32(maxTxRetries), attempts.Load())
}

func TestRedisSnapshotWatchNudges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snap, _, _ := newRedisSnapshot(t)

	var calls atomic.Int32
	require.NoError(t, snap.Watch(ctx, func() { calls.Add(1) }))

	// The subscription starts asynchronously; keep writing until it is seen
	assert.Eventually(t, func() bool {
		require.NoError(t, snap.Upsert(ctx, models.Rock{ID: "1"}))
		return calls.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}
