package services

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
	"github.com/AnshRaj112/rockhunter-backend/internal/store"
)

func startListener(t *testing.T, env *testEnv, remote *fakeRemote) (*ListenerAdapter, *atomic.Int32) {
	t.Helper()
	var fallbacks atomic.Int32
	l := NewListenerAdapter(env.svc, remote, func() { fallbacks.Add(1) }, nil)
	stop, err := l.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(stop)
	return l, &fallbacks
}

func rockPtr(r models.Rock) *models.Rock {
	return &r
}

func TestListenerFirstBatchReplaces(t *testing.T) {
	remote := newFakeRemote()
	env := newTestEnv(t, envOptions{remote: remote})
	_, err := env.local.Save([]models.Rock{{ID: "stale", Name: "Old"}})
	require.NoError(t, err)
	require.NoError(t, env.svc.Load())

	_, fallbacks := startListener(t, env, remote)
	remote.onBatch(store.Batch{Rocks: []models.Rock{
		{ID: "1", Name: "Red Rock", Status: models.StatusHidden},
		{ID: "2", Name: "Blue Rock", Status: models.StatusHidden},
	}})

	assert.Equal(t, []string{"1", "2"}, ids(env.svc.Rocks()))
	assert.Equal(t, []string{"1", "2"}, ids(env.stored(t)))
	assert.Zero(t, fallbacks.Load())
}

func TestListenerIncrementalChanges(t *testing.T) {
	remote := newFakeRemote()
	env := newTestEnv(t, envOptions{remote: remote})
	_, _ = startListener(t, env, remote)

	remote.onBatch(store.Batch{Rocks: []models.Rock{{ID: "1", Name: "Red Rock", Status: models.StatusHidden}}})

	remote.onBatch(store.Batch{Changes: []store.Change{
		{Kind: store.ChangeAdded, ID: "2", Rock: rockPtr(models.Rock{ID: "2", Name: "Blue Rock"})},
		// Insert-if-absent: an add for a known id is ignored
		{Kind: store.ChangeAdded, ID: "1", Rock: rockPtr(models.Rock{ID: "1", Name: "Imposter"})},
		{Kind: store.ChangeModified, ID: "1", Rock: rockPtr(models.Rock{ID: "1", Name: "Red Rock", Status: models.StatusFound, FoundBy: "Al"})},
		// Modify of an unknown id is not an insert
		{Kind: store.ChangeModified, ID: "9", Rock: rockPtr(models.Rock{ID: "9", Name: "Ghost"})},
	}})

	require.Equal(t, []string{"1", "2"}, ids(env.svc.Rocks()))
	rock, err := env.svc.Rock("1")
	require.NoError(t, err)
	assert.Equal(t, "Al", rock.FoundBy)

	remote.onBatch(store.Batch{Changes: []store.Change{{Kind: store.ChangeRemoved, ID: "1"}}})
	assert.Equal(t, []string{"2"}, ids(env.svc.Rocks()))
	assert.Equal(t, []string{"2"}, ids(env.stored(t)))
}

func TestListenerSkipsOnlyOwnEchoes(t *testing.T) {
	remote := newFakeRemote()
	env := newTestEnv(t, envOptions{remote: remote})
	_, _ = startListener(t, env, remote)
	remote.onBatch(store.Batch{})

	added, err := env.svc.AddRock(context.Background(), redRock(), false)
	require.NoError(t, err)
	id := added.Rock.ID
	require.Equal(t, 1, env.svc.Guard().Pending())

	// The echo of our own add is swallowed, another rock in the same batch is not
	remote.onBatch(store.Batch{Changes: []store.Change{
		{Kind: store.ChangeAdded, ID: id, Rock: rockPtr(added.Rock)},
		{Kind: store.ChangeAdded, ID: "other", Rock: rockPtr(models.Rock{ID: "other", Name: "Green Rock"})},
	}})
	assert.Zero(t, env.svc.Guard().Pending())
	assert.Equal(t, []string{id, "other"}, ids(env.svc.Rocks()))

	// With the token spent, a later edit from elsewhere is applied
	remote.onBatch(store.Batch{Changes: []store.Change{
		{Kind: store.ChangeModified, ID: id, Rock: rockPtr(models.Rock{ID: id, Name: "Renamed"})},
	}})
	rock, err := env.svc.Rock(id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", rock.Name)
}

func TestListenerOverlappingMutations(t *testing.T) {
	remote := newFakeRemote()
	env := newTestEnv(t, envOptions{remote: remote})
	_, _ = startListener(t, env, remote)
	remote.onBatch(store.Batch{})

	a, err := env.svc.AddRock(context.Background(), redRock(), false)
	require.NoError(t, err)
	b, err := env.svc.AddRock(context.Background(), redRock(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, env.svc.Guard().Pending())

	remote.onBatch(store.Batch{Changes: []store.Change{{Kind: store.ChangeAdded, ID: b.Rock.ID, Rock: rockPtr(b.Rock)}}})
	assert.Equal(t, 1, env.svc.Guard().Pending(), "a's token is still waiting for its own echo")

	remote.onBatch(store.Batch{Changes: []store.Change{{Kind: store.ChangeAdded, ID: a.Rock.ID, Rock: rockPtr(a.Rock)}}})
	assert.Zero(t, env.svc.Guard().Pending())
	assert.Len(t, env.svc.Rocks(), 2)
}

func TestListenerFallbacks(t *testing.T) {
	t.Run("empty first batch", func(t *testing.T) {
		remote := newFakeRemote()
		env := newTestEnv(t, envOptions{remote: remote})
		_, fallbacks := startListener(t, env, remote)

		remote.onBatch(store.Batch{})
		assert.Equal(t, int32(1), fallbacks.Load())
	})

	t.Run("feed error", func(t *testing.T) {
		remote := newFakeRemote()
		env := newTestEnv(t, envOptions{remote: remote})
		_, fallbacks := startListener(t, env, remote)

		remote.onError(errUnreachable)
		assert.Equal(t, int32(1), fallbacks.Load())
	})

	t.Run("subscribe error", func(t *testing.T) {
		remote := newFakeRemote()
		remote.subErr = errUnreachable
		env := newTestEnv(t, envOptions{remote: remote})

		var fallbacks atomic.Int32
		l := NewListenerAdapter(env.svc, remote, func() { fallbacks.Add(1) }, nil)
		_, err := l.Start(context.Background())
		assert.ErrorIs(t, err, errUnreachable)
		assert.Equal(t, int32(1), fallbacks.Load())
	})
}
