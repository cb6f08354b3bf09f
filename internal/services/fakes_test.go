package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
	"github.com/AnshRaj112/rockhunter-backend/internal/store"
	"github.com/AnshRaj112/rockhunter-backend/pkg/logging"
)

var errUnreachable = errors.New("remote unreachable")

// fakeRemote is an in-memory RemoteStore that can fail or hang on demand.
type fakeRemote struct {
	mu        sync.Mutex
	docs      map[string]models.Rock
	setErr    error
	deleteErr error
	subErr    error
	// When set, Set waits for release before writing.
	release chan struct{}

	onBatch func(store.Batch)
	onError func(error)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: make(map[string]models.Rock)}
}

func (f *fakeRemote) Set(ctx context.Context, id string, rock models.Rock) error {
	f.mu.Lock()
	release, err := f.release, f.setErr
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.docs[id] = rock.Clone()
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeRemote) GetAll(ctx context.Context) ([]models.Rock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Rock, 0, len(f.docs))
	for _, r := range f.docs {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, onBatch func(store.Batch), onError func(error)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.onBatch = onBatch
	f.onError = onError
	return func() {}, nil
}

func (f *fakeRemote) doc(id string) (models.Rock, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.docs[id]
	return r, ok
}

type testEnv struct {
	svc      *SyncService
	kv       *store.MemoryKV
	local    *store.LocalRocks
	identity *IdentityService
	queue    *store.FileSnapshot
}

type envOptions struct {
	remote   *fakeRemote
	snapshot bool
	quota    int
	timeout  time.Duration
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	env := &testEnv{kv: store.NewMemoryKV(opts.quota)}
	env.local = store.NewLocalRocks(env.kv)
	env.identity = NewIdentityService(env.kv)

	deps := SyncDeps{
		Local:    env.local,
		Identity: env.identity,
		Timeout:  opts.timeout,
		Logger:   logging.Discard(),
	}
	if opts.remote != nil {
		deps.Remote = opts.remote
	}
	if opts.snapshot {
		env.queue = store.NewFileSnapshot(filepath.Join(t.TempDir(), "shared-rocks.json"), logging.Discard())
		deps.Snapshot = &store.SharedSnapshot{Queue: env.queue}
	}

	env.svc = NewSyncService(deps)
	require.NoError(t, env.svc.Load())
	return env
}

func (e *testEnv) stored(t *testing.T) []models.Rock {
	t.Helper()
	rocks, err := e.local.Load()
	require.NoError(t, err)
	return rocks
}

func fp(v float64) *float64 {
	return &v
}

func redRock() models.RockDraft {
	return models.RockDraft{Name: "Red Rock", Lat: fp(-36.86), Lng: fp(174.78)}
}

func ids(rocks []models.Rock) []string {
	out := make([]string, len(rocks))
	for i, r := range rocks {
		out[i] = r.ID
	}
	return out
}
