package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AnshRaj112/rockhunter-backend/internal/mapview"
	"github.com/AnshRaj112/rockhunter-backend/internal/models"
	"github.com/AnshRaj112/rockhunter-backend/internal/reconcile"
	"github.com/AnshRaj112/rockhunter-backend/internal/store"
)

const DefaultRemoteTimeout = 10 * time.Second

var (
	ErrRockNotFound = errors.New("rock not found")
	ErrNotRockOwner = errors.New("only the person who posted a rock can delete it")

	// ErrRemoteDeleteFailed means the remote store refused a delete and the
	// rock was put back locally.
	ErrRemoteDeleteFailed = errors.New("remote delete failed, rock restored")
)

// Attempt is the result of sharing a save with one backend.
type Attempt struct {
	Backend string
	Err     error
}

type SaveResult struct {
	Rock           models.Rock
	Outcome        Outcome
	PhotosStripped bool
	Attempts       []Attempt
}

// SyncDeps are the collaborators of a SyncService. Remote and Snapshot may
// be nil; Surface and Identity are optional.
type SyncDeps struct {
	Book     *RockBook
	Local    *store.LocalRocks
	Remote   store.RemoteStore
	Snapshot *store.SharedSnapshot
	Identity *IdentityService
	Guard    *MutationGuard
	Surface  mapview.Surface
	Timeout  time.Duration
	Logger   *slog.Logger
}

// SyncService owns the rock list: it writes locally first and then shares
// each mutation with the backend chosen at startup.
type SyncService struct {
	book     *RockBook
	local    *store.LocalRocks
	remote   store.RemoteStore
	snapshot *store.SharedSnapshot
	backends []Backend
	identity *IdentityService
	guard    *MutationGuard
	surface  mapview.Surface
	timeout  time.Duration
	logger   *slog.Logger

	ids models.IDSource
	now func() time.Time

	// Serialises list capture plus the local write, so the newest list wins.
	persistMu sync.Mutex
	// Same for list capture plus drawing.
	renderMu sync.Mutex
}

func NewSyncService(deps SyncDeps) *SyncService {
	if deps.Book == nil {
		deps.Book = NewRockBook()
	}
	if deps.Guard == nil {
		deps.Guard = NewMutationGuard()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultRemoteTimeout
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &SyncService{
		book:     deps.Book,
		local:    deps.Local,
		remote:   deps.Remote,
		snapshot: deps.Snapshot,
		backends: SelectBackends(deps.Remote, deps.Snapshot),
		identity: deps.Identity,
		guard:    deps.Guard,
		surface:  deps.Surface,
		timeout:  deps.Timeout,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// Mode names the sharing strategy for logs and /health.
func (s *SyncService) Mode() string {
	if len(s.backends) == 0 {
		return "local-only"
	}
	return s.backends[0].Name()
}

func (s *SyncService) Guard() *MutationGuard {
	return s.guard
}

// Load reads the local rock list into memory and draws it.
func (s *SyncService) Load() error {
	rocks, err := s.local.Load()
	if err != nil {
		return fmt.Errorf("load local rocks: %w", err)
	}
	s.book.ReplaceAll(rocks)
	s.Redraw()
	s.logger.Info("loaded local rocks", "count", len(rocks), "mode", s.Mode())
	return nil
}

func (s *SyncService) Rocks() []models.Rock {
	return s.book.List()
}

func (s *SyncService) Rock(id string) (models.Rock, error) {
	rock, ok := s.book.Get(id)
	if !ok {
		return models.Rock{}, ErrRockNotFound
	}
	return rock, nil
}

func (s *SyncService) Stats() models.Stats {
	return models.ComputeStats(s.book.List())
}

// AddRock validates draft, pins it for the current user and saves it.
func (s *SyncService) AddRock(ctx context.Context, draft models.RockDraft, postAsUser bool) (SaveResult, error) {
	actor, err := s.actor()
	if err != nil {
		return SaveResult{}, err
	}

	now := s.now()
	rock, err := models.NewRock(draft, actor, postAsUser, s.ids.Next(now), now)
	if err != nil {
		return SaveResult{}, err
	}

	s.book.Insert(rock)
	s.Redraw()

	res, err := s.share(ctx, rock)
	if err != nil {
		s.book.Remove(rock.ID)
		s.Redraw()
		return SaveResult{}, err
	}
	return res, nil
}

// MarkFound records report against rock id and saves it.
func (s *SyncService) MarkFound(ctx context.Context, id string, report models.FoundReport) (SaveResult, error) {
	rock, ok := s.book.Get(id)
	if !ok {
		return SaveResult{}, ErrRockNotFound
	}
	actor, err := s.actor()
	if err != nil {
		return SaveResult{}, err
	}

	found := models.MarkFound(rock, report, actor, s.now())
	s.book.Replace(found)
	s.Redraw()

	res, err := s.share(ctx, found)
	if err != nil {
		s.book.Replace(rock)
		s.Redraw()
		return SaveResult{}, err
	}
	return res, nil
}

// share wraps SaveAndShare with an echo token for the remote feed.
func (s *SyncService) share(ctx context.Context, rock models.Rock) (SaveResult, error) {
	token := s.guard.Begin(rock.ID)
	res, err := s.SaveAndShare(ctx, rock)
	if err != nil || res.Outcome != OutcomeRemoteSuccess {
		s.guard.Cancel(rock.ID, token)
	}
	return res, err
}

// SaveAndShare writes rock locally, then shares it with every selected
// backend. The only error is a local write that fails even without
// photos; shared-store failures are reported through the outcome.
func (s *SyncService) SaveAndShare(ctx context.Context, rock models.Rock) (SaveResult, error) {
	now := s.now()
	for _, b := range s.backends {
		rock = b.Stamp(rock, now)
	}
	s.book.Upsert(rock)

	report, err := s.persist()
	if err != nil {
		s.logger.Error("local save failed", "rock_id", rock.ID, "err", err)
		return SaveResult{}, err
	}

	res := SaveResult{
		Rock:           rock,
		Outcome:        OutcomeLocalOnly,
		PhotosStripped: report.PhotosStripped,
		Attempts:       s.fanOut(ctx, rock),
	}
	for i, attempt := range res.Attempts {
		if attempt.Err != nil {
			s.logger.Warn("cloud sync failed, rock kept locally", "rock_id", rock.ID, "backend", attempt.Backend, "err", attempt.Err)
			continue
		}
		if success := s.backends[i].Success(); success.rank() > res.Outcome.rank() {
			res.Outcome = success
		}
	}

	s.logger.Info("rock saved", "rock_id", rock.ID, "outcome", res.Outcome, "photos_stripped", res.PhotosStripped)
	return res, nil
}

// fanOut shares rock with all backends at once and waits for every one.
func (s *SyncService) fanOut(ctx context.Context, rock models.Rock) []Attempt {
	attempts := make([]Attempt, len(s.backends))
	var wg sync.WaitGroup
	for i, b := range s.backends {
		wg.Go(func() {
			err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
				return b.Share(ctx, rock)
			})
			attempts[i] = Attempt{Backend: b.Name(), Err: err}
		})
	}
	wg.Wait()
	return attempts
}

// DeleteRock removes id locally, then from the remote store. A remote
// failure restores the rock where it was and returns an error. The
// snapshot purge afterwards is best-effort; if it fails a stale snapshot
// can bring the rock back on a later poll.
func (s *SyncService) DeleteRock(ctx context.Context, id string) error {
	rock, index, ok := s.book.Remove(id)
	if !ok {
		return ErrRockNotFound
	}
	if _, err := s.persist(); err != nil {
		s.book.RestoreAt(rock, index)
		return fmt.Errorf("delete rock %s locally: %w", id, err)
	}
	s.Redraw()

	if s.remote != nil {
		err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
			return s.remote.Delete(ctx, id)
		})
		if err != nil {
			s.book.RestoreAt(rock, index)
			if _, perr := s.persist(); perr != nil {
				s.logger.Error("failed to restore rock locally", "rock_id", id, "err", perr)
			}
			s.Redraw()
			s.logger.Warn("remote delete failed, rock restored", "rock_id", id, "err", err)
			return fmt.Errorf("delete rock %s: %w: %w", id, ErrRemoteDeleteFailed, err)
		}
	}

	if s.snapshot != nil && s.snapshot.Writable() {
		err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) error {
			return s.snapshot.Remove(ctx, id)
		})
		if err != nil {
			s.logger.Warn("snapshot purge failed, rock may reappear", "rock_id", id, "err", err)
		}
	}

	s.logger.Info("rock deleted", "rock_id", id)
	return nil
}

// DeleteOwnRock deletes id when the current user posted it.
func (s *SyncService) DeleteOwnRock(ctx context.Context, id string) error {
	actor, err := s.actor()
	if err != nil {
		return err
	}
	if actor == nil {
		return ErrNotSignedIn
	}
	rock, ok := s.book.Get(id)
	if !ok {
		return ErrRockNotFound
	}
	if !models.CanDelete(rock, actor) {
		return ErrNotRockOwner
	}
	return s.DeleteRock(ctx, id)
}

// SyncSnapshot runs one poll pass: fetch the shared snapshot and fold it
// into the list.
func (s *SyncService) SyncSnapshot(ctx context.Context) (reconcile.Result, error) {
	if s.snapshot == nil {
		return reconcile.Result{}, nil
	}
	incoming, err := s.snapshot.Fetch(ctx)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	return s.apply(incoming, "snapshot"), nil
}

// apply merges incoming and, when anything changed, persists and redraws.
func (s *SyncService) apply(incoming []models.Rock, source string) reconcile.Result {
	res := s.book.Merge(incoming)
	if !res.Changed() {
		return res
	}
	for _, c := range res.Changes {
		s.logger.Debug("merged rock", "rock_id", c.ID, "reason", c.Reason.String(), "source", source)
	}
	s.persistBestEffort()
	s.Redraw()
	s.logger.Info("reconciled rocks", "source", source, "added", res.Added, "updated", res.Updated)
	return res
}

// replaceAll swaps the whole list for rocks from an authoritative feed.
func (s *SyncService) replaceAll(rocks []models.Rock, source string) {
	s.book.ReplaceAll(rocks)
	s.persistBestEffort()
	s.Redraw()
	s.logger.Info("loaded rocks", "source", source, "count", len(rocks))
}

// ClearLocalRocks empties the list and the local store. Shared stores are
// not touched.
func (s *SyncService) ClearLocalRocks() error {
	s.persistMu.Lock()
	err := s.local.Clear()
	if err == nil {
		s.book.ReplaceAll(nil)
	}
	s.persistMu.Unlock()
	if err != nil {
		return fmt.Errorf("clear local rocks: %w", err)
	}
	s.Redraw()
	s.logger.Warn("local rocks cleared")
	return nil
}

func (s *SyncService) persist() (store.SaveReport, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	report, err := s.local.Save(s.book.List())
	if err != nil {
		return report, err
	}
	if report.PhotosStripped {
		s.logger.Warn("local store full, photos saved without images", "bytes", report.Bytes)
	}
	return report, nil
}

// persistBestEffort is for changes that came from elsewhere; those are
// already stored remotely, so a local failure is only logged.
func (s *SyncService) persistBestEffort() {
	if _, err := s.persist(); err != nil {
		s.logger.Error("failed to persist merged rocks", "err", err)
	}
}

// Redraw draws the current list on the map surface.
func (s *SyncService) Redraw() {
	if s.surface == nil {
		return
	}
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	mapview.Redraw(s.surface, s.book.List())
}

func (s *SyncService) actor() (*models.User, error) {
	if s.identity == nil {
		return nil, nil
	}
	return s.identity.CurrentUser()
}
