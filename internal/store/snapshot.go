package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

// Snapshot is the flat shared-rocks document.
type Snapshot struct {
	Rocks       []models.Rock `json:"rocks"`
	LastUpdated *time.Time    `json:"lastUpdated,omitempty"`
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	snap := Snapshot{Rocks: []models.Rock{}}
	if len(data) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Rocks == nil {
		snap.Rocks = []models.Rock{}
	}
	return snap, nil
}

// put replaces any entry with the same id and appends rock marked shared.
func (s *Snapshot) put(rock models.Rock, now time.Time) {
	s.remove(rock.ID, now)
	r := rock.Clone()
	r.CloudSyncStatus = models.SyncShared
	s.Rocks = append(s.Rocks, r)
}

func (s *Snapshot) remove(id string, now time.Time) {
	kept := s.Rocks[:0]
	for _, r := range s.Rocks {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.Rocks = kept
	t := now.UTC()
	s.LastUpdated = &t
}

// SnapshotReader fetches the current shared rocks.
type SnapshotReader interface {
	Fetch(ctx context.Context) ([]models.Rock, error)
}

// SnapshotStore is a writable snapshot that other nodes' polling picks up.
type SnapshotStore interface {
	SnapshotReader
	Upsert(ctx context.Context, rock models.Rock) error
	Remove(ctx context.Context, id string) error
}

// Notifier reports that a snapshot changed so pollers can run early.
// Watch returns once watching has started.
type Notifier interface {
	Watch(ctx context.Context, onChange func()) error
}

// HTTPSnapshot reads a published shared-rocks.json. It is read-only.
type HTTPSnapshot struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewHTTPSnapshot(rawURL string, client *http.Client) *HTTPSnapshot {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSnapshot{url: rawURL, client: client, now: time.Now}
}

// Fetch requests url?t=<unix ms> to bypass caches. A non-2xx reply reads as
// an empty snapshot; transport failures are errors.
func (h *HTTPSnapshot) Fetch(ctx context.Context) ([]models.Rock, error) {
	u, err := url.Parse(h.url)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot url: %w", err)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(h.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return []models.Rock{}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := decodeSnapshot(body)
	if err != nil {
		return nil, err
	}
	return snap.Rocks, nil
}

// SharedSnapshot combines a read-only published snapshot with the writable
// queue. Either side may be nil.
type SharedSnapshot struct {
	Source SnapshotReader
	Queue  SnapshotStore
}

// Fetch returns the published rocks followed by queued rocks the published
// list does not have yet.
func (s *SharedSnapshot) Fetch(ctx context.Context) ([]models.Rock, error) {
	rocks := []models.Rock{}
	if s.Source != nil {
		published, err := s.Source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		rocks = append(rocks, published...)
	}
	if s.Queue == nil {
		return rocks, nil
	}

	queued, err := s.Queue.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(rocks))
	for _, r := range rocks {
		seen[r.ID] = struct{}{}
	}
	for _, r := range queued {
		if _, ok := seen[r.ID]; !ok {
			rocks = append(rocks, r)
		}
	}
	return rocks, nil
}

func (s *SharedSnapshot) Upsert(ctx context.Context, rock models.Rock) error {
	if s.Queue == nil {
		return ErrNotConfigured
	}
	return s.Queue.Upsert(ctx, rock)
}

func (s *SharedSnapshot) Remove(ctx context.Context, id string) error {
	if s.Queue == nil {
		return ErrNotConfigured
	}
	return s.Queue.Remove(ctx, id)
}

// Writable reports whether rocks can be queued for other nodes.
func (s *SharedSnapshot) Writable() bool {
	return s.Queue != nil
}
