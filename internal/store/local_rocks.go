package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

// ErrLocalStoreFull means the rock list did not fit even without photos.
var ErrLocalStoreFull = errors.New("local store is full")

// SaveReport describes a successful local save.
type SaveReport struct {
	// PhotosStripped is set when photos had to be dropped to fit the quota.
	PhotosStripped bool
	Bytes          int
}

// LocalRocks persists the whole rock list under RocksKey.
type LocalRocks struct {
	kv KV
}

func NewLocalRocks(kv KV) *LocalRocks {
	return &LocalRocks{kv: kv}
}

// Load returns the stored list, or an empty list when nothing is stored.
func (l *LocalRocks) Load() ([]models.Rock, error) {
	raw, ok, err := l.kv.Get(RocksKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []models.Rock{}, nil
	}

	var rocks []models.Rock
	if err := json.Unmarshal([]byte(raw), &rocks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", RocksKey, err)
	}
	if rocks == nil {
		rocks = []models.Rock{}
	}
	return rocks, nil
}

// Save writes rocks. When the store reports a quota error the list is
// retried with every photo payload removed; the in-memory list keeps them.
func (l *LocalRocks) Save(rocks []models.Rock) (SaveReport, error) {
	if rocks == nil {
		rocks = []models.Rock{}
	}
	data, err := json.Marshal(rocks)
	if err != nil {
		return SaveReport{}, fmt.Errorf("encode rocks: %w", err)
	}

	err = l.kv.Set(RocksKey, string(data))
	if err == nil {
		return SaveReport{Bytes: len(data)}, nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return SaveReport{}, err
	}

	stripped := make([]models.Rock, len(rocks))
	for i, r := range rocks {
		stripped[i] = r.WithoutPhotos()
	}
	data, err = json.Marshal(stripped)
	if err != nil {
		return SaveReport{}, fmt.Errorf("encode rocks: %w", err)
	}
	if err := l.kv.Set(RocksKey, string(data)); err != nil {
		return SaveReport{}, fmt.Errorf("%w: %v", ErrLocalStoreFull, err)
	}
	return SaveReport{PhotosStripped: true, Bytes: len(data)}, nil
}

// Clear removes the stored list.
func (l *LocalRocks) Clear() error {
	return l.kv.Remove(RocksKey)
}
