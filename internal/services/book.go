package services

import (
	"sync"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
	"github.com/AnshRaj112/rockhunter-backend/internal/reconcile"
)

// RockBook is the node's in-memory rock list. Every read returns copies.
type RockBook struct {
	mu    sync.RWMutex
	rocks []models.Rock
}

func NewRockBook() *RockBook {
	return &RockBook{rocks: []models.Rock{}}
}

func (b *RockBook) List() []models.Rock {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Rock, len(b.rocks))
	for i, r := range b.rocks {
		out[i] = r.Clone()
	}
	return out
}

func (b *RockBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rocks)
}

func (b *RockBook) Get(id string) (models.Rock, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := b.indexOf(id); i >= 0 {
		return b.rocks[i].Clone(), true
	}
	return models.Rock{}, false
}

// Insert appends rock unless its id is already present.
func (b *RockBook) Insert(rock models.Rock) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexOf(rock.ID) >= 0 {
		return false
	}
	b.rocks = append(b.rocks, rock.Clone())
	return true
}

// Replace swaps the entry with rock's id. It does nothing when absent.
func (b *RockBook) Replace(rock models.Rock) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(rock.ID)
	if i < 0 {
		return false
	}
	b.rocks[i] = rock.Clone()
	return true
}

// Upsert replaces rock's entry or appends it.
func (b *RockBook) Upsert(rock models.Rock) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(rock.ID); i >= 0 {
		b.rocks[i] = rock.Clone()
		return
	}
	b.rocks = append(b.rocks, rock.Clone())
}

// Remove deletes id and reports where it was, for RestoreAt.
func (b *RockBook) Remove(id string) (models.Rock, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return models.Rock{}, -1, false
	}
	rock := b.rocks[i]
	b.rocks = append(b.rocks[:i:i], b.rocks[i+1:]...)
	return rock, i, true
}

// RestoreAt puts a removed rock back at index. If the id reappeared in the
// meantime the newer entry is kept.
func (b *RockBook) RestoreAt(rock models.Rock, index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexOf(rock.ID) >= 0 {
		return
	}
	if index < 0 || index > len(b.rocks) {
		index = len(b.rocks)
	}
	rocks := make([]models.Rock, 0, len(b.rocks)+1)
	rocks = append(rocks, b.rocks[:index]...)
	rocks = append(rocks, rock.Clone())
	rocks = append(rocks, b.rocks[index:]...)
	b.rocks = rocks
}

// ReplaceAll discards the list and loads rocks, keeping the last entry per id.
func (b *RockBook) ReplaceAll(rocks []models.Rock) {
	merged := reconcile.Merge(nil, rocks)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rocks = merged.Rocks
}

// Merge runs the reconciler against the current list.
func (b *RockBook) Merge(incoming []models.Rock) reconcile.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := reconcile.Merge(b.rocks, incoming)
	if res.Changed() {
		b.rocks = res.Rocks
	}
	return res
}

func (b *RockBook) indexOf(id string) int {
	for i := range b.rocks {
		if b.rocks[i].ID == id {
			return i
		}
	}
	return -1
}
