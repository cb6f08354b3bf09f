package store

import (
	"context"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is one document-level event from the remote feed. Rock is nil for removals.
type Change struct {
	Kind ChangeKind
	ID   string
	Rock *models.Rock
}

// Batch is one notification from the remote feed. Rocks holds the full
// collection on the first notification only.
type Batch struct {
	Rocks   []models.Rock
	Changes []Change
}

// RemoteStore is the shared document collection, one document per rock.
type RemoteStore interface {
	Set(ctx context.Context, id string, rock models.Rock) error
	Delete(ctx context.Context, id string) error
	GetAll(ctx context.Context) ([]models.Rock, error)
	// Subscribe delivers batches until ctx is done or the returned func is called.
	Subscribe(ctx context.Context, onBatch func(Batch), onError func(error)) (func(), error)
}
