package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

const fileDebounce = 200 * time.Millisecond

// FileSnapshot keeps the shared snapshot in a JSON file. The node serves the
// same file so peers can poll it as their published snapshot.
type FileSnapshot struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

func NewFileSnapshot(path string, logger *slog.Logger) *FileSnapshot {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSnapshot{path: path, logger: logger, now: time.Now}
}

func (f *FileSnapshot) Path() string {
	return f.path
}

func (f *FileSnapshot) read() (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return decodeSnapshot(nil)
		}
		return Snapshot{}, fmt.Errorf("read snapshot file: %w", err)
	}
	return decodeSnapshot(data)
}

// write replaces the file atomically so readers never see a partial document.
func (f *FileSnapshot) write(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".shared-rocks-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// Bytes returns the raw document for serving over HTTP.
func (f *FileSnapshot) Bytes() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap, err := f.read()
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

func (f *FileSnapshot) Fetch(ctx context.Context) ([]models.Rock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap, err := f.read()
	if err != nil {
		return nil, err
	}
	return snap.Rocks, nil
}

func (f *FileSnapshot) Upsert(ctx context.Context, rock models.Rock) error {
	return f.update(func(snap *Snapshot, now time.Time) { snap.put(rock, now) })
}

func (f *FileSnapshot) Remove(ctx context.Context, id string) error {
	return f.update(func(snap *Snapshot, now time.Time) { snap.remove(id, now) })
}

func (f *FileSnapshot) update(fn func(*Snapshot, time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap, err := f.read()
	if err != nil {
		return err
	}
	fn(&snap, f.now())
	return f.write(snap)
}

// Watch reports changes to the snapshot file, including edits made by other
// processes sharing the directory. Bursts are collapsed into one call.
func (f *FileSnapshot) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	// Watch the directory: atomic renames replace the file's inode.
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	name := filepath.Base(f.path)

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(fileDebounce, onChange)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("snapshot file watcher error", "err", err)
			}
		}
	}()
	return nil
}
