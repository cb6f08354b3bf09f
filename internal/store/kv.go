package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Local store keys.
const (
	RocksKey       = "auckland-rocks"
	UsersKey       = "auckland-rock-users"
	CurrentUserKey = "auckland-rock-current-user"
	SharedKey      = "auckland-rocks-shared"
)

// DefaultQuotaBytes matches the usual browser localStorage allowance.
const DefaultQuotaBytes = 5 * 1024 * 1024

var (
	ErrQuotaExceeded = errors.New("local store quota exceeded")
	ErrNotConfigured = errors.New("store not configured")
)

// KV is durable on-device key/value storage. Calls are synchronous.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryKV keeps values in a map. A positive quota caps the total stored bytes.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
	quota  int
}

func NewMemoryKV(quota int) *MemoryKV {
	return &MemoryKV{values: make(map[string]string), quota: quota}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		used := len(value)
		for k, v := range m.values {
			if k != key {
				used += len(v)
			}
		}
		if used > m.quota {
			return fmt.Errorf("set %s (%d bytes): %w", key, len(value), ErrQuotaExceeded)
		}
	}
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Dialect picks placeholder syntax for SQLKV.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

func (d Dialect) bind(n int) string {
	if d == DialectSQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// SQLKV stores values in the local_kv table. It works on Postgres (lib/pq)
// and SQLite (modernc.org/sqlite).
type SQLKV struct {
	db      *sql.DB
	dialect Dialect
	quota   int
}

func NewSQLKV(db *sql.DB, dialect Dialect, quota int) *SQLKV {
	return &SQLKV{db: db, dialect: dialect, quota: quota}
}

func (s *SQLKV) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT item_value FROM local_kv WHERE item_key = "+s.dialect.bind(1), key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLKV) Set(key, value string) error {
	if s.quota > 0 {
		var others int64
		err := s.db.QueryRow(
			"SELECT COALESCE(SUM(LENGTH(item_value)), 0) FROM local_kv WHERE item_key <> "+s.dialect.bind(1), key,
		).Scan(&others)
		if err != nil {
			return fmt.Errorf("measure %s: %w", key, err)
		}
		if others+int64(len(value)) > int64(s.quota) {
			return fmt.Errorf("set %s (%d bytes): %w", key, len(value), ErrQuotaExceeded)
		}
	}

	query := fmt.Sprintf(`INSERT INTO local_kv (item_key, item_value, updated_at) VALUES (%s, %s, %s)
		ON CONFLICT (item_key) DO UPDATE SET item_value = excluded.item_value, updated_at = excluded.updated_at`,
		s.dialect.bind(1), s.dialect.bind(2), s.dialect.bind(3))
	if _, err := s.db.Exec(query, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLKV) Remove(key string) error {
	if _, err := s.db.Exec("DELETE FROM local_kv WHERE item_key = "+s.dialect.bind(1), key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
