// Package results stores evaluation reports keyed by run fingerprint so that
// identical submissions are answered once.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fractal-lba/nbeval/internal/pipeline"
)

// DefaultTTL is how long a stored report answers repeat submissions.
const DefaultTTL = 24 * time.Hour

// Store provides idempotent report storage.
type Store interface {
	// Get retrieves a stored report by fingerprint. Returns nil if not found.
	Get(ctx context.Context, fingerprint string) (*pipeline.Report, error)

	// Put stores a report with TTL. First write wins: stored is false when a
	// live report already existed for the fingerprint.
	Put(ctx context.Context, fingerprint string, report *pipeline.Report, ttl time.Duration) (stored bool, err error)

	// Close releases resources
	Close() error
}

// Cleaner is implemented by stores that hold expired reports until swept.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// MemoryStore is an in-memory store with optional file snapshot
type MemoryStore struct {
	mu       sync.RWMutex
	store    map[string]*entry
	snapshot string // optional file path for persistence
	now      func() time.Time
}

type entry struct {
	Report    *pipeline.Report `json:"report"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// NewMemoryStore creates an in-memory store, loading snapshotPath if it
// exists.
func NewMemoryStore(snapshotPath string) (*MemoryStore, error) {
	ms := &MemoryStore{
		store:    make(map[string]*entry),
		snapshot: snapshotPath,
		now:      time.Now,
	}

	if snapshotPath != "" {
		if err := os.MkdirAll(filepath.Dir(snapshotPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		if err := ms.loadSnapshot(); err != nil {
			return nil, err
		}
	}

	return ms, nil
}

func (m *MemoryStore) Get(ctx context.Context, fingerprint string) (*pipeline.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.store[fingerprint]
	if !ok || m.now().After(e.ExpiresAt) {
		return nil, nil
	}

	return e.Report, nil
}

func (m *MemoryStore) Put(ctx context.Context, fingerprint string, report *pipeline.Report, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, exists := m.store[fingerprint]; exists && now.Before(e.ExpiresAt) {
		return false, nil
	}

	m.store[fingerprint] = &entry{
		Report:    report,
		ExpiresAt: now.Add(ttl),
	}

	if m.snapshot != "" {
		if err := m.saveSnapshotLocked(); err != nil {
			return true, fmt.Errorf("snapshot: %w", err)
		}
	}

	return true, nil
}

// Len returns the number of live reports.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	n := 0
	for _, e := range m.store {
		if now.Before(e.ExpiresAt) {
			n++
		}
	}
	return n
}

// CleanupExpired drops expired reports and returns the number removed.
func (m *MemoryStore) CleanupExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for fp, e := range m.store {
		if !now.Before(e.ExpiresAt) {
			delete(m.store, fp)
			n++
		}
	}

	if n > 0 && m.snapshot != "" {
		if err := m.saveSnapshotLocked(); err != nil {
			return n, fmt.Errorf("snapshot: %w", err)
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error {
	if m.snapshot == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSnapshotLocked()
}

func (m *MemoryStore) loadSnapshot() error {
	data, err := os.ReadFile(m.snapshot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var snapshot map[string]*entry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, v := range snapshot {
		if now.Before(v.ExpiresAt) {
			m.store[k] = v
		}
	}

	return nil
}

// saveSnapshotLocked writes live entries to a temp file and renames it over
// the snapshot. Callers hold m.mu.
func (m *MemoryStore) saveSnapshotLocked() error {
	now := m.now()
	toSave := make(map[string]*entry)
	for k, v := range m.store {
		if now.Before(v.ExpiresAt) {
			toSave[k] = v
		}
	}

	data, err := json.MarshalIndent(toSave, "", "  ")
	if err != nil {
		return err
	}

	tmp := m.snapshot + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, m.snapshot)
}
