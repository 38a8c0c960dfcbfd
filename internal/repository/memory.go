package repository

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps scans in process memory. Used when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*ScanRecord
	max     int
}

// NewMemoryRepository keeps at most max records, evicting the oldest. max <= 0 means unbounded.
func NewMemoryRepository(max int) *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*ScanRecord), max: max}
}

func (m *MemoryRepository) Save(_ context.Context, record *ScanRecord) error {
	if record == nil || record.ID == "" {
		return ErrInvalidRecord
	}
	cp := *record
	cp.StageErrors = append([]string(nil), record.StageErrors...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[cp.ID] = &cp
	if m.max > 0 && len(m.records) > m.max {
		m.evictOldestLocked()
	}
	return nil
}

func (m *MemoryRepository) evictOldestLocked() {
	var oldest *ScanRecord
	for _, r := range m.records {
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}
	if oldest != nil {
		delete(m.records, oldest.ID)
	}
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryRepository) List(_ context.Context, limit int) ([]*ScanRecord, error) {
	m.mu.RLock()
	out := make([]*ScanRecord, 0, len(m.records))
	for _, r := range m.records {
		cp := *r
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) Close() error { return nil }
