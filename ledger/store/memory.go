// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/patrimonio/bucket-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	buckets map[ledger.BucketID]ledger.Bucket
	order   []ledger.BucketID
	entries []ledger.Entry
}

func NewMemory() *Memory {
	return &Memory{
		buckets: make(map[ledger.BucketID]ledger.Bucket),
	}
}

// InsertEntries appends all rows or none. Order within the batch is
// preserved so a dependent row written last stays last.
func (m *Memory) InsertEntries(_ context.Context, entries []ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

// SelectEntries returns matching rows ordered by (date, created_at).
func (m *Memory) SelectEntries(_ context.Context, f ledger.EntryFilter) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Entry
	for _, entry := range m.entries {
		if !f.Matches(entry) {
			continue
		}
		result = append(result, entry)
		if f.Limit > 0 && len(result) >= f.Limit {
			break
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) UpdateEntries(_ context.Context, f ledger.EntryFilter, p ledger.EntryPatch) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for i := range m.entries {
		if !f.Matches(m.entries[i]) {
			continue
		}
		p.Apply(&m.entries[i])
		n++
		if f.Limit > 0 && n >= f.Limit {
			break
		}
	}
	return n, nil
}

func (m *Memory) DeleteEntries(_ context.Context, f ledger.EntryFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	var n int
	for _, entry := range m.entries {
		if f.Matches(entry) && (f.Limit == 0 || n < f.Limit) {
			n++
			continue
		}
		kept = append(kept, entry)
	}
	m.entries = kept
	return n, nil
}

func (m *Memory) SaveBucket(_ context.Context, b ledger.Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.buckets[b.ID]; !exists {
		m.order = append(m.order, b.ID)
	}
	m.buckets[b.ID] = b
	return nil
}

func (m *Memory) GetBucket(_ context.Context, id ledger.BucketID) (*ledger.Bucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buckets[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) ListBuckets(_ context.Context) ([]ledger.Bucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ledger.Bucket, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.buckets[id])
	}
	return result, nil
}

func (m *Memory) UpdateBucketBalance(_ context.Context, id ledger.BucketID, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[id]
	if !ok {
		return &ledger.NotFoundError{Resource: "bucket", ID: string(id)}
	}
	b.CurrentBalance = balance
	m.buckets[id] = b
	return nil
}

func (m *Memory) DeleteBucket(_ context.Context, id ledger.BucketID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[id]; !ok {
		return &ledger.NotFoundError{Resource: "bucket", ID: string(id)}
	}
	delete(m.buckets, id)
	for i, bid := range m.order {
		if bid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
