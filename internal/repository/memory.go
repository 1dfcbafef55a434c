package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/vanshika/paybridge/internal/domain"
)

// MemoryStore keeps transactions in process memory. Each record carries its
// own mutex; the map lock is held only to look records up or insert them.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
}

type memoryRecord struct {
	mu sync.Mutex
	tx domain.Transaction
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

func (s *MemoryStore) Create(_ context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[tx.ID]; ok {
		return fmt.Errorf("create transaction %s: %w", tx.ID, domain.ErrTransactionExists)
	}
	s.records[tx.ID] = &memoryRecord{tx: tx.Clone()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.Transaction, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return domain.Transaction{}, domain.ErrUnknownTransaction
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.tx.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn UpdateFunc) (domain.Transaction, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return domain.Transaction{}, domain.ErrUnknownTransaction
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	next := rec.tx.Clone()
	if err := fn(&next); err != nil {
		return domain.Transaction{}, err
	}
	preserveImmutable(&next, rec.tx)
	rec.tx = next
	return next.Clone(), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Len reports how many transactions are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) lookup(id string) (*memoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}
