// Package memory keeps checkout transactions in process memory.
// It is intended for development and tests; state is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
)

// TransactionStore is a map-backed transaction store safe for concurrent use.
type TransactionStore struct {
	mu    sync.RWMutex
	items map[string]model.Transaction
	now   func() time.Time
}

// NewTransactionStore creates an empty store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{items: make(map[string]model.Transaction), now: time.Now}
}

func (s *TransactionStore) Get(_ context.Context, checkoutID string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.items[checkoutID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &tx, nil
}

func (s *TransactionStore) Put(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.items[tx.CheckoutRequestID]; ok {
		tx.CreatedAt = existing.CreatedAt
	} else {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	s.items[tx.CheckoutRequestID] = *tx
	return nil
}

func (s *TransactionStore) CompareAndSet(_ context.Context, checkoutID string, expected model.PaymentStatus, st model.Settlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.items[checkoutID]
	if !ok {
		return false, domainErrors.ErrNotFound
	}
	if tx.Status != expected {
		return false, nil
	}

	tx.Apply(st)
	tx.UpdatedAt = s.now()
	s.items[checkoutID] = tx
	return true, nil
}

func (s *TransactionStore) ListUnreconciled(_ context.Context, limit int) ([]model.Transaction, error) {
	return s.filter(limit, func(tx model.Transaction) bool {
		return tx.Status.Terminal() && !tx.Reconciled
	}), nil
}

func (s *TransactionStore) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]model.Transaction, error) {
	return s.filter(limit, func(tx model.Transaction) bool {
		return tx.Status == model.PaymentStatusPending && tx.UpdatedAt.Before(olderThan)
	}), nil
}

// filter returns up to limit matching transactions, oldest update first.
func (s *TransactionStore) filter(limit int, match func(model.Transaction) bool) []model.Transaction {
	s.mu.RLock()
	result := make([]model.Transaction, 0)
	for _, tx := range s.items {
		if match(tx) {
			result = append(result, tx)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (s *TransactionStore) MarkReconciled(_ context.Context, checkoutID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.items[checkoutID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	tx.Reconciled = true
	s.items[checkoutID] = tx
	return nil
}
