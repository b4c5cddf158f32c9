package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// PaymentFacadeStub simulates checkout endpoints.
type PaymentFacadeStub struct {
	CheckoutFn func(context.Context, model.CheckoutRequest) (*model.PushResponse, error)
	CallbackFn func(context.Context, model.CallbackResult) error
	StatusFn   func(context.Context, string) (*model.Transaction, error)
}

// InitiateCheckout delegates to provided function or accepts the push.
func (s PaymentFacadeStub) InitiateCheckout(ctx context.Context, req model.CheckoutRequest) (*model.PushResponse, error) {
	if s.CheckoutFn != nil {
		return s.CheckoutFn(ctx, req)
	}
	return &model.PushResponse{MerchantRequestID: "29115-34620561-1", CheckoutRequestID: "ws_CO_1", CustomerMessage: "Success. Request accepted for processing"}, nil
}

// HandleCallback delegates to provided function or acknowledges.
func (s PaymentFacadeStub) HandleCallback(ctx context.Context, cb model.CallbackResult) error {
	if s.CallbackFn != nil {
		return s.CallbackFn(ctx, cb)
	}
	return nil
}

// TransactionStatus delegates to provided function or reports a pending transaction.
func (s PaymentFacadeStub) TransactionStatus(ctx context.Context, checkoutID string) (*model.Transaction, error) {
	if s.StatusFn != nil {
		return s.StatusFn(ctx, checkoutID)
	}
	return &model.Transaction{CheckoutRequestID: checkoutID, Status: model.PaymentStatusPending, Amount: decimal.NewFromInt(1)}, nil
}

// HealthCheckerStub reports Err from every ping.
type HealthCheckerStub struct {
	Err error
}

// HealthCheck returns the configured error.
func (s HealthCheckerStub) HealthCheck(context.Context) error {
	return s.Err
}

// ReconcilerFacadeStub mimics the reconciler's view of the payment use case.
type ReconcilerFacadeStub struct {
	Batches     [][]model.Transaction
	ListFn      func(context.Context, int) ([]model.Transaction, error)
	ReconcileFn func(context.Context, model.Transaction) error
	Reconciled  []string
	mu          sync.Mutex
	listCalls   int32
}

// Lock exposes internal mutex for external synchronization.
func (s *ReconcilerFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *ReconcilerFacadeStub) Unlock() { s.mu.Unlock() }

// TransactionsForReconciliation returns batches from configured queue.
func (s *ReconcilerFacadeStub) TransactionsForReconciliation(ctx context.Context, limit int) ([]model.Transaction, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, limit)
	}
	call := atomic.AddInt32(&s.listCalls, 1)
	if int(call) <= len(s.Batches) {
		return s.Batches[call-1], nil
	}
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

// ReconcileTransaction records the transaction after the optional override.
func (s *ReconcilerFacadeStub) ReconcileTransaction(ctx context.Context, tx model.Transaction) error {
	if s.ReconcileFn != nil {
		if err := s.ReconcileFn(ctx, tx); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reconciled = append(s.Reconciled, tx.CheckoutRequestID)
	return nil
}

// Polls reports how many times the default batch source was queried.
func (s *ReconcilerFacadeStub) Polls() int {
	return int(atomic.LoadInt32(&s.listCalls))
}
