package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// PaymentFacade exposes the subset of application functionality required by the reconciler.
type PaymentFacade interface {
	TransactionsForReconciliation(ctx context.Context, limit int) ([]model.Transaction, error)
	ReconcileTransaction(ctx context.Context, tx model.Transaction) error
}

// PaymentReconciler periodically applies settled transactions to their orders
// and queries the gateway for pushes that never got a callback.
type PaymentReconciler struct {
	facade       PaymentFacade
	pollInterval time.Duration
	batchSize    int
	workers      int
	logger       *slog.Logger

	jobs     chan model.Transaction
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	mu       sync.Mutex
	inFlight sync.Map
}

// NewPaymentReconciler constructs the reconciler worker pool.
func NewPaymentReconciler(facade PaymentFacade, pollInterval time.Duration, batchSize, workers int, logger *slog.Logger) *PaymentReconciler {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &PaymentReconciler{
		facade:       facade,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
	}
}

// Start launches background processing.
func (r *PaymentReconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	// The hook context ends once startup completes, so the run context is detached from it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.jobs = make(chan model.Transaction, r.batchSize*r.workers)

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(runCtx, r.jobs)
	}

	r.wg.Add(1)
	go r.dispatch(runCtx, r.jobs)
}

// Stop cancels processing and waits for all workers to finish.
func (r *PaymentReconciler) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *PaymentReconciler) dispatch(ctx context.Context, jobs chan<- model.Transaction) {
	defer r.wg.Done()
	defer close(jobs)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fetchAndDispatch(ctx, jobs)
		}
	}
}

func (r *PaymentReconciler) fetchAndDispatch(ctx context.Context, jobs chan<- model.Transaction) {
	txs, err := r.facade.TransactionsForReconciliation(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("fetch transactions for reconciliation failed", slog.String("error", err.Error()))
		return
	}
	for _, tx := range txs {
		// a transaction still being handled from the previous pass is skipped
		if _, busy := r.inFlight.LoadOrStore(tx.CheckoutRequestID, struct{}{}); busy {
			continue
		}
		select {
		case <-ctx.Done():
			r.inFlight.Delete(tx.CheckoutRequestID)
			return
		case jobs <- tx:
		}
	}
}

func (r *PaymentReconciler) worker(ctx context.Context, jobs <-chan model.Transaction) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case tx, ok := <-jobs:
			if !ok {
				return
			}
			r.handle(ctx, tx)
		}
	}
}

func (r *PaymentReconciler) handle(ctx context.Context, tx model.Transaction) {
	defer r.inFlight.Delete(tx.CheckoutRequestID)

	if err := r.facade.ReconcileTransaction(ctx, tx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("reconcile transaction failed",
			slog.String("checkout_request_id", tx.CheckoutRequestID),
			slog.String("status", string(tx.Status)),
			slog.String("error", err.Error()),
		)
	}
}
