package repository

import (
	"context"
	"time"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// TransactionStore keeps in-flight checkout transactions keyed by checkout request id.
type TransactionStore interface {
	Get(ctx context.Context, checkoutID string) (*model.Transaction, error)
	Put(ctx context.Context, tx *model.Transaction) error
	// CompareAndSet applies the settlement only while the stored status equals expected.
	// It returns false without error when the status differs and ErrNotFound for unknown ids.
	CompareAndSet(ctx context.Context, checkoutID string, expected model.PaymentStatus, s model.Settlement) (bool, error)
	ListUnreconciled(ctx context.Context, limit int) ([]model.Transaction, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Transaction, error)
	MarkReconciled(ctx context.Context, checkoutID string) error
}
