package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
)

// transactionStore persists checkout transactions so callbacks survive restarts.
type transactionStore struct {
	storage *Storage
}

const transactionColumns = `checkout_request_id, merchant_request_id, COALESCE(order_number, ''), amount, phone_number,
       status, result_code, COALESCE(result_desc, ''), COALESCE(receipt_number, ''), reconciled, created_at, updated_at`

func scanTransaction(row pgx.Row, t *model.Transaction) error {
	return row.Scan(&t.CheckoutRequestID, &t.MerchantRequestID, &t.OrderNumber, &t.Amount, &t.PhoneNumber,
		&t.Status, &t.ResultCode, &t.ResultDesc, &t.ReceiptNumber, &t.Reconciled, &t.CreatedAt, &t.UpdatedAt)
}

func (s *transactionStore) Get(ctx context.Context, checkoutID string) (*model.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE checkout_request_id=$1`
	var t model.Transaction
	if err := scanTransaction(s.storage.pool.QueryRow(ctx, query, checkoutID), &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *transactionStore) Put(ctx context.Context, t *model.Transaction) error {
	const query = `INSERT INTO payment_transactions (checkout_request_id, merchant_request_id, order_number, amount,
                       phone_number, status, result_code, result_desc, receipt_number, reconciled)
                   VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
                   ON CONFLICT (checkout_request_id) DO UPDATE SET
                       merchant_request_id = EXCLUDED.merchant_request_id,
                       order_number = EXCLUDED.order_number,
                       amount = EXCLUDED.amount,
                       phone_number = EXCLUDED.phone_number,
                       status = EXCLUDED.status,
                       result_code = EXCLUDED.result_code,
                       result_desc = EXCLUDED.result_desc,
                       receipt_number = EXCLUDED.receipt_number,
                       reconciled = EXCLUDED.reconciled,
                       updated_at = NOW()
                   RETURNING created_at, updated_at`
	return s.storage.pool.QueryRow(ctx, query,
		t.CheckoutRequestID, t.MerchantRequestID, t.OrderNumber, t.Amount, t.PhoneNumber,
		t.Status, t.ResultCode, t.ResultDesc, t.ReceiptNumber, t.Reconciled,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (s *transactionStore) CompareAndSet(ctx context.Context, checkoutID string, expected model.PaymentStatus, st model.Settlement) (bool, error) {
	const updateQuery = `UPDATE payment_transactions
                         SET status=$1, result_code=$2, result_desc=NULLIF($3, ''),
                             receipt_number=COALESCE(NULLIF($4, ''), receipt_number), reconciled=FALSE, updated_at=NOW()
                         WHERE checkout_request_id=$5 AND status=$6`
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM payment_transactions WHERE checkout_request_id=$1)`

	tag, err := s.storage.pool.Exec(ctx, updateQuery, st.Status, st.ResultCode, st.ResultDesc, st.ReceiptNumber, checkoutID, expected)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := s.storage.pool.QueryRow(ctx, existsQuery, checkoutID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domainErrors.ErrNotFound
	}
	return false, nil
}

func (s *transactionStore) ListUnreconciled(ctx context.Context, limit int) ([]model.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM payment_transactions
                   WHERE status IN ('completed', 'failed') AND NOT reconciled
                   ORDER BY updated_at LIMIT $1`
	return s.list(ctx, query, limit)
}

func (s *transactionStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM payment_transactions
                   WHERE status='pending' AND updated_at < $1
                   ORDER BY updated_at LIMIT $2`
	return s.list(ctx, query, olderThan, limit)
}

func (s *transactionStore) list(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *transactionStore) MarkReconciled(ctx context.Context, checkoutID string) error {
	const query = `UPDATE payment_transactions SET reconciled=TRUE WHERE checkout_request_id=$1`
	tag, err := s.storage.pool.Exec(ctx, query, checkoutID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}
