package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
)

type orderRepository struct {
	storage *Storage
}

const orderColumns = `id, order_number, user_id, COALESCE(customer_name, ''), COALESCE(customer_email, ''),
       COALESCE(customer_phone, ''), total_amount, status, payment_status, payment_method,
       COALESCE(checkout_request_id, ''), COALESCE(receipt_number, ''), created_at, updated_at`

const (
	selectOrderByNumber         = `SELECT ` + orderColumns + ` FROM orders WHERE order_number=$1`
	selectOrderByCheckoutLocked = `SELECT ` + orderColumns + ` FROM orders WHERE checkout_request_id=$1 FOR UPDATE`
	selectOrdersByBuyer         = `SELECT ` + orderColumns + ` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id DESC`
	selectOrdersBySeller        = `SELECT ` + orderColumns + ` FROM orders
                   WHERE id IN (SELECT oi.order_id FROM order_items oi JOIN products p ON p.id = oi.product_id WHERE p.seller_id=$1)
                   ORDER BY created_at DESC, id DESC`
	selectAllOrders = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC`

	itemColumns = `oi.id, oi.order_id, oi.product_id, COALESCE(p.name, ''), COALESCE(p.image_url, ''),
       oi.quantity, oi.unit_price, oi.total_price, oi.created_at`
	selectItems = `SELECT ` + itemColumns + ` FROM order_items oi LEFT JOIN products p ON p.id = oi.product_id
                   WHERE oi.order_id = ANY($1) ORDER BY oi.id`
	selectSellerItems = `SELECT ` + itemColumns + ` FROM order_items oi JOIN products p ON p.id = oi.product_id
                   WHERE oi.order_id = ANY($1) AND p.seller_id=$2 ORDER BY oi.id`
)

func scanOrder(row pgx.Row, o *model.Order) error {
	return row.Scan(&o.ID, &o.Number, &o.UserID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.TotalAmount, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.CheckoutRequestID, &o.ReceiptNumber,
		&o.CreatedAt, &o.UpdatedAt)
}

func scanItem(row pgx.Row, it *model.OrderItem) error {
	return row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ImageURL,
		&it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.CreatedAt)
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	const insertOrder = `INSERT INTO orders (order_number, user_id, customer_name, customer_email, customer_phone,
                             total_amount, status, payment_status, payment_method, checkout_request_id, receipt_number)
                         VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''))
                         RETURNING id, created_at, updated_at`
	const insertItem = `INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
                        VALUES ($1, $2, $3, $4, $5)
                        RETURNING id, created_at`

	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertOrder,
			order.Number, order.UserID, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
			order.TotalAmount, order.Status, order.PaymentStatus, order.PaymentMethod,
			order.CheckoutRequestID, order.ReceiptNumber,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return mapUniqueViolation(err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			err := tx.QueryRow(ctx, insertItem, order.ID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice).
				Scan(&item.ID, &item.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		order.ID = 0
		return err
	}
	return nil
}

func (r *orderRepository) GetByNumber(ctx context.Context, number string) (*model.Order, error) {
	var order model.Order
	if err := scanOrder(r.storage.pool.QueryRow(ctx, selectOrderByNumber, number), &order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	orders := []model.Order{order}
	if err := r.attachItems(ctx, orders, nil); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *orderRepository) ApplyPayment(ctx context.Context, checkoutID string, status model.PaymentStatus, receipt string) (*model.Order, error) {
	const updateQuery = `UPDATE orders SET payment_status=$1, status=$2, receipt_number=NULLIF($3, ''), updated_at=NOW()
                         WHERE id=$4 RETURNING updated_at`

	var order model.Order
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		if err := scanOrder(tx.QueryRow(ctx, selectOrderByCheckoutLocked, checkoutID), &order); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return err
		}

		changed, err := order.ApplyPayment(status, receipt)
		if err != nil || !changed {
			return err
		}

		return tx.QueryRow(ctx, updateQuery, order.PaymentStatus, order.Status, order.ReceiptNumber, order.ID).
			Scan(&order.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) AttachCheckout(ctx context.Context, number, checkoutID string) error {
	const updateQuery = `UPDATE orders SET checkout_request_id=$1, updated_at=NOW()
                         WHERE order_number=$2 AND payment_status='pending'`

	tag, err := r.storage.pool.Exec(ctx, updateQuery, checkoutID, number)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByNumber(ctx, number); err != nil {
		return err
	}
	return domainErrors.ErrPaymentSettled
}

func (r *orderRepository) ListByBuyer(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.list(ctx, nil, selectOrdersByBuyer, userID)
}

func (r *orderRepository) ListBySeller(ctx context.Context, sellerID int64) ([]model.Order, error) {
	return r.list(ctx, &sellerID, selectOrdersBySeller, sellerID)
}

func (r *orderRepository) ListAll(ctx context.Context) ([]model.Order, error) {
	return r.list(ctx, nil, selectAllOrders)
}

func (r *orderRepository) list(ctx context.Context, sellerID *int64, query string, args ...any) ([]model.Order, error) {
	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.attachItems(ctx, result, sellerID); err != nil {
		return nil, err
	}
	return result, nil
}

// attachItems loads the items of orders in one query, restricted to sellerID's products when set.
func (r *orderRepository) attachItems(ctx context.Context, orders []model.Order, sellerID *int64) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		index[o.ID] = i
	}

	var (
		rows pgx.Rows
		err  error
	)
	if sellerID != nil {
		rows, err = r.storage.pool.Query(ctx, selectSellerItems, ids, *sellerID)
	} else {
		rows, err = r.storage.pool.Query(ctx, selectItems, ids)
	}
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it model.OrderItem
		if err := scanItem(rows, &it); err != nil {
			return err
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}

func (r *orderRepository) UpdateStatus(ctx context.Context, number string, status model.OrderStatus) error {
	const updateQuery = `UPDATE orders SET status=$1, updated_at=NOW() WHERE order_number=$2`
	tag, err := r.storage.pool.Exec(ctx, updateQuery, status, number)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *orderRepository) HasSellerItems(ctx context.Context, number string, sellerID int64) (bool, error) {
	const query = `SELECT EXISTS (
                       SELECT 1 FROM order_items oi
                       JOIN orders o ON o.id = oi.order_id
                       JOIN products p ON p.id = oi.product_id
                       WHERE o.order_number=$1 AND p.seller_id=$2)`
	var exists bool
	if err := r.storage.pool.QueryRow(ctx, query, number, sellerID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
