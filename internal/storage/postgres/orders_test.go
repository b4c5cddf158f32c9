package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
)

var (
	orderCols = []string{"id", "order_number", "user_id", "customer_name", "customer_email", "customer_phone",
		"total_amount", "status", "payment_status", "payment_method", "checkout_request_id", "receipt_number",
		"created_at", "updated_at"}
	itemCols = []string{"id", "order_id", "product_id", "name", "image_url", "quantity", "unit_price", "total_price", "created_at"}
)

func guestOrderRow(rows *pgxmockv3.Rows, id int64, number string, payment model.PaymentStatus, now time.Time) *pgxmockv3.Rows {
	return rows.AddRow(id, number, nil, "Jane", "", "254712345678", decimal.RequireFromString("250"),
		model.OrderStatusPending, payment, model.PaymentMethodMpesa, "ws_CO_1", "", now, now)
}

func TestOrderRepositoryCreate(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	now := time.Now()
	newOrder := func() *model.Order {
		return &model.Order{
			Number:        "ORD20250101120000ABCD",
			CustomerName:  "Jane",
			CustomerPhone: "254712345678",
			TotalAmount:   decimal.RequireFromString("250"),
			Status:        model.OrderStatusPending,
			PaymentStatus: model.PaymentStatusPending,
			PaymentMethod: model.PaymentMethodMpesa,
			Items: []model.OrderItem{
				{ProductID: 7, Quantity: 2, UnitPrice: decimal.RequireFromString("100"), TotalPrice: decimal.RequireFromString("200")},
				{ProductID: 8, Quantity: 1, UnitPrice: decimal.RequireFromString("50"), TotalPrice: decimal.RequireFromString("50")},
			},
		}
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO orders").WillReturnRows(
			pgxmockv3.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(10), now, now))
		mock.ExpectQuery("INSERT INTO order_items").WillReturnRows(
			pgxmockv3.NewRows([]string{"id", "created_at"}).AddRow(int64(100), now))
		mock.ExpectQuery("INSERT INTO order_items").WillReturnRows(
			pgxmockv3.NewRows([]string{"id", "created_at"}).AddRow(int64(101), now))
		mock.ExpectCommit()

		order := newOrder()
		if err := repo.Create(context.Background(), order); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.ID != 10 || order.Items[0].ID != 100 || order.Items[1].OrderID != 10 {
			t.Fatalf("unexpected order: %+v", order)
		}
	})

	t.Run("duplicate number", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO orders").WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: orderNumberConstraint})
		mock.ExpectRollback()

		order := newOrder()
		if err := repo.Create(context.Background(), order); !errors.Is(err, domainErrors.ErrOrderNumberTaken) {
			t.Fatalf("expected number taken, got %v", err)
		}
		if order.ID != 0 {
			t.Fatalf("expected id reset, got %d", order.ID)
		}
	})

	t.Run("item failure rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO orders").WillReturnRows(
			pgxmockv3.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))
		mock.ExpectQuery("INSERT INTO order_items").WillReturnError(errors.New("fk"))
		mock.ExpectRollback()

		order := newOrder()
		if err := repo.Create(context.Background(), order); err == nil {
			t.Fatal("expected error")
		}
		if order.ID != 0 {
			t.Fatalf("expected id reset, got %d", order.ID)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestOrderRepositoryGet(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	now := time.Now()
	mock.ExpectQuery("FROM orders WHERE order_number=").WithArgs("ORD1").WillReturnRows(
		guestOrderRow(pgxmockv3.NewRows(orderCols), 1, "ORD1", model.PaymentStatusPending, now))
	mock.ExpectQuery("FROM order_items oi LEFT JOIN products").WillReturnRows(
		pgxmockv3.NewRows(itemCols).AddRow(int64(5), int64(1), int64(7), "Layer feed", "", 2,
			decimal.RequireFromString("125"), decimal.RequireFromString("250"), now))

	order, err := repo.GetByNumber(context.Background(), "ORD1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Number != "ORD1" || !order.IsGuest() || len(order.Items) != 1 || order.Items[0].ProductName != "Layer feed" {
		t.Fatalf("unexpected order: %+v", order)
	}

	mock.ExpectQuery("FROM orders WHERE order_number=").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetByNumber(context.Background(), "missing"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery("FROM orders WHERE order_number=").WithArgs("err").WillReturnError(errors.New("fail"))
	if _, err := repo.GetByNumber(context.Background(), "err"); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("FROM orders WHERE order_number=").WithArgs("ORD2").WillReturnRows(
		guestOrderRow(pgxmockv3.NewRows(orderCols), 2, "ORD2", model.PaymentStatusPending, now))
	mock.ExpectQuery("FROM order_items oi LEFT JOIN products").WillReturnError(errors.New("items"))
	if _, err := repo.GetByNumber(context.Background(), "ORD2"); err == nil {
		t.Fatal("expected items error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestOrderRepositoryApplyPayment(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	now := time.Now()

	t.Run("completes pending order", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("ws_CO_1").WillReturnRows(
			guestOrderRow(pgxmockv3.NewRows(orderCols), 1, "ORD1", model.PaymentStatusPending, now))
		mock.ExpectQuery("UPDATE orders SET payment_status").
			WithArgs(model.PaymentStatusCompleted, model.OrderStatusConfirmed, "QKL1", int64(1)).
			WillReturnRows(pgxmockv3.NewRows([]string{"updated_at"}).AddRow(now))
		mock.ExpectCommit()

		order, err := repo.ApplyPayment(context.Background(), "ws_CO_1", model.PaymentStatusCompleted, "QKL1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != model.OrderStatusConfirmed || order.ReceiptNumber != "QKL1" {
			t.Fatalf("unexpected order: %+v", order)
		}
	})

	t.Run("same terminal status is a no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("ws_CO_1").WillReturnRows(
			guestOrderRow(pgxmockv3.NewRows(orderCols), 1, "ORD1", model.PaymentStatusCompleted, now))
		mock.ExpectCommit()

		if _, err := repo.ApplyPayment(context.Background(), "ws_CO_1", model.PaymentStatusCompleted, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("conflicting terminal status", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("ws_CO_1").WillReturnRows(
			guestOrderRow(pgxmockv3.NewRows(orderCols), 1, "ORD1", model.PaymentStatusCompleted, now))
		mock.ExpectRollback()

		if _, err := repo.ApplyPayment(context.Background(), "ws_CO_1", model.PaymentStatusFailed, ""); !errors.Is(err, domainErrors.ErrPaymentSettled) {
			t.Fatalf("expected settled, got %v", err)
		}
	})

	t.Run("unknown checkout", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("nope").WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		if _, err := repo.ApplyPayment(context.Background(), "nope", model.PaymentStatusCompleted, ""); !errors.Is(err, domainErrors.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestOrderRepositoryAttachCheckout(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	now := time.Now()

	mock.ExpectExec("UPDATE orders SET checkout_request_id").WithArgs("ws_CO_1", "ORD1").
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	if err := repo.AttachCheckout(context.Background(), "ORD1", "ws_CO_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("UPDATE orders SET checkout_request_id").WithArgs("ws_CO_2", "ORD1").
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM orders WHERE order_number=").WithArgs("ORD1").WillReturnRows(
		guestOrderRow(pgxmockv3.NewRows(orderCols), 1, "ORD1", model.PaymentStatusCompleted, now))
	mock.ExpectQuery("FROM order_items oi LEFT JOIN products").WillReturnRows(pgxmockv3.NewRows(itemCols))
	if err := repo.AttachCheckout(context.Background(), "ORD1", "ws_CO_2"); !errors.Is(err, domainErrors.ErrPaymentSettled) {
		t.Fatalf("expected settled, got %v", err)
	}

	mock.ExpectExec("UPDATE orders SET checkout_request_id").WithArgs("ws_CO_3", "ORD9").
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM orders WHERE order_number=").WithArgs("ORD9").WillReturnError(pgx.ErrNoRows)
	if err := repo.AttachCheckout(context.Background(), "ORD9", "ws_CO_3"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectExec("UPDATE orders SET checkout_request_id").WithArgs("ws_CO_1", "ORD2").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "orders_checkout_request_id_key"})
	if err := repo.AttachCheckout(context.Background(), "ORD2", "ws_CO_1"); !errors.Is(err, domainErrors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestOrderRepositoryLists(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	now := time.Now()
	buyer := int64(3)

	mock.ExpectQuery("FROM orders WHERE user_id=").WithArgs(buyer).WillReturnRows(
		pgxmockv3.NewRows(orderCols).
			AddRow(int64(2), "ORD2", &buyer, "", "", "", decimal.RequireFromString("90"), model.OrderStatusPending,
				model.PaymentStatusPending, model.PaymentMethodMpesa, "", "", now, now).
			AddRow(int64(1), "ORD1", &buyer, "", "", "", decimal.RequireFromString("40"), model.OrderStatusConfirmed,
				model.PaymentStatusCompleted, model.PaymentMethodMpesa, "ws_CO_1", "QKL1", now, now))
	mock.ExpectQuery("FROM order_items oi LEFT JOIN products").WillReturnRows(
		pgxmockv3.NewRows(itemCols).
			AddRow(int64(10), int64(1), int64(7), "Eggs", "", 1, decimal.RequireFromString("40"), decimal.RequireFromString("40"), now).
			AddRow(int64(11), int64(2), int64(8), "Feed", "", 3, decimal.RequireFromString("30"), decimal.RequireFromString("90"), now))

	orders, err := repo.ListByBuyer(context.Background(), buyer)
	if err != nil || len(orders) != 2 {
		t.Fatalf("unexpected result: %v err=%v", orders, err)
	}
	if orders[0].Items[0].ID != 11 || orders[1].Items[0].ID != 10 || *orders[0].UserID != buyer {
		t.Fatalf("items attached to wrong orders: %+v", orders)
	}

	mock.ExpectQuery("WHERE id IN").WithArgs(int64(5)).WillReturnRows(
		guestOrderRow(pgxmockv3.NewRows(orderCols), 1, "ORD1", model.PaymentStatusPending, now))
	mock.ExpectQuery("AND p.seller_id=").WillReturnRows(
		pgxmockv3.NewRows(itemCols).
			AddRow(int64(10), int64(1), int64(7), "Eggs", "", 1, decimal.RequireFromString("40"), decimal.RequireFromString("40"), now))
	orders, err = repo.ListBySeller(context.Background(), 5)
	if err != nil || len(orders) != 1 || len(orders[0].Items) != 1 {
		t.Fatalf("unexpected seller result: %v err=%v", orders, err)
	}

	mock.ExpectQuery("FROM orders ORDER BY").WillReturnRows(pgxmockv3.NewRows(orderCols))
	orders, err = repo.ListAll(context.Background())
	if err != nil || len(orders) != 0 {
		t.Fatalf("expected empty result, got %v err=%v", orders, err)
	}

	mock.ExpectQuery("FROM orders ORDER BY").WillReturnError(errors.New("query"))
	if _, err := repo.ListAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("FROM orders WHERE user_id=").WithArgs(int64(4)).WillReturnRows(
		pgxmockv3.NewRows(orderCols).AddRow("bad", "ORD1", nil, "", "", "", decimal.Zero, model.OrderStatusPending,
			model.PaymentStatusPending, model.PaymentMethodMpesa, "", "", now, now))
	if _, err := repo.ListByBuyer(context.Background(), 4); err == nil {
		t.Fatal("expected scan error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestOrderRepositoryListRowsError(t *testing.T) {
	storage := &Storage{pool: &rowsErrorPool{rows: &errorRows{err: errors.New("rows err")}}}
	repo := &orderRepository{storage: storage}

	if _, err := repo.ListAll(context.Background()); err == nil || err.Error() != "rows err" {
		t.Fatalf("expected rows err, got %v", err)
	}
}

func TestOrderRepositoryUpdateStatus(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	mock.ExpectExec("UPDATE orders SET status").WithArgs(model.OrderStatusDispatched, "ORD1").
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	if err := repo.UpdateStatus(context.Background(), "ORD1", model.OrderStatusDispatched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("UPDATE orders SET status").WithArgs(model.OrderStatusDispatched, "ORD9").
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	if err := repo.UpdateStatus(context.Background(), "ORD9", model.OrderStatusDispatched); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectExec("UPDATE orders SET status").WillReturnError(errors.New("exec"))
	if err := repo.UpdateStatus(context.Background(), "ORD1", model.OrderStatusDelivered); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestOrderRepositoryHasSellerItems(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	mock.ExpectQuery("SELECT EXISTS").WithArgs("ORD1", int64(5)).WillReturnRows(pgxmockv3.NewRows([]string{"exists"}).AddRow(true))
	ok, err := repo.HasSellerItems(context.Background(), "ORD1", 5)
	if err != nil || !ok {
		t.Fatalf("expected seller items, got %v err=%v", ok, err)
	}

	mock.ExpectQuery("SELECT EXISTS").WithArgs("ORD1", int64(6)).WillReturnError(errors.New("boom"))
	if _, err := repo.HasSellerItems(context.Background(), "ORD1", 6); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
