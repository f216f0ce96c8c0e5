// Package ordersdb persists orders and order items in Postgres.
package ordersdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"storefront/internal/apperr"
	"storefront/internal/orders"
)

// OrderStore reads and writes orders over database/sql.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore constructs an OrderStore.
func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// NewOrderStoreWithSchema initializes the schema then returns the store.
func NewOrderStoreWithSchema(ctx context.Context, db *sql.DB) (*OrderStore, error) {
	store := NewOrderStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the orders and order_items tables if they do not exist.
func (s *OrderStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			total_amount BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			shipping_address JSONB,
			order_note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id UUID NOT NULL,
			product_name TEXT NOT NULL,
			price BIGINT NOT NULL,
			quantity INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateOrder writes the order, its items and the stock decrements in one
// transaction. The decrement is conditional on remaining stock, so a
// concurrent checkout that drained a product aborts the whole order instead
// of oversubscribing it.
func (s *OrderStore) CreateOrder(ctx context.Context, order orders.NewOrder) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnexpected, "failed to start order transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnexpected, "failed to encode shipping address", err)
	}

	orderID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, status, shipping_address, order_note)
		VALUES ($1, $2, $3, 'pending', $4, $5)`,
		orderID, order.UserID, order.TotalAmount, address, nullable(order.OrderNote))
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnexpected, "failed to create order", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), orderID, item.ProductID, item.ProductName, item.Price, item.Quantity)
		if err != nil {
			return "", apperr.Wrap(apperr.KindUnexpected, "failed to create order items", err)
		}
	}

	for _, item := range order.Items {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $2, updated_at = NOW()
			WHERE id = $1 AND stock_quantity >= $2`,
			item.ProductID, item.Quantity)
		if err != nil {
			return "", apperr.Wrap(apperr.KindUnexpected, "failed to update stock", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return "", apperr.Wrap(apperr.KindUnexpected, "failed to update stock", err)
		}
		if affected == 0 {
			stock := s.currentStock(ctx, tx, item.ProductID)
			return "", apperr.InsufficientStock(item.ProductName, stock)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", apperr.Wrap(apperr.KindUnexpected, "failed to commit order", err)
	}
	return orderID, nil
}

// currentStock reads the remaining stock for the error message. A read
// failure here just reports zero; the order is rolling back either way.
func (s *OrderStore) currentStock(ctx context.Context, tx *sql.Tx, productID string) int {
	var stock int
	if err := tx.QueryRowContext(ctx,
		`SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		return 0
	}
	return stock
}

// GetForOwner loads an order with its items, or (nil, nil) when no such
// order exists for the owner.
func (s *OrderStore) GetForOwner(ctx context.Context, userID, orderID string) (*orders.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_amount, status, shipping_address, order_note, created_at, updated_at
		FROM orders WHERE id = $1 AND user_id = $2`,
		orderID, userID)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := s.itemsFor(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// ListForOwner returns the owner's orders, newest first, with items.
func (s *OrderStore) ListForOwner(ctx context.Context, userID string) ([]orders.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, total_amount, status, shipping_address, order_note, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := s.itemsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// ConfirmPending flips a pending order to confirmed, scoped by owner and
// current status in the same statement. The bool reports whether a row
// changed.
func (s *OrderStore) ConfirmPending(ctx context.Context, userID, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = 'confirmed', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'pending'`,
		orderID, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *OrderStore) itemsFor(ctx context.Context, orderID string) ([]orders.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, price, quantity, created_at
		FROM order_items WHERE order_id = $1 ORDER BY created_at ASC`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []orders.Item
	for rows.Next() {
		var it orders.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Price, &it.Quantity, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row interface{ Scan(dest ...any) error }) (*orders.Order, error) {
	var (
		order   orders.Order
		status  string
		address []byte
		note    sql.NullString
	)
	err := row.Scan(&order.ID, &order.UserID, &order.TotalAmount, &status,
		&address, &note, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	order.Status = orders.Status(status)
	order.OrderNote = note.String
	if len(address) > 0 {
		if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
			return nil, err
		}
	}
	return &order, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ orders.Store = (*OrderStore)(nil)
