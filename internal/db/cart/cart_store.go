// Package cartdb persists cart items in Postgres. Every statement filters on
// the owner identity so ownership is enforced in the same operation as the
// mutation, never as a separate check.
package cartdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"storefront/internal/cart"
)

// CartStore reads and writes cart_items over database/sql.
type CartStore struct {
	db *sql.DB
}

// NewCartStore constructs a CartStore.
func NewCartStore(db *sql.DB) *CartStore {
	return &CartStore{db: db}
}

// NewCartStoreWithSchema initializes the schema then returns the store.
func NewCartStoreWithSchema(ctx context.Context, db *sql.DB) (*CartStore, error) {
	store := NewCartStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the cart_items table if it does not exist.
func (s *CartStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cart_items (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			product_id UUID NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, product_id)
		)`)
	return err
}

const itemWithProductQuery = `
	SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
	       p.id, p.name, p.description, p.price, p.category, p.stock_quantity, p.is_active,
	       p.created_at, p.updated_at
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id`

func scanItemWithProduct(row interface{ Scan(dest ...any) error }) (*cart.ItemWithProduct, error) {
	var (
		it          cart.ItemWithProduct
		description sql.NullString
		category    sql.NullString
	)
	err := row.Scan(
		&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt,
		&it.Product.ID, &it.Product.Name, &description, &it.Product.Price, &category,
		&it.Product.StockQuantity, &it.Product.IsActive, &it.Product.CreatedAt, &it.Product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.Product.Description = description.String
	it.Product.Category = category.String
	return &it, nil
}

// ItemsForOwner lists the owner's cart rows with product snapshots, newest
// first.
func (s *CartStore) ItemsForOwner(ctx context.Context, userID string) ([]cart.ItemWithProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		itemWithProductQuery+" WHERE ci.user_id = $1 ORDER BY ci.created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cart.ItemWithProduct
	for rows.Next() {
		it, err := scanItemWithProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// GetForOwner returns one cart row with its product, or (nil, nil) when the
// row does not exist or belongs to someone else.
func (s *CartStore) GetForOwner(ctx context.Context, userID, itemID string) (*cart.ItemWithProduct, error) {
	row := s.db.QueryRowContext(ctx,
		itemWithProductQuery+" WHERE ci.id = $1 AND ci.user_id = $2", itemID, userID)
	it, err := scanItemWithProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

// FindForProduct returns the owner's cart row for a product, or (nil, nil).
func (s *CartStore) FindForProduct(ctx context.Context, userID, productID string) (*cart.Item, error) {
	var it cart.Item
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, product_id, quantity, created_at, updated_at
		FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	).Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Insert creates a cart row for (owner, product).
func (s *CartStore) Insert(ctx context.Context, userID, productID string, quantity int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), userID, productID, quantity)
	return err
}

// UpdateQuantity sets the quantity of the owner's cart row. The bool reports
// whether a row was actually updated.
func (s *CartStore) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`,
		itemID, userID, quantity)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Delete removes the owner's cart row. Deleting an absent row is not an error.
func (s *CartStore) Delete(ctx context.Context, userID, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	return err
}

// DeleteAllForOwner clears the owner's cart.
func (s *CartStore) DeleteAllForOwner(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

// CountForOwner counts the owner's cart rows.
func (s *CartStore) CountForOwner(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cart_items WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

var _ cart.Store = (*CartStore)(nil)
