// Package catalogdb persists products in Postgres.
package catalogdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"storefront/internal/catalog"
)

// ProductStore reads products over database/sql.
type ProductStore struct {
	db *sql.DB
}

// NewProductStore constructs a ProductStore.
func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

// NewProductStoreWithSchema initializes the schema then returns the store.
func NewProductStoreWithSchema(ctx context.Context, db *sql.DB) (*ProductStore, error) {
	store := NewProductStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the products table if it does not exist.
func (s *ProductStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			description TEXT,
			price BIGINT NOT NULL,
			category TEXT,
			stock_quantity INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

const productColumns = "id, name, description, price, category, stock_quantity, is_active, created_at, updated_at"

// sortColumns whitelists ORDER BY targets; anything else falls back to
// created_at.
var sortColumns = map[catalog.SortField]string{
	catalog.SortCreatedAt: "created_at",
	catalog.SortPrice:     "price",
	catalog.SortName:      "name",
}

func buildFilter(opts catalog.ListOptions) (where string, args []any) {
	clauses := make([]string, 0, 2)
	if !opts.IncludeInactive {
		clauses = append(clauses, "is_active = TRUE")
	}
	if opts.Category != "" {
		args = append(args, opts.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildOrder(opts catalog.ListOptions) string {
	column, ok := sortColumns[opts.SortBy]
	if !ok {
		return " ORDER BY created_at DESC"
	}
	dir := "DESC"
	if opts.SortOrder == catalog.Asc {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, dir)
}

// List returns products matching the options, without pagination.
func (s *ProductStore) List(ctx context.Context, opts catalog.ListOptions) ([]catalog.Product, error) {
	where, args := buildFilter(opts)
	query := "SELECT " + productColumns + " FROM products" + where + buildOrder(opts)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

// ListPage returns one page of products plus the total count. The count and
// page queries run concurrently against the pool.
func (s *ProductStore) ListPage(ctx context.Context, opts catalog.ListOptions) (catalog.Page, error) {
	where, args := buildFilter(opts)

	var (
		total int
		items []catalog.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		query := "SELECT COUNT(*) FROM products" + where
		return s.db.QueryRowContext(gctx, query, args...).Scan(&total)
	})
	g.Go(func() error {
		pageArgs := append(append([]any{}, args...), opts.PageSize, (opts.Page-1)*opts.PageSize)
		query := fmt.Sprintf("SELECT %s FROM products%s%s LIMIT $%d OFFSET $%d",
			productColumns, where, buildOrder(opts), len(pageArgs)-1, len(pageArgs))
		rows, err := s.db.QueryContext(gctx, query, pageArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		items, err = scanProducts(rows)
		return err
	})
	if err := g.Wait(); err != nil {
		return catalog.Page{}, err
	}

	totalPages := (total + opts.PageSize - 1) / opts.PageSize
	return catalog.Page{
		Items:       items,
		TotalCount:  total,
		TotalPages:  totalPages,
		CurrentPage: opts.Page,
		PageSize:    opts.PageSize,
	}, nil
}

// GetActive returns an active product by id, or (nil, nil) when absent.
func (s *ProductStore) GetActive(ctx context.Context, id string) (*catalog.Product, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1 AND is_active = TRUE", id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Lookup returns a product by id regardless of its active flag, or (nil, nil)
// when absent. The cart service uses it to distinguish missing from inactive.
func (s *ProductStore) Lookup(ctx context.Context, id string) (*catalog.Product, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Categories returns distinct non-null categories among active products,
// sorted lexically.
func (s *ProductStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM products
		WHERE is_active = TRUE AND category IS NOT NULL
		ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*catalog.Product, error) {
	var (
		p           catalog.Product
		description sql.NullString
		category    sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &description, &p.Price, &category,
		&p.StockQuantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Category = category.String
	return &p, nil
}

func scanProducts(rows *sql.Rows) ([]catalog.Product, error) {
	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
