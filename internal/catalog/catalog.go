// Package catalog reads products and categories for the storefront.
package catalog

import (
	"context"
	"fmt"
	"log"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/redisx"
)

// Product mirrors a row of the products table. Price is an integer amount in
// the shop currency's smallest unit.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         int64     `json:"price"`
	Category      string    `json:"category,omitempty"`
	StockQuantity int       `json:"stock_quantity"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SortField selects the product list sort column.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortPrice     SortField = "price"
	SortName      SortField = "name"
)

// SortOrder selects ascending or descending order.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ListOptions narrows and orders a product listing.
type ListOptions struct {
	// IncludeInactive lifts the default active-only filter.
	IncludeInactive bool
	Category        string
	SortBy          SortField
	SortOrder       SortOrder
	Limit           int
	// Page and PageSize switch the listing to paginated mode when both are
	// positive. Page is 1-based.
	Page     int
	PageSize int
}

// Paginated reports whether the options request a paginated listing.
func (o ListOptions) Paginated() bool {
	return o.Page > 0 && o.PageSize > 0
}

// Page is one page of products plus pagination bookkeeping.
type Page struct {
	Items       []Product `json:"items"`
	TotalCount  int       `json:"total_count"`
	TotalPages  int       `json:"total_pages"`
	CurrentPage int       `json:"current_page"`
	PageSize    int       `json:"page_size"`
}

// Store is the product persistence surface the service needs.
type Store interface {
	List(ctx context.Context, opts ListOptions) ([]Product, error)
	ListPage(ctx context.Context, opts ListOptions) (Page, error)
	GetActive(ctx context.Context, id string) (*Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// Cache is an optional read-through cache. Implementations must treat every
// failure as a miss; the service never fails a request on cache errors.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Service serves catalog reads, optionally through a cache.
type Service struct {
	store Store
	cache Cache
	logf  func(format string, args ...any)
}

// NewService constructs a catalog service. cache may be nil.
func NewService(store Store, cache Cache, logf func(format string, args ...any)) *Service {
	if logf == nil {
		logf = log.Printf
	}
	return &Service{store: store, cache: cache, logf: logf}
}

// Products returns a flat product listing. Use ProductsPage for pagination.
func (s *Service) Products(ctx context.Context, opts ListOptions) ([]Product, error) {
	items, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "failed to load products", err)
	}
	return items, nil
}

// ProductsPage returns one page of products with total counts. The count and
// page queries run concurrently in the store.
func (s *Service) ProductsPage(ctx context.Context, opts ListOptions) (Page, error) {
	if !opts.Paginated() {
		return Page{}, apperr.New(apperr.KindValidation, "page and page_size must be positive")
	}
	page, err := s.store.ListPage(ctx, opts)
	if err != nil {
		return Page{}, apperr.Wrap(apperr.KindUnexpected, "failed to load products", err)
	}
	return page, nil
}

// ProductByID returns an active product, or (nil, nil) when no such product
// exists.
func (s *Service) ProductByID(ctx context.Context, id string) (*Product, error) {
	key := fmt.Sprintf(redisx.KeyProduct, id)
	if s.cache != nil {
		var cached Product
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
			s.logf("product cache read: %v", err)
		} else if ok {
			return &cached, nil
		}
	}

	p, err := s.store.GetActive(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "failed to load product", err)
	}
	if p == nil {
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, p, redisx.TTLProduct); err != nil {
			s.logf("product cache write: %v", err)
		}
	}
	return p, nil
}

// Categories returns the distinct non-empty categories among active products,
// sorted lexically.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		var cached []string
		if ok, err := s.cache.GetJSON(ctx, redisx.KeyCategories, &cached); err != nil {
			s.logf("category cache read: %v", err)
		} else if ok {
			return cached, nil
		}
	}

	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "failed to load categories", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, redisx.KeyCategories, categories, redisx.TTLCategories); err != nil {
			s.logf("category cache write: %v", err)
		}
	}
	return categories, nil
}
