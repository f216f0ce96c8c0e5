// Package cart manages per-user shopping carts. Every operation takes the
// owner identity explicitly; nothing here reads ambient auth state.
package cart

import (
	"context"
	"fmt"
	"log"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/catalog"
	"storefront/internal/redisx"
)

// Item mirrors a row of the cart_items table.
type Item struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemWithProduct joins a cart row with its product at read time.
type ItemWithProduct struct {
	Item
	Product catalog.Product `json:"product"`
}

// Store is the cart persistence surface.
type Store interface {
	ItemsForOwner(ctx context.Context, userID string) ([]ItemWithProduct, error)
	GetForOwner(ctx context.Context, userID, itemID string) (*ItemWithProduct, error)
	FindForProduct(ctx context.Context, userID, productID string) (*Item, error)
	Insert(ctx context.Context, userID, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (bool, error)
	Delete(ctx context.Context, userID, itemID string) error
	DeleteAllForOwner(ctx context.Context, userID string) error
	CountForOwner(ctx context.Context, userID string) (int, error)
}

// ProductLookup resolves a product regardless of its active flag, returning
// (nil, nil) when the product does not exist.
type ProductLookup interface {
	Lookup(ctx context.Context, productID string) (*catalog.Product, error)
}

// Service implements the cart operations.
type Service struct {
	store    Store
	products ProductLookup
	cache    catalog.Cache
	logf     func(format string, args ...any)
}

// NewService constructs a cart service. cache may be nil.
func NewService(store Store, products ProductLookup, cache catalog.Cache, logf func(format string, args ...any)) *Service {
	if logf == nil {
		logf = log.Printf
	}
	return &Service{store: store, products: products, cache: cache, logf: logf}
}

// Items lists the caller's cart, newest first, with product snapshots.
func (s *Service) Items(ctx context.Context, userID string) ([]ItemWithProduct, error) {
	if userID == "" {
		return nil, apperr.AuthRequired()
	}
	items, err := s.store.ItemsForOwner(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "failed to load cart", err)
	}
	return items, nil
}

// Add puts quantity units of a product into the caller's cart. If the product
// is already in the cart the quantities accumulate. Both paths are capped at
// the product's current stock.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) error {
	if userID == "" {
		return apperr.AuthRequired()
	}
	if quantity <= 0 {
		return apperr.New(apperr.KindValidation, "quantity must be at least 1")
	}

	product, err := s.products.Lookup(ctx, productID)
	if err != nil {
		return apperr.Wrap(apperr.KindUnexpected, "failed to load product", err)
	}
	if product == nil {
		return apperr.New(apperr.KindNotFound, "product not found")
	}
	if !product.IsActive {
		return apperr.Newf(apperr.KindInactiveProduct, "%s is no longer for sale", product.Name)
	}

	existing, err := s.store.FindForProduct(ctx, userID, productID)
	if err != nil {
		return apperr.Wrap(apperr.KindUnexpected, "failed to load cart item", err)
	}

	newQuantity := quantity
	if existing != nil {
		newQuantity = existing.Quantity + quantity
	}
	if newQuantity > product.StockQuantity {
		return apperr.InsufficientStock(product.Name, product.StockQuantity)
	}

	if existing != nil {
		if _, err := s.store.UpdateQuantity(ctx, userID, existing.ID, newQuantity); err != nil {
			return apperr.Wrap(apperr.KindUnexpected, "failed to update cart item", err)
		}
	} else {
		if err := s.store.Insert(ctx, userID, productID, quantity); err != nil {
			return apperr.Wrap(apperr.KindUnexpected, "failed to add to cart", err)
		}
	}

	s.invalidateCount(ctx, userID)
	return nil
}

// SetQuantity changes a cart item's quantity. The item must belong to the
// caller and the quantity is capped at current stock.
func (s *Service) SetQuantity(ctx context.Context, userID, itemID string, quantity int) error {
	if userID == "" {
		return apperr.AuthRequired()
	}
	if quantity <= 0 {
		return apperr.New(apperr.KindValidation, "quantity must be at least 1")
	}

	item, err := s.store.GetForOwner(ctx, userID, itemID)
	if err != nil {
		return apperr.Wrap(apperr.KindUnexpected, "failed to load cart item", err)
	}
	if item == nil {
		return apperr.New(apperr.KindNotFound, "cart item not found")
	}
	if quantity > item.Product.StockQuantity {
		return apperr.InsufficientStock(item.Product.Name, item.Product.StockQuantity)
	}

	if _, err := s.store.UpdateQuantity(ctx, userID, itemID, quantity); err != nil {
		return apperr.Wrap(apperr.KindUnexpected, "failed to update quantity", err)
	}
	s.invalidateCount(ctx, userID)
	return nil
}

// Remove deletes one item. Ownership is enforced by the owner filter inside
// the delete statement itself, never as a separate check.
func (s *Service) Remove(ctx context.Context, userID, itemID string) error {
	if userID == "" {
		return apperr.AuthRequired()
	}
	if err := s.store.Delete(ctx, userID, itemID); err != nil {
		return apperr.Wrap(apperr.KindUnexpected, "failed to remove cart item", err)
	}
	s.invalidateCount(ctx, userID)
	return nil
}

// Clear deletes all of the caller's cart rows.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.AuthRequired()
	}
	if err := s.store.DeleteAllForOwner(ctx, userID); err != nil {
		return apperr.Wrap(apperr.KindUnexpected, "failed to clear cart", err)
	}
	s.invalidateCount(ctx, userID)
	return nil
}

// Count returns the number of cart rows for the caller. Unauthenticated
// callers and store failures both yield 0: the badge in the page header is
// not worth an error page.
func (s *Service) Count(ctx context.Context, userID string) int {
	if userID == "" {
		return 0
	}

	key := fmt.Sprintf(redisx.KeyCartCount, userID)
	if s.cache != nil {
		var cached int
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
			s.logf("cart count cache read: %v", err)
		} else if ok {
			return cached
		}
	}

	count, err := s.store.CountForOwner(ctx, userID)
	if err != nil {
		s.logf("cart count: %v", err)
		return 0
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, count, redisx.TTLCartCount); err != nil {
			s.logf("cart count cache write: %v", err)
		}
	}
	return count
}

func (s *Service) invalidateCount(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, fmt.Sprintf(redisx.KeyCartCount, userID)); err != nil {
		s.logf("cart count invalidate: %v", err)
	}
}
