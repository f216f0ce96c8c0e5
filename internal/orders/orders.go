// Package orders turns a cart snapshot into an order. Creation is one atomic
// transaction: order insert, line-item inserts and conditional stock
// decrements commit or roll back together.
package orders

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/events"
	"storefront/internal/redisx"
)

// ShippingAddress is the delivery destination captured with an order.
type ShippingAddress struct {
	Recipient     string `json:"recipient"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	AddressDetail string `json:"address_detail,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
}

// Validate checks the required address fields.
func (a ShippingAddress) Validate() error {
	var missing []string
	if strings.TrimSpace(a.Recipient) == "" {
		missing = append(missing, "recipient")
	}
	if strings.TrimSpace(a.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(a.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return apperr.Newf(apperr.KindValidation, "shipping address missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Item is a stored order line: an immutable snapshot of the product name and
// price at purchase time.
type Item struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Price       int64     `json:"price"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
}

// Order mirrors a row of the orders table plus its items.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	TotalAmount     int64           `json:"total_amount"`
	Status          Status          `json:"status"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	OrderNote       string          `json:"order_note,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []Item          `json:"items"`
}

// NewItem is one line of an order about to be created.
type NewItem struct {
	ProductID   string
	ProductName string
	Price       int64
	Quantity    int
}

// NewOrder is the input to Store.CreateOrder.
type NewOrder struct {
	UserID          string
	TotalAmount     int64
	ShippingAddress ShippingAddress
	OrderNote       string
	Items           []NewItem
}

// Store is the order persistence surface. CreateOrder must be atomic: the
// order row, its items and the stock decrements all commit or none do.
type Store interface {
	CreateOrder(ctx context.Context, order NewOrder) (string, error)
	GetForOwner(ctx context.Context, userID, orderID string) (*Order, error)
	ListForOwner(ctx context.Context, userID string) ([]Order, error)
	ConfirmPending(ctx context.Context, userID, orderID string) (bool, error)
}

// Cart is the slice of the cart surface the order flow needs.
type Cart interface {
	ItemsForOwner(ctx context.Context, userID string) ([]cart.ItemWithProduct, error)
	DeleteAllForOwner(ctx context.Context, userID string) error
}

// Service orchestrates order creation and reads.
type Service struct {
	store    Store
	carts    Cart
	events   events.Publisher
	cache    catalog.Cache
	producer string
	logf     func(format string, args ...any)
}

// NewService constructs an order service. events, cache and logf may be nil.
func NewService(store Store, carts Cart, publisher events.Publisher, cache catalog.Cache, producer string, logf func(format string, args ...any)) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logf == nil {
		logf = log.Printf
	}
	if producer == "" {
		producer = "storefront-api"
	}
	return &Service{store: store, carts: carts, events: publisher, cache: cache, producer: producer, logf: logf}
}

// Create converts the caller's cart into a pending order.
//
// The cart snapshot is validated first (stock, active flag), then the order,
// its line items and the stock decrements are written in a single
// transaction. The stock decrement is conditional inside the store, so a
// concurrent checkout that drains stock between the read and the write rolls
// the whole order back. Cart cleanup after commit is best-effort: a failure
// there is logged and the order still succeeds.
func (s *Service) Create(ctx context.Context, userID string, address ShippingAddress, note string) (*Order, error) {
	if userID == "" {
		return nil, apperr.AuthRequired()
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}

	cartItems, err := s.carts.ItemsForOwner(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "failed to load cart", err)
	}
	if len(cartItems) == 0 {
		return nil, apperr.New(apperr.KindCartEmpty, "cart is empty")
	}

	var total int64
	items := make([]NewItem, 0, len(cartItems))
	for _, ci := range cartItems {
		p := ci.Product
		if ci.Quantity > p.StockQuantity {
			return nil, apperr.InsufficientStock(p.Name, p.StockQuantity)
		}
		if !p.IsActive {
			return nil, apperr.Newf(apperr.KindInactiveProduct, "%s is no longer for sale", p.Name)
		}
		total += p.Price * int64(ci.Quantity)
		items = append(items, NewItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Price:       p.Price,
			Quantity:    ci.Quantity,
		})
	}

	orderID, err := s.store.CreateOrder(ctx, NewOrder{
		UserID:          userID,
		TotalAmount:     total,
		ShippingAddress: address,
		OrderNote:       note,
		Items:           items,
	})
	if err != nil {
		return nil, err
	}

	// Cart cleanup is not part of the success contract.
	if err := s.carts.DeleteAllForOwner(ctx, userID); err != nil {
		s.logf("clear cart after order %s: %v", orderID, err)
	}
	s.invalidateCartCount(ctx, userID)

	s.publishCreated(ctx, orderID, userID, total, items)

	order, err := s.store.GetForOwner(ctx, userID, orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "failed to load created order", err)
	}
	if order == nil {
		return nil, apperr.New(apperr.KindUnexpected, "created order not found")
	}
	return order, nil
}

// GetByID returns the caller's order with items, or (nil, nil) when absent.
func (s *Service) GetByID(ctx context.Context, userID, orderID string) (*Order, error) {
	if userID == "" {
		return nil, apperr.AuthRequired()
	}
	order, err := s.store.GetForOwner(ctx, userID, orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "failed to load order", err)
	}
	return order, nil
}

// List returns the caller's orders, newest first, items attached.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, apperr.AuthRequired()
	}
	out, err := s.store.ListForOwner(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "failed to load orders", err)
	}
	return out, nil
}

func (s *Service) publishCreated(ctx context.Context, orderID, userID string, total int64, items []NewItem) {
	payloadItems := make([]events.OrderItemPayload, 0, len(items))
	for _, it := range items {
		payloadItems = append(payloadItems, events.OrderItemPayload{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       it.Price,
			Quantity:    it.Quantity,
		})
	}
	env, err := events.NewEnvelope(events.EventOrderCreated, s.producer, orderID, events.OrderCreatedPayload{
		OrderID:     orderID,
		UserID:      userID,
		TotalAmount: total,
		Items:       payloadItems,
	})
	if err != nil {
		s.logf("order created event: %v", err)
		return
	}
	if err := s.events.Publish(ctx, orderID, env); err != nil {
		s.logf("publish %s: %v", events.EventOrderCreated, err)
	}
}

func (s *Service) invalidateCartCount(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, fmt.Sprintf(redisx.KeyCartCount, userID)); err != nil {
		s.logf("cart count invalidate: %v", err)
	}
}
