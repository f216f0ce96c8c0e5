package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/events"
	"storefront/internal/orders"
	"storefront/internal/payments"
)

var testSecret = []byte("router-test-secret")

// memCatalog backs both the catalog store and the cart's product lookup.
type memCatalog struct {
	products map[string]catalog.Product
}

func (m *memCatalog) List(ctx context.Context, opts catalog.ListOptions) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range m.products {
		if !opts.IncludeInactive && !p.IsActive {
			continue
		}
		if opts.Category != "" && p.Category != opts.Category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memCatalog) ListPage(ctx context.Context, opts catalog.ListOptions) (catalog.Page, error) {
	items, _ := m.List(ctx, opts)
	return catalog.Page{
		Items:       items,
		TotalCount:  len(items),
		TotalPages:  1,
		CurrentPage: opts.Page,
		PageSize:    opts.PageSize,
	}, nil
}

func (m *memCatalog) GetActive(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok || !p.IsActive {
		return nil, nil
	}
	return &p, nil
}

func (m *memCatalog) Lookup(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memCatalog) Categories(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range m.products {
		if p.IsActive && p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out, nil
}

// memCart is an in-memory cart store shared with the order flow.
type memCart struct {
	byID    map[string]*cart.Item
	catalog *memCatalog
	nextID  int
}

func newMemCart(c *memCatalog) *memCart {
	return &memCart{byID: map[string]*cart.Item{}, catalog: c}
}

func (m *memCart) withProduct(it cart.Item) cart.ItemWithProduct {
	return cart.ItemWithProduct{Item: it, Product: m.catalog.products[it.ProductID]}
}

func (m *memCart) ItemsForOwner(ctx context.Context, userID string) ([]cart.ItemWithProduct, error) {
	var out []cart.ItemWithProduct
	for _, it := range m.byID {
		if it.UserID == userID {
			out = append(out, m.withProduct(*it))
		}
	}
	return out, nil
}

func (m *memCart) GetForOwner(ctx context.Context, userID, itemID string) (*cart.ItemWithProduct, error) {
	it, ok := m.byID[itemID]
	if !ok || it.UserID != userID {
		return nil, nil
	}
	found := m.withProduct(*it)
	return &found, nil
}

func (m *memCart) FindForProduct(ctx context.Context, userID, productID string) (*cart.Item, error) {
	for _, it := range m.byID {
		if it.UserID == userID && it.ProductID == productID {
			found := *it
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memCart) Insert(ctx context.Context, userID, productID string, quantity int) error {
	m.nextID++
	id := fmt.Sprintf("ci-%d", m.nextID)
	m.byID[id] = &cart.Item{ID: id, UserID: userID, ProductID: productID, Quantity: quantity}
	return nil
}

func (m *memCart) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (bool, error) {
	it, ok := m.byID[itemID]
	if !ok || it.UserID != userID {
		return false, nil
	}
	it.Quantity = quantity
	return true, nil
}

func (m *memCart) Delete(ctx context.Context, userID, itemID string) error {
	if it, ok := m.byID[itemID]; ok && it.UserID == userID {
		delete(m.byID, itemID)
	}
	return nil
}

func (m *memCart) DeleteAllForOwner(ctx context.Context, userID string) error {
	for id, it := range m.byID {
		if it.UserID == userID {
			delete(m.byID, id)
		}
	}
	return nil
}

func (m *memCart) CountForOwner(ctx context.Context, userID string) (int, error) {
	total := 0
	for _, it := range m.byID {
		if it.UserID == userID {
			total += it.Quantity
		}
	}
	return total, nil
}

// memOrders serves both the order store and the payment flow.
type memOrders struct {
	byID   map[string]*orders.Order
	nextID int
}

func newMemOrders() *memOrders {
	return &memOrders{byID: map[string]*orders.Order{}}
}

func (m *memOrders) CreateOrder(ctx context.Context, order orders.NewOrder) (string, error) {
	m.nextID++
	id := fmt.Sprintf("order-%d", m.nextID)
	items := make([]orders.Item, 0, len(order.Items))
	for i, it := range order.Items {
		items = append(items, orders.Item{
			ID:          fmt.Sprintf("%s-item-%d", id, i),
			OrderID:     id,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       it.Price,
			Quantity:    it.Quantity,
		})
	}
	m.byID[id] = &orders.Order{
		ID:              id,
		UserID:          order.UserID,
		TotalAmount:     order.TotalAmount,
		Status:          orders.StatusPending,
		ShippingAddress: order.ShippingAddress,
		OrderNote:       order.OrderNote,
		Items:           items,
	}
	return id, nil
}

func (m *memOrders) GetForOwner(ctx context.Context, userID, orderID string) (*orders.Order, error) {
	o, ok := m.byID[orderID]
	if !ok || o.UserID != userID {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (m *memOrders) ListForOwner(ctx context.Context, userID string) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) ConfirmPending(ctx context.Context, userID, orderID string) (bool, error) {
	o, ok := m.byID[orderID]
	if !ok || o.UserID != userID || o.Status != orders.StatusPending {
		return false, nil
	}
	o.Status = orders.StatusConfirmed
	return true, nil
}

type testWorld struct {
	router  http.Handler
	catalog *memCatalog
	cart    *memCart
	orders  *memOrders
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()

	cat := &memCatalog{products: map[string]catalog.Product{
		"p-keyboard": {ID: "p-keyboard", Name: "Keyboard", Price: 45000, Category: "peripherals", StockQuantity: 10, IsActive: true},
		"p-mouse":    {ID: "p-mouse", Name: "Mouse", Price: 25000, Category: "peripherals", StockQuantity: 2, IsActive: true},
		"p-retired":  {ID: "p-retired", Name: "Old Webcam", Price: 9900, Category: "video", StockQuantity: 4, IsActive: false},
	}}
	carts := newMemCart(cat)
	ords := newMemOrders()

	catalogSvc := catalog.NewService(cat, nil, t.Logf)
	cartSvc := cart.NewService(carts, cat, nil, t.Logf)
	orderSvc := orders.NewService(ords, carts, events.NopPublisher{}, nil, "test", t.Logf)
	paymentSvc := payments.NewService(ords, payments.NopGateway{}, events.NopPublisher{}, "test", t.Logf)

	router := NewRouter(Options{
		Catalog:   catalogSvc,
		Cart:      cartSvc,
		Orders:    orderSvc,
		Payments:  paymentSvc,
		JWTSecret: testSecret,
		Logf:      t.Logf,
	})
	return &testWorld{router: router, catalog: cat, cart: carts, orders: ords}
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + tok
}

func (tw *testWorld) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	tw.router.ServeHTTP(rec, req)
	return rec
}

func decodeErrorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Kind  string `json:"kind"`
			Stock *int   `json:"stock"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error.Kind
}

func TestHealthz(t *testing.T) {
	tw := newTestWorld(t)
	rec := tw.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListProducts(t *testing.T) {
	tw := newTestWorld(t)
	rec := tw.do(t, http.MethodGet, "/api/products?category=peripherals", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Items []catalog.Product `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 peripherals, got %d", len(resp.Items))
	}
}

func TestListProducts_BadSortIsValidationError(t *testing.T) {
	tw := newTestWorld(t)
	rec := tw.do(t, http.MethodGet, "/api/products?sort=rating", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if kind := decodeErrorKind(t, rec); kind != "validation" {
		t.Fatalf("expected validation kind, got %q", kind)
	}
}

func TestListProducts_Paginated(t *testing.T) {
	tw := newTestWorld(t)
	rec := tw.do(t, http.MethodGet, "/api/products?page=1&page_size=12", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page catalog.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.CurrentPage != 1 || page.PageSize != 12 {
		t.Fatalf("pagination metadata missing: %+v", page)
	}
}

func TestListProducts_PageWithoutSizeRejected(t *testing.T) {
	tw := newTestWorld(t)
	rec := tw.do(t, http.MethodGet, "/api/products?page=2", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	tw := newTestWorld(t)
	rec := tw.do(t, http.MethodGet, "/api/products/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if kind := decodeErrorKind(t, rec); kind != "not_found" {
		t.Fatalf("expected not_found kind, got %q", kind)
	}
}

func TestGetProduct_InactiveHidden(t *testing.T) {
	tw := newTestWorld(t)
	rec := tw.do(t, http.MethodGet, "/api/products/p-retired", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("inactive product must not be served, got %d", rec.Code)
	}
}

func TestCartAdd_RequiresAuth(t *testing.T) {
	tw := newTestWorld(t)
	rec := tw.do(t, http.MethodPost, "/api/cart", "", addToCartRequest{ProductID: "p-keyboard", Quantity: 1})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if kind := decodeErrorKind(t, rec); kind != "auth_required" {
		t.Fatalf("expected auth_required kind, got %q", kind)
	}
}

func TestCartAddAndList(t *testing.T) {
	tw := newTestWorld(t)
	token := bearerToken(t, "user-1")

	rec := tw.do(t, http.MethodPost, "/api/cart", token, addToCartRequest{ProductID: "p-keyboard", Quantity: 2})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = tw.do(t, http.MethodGet, "/api/cart", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Items []cart.ItemWithProduct `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Product.Name != "Keyboard" {
		t.Fatalf("unexpected cart: %+v", resp.Items)
	}
}

func TestCartAdd_InsufficientStockCarriesStock(t *testing.T) {
	tw := newTestWorld(t)
	token := bearerToken(t, "user-1")

	rec := tw.do(t, http.MethodPost, "/api/cart", token, addToCartRequest{ProductID: "p-mouse", Quantity: 3})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp struct {
		Error struct {
			Kind  string `json:"kind"`
			Stock *int   `json:"stock"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Kind != "insufficient_stock" || resp.Error.Stock == nil || *resp.Error.Stock != 2 {
		t.Fatalf("expected stock 2 in payload, got %s", rec.Body.String())
	}
}

func TestCartCount_AnonymousIsZero(t *testing.T) {
	tw := newTestWorld(t)
	rec := tw.do(t, http.MethodGet, "/api/cart/count", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["count"] != 0 {
		t.Fatalf("expected 0, got %d", resp["count"])
	}
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	tw := newTestWorld(t)
	token := bearerToken(t, "user-1")

	rec := tw.do(t, http.MethodPost, "/api/orders", token, createOrderRequest{
		ShippingAddress: orders.ShippingAddress{Recipient: "Dana", Phone: "010-1234-5678", Address: "12 Harbor Rd"},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if kind := decodeErrorKind(t, rec); kind != "cart_empty" {
		t.Fatalf("expected cart_empty kind, got %q", kind)
	}
}

func TestOrderAndPaymentFlow(t *testing.T) {
	tw := newTestWorld(t)
	token := bearerToken(t, "user-1")

	rec := tw.do(t, http.MethodPost, "/api/cart", token, addToCartRequest{ProductID: "p-keyboard", Quantity: 2})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("add to cart: %d", rec.Code)
	}

	rec = tw.do(t, http.MethodPost, "/api/orders", token, createOrderRequest{
		ShippingAddress: orders.ShippingAddress{Recipient: "Dana", Phone: "010-1234-5678", Address: "12 Harbor Rd"},
		Note:            "ring the bell",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: %d: %s", rec.Code, rec.Body.String())
	}
	var created orders.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if created.TotalAmount != 90000 || created.Status != orders.StatusPending {
		t.Fatalf("unexpected order: %+v", created)
	}
	if n, _ := tw.cart.CountForOwner(context.Background(), "user-1"); n != 0 {
		t.Fatalf("cart must be emptied, still holds %d", n)
	}

	// Wrong amount rejected before any state change.
	rec = tw.do(t, http.MethodPost, "/api/payments/confirm", token, confirmPaymentRequest{
		PaymentKey: "pay-1", OrderID: created.ID, Amount: 1,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on mismatch, got %d", rec.Code)
	}
	if kind := decodeErrorKind(t, rec); kind != "amount_mismatch" {
		t.Fatalf("expected amount_mismatch, got %q", kind)
	}

	rec = tw.do(t, http.MethodPost, "/api/payments/confirm", token, confirmPaymentRequest{
		PaymentKey: "pay-1", OrderID: created.ID, Amount: 90000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d: %s", rec.Code, rec.Body.String())
	}
	var confirmed orders.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &confirmed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if confirmed.Status != orders.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	// Second confirmation is rejected.
	rec = tw.do(t, http.MethodPost, "/api/payments/confirm", token, confirmPaymentRequest{
		PaymentKey: "pay-1", OrderID: created.ID, Amount: 90000,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on re-confirm, got %d", rec.Code)
	}
	if kind := decodeErrorKind(t, rec); kind != "already_processed" {
		t.Fatalf("expected already_processed, got %q", kind)
	}
}

func TestPaymentSuccessCallback(t *testing.T) {
	tw := newTestWorld(t)
	token := bearerToken(t, "user-1")

	tw.do(t, http.MethodPost, "/api/cart", token, addToCartRequest{ProductID: "p-keyboard", Quantity: 1})
	rec := tw.do(t, http.MethodPost, "/api/orders", token, createOrderRequest{
		ShippingAddress: orders.ShippingAddress{Recipient: "Dana", Phone: "010-1234-5678", Address: "12 Harbor Rd"},
	})
	var created orders.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	url := fmt.Sprintf("/payments/success?paymentKey=pay-9&orderId=%s&amount=45000", created.ID)
	rec = tw.do(t, http.MethodGet, url, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback: %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOrdersScopedToOwner(t *testing.T) {
	tw := newTestWorld(t)
	owner := bearerToken(t, "user-1")
	other := bearerToken(t, "user-2")

	tw.do(t, http.MethodPost, "/api/cart", owner, addToCartRequest{ProductID: "p-keyboard", Quantity: 1})
	rec := tw.do(t, http.MethodPost, "/api/orders", owner, createOrderRequest{
		ShippingAddress: orders.ShippingAddress{Recipient: "Dana", Phone: "010-1234-5678", Address: "12 Harbor Rd"},
	})
	var created orders.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = tw.do(t, http.MethodGet, "/api/orders/"+created.ID, other, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("other user's read must 404, got %d", rec.Code)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	tw := newTestWorld(t)
	rec := tw.do(t, http.MethodGet, "/api/cart", "Bearer garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
