// Package httpx is the JSON API surface of the storefront: catalog
// browsing, cart CRUD, order creation, payment confirmation callbacks,
// and a WebSocket feed of order events.
package httpx

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/db/tasks"
	"storefront/internal/events"
	"storefront/internal/orders"
	"storefront/internal/payments"
)

type Server struct {
	catalog  *catalog.Service
	cart     *cart.Service
	orders   *orders.Service
	payments *payments.Service
	tasks    *tasksdb.TaskStore
	hub      *events.Hub
	logf     func(format string, args ...any)
}

type Options struct {
	Catalog  *catalog.Service
	Cart     *cart.Service
	Orders   *orders.Service
	Payments *payments.Service
	Tasks    *tasksdb.TaskStore
	Hub      *events.Hub
	// JWTSecret verifies bearer tokens; empty disables authentication,
	// leaving every request anonymous.
	JWTSecret []byte
	// Middleware is appended after the router's own stack. Used for
	// metrics instrumentation.
	Middleware []func(http.Handler) http.Handler
	Logf       func(format string, args ...any)
}

// NewRouter assembles the API routes with the standard middleware stack.
func NewRouter(opts Options) *chi.Mux {
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	s := &Server{
		catalog:  opts.Catalog,
		cart:     opts.Cart,
		orders:   opts.Orders,
		payments: opts.Payments,
		tasks:    opts.Tasks,
		hub:      opts.Hub,
		logf:     logf,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	for _, mw := range opts.Middleware {
		r.Use(mw)
	}
	if len(opts.JWTSecret) > 0 {
		r.Use(auth.Middleware(opts.JWTSecret))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", s.listProducts)
		r.Get("/products/{id}", s.getProduct)
		r.Get("/categories", s.listCategories)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.cartItems)
			r.Post("/", s.cartAdd)
			r.Delete("/", s.cartClear)
			r.Get("/count", s.cartCount)
			r.Patch("/{itemID}", s.cartSetQuantity)
			r.Delete("/{itemID}", s.cartRemove)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", s.listOrders)
			r.Post("/", s.createOrder)
			r.Get("/{id}", s.getOrder)
		})

		r.Post("/payments/confirm", s.confirmPayment)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.listTasks)
			r.Post("/", s.addTask)
		})
	})

	// Provider redirect callbacks land here with query parameters.
	r.Get("/payments/success", s.paymentSuccess)
	r.Get("/payments/fail", s.paymentFail)

	if s.hub != nil {
		r.Get("/ws", s.serveWS)
	}

	return r
}
