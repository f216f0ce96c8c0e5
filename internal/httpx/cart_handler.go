package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/auth"
	"storefront/internal/cart"
)

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) cartItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.cart.Items(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []cart.ItemWithProduct{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) cartAdd(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.cart.Add(r.Context(), auth.UserID(r.Context()), req.ProductID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cartSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	itemID := chi.URLParam(r, "itemID")
	if err := s.cart.SetQuantity(r.Context(), auth.UserID(r.Context()), itemID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cartRemove(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	if err := s.cart.Remove(r.Context(), auth.UserID(r.Context()), itemID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cartClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cart.Clear(r.Context(), auth.UserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cartCount never fails: anonymous callers and backend hiccups both
// come back as zero.
func (s *Server) cartCount(w http.ResponseWriter, r *http.Request) {
	count := s.cart.Count(r.Context(), auth.UserID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
