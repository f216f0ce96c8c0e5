package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/orders"
)

type createOrderRequest struct {
	ShippingAddress orders.ShippingAddress `json:"shipping_address"`
	Note            string                 `json:"note"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	order, err := s.orders.Create(r.Context(), auth.UserID(r.Context()), req.ShippingAddress, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.GetByID(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if order == nil {
		writeError(w, apperr.New(apperr.KindNotFound, "order not found"))
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.orders.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}
