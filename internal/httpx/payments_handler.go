package httpx

import (
	"net/http"
	"strconv"

	"storefront/internal/apperr"
	"storefront/internal/auth"
)

type confirmPaymentRequest struct {
	PaymentKey string `json:"payment_key"`
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
}

func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	order, err := s.payments.Confirm(r.Context(), auth.UserID(r.Context()), req.PaymentKey, req.OrderID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// paymentSuccess handles the provider's success redirect. The widget
// appends paymentKey, orderId and amount as query parameters.
func (s *Server) paymentSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil {
		writeError(w, apperr.New(apperr.KindValidation, "amount must be an integer"))
		return
	}
	order, err := s.payments.Confirm(r.Context(), auth.UserID(r.Context()),
		q.Get("paymentKey"), q.Get("orderId"), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// paymentFail records the provider's failure redirect. Nothing to undo:
// the order is still pending and can be retried.
func (s *Server) paymentFail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.logf("payment failed for order %s: %s (%s)", q.Get("orderId"), q.Get("message"), q.Get("code"))
	writeJSON(w, http.StatusOK, map[string]string{
		"order_id": q.Get("orderId"),
		"code":     q.Get("code"),
		"message":  q.Get("message"),
	})
}
