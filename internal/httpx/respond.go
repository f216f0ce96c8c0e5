package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront/internal/apperr"
)

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Stock   *int        `json:"stock,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a classified error to its HTTP status. Unclassified
// errors become 500s with a generic message so internals do not leak.
func writeError(w http.ResponseWriter, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
			Kind:    apperr.KindUnexpected,
			Message: "internal error",
		}})
		return
	}

	body := errorBody{Kind: e.Kind, Message: e.Message}
	if e.Kind == apperr.KindInsufficientStock {
		stock := e.Stock
		body.Stock = &stock
	}
	writeJSON(w, statusFor(e.Kind), errorResponse{Error: body})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindAuthRequired:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindInsufficientStock,
		apperr.KindInactiveProduct,
		apperr.KindAmountMismatch,
		apperr.KindAlreadyProcessed,
		apperr.KindCartEmpty:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperr.New(apperr.KindValidation, "invalid json body")
	}
	return nil
}
