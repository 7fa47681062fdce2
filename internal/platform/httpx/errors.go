// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var (
		stock      *shared.InsufficientStockError
		pricing    *shared.PricingError
		validation *shared.ValidationError
	)
	switch {
	case errors.As(err, &stock):
		Problem(w, ProblemDetail{Status: http.StatusConflict, Title: "Insufficient Stock", Code: "insufficient_stock", Detail: stock.Error(), SKU: stock.SKU})
	case errors.As(err, &pricing):
		Problem(w, ProblemDetail{Status: http.StatusUnprocessableEntity, Title: "Pricing Unavailable", Code: "pricing_unavailable", Detail: pricing.Error(), SKU: pricing.SKU})
	case errors.As(err, &validation):
		Problem(w, ProblemDetail{Status: http.StatusBadRequest, Title: "Validation Failed", Code: "validation_failed", Detail: validation.Error(), Fields: validation.Fields})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, ProblemDetail{Status: http.StatusBadRequest, Title: "Validation Failed", Code: "validation_failed", Detail: err.Error()})
	case errors.Is(err, shared.ErrEmptyCart):
		Problem(w, ProblemDetail{Status: http.StatusBadRequest, Title: "Empty Cart", Code: "empty_cart", Detail: shared.ErrEmptyCart.Error()})
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, ProblemDetail{Status: http.StatusNotFound, Title: "Not Found", Code: "not_found", Detail: shared.ErrNotFound.Error()})
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, ProblemDetail{Status: http.StatusConflict, Title: "Conflict", Code: "conflict", Detail: err.Error()})
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, ProblemDetail{Status: http.StatusForbidden, Title: "Forbidden", Code: "forbidden"})
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, ProblemDetail{Status: http.StatusUnauthorized, Title: "Unauthorized", Code: "unauthorized"})
	case errors.Is(err, shared.ErrTransient):
		w.Header().Set("Retry-After", "1")
		Problem(w, ProblemDetail{Status: http.StatusServiceUnavailable, Title: "Temporarily Unavailable", Code: "transient", Detail: shared.UserSafeMessage(err)})
	default:
		Problem(w, ProblemDetail{Status: http.StatusInternalServerError, Title: "Internal Error"})
	}
}

// StatusFor returns the status code RespondError would write for err.
func StatusFor(err error) int {
	rec := &statusOnly{header: http.Header{}}
	RespondError(rec, err)
	return rec.status
}

type statusOnly struct {
	header http.Header
	status int
}

func (s *statusOnly) Header() http.Header         { return s.header }
func (s *statusOnly) Write(b []byte) (int, error) { return len(b), nil }
func (s *statusOnly) WriteHeader(status int)      { s.status = status }
