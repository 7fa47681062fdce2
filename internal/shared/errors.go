package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrEmptyCart is returned when checkout is attempted without cart items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock matches every *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrPricing matches every *PricingError.
	ErrPricing = errors.New("pricing unavailable")
	// ErrTransient matches every *TransientError; callers may retry.
	ErrTransient = errors.New("transient failure")
	// ErrForbidden indicates a role or ownership mismatch.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing caller identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// InsufficientStockError reports the SKU that could not be fulfilled.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for SKU %s", e.SKU)
}

// Is lets errors.Is match ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PricingError reports a variant without a usable price.
type PricingError struct {
	SKU    string
	Reason string
}

func (e *PricingError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("no price available for SKU %s", e.SKU)
	}
	return fmt.Sprintf("no price available for SKU %s: %s", e.SKU, e.Reason)
}

// Is lets errors.Is match ErrPricing.
func (e *PricingError) Is(target error) bool {
	return target == ErrPricing
}

// TransientError wraps lock timeouts, serialization failures and deadline
// expiry. Nothing was committed when it is returned.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transient failure: %v", e.Err)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrTransient.
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// ValidationError collects field level messages.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UserSafeMessage returns a message suitable for API consumers.
func UserSafeMessage(err error) string {
	var stock *InsufficientStockError
	var pricing *PricingError
	var validation *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &stock):
		return stock.Error()
	case errors.As(err, &pricing):
		return pricing.Error()
	case errors.As(err, &validation):
		return validation.Error()
	case errors.Is(err, ErrEmptyCart):
		return ErrEmptyCart.Error()
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	case errors.Is(err, ErrForbidden):
		return ErrForbidden.Error()
	case errors.Is(err, ErrUnauthorized):
		return ErrUnauthorized.Error()
	case errors.Is(err, ErrConflict):
		return ErrConflict.Error()
	case errors.Is(err, ErrTransient):
		return "temporarily unavailable, please retry"
	default:
		return "internal error"
	}
}
