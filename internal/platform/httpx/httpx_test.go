package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"stock":     {&shared.InsufficientStockError{SKU: "A"}, http.StatusConflict},
		"pricing":   {&shared.PricingError{SKU: "A"}, http.StatusUnprocessableEntity},
		"empty":     {shared.ErrEmptyCart, http.StatusBadRequest},
		"notfound":  {fmt.Errorf("orders: get: %w", shared.ErrNotFound), http.StatusNotFound},
		"forbidden": {shared.ErrForbidden, http.StatusForbidden},
		"transient": {&shared.TransientError{Err: errors.New("40001")}, http.StatusServiceUnavailable},
		"unknown":   {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.status, StatusFor(tc.err))
		})
	}
}

func TestRespondErrorCarriesSKU(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("checkout: %w", &shared.InsufficientStockError{SKU: "TS-001-BL-M"}))

	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "TS-001-BL-M", body.SKU)
	require.Equal(t, "insufficient_stock", body.Code)
	require.Equal(t, "insufficient stock for SKU TS-001-BL-M", body.Detail)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("dial tcp 10.0.0.1:5432: refused"))
	require.NotContains(t, rr.Body.String(), "10.0.0.1")
}

type bindTarget struct {
	Quantity int    `json:"quantity" validate:"gte=1"`
	Provider string `json:"provider" validate:"required"`
}

func TestBindValidatesContract(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":0}`))
	var dst bindTarget
	err := Bind(req, &dst)
	require.ErrorIs(t, err, shared.ErrValidation)

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "must be at least 1", verr.Fields["quantity"])
	require.Equal(t, "is required", verr.Fields["provider"])
}

func TestBindRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1,"provider":"bKash","extra":true}`))
	var dst bindTarget
	require.ErrorIs(t, Bind(req, &dst), shared.ErrValidation)
}
