package catalog

import (
	"time"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// ResolvePrice picks the price to charge now from a variant's history.
//
// The price with the latest ValidFrom wins and a nil ValidFrom counts as the
// zero time. ValidTo is not used as an eligibility filter. Equal ValidFrom
// values fall back to the highest ID so the choice is stable across runs.
func ResolvePrice(sku string, prices []Price) (Price, error) {
	if len(prices) == 0 {
		return Price{}, &shared.PricingError{SKU: sku}
	}
	best := prices[0]
	for _, candidate := range prices[1:] {
		if newer(candidate, best) {
			best = candidate
		}
	}
	return best, nil
}

func newer(a, b Price) bool {
	at, bt := effectiveFrom(a), effectiveFrom(b)
	if at.Equal(bt) {
		return a.ID > b.ID
	}
	return at.After(bt)
}

func effectiveFrom(p Price) time.Time {
	if p.ValidFrom == nil {
		return time.Time{}
	}
	return *p.ValidFrom
}
