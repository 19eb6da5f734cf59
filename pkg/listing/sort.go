package listing

import (
	"fmt"
	"slices"

	"github.com/kurtheiz/agistme/pkg/search"
)

// SortMode selects the display order of search results.
type SortMode string

const (
	// SortDefault keeps arrival order.
	SortDefault SortMode = "default"
	// SortPriceAsc orders by computed price, contact-for-price last.
	SortPriceAsc SortMode = "price_asc"
	// SortPriceDesc is SortPriceAsc reversed, so contact-for-price listings
	// come first.
	SortPriceDesc SortMode = "price_desc"
)

// ParseSortMode accepts the SortMode names; the empty string is SortDefault.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(s) {
	case "", SortDefault:
		return SortDefault, nil
	case SortPriceAsc, SortPriceDesc:
		return SortMode(s), nil
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}

// Sort returns items in display order without modifying items. Prices are
// computed over the paddock types in scope.
//
// Descending order is the ascending order reversed, not a separate
// comparison: listings priced "contact for price" end up first, and equal
// prices appear in reverse arrival order.
func Sort(items []Listing, mode SortMode, scope []search.PaddockType) []Listing {
	out := slices.Clone(items)
	if mode == SortDefault || mode == "" || len(out) < 2 {
		return out
	}

	slices.SortStableFunc(out, func(a, b Listing) int {
		pa, pb := a.MinWeeklyPrice(scope), b.MinWeeklyPrice(scope)
		switch {
		case pa == pb:
			return 0
		case pa == ContactForPrice:
			return 1
		case pb == ContactForPrice:
			return -1
		case pa < pb:
			return -1
		default:
			return 1
		}
	})

	if mode == SortPriceDesc {
		slices.Reverse(out)
	}
	return out
}
