// Package search holds the agistment search criteria model.
//
// # Overview
//
// A Criteria value describes one search: the selected locations (suburbs,
// regions or states), an optional radius around a single suburb, paddock and
// care type filters, required facilities, a weekly price ceiling, a minimum
// number of free spaces and the arena / round yard flags.
//
// Criteria are encoded into a compact shareable token by package
// searchtoken; that token is the identity of a search everywhere else (cache
// keys, saved searches, links).
//
// # Normalization
//
// Optional list fields may be nil or empty. Normalize maps both to empty,
// non-nil slices so that deep equality and token equality agree.
//
// # Validation
//
// Validate reports values the backend would reject or that make no sense,
// such as a radius with several locations. The codec deliberately accepts
// such criteria so that any link can be decoded, so callers that build
// criteria from user input should call Validate first.
//
// # Query parameters
//
// ParseParams and Criteria.Params convert between Criteria and url.Values,
// used by the local API and the CLI:
//
//	c, err := search.ParseParams(url.Values{
//		"loc":       {"suburb|kenthurst|Kenthurst|2156|NSW|Hills District|r3gx2f7"},
//		"radius":    {"25"},
//		"paddock":   {"private,shared"},
//		"max_price": {"120"},
//	})
package search
