package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query string keys understood by ParseParams and produced by Params.
const (
	ParamLocation  = "loc"
	ParamRadius    = "radius"
	ParamPaddock   = "paddock"
	ParamCare      = "care"
	ParamFacility  = "facility"
	ParamMaxPrice  = "max_price"
	ParamMinSpaces = "min_spaces"
	ParamArena     = "arena"
	ParamRoundYard = "round_yard"
)

// ParseParams parses HTTP query parameters into Criteria.
//
// Supported parameters:
//   - loc: Location in ParseLocation form (can be specified multiple times)
//   - radius: Radius in kilometres (non-negative integer)
//   - paddock: Paddock type (repeatable, or comma separated)
//   - care: Care type (repeatable, or comma separated)
//   - facility: Facility key (repeatable, or comma separated)
//   - max_price: Weekly price ceiling (non-negative integer)
//   - min_spaces: Minimum available spaces (non-negative integer)
//   - arena, round_yard: Booleans in strconv.ParseBool form
//
// Unlike the criteria codec, ParseParams is strict: malformed numbers and
// unknown enum values return an error so the caller can report them.
//
// Parameters:
//   - queryParams: HTTP query parameters as parsed by net/url
//
// Returns:
//   - Criteria: Parsed and normalized criteria
//   - error: Error describing the first invalid parameter
//
// Example:
//
//	c, err := ParseParams(r.URL.Query())
//	if err != nil {
//		// Report a bad request
//	}
func ParseParams(queryParams url.Values) (Criteria, error) {
	var c Criteria

	for _, raw := range queryParams[ParamLocation] {
		loc, err := ParseLocation(raw)
		if err != nil {
			return Criteria{}, err
		}
		c.Locations = append(c.Locations, loc)
	}

	var err error
	if c.RadiusKm, err = parseNonNegative(queryParams, ParamRadius); err != nil {
		return Criteria{}, err
	}
	if c.MaxWeeklyPrice, err = parseNonNegative(queryParams, ParamMaxPrice); err != nil {
		return Criteria{}, err
	}
	if c.MinSpaces, err = parseNonNegative(queryParams, ParamMinSpaces); err != nil {
		return Criteria{}, err
	}
	if c.HasArena, err = parseBool(queryParams, ParamArena); err != nil {
		return Criteria{}, err
	}
	if c.HasRoundYard, err = parseBool(queryParams, ParamRoundYard); err != nil {
		return Criteria{}, err
	}

	for _, v := range splitValues(queryParams[ParamPaddock]) {
		p := PaddockType(v)
		if !p.Valid() {
			return Criteria{}, fmt.Errorf("%s %q: %w", ParamPaddock, v, ErrUnknownValue)
		}
		c.PaddockTypes = append(c.PaddockTypes, p)
	}
	for _, v := range splitValues(queryParams[ParamCare]) {
		ct := CareType(v)
		if !ct.Valid() {
			return Criteria{}, fmt.Errorf("%s %q: %w", ParamCare, v, ErrUnknownValue)
		}
		c.CareTypes = append(c.CareTypes, ct)
	}
	for _, v := range splitValues(queryParams[ParamFacility]) {
		f := Facility(v)
		if !f.Valid() {
			return Criteria{}, fmt.Errorf("%s %q: %w", ParamFacility, v, ErrUnknownValue)
		}
		c.Facilities = append(c.Facilities, f)
	}

	return c.Normalize(), nil
}

// Params renders c as query parameters. Zero values are omitted, so the
// empty criteria render as an empty query.
func (c Criteria) Params() url.Values {
	v := url.Values{}
	for _, l := range c.Locations {
		v.Add(ParamLocation, l.String())
	}
	if c.RadiusKm != 0 {
		v.Set(ParamRadius, strconv.Itoa(c.RadiusKm))
	}
	for _, p := range c.PaddockTypes {
		v.Add(ParamPaddock, string(p))
	}
	for _, ct := range c.CareTypes {
		v.Add(ParamCare, string(ct))
	}
	for _, f := range c.Facilities {
		v.Add(ParamFacility, string(f))
	}
	if c.MaxWeeklyPrice != 0 {
		v.Set(ParamMaxPrice, strconv.Itoa(c.MaxWeeklyPrice))
	}
	if c.MinSpaces != 0 {
		v.Set(ParamMinSpaces, strconv.Itoa(c.MinSpaces))
	}
	if c.HasArena {
		v.Set(ParamArena, "true")
	}
	if c.HasRoundYard {
		v.Set(ParamRoundYard, "true")
	}
	return v
}

func parseNonNegative(queryParams url.Values, key string) (int, error) {
	raw := queryParams.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, raw, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s %d: %w", key, n, ErrNegative)
	}
	return n, nil
}

func parseBool(queryParams url.Values, key string) (bool, error) {
	raw := queryParams.Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s %q: %w", key, raw, err)
	}
	return b, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
