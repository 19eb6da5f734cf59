package search

import (
	"errors"
	"fmt"
	"slices"
)

// PaddockType is the kind of paddock a property offers.
type PaddockType string

const (
	PaddockPrivate PaddockType = "private"
	PaddockShared  PaddockType = "shared"
	PaddockGroup   PaddockType = "group"
)

// PaddockTypes lists every paddock type in display order.
var PaddockTypes = []PaddockType{PaddockPrivate, PaddockShared, PaddockGroup}

// Valid reports whether p is a known paddock type.
func (p PaddockType) Valid() bool {
	return slices.Contains(PaddockTypes, p)
}

// CareType is the level of care included in the agistment.
type CareType string

const (
	CareSelf CareType = "self"
	CarePart CareType = "part"
	CareFull CareType = "full"
)

// CareTypes lists every care type in display order.
var CareTypes = []CareType{CareSelf, CarePart, CareFull}

// Valid reports whether c is a known care type.
func (c CareType) Valid() bool {
	return slices.Contains(CareTypes, c)
}

// Facility is a key from the fixed facility vocabulary.
type Facility string

const (
	FacilityFeedRoom     Facility = "feed_room"
	FacilityTackRoom     Facility = "tack_room"
	FacilityFloatParking Facility = "float_parking"
	FacilityHotWash      Facility = "hot_wash"
	FacilityStables      Facility = "stables"
	FacilityTieUp        Facility = "tie_up"
)

// Facilities lists the whole facility vocabulary.
var Facilities = []Facility{
	FacilityFeedRoom,
	FacilityTackRoom,
	FacilityFloatParking,
	FacilityHotWash,
	FacilityStables,
	FacilityTieUp,
}

// Valid reports whether f belongs to the facility vocabulary.
func (f Facility) Valid() bool {
	return slices.Contains(Facilities, f)
}

// MaxPriceSentinel is the top of the price slider. A MaxWeeklyPrice equal to
// it means "300 or more", i.e. no upper bound, not exactly 300.
const MaxPriceSentinel = 300

var (
	// ErrRadiusWithoutSuburb is reported by Validate when a radius is set but
	// the criteria do not hold exactly one suburb location.
	ErrRadiusWithoutSuburb = errors.New("radius requires exactly one suburb location")

	// ErrNegative is reported for negative radius, price or spaces.
	ErrNegative = errors.New("value must not be negative")

	// ErrUnknownValue is reported for enum values outside their vocabulary.
	ErrUnknownValue = errors.New("unknown value")
)

// Criteria describes one agistment search. A Criteria value is treated as
// immutable once a search is executed with it; mutate a copy instead.
//
// The zero value is a valid "no filters" search.
type Criteria struct {
	// Locations are the selected suburbs, regions or states, in the order the
	// user picked them.
	Locations []Location `json:"locations"`

	// RadiusKm widens a single suburb selection. It has no meaning for other
	// selections; see Validate.
	RadiusKm int `json:"radiusKm"`

	// PaddockTypes limits results to properties offering these paddocks. It
	// also scopes which paddock prices count towards a listing's price.
	PaddockTypes []PaddockType `json:"paddockTypes"`

	// CareTypes limits results to properties offering these care levels.
	CareTypes []CareType `json:"careTypes"`

	// Facilities limits results to properties having all of these.
	Facilities []Facility `json:"facilities"`

	// MaxWeeklyPrice is the weekly price ceiling. Zero means no ceiling and
	// MaxPriceSentinel means open ended.
	MaxWeeklyPrice int `json:"maxWeeklyPrice"`

	// MinSpaces is the minimum number of available spaces. Zero means any.
	MinSpaces int `json:"minSpaces"`

	HasArena     bool `json:"hasArena"`
	HasRoundYard bool `json:"hasRoundYard"`
}

// Normalize returns a copy of c with every list field non-nil. Two criteria
// that only differ in nil versus empty lists normalize to deep-equal values.
func (c Criteria) Normalize() Criteria {
	out := c
	out.Locations = cloneOrEmpty(c.Locations)
	out.PaddockTypes = cloneOrEmpty(c.PaddockTypes)
	out.CareTypes = cloneOrEmpty(c.CareTypes)
	out.Facilities = cloneOrEmpty(c.Facilities)
	return out
}

func cloneOrEmpty[T any](in []T) []T {
	if len(in) == 0 {
		return []T{}
	}
	return slices.Clone(in)
}

// IsEmpty reports whether c applies no filter at all.
func (c Criteria) IsEmpty() bool {
	return len(c.Locations) == 0 &&
		c.RadiusKm == 0 &&
		len(c.PaddockTypes) == 0 &&
		len(c.CareTypes) == 0 &&
		len(c.Facilities) == 0 &&
		c.MaxWeeklyPrice == 0 &&
		c.MinSpaces == 0 &&
		!c.HasArena &&
		!c.HasRoundYard
}

// HasOpenEndedPrice reports whether the price ceiling is the "or more"
// sentinel rather than a real limit.
func (c Criteria) HasOpenEndedPrice() bool {
	return c.MaxWeeklyPrice >= MaxPriceSentinel
}

// PriceScope returns the distinct paddock types that should be considered
// when computing a listing's displayed price. An empty result means every
// paddock type counts.
func (c Criteria) PriceScope() []PaddockType {
	var scope []PaddockType
	for _, p := range c.PaddockTypes {
		if !slices.Contains(scope, p) {
			scope = append(scope, p)
		}
	}
	return scope
}

// RadiusApplies reports whether RadiusKm is meaningful for these locations.
func (c Criteria) RadiusApplies() bool {
	return len(c.Locations) == 1 && c.Locations[0].Type == LocationSuburb
}

// Validate checks c for values a caller should not submit. The token codec
// does not call it: inconsistent criteria still round-trip.
func (c Criteria) Validate() error {
	if c.RadiusKm < 0 {
		return fmt.Errorf("radius %d: %w", c.RadiusKm, ErrNegative)
	}
	if c.MaxWeeklyPrice < 0 {
		return fmt.Errorf("max weekly price %d: %w", c.MaxWeeklyPrice, ErrNegative)
	}
	if c.MinSpaces < 0 {
		return fmt.Errorf("min spaces %d: %w", c.MinSpaces, ErrNegative)
	}
	for _, l := range c.Locations {
		if !l.Type.Valid() {
			return fmt.Errorf("location type %q: %w", l.Type, ErrUnknownValue)
		}
	}
	for _, p := range c.PaddockTypes {
		if !p.Valid() {
			return fmt.Errorf("paddock type %q: %w", p, ErrUnknownValue)
		}
	}
	for _, ct := range c.CareTypes {
		if !ct.Valid() {
			return fmt.Errorf("care type %q: %w", ct, ErrUnknownValue)
		}
	}
	for _, f := range c.Facilities {
		if !f.Valid() {
			return fmt.Errorf("facility %q: %w", f, ErrUnknownValue)
		}
	}
	if c.RadiusKm > 0 && !c.RadiusApplies() {
		return ErrRadiusWithoutSuburb
	}
	return nil
}
