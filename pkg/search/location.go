package search

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/mmcloughlin/geohash"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LocationType discriminates the three kinds of location selector.
type LocationType string

const (
	LocationSuburb LocationType = "suburb"
	LocationRegion LocationType = "region"
	LocationState  LocationType = "state"
)

var locationTypes = []LocationType{LocationSuburb, LocationRegion, LocationState}

// Valid reports whether t is a known location type.
func (t LocationType) Valid() bool {
	return slices.Contains(locationTypes, t)
}

// suburbGeohashPrecision gives cells of roughly 150m, plenty for a map pin.
const suburbGeohashPrecision = 7

// Location is one location selector. Which fields are populated depends on
// Type: suburbs carry everything, regions a name and state, states only a
// state code. Geohash is used for display only.
type Location struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Postcode string       `json:"postcode"`
	State    string       `json:"state"`
	Region   string       `json:"region"`
	Geohash  string       `json:"geohash"`
	Type     LocationType `json:"type"`
}

// NewSuburb builds a suburb selector, deriving its geohash from the suburb
// centre.
func NewSuburb(id, name, postcode, state, region string, lat, lng float64) Location {
	return Location{
		ID:       id,
		Name:     name,
		Postcode: postcode,
		State:    strings.ToUpper(state),
		Region:   region,
		Geohash:  geohash.EncodeWithPrecision(lat, lng, suburbGeohashPrecision),
		Type:     LocationSuburb,
	}
}

// NewRegion builds a region selector.
func NewRegion(id, name, state string) Location {
	return Location{ID: id, Name: name, Region: name, State: strings.ToUpper(state), Type: LocationRegion}
}

// NewState builds a state selector from its code, e.g. "NSW".
func NewState(code string) Location {
	code = strings.ToUpper(code)
	return Location{ID: code, Name: code, State: code, Type: LocationState}
}

// Center decodes the geohash into the centre of its cell. ok is false when
// the location has no usable geohash.
func (l Location) Center() (lat, lng float64, ok bool) {
	if l.Geohash == "" {
		return 0, 0, false
	}
	if err := geohash.Validate(l.Geohash); err != nil {
		return 0, 0, false
	}
	lat, lng = geohash.DecodeCenter(l.Geohash)
	return lat, lng, true
}

// Label is the human readable form of the selector, e.g.
// "Kenthurst 2156, NSW", "Hills District, NSW" or "NSW".
func (l Location) Label() string {
	name := cases.Title(language.English).String(strings.ToLower(l.Name))
	switch l.Type {
	case LocationSuburb:
		if l.Postcode != "" {
			return fmt.Sprintf("%s %s, %s", name, l.Postcode, l.State)
		}
		return fmt.Sprintf("%s, %s", name, l.State)
	case LocationRegion:
		return fmt.Sprintf("%s, %s", name, l.State)
	case LocationState:
		return l.State
	}
	return name
}

// String renders the location in the pipe separated form accepted by
// ParseLocation: type|id|name|postcode|state|region|geohash.
func (l Location) String() string {
	return strings.Join([]string{
		string(l.Type), l.ID, l.Name, l.Postcode, l.State, l.Region, l.Geohash,
	}, "|")
}

// ParseLocation parses the form produced by Location.String. Trailing fields
// may be omitted. A bare state code such as "VIC" is accepted as a state
// selector.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(s, "|") {
		return NewState(s), nil
	}

	parts := strings.Split(s, "|")
	if len(parts) > 7 {
		return Location{}, fmt.Errorf("location %q: too many fields", s)
	}
	for len(parts) < 7 {
		parts = append(parts, "")
	}

	loc := Location{
		Type:     LocationType(strings.ToLower(parts[0])),
		ID:       parts[1],
		Name:     parts[2],
		Postcode: parts[3],
		State:    strings.ToUpper(parts[4]),
		Region:   parts[5],
		Geohash:  parts[6],
	}
	if !loc.Type.Valid() {
		return Location{}, fmt.Errorf("location %q: type %q: %w", s, parts[0], ErrUnknownValue)
	}
	return loc, nil
}

// ParseSuburb builds a suburb selector from "name|postcode|state|lat|lng",
// as typed on the command line. The id is derived from name and postcode.
func ParseSuburb(s string) (Location, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 5 {
		return Location{}, fmt.Errorf("suburb %q: want name|postcode|state|lat|lng", s)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	name, postcode, state := parts[0], parts[1], parts[2]
	if name == "" || state == "" {
		return Location{}, fmt.Errorf("suburb %q: name and state are required", s)
	}
	lat, err := strconv.ParseFloat(parts[3], 64)
	if err != nil || lat < -90 || lat > 90 {
		return Location{}, fmt.Errorf("suburb %q: invalid latitude %q", s, parts[3])
	}
	lng, err := strconv.ParseFloat(parts[4], 64)
	if err != nil || lng < -180 || lng > 180 {
		return Location{}, fmt.Errorf("suburb %q: invalid longitude %q", s, parts[4])
	}
	id := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	if postcode != "" {
		id += "-" + postcode
	}
	return NewSuburb(id, strings.ToUpper(name), postcode, state, "", lat, lng), nil
}
