// Package searchtoken converts search criteria to and from the compact token
// used as a search's identity in links, saved searches and cache keys.
//
// A token is unpadded URL-safe base64 of a short-key JSON object. The key
// names, their order and the positional layout of locations are a wire
// format: changing any of them breaks every link and saved search already
// issued, so changes must bump Version and keep decoding older versions.
//
// Current layout (version 2):
//
//	{"v":2,
//	 "l":[[id,name,postcode,state,region,geohash,type],...],
//	 "r":radiusKm,
//	 "p":[paddockType,...], "c":[careType,...], "f":[facility,...],
//	 "m":maxWeeklyPrice, "s":minSpaces,
//	 "a":hasArena, "y":hasRoundYard}
//
// Version 1 tokens carry the same keys without "v" and use the standard
// base64 alphabet with padding. Decode accepts both.
package searchtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kurtheiz/agistme/pkg/log"
	"github.com/kurtheiz/agistme/pkg/search"
)

// Version is the schema version written by Encode.
const Version = 2

// legacyVersion is assumed for tokens without a "v" key.
const legacyVersion = 1

// locationFields is the arity of a positional location tuple.
const locationFields = 7

var logger = log.ForService("searchtoken")

var (
	// ErrMalformed wraps every reason a token could not be decoded.
	ErrMalformed = errors.New("malformed search token")

	// ErrUnsupportedVersion is reported for tokens from a newer schema.
	ErrUnsupportedVersion = errors.New("unsupported search token version")
)

// wireCriteria is the serialized form. Field order is the wire order.
type wireCriteria struct {
	V int        `json:"v"`
	L [][]string `json:"l"`
	R int        `json:"r"`
	P []string   `json:"p"`
	C []string   `json:"c"`
	F []string   `json:"f"`
	M int        `json:"m"`
	S int        `json:"s"`
	A bool       `json:"a"`
	Y bool       `json:"y"`
}

// wireInput mirrors wireCriteria for decoding; pointers let required keys be
// told apart from zero values.
type wireInput struct {
	V *int        `json:"v"`
	L *[][]string `json:"l"`
	R int         `json:"r"`
	P []string    `json:"p"`
	C []string    `json:"c"`
	F []string    `json:"f"`
	M int         `json:"m"`
	S int         `json:"s"`
	A bool        `json:"a"`
	Y bool        `json:"y"`
}

// Encode returns the token for c. Structurally equal criteria always yield
// byte-identical tokens. Encode never fails: every field is defaulted before
// serialization and the wire struct only holds strings, ints and bools.
func Encode(c search.Criteria) string {
	c = c.Normalize()

	w := wireCriteria{
		V: Version,
		L: make([][]string, 0, len(c.Locations)),
		R: c.RadiusKm,
		P: make([]string, 0, len(c.PaddockTypes)),
		C: make([]string, 0, len(c.CareTypes)),
		F: make([]string, 0, len(c.Facilities)),
		M: c.MaxWeeklyPrice,
		S: c.MinSpaces,
		A: c.HasArena,
		Y: c.HasRoundYard,
	}
	for _, l := range c.Locations {
		w.L = append(w.L, []string{l.ID, l.Name, l.Postcode, l.State, l.Region, l.Geohash, string(l.Type)})
	}
	for _, p := range c.PaddockTypes {
		w.P = append(w.P, string(p))
	}
	for _, ct := range c.CareTypes {
		w.C = append(w.C, string(ct))
	}
	for _, f := range c.Facilities {
		w.F = append(w.F, string(f))
	}

	data, err := json.Marshal(w)
	if err != nil {
		// Unreachable for this struct shape.
		panic(fmt.Sprintf("searchtoken: marshaling criteria: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decoded is the outcome of Decode.
type Decoded struct {
	// Criteria is the decoded search, or the empty search when Recovered.
	Criteria search.Criteria

	// Version is the schema version the token was written with. It is zero
	// when the token could not be read.
	Version int

	// Recovered is true when the token was corrupt and Criteria holds the
	// defaults instead. It lets callers tell a broken shared link apart from
	// a search that genuinely has no filters.
	Recovered bool

	// Err is the decoding failure behind Recovered.
	Err error
}

// Decode parses a token. It never fails: a corrupt token is logged and
// decodes to the empty criteria with Recovered set. An empty token is the
// empty search and is not treated as corrupt.
func Decode(token string) Decoded {
	token = strings.TrimSpace(token)
	if token == "" {
		return Decoded{Criteria: search.Criteria{}.Normalize(), Version: Version}
	}

	c, version, err := decode(token)
	if err != nil {
		logger.With("token", abbreviate(token)).Warnf("using default criteria: %v", err)
		return Decoded{Criteria: search.Criteria{}.Normalize(), Recovered: true, Err: err}
	}
	return Decoded{Criteria: c, Version: version}
}

// Equal reports whether two criteria identify the same search.
func Equal(a, b search.Criteria) bool {
	return Encode(a) == Encode(b)
}

func decode(token string) (search.Criteria, int, error) {
	data, err := decodeBase64(token)
	if err != nil {
		return search.Criteria{}, 0, fmt.Errorf("%w: base64: %v", ErrMalformed, err)
	}

	var w wireInput
	if err := json.Unmarshal(data, &w); err != nil {
		return search.Criteria{}, 0, fmt.Errorf("%w: json: %v", ErrMalformed, err)
	}

	version := legacyVersion
	if w.V != nil {
		version = *w.V
	}
	if version < legacyVersion || version > Version {
		return search.Criteria{}, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if w.L == nil {
		return search.Criteria{}, 0, fmt.Errorf("%w: missing locations", ErrMalformed)
	}

	c := search.Criteria{
		Locations:      make([]search.Location, 0, len(*w.L)),
		RadiusKm:       w.R,
		PaddockTypes:   make([]search.PaddockType, 0, len(w.P)),
		CareTypes:      make([]search.CareType, 0, len(w.C)),
		Facilities:     make([]search.Facility, 0, len(w.F)),
		MaxWeeklyPrice: w.M,
		MinSpaces:      w.S,
		HasArena:       w.A,
		HasRoundYard:   w.Y,
	}
	for i, tuple := range *w.L {
		if len(tuple) != locationFields {
			return search.Criteria{}, 0, fmt.Errorf("%w: location %d has %d fields", ErrMalformed, i, len(tuple))
		}
		loc := search.Location{
			ID:       tuple[0],
			Name:     tuple[1],
			Postcode: tuple[2],
			State:    tuple[3],
			Region:   tuple[4],
			Geohash:  tuple[5],
			Type:     search.LocationType(tuple[6]),
		}
		c.Locations = append(c.Locations, loc)
	}
	// Location types and enum values outside today's vocabulary are kept so
	// newer links survive a round trip through an older client;
	// Criteria.Validate flags them.
	for _, p := range w.P {
		c.PaddockTypes = append(c.PaddockTypes, search.PaddockType(p))
	}
	for _, ct := range w.C {
		c.CareTypes = append(c.CareTypes, search.CareType(ct))
	}
	for _, f := range w.F {
		c.Facilities = append(c.Facilities, search.Facility(f))
	}

	return c, version, nil
}

// decodeBase64 accepts standard and URL-safe alphabets, with or without
// padding. A '+' turned into a space by query-string decoding is restored.
func decodeBase64(token string) ([]byte, error) {
	normalized := strings.NewReplacer("+", "-", "/", "_", " ", "-").Replace(token)
	normalized = strings.TrimRight(normalized, "=")
	return base64.RawURLEncoding.DecodeString(normalized)
}

func abbreviate(token string) string {
	const max = 24
	if len(token) <= max {
		return token
	}
	return token[:max] + "..."
}
