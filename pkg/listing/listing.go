// Package listing defines the listing summaries returned by searches and the
// display-time ordering applied to them.
package listing

import (
	"time"

	"github.com/kurtheiz/agistme/pkg/search"
)

// ContactForPrice is the computed price of a listing that has no weekly
// price for any paddock type in scope.
const ContactForPrice = -1

// Offer describes what a property offers for one paddock type.
type Offer struct {
	Total       int `json:"totalPaddocks"`
	Available   int `json:"availableSpaces"`
	WeeklyPrice int `json:"weeklyPrice"`
}

// Listing is the summary of an agistment property as shown in search
// results.
type Listing struct {
	ID           string                       `json:"id"`
	Name         string                       `json:"name"`
	Suburb       string                       `json:"suburb"`
	Postcode     string                       `json:"postcode"`
	State        string                       `json:"state"`
	Region       string                       `json:"region"`
	Geohash      string                       `json:"geohash"`
	Paddocks     map[search.PaddockType]Offer `json:"paddocks"`
	CareTypes    []search.CareType            `json:"careTypes"`
	Facilities   []search.Facility            `json:"facilities"`
	HasArena     bool                         `json:"hasArena"`
	HasRoundYard bool                         `json:"hasRoundYard"`
	PhotoURLs    []string                     `json:"photoUrls,omitempty"`
	UpdatedAt    time.Time                    `json:"updatedAt"`
}

// Location returns the listing's suburb as a location selector.
func (l Listing) Location() search.Location {
	return search.Location{
		Name:     l.Suburb,
		Postcode: l.Postcode,
		State:    l.State,
		Region:   l.Region,
		Geohash:  l.Geohash,
		Type:     search.LocationSuburb,
	}
}

// MinWeeklyPrice returns the lowest weekly price over the paddock types in
// scope, or ContactForPrice. An empty scope means every paddock type counts.
// Offers with no paddocks or no price are ignored.
func (l Listing) MinWeeklyPrice(scope []search.PaddockType) int {
	if len(scope) == 0 {
		scope = search.PaddockTypes
	}
	price := ContactForPrice
	for _, p := range scope {
		offer, ok := l.Paddocks[p]
		if !ok || offer.Total <= 0 || offer.WeeklyPrice <= 0 {
			continue
		}
		if price == ContactForPrice || offer.WeeklyPrice < price {
			price = offer.WeeklyPrice
		}
	}
	return price
}

// AvailableSpaces sums the free spaces over the paddock types in scope.
func (l Listing) AvailableSpaces(scope []search.PaddockType) int {
	if len(scope) == 0 {
		scope = search.PaddockTypes
	}
	total := 0
	for _, p := range scope {
		total += l.Paddocks[p].Available
	}
	return total
}

// Page is one page of search results. A nil NextCursor means there are no
// further pages.
type Page struct {
	Items      []Listing `json:"results"`
	NextCursor *string   `json:"nextToken"`
}

// Exhausted reports whether this is the last page.
func (p Page) Exhausted() bool {
	return p.NextCursor == nil
}
