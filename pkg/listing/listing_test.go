package listing

import (
	"testing"

	"github.com/kurtheiz/agistme/pkg/search"
)

func priced(id string, price int) Listing {
	l := Listing{ID: id, Paddocks: map[search.PaddockType]Offer{}}
	if price != ContactForPrice {
		l.Paddocks[search.PaddockPrivate] = Offer{Total: 2, Available: 1, WeeklyPrice: price}
	}
	return l
}

func TestMinWeeklyPriceScope(t *testing.T) {
	l := Listing{
		ID: "kenthurst",
		Paddocks: map[search.PaddockType]Offer{
			search.PaddockPrivate: {Total: 2, Available: 1, WeeklyPrice: 120},
			search.PaddockShared:  {Total: 3, Available: 3, WeeklyPrice: 80},
			search.PaddockGroup:   {Total: 1, Available: 0, WeeklyPrice: 0},
		},
	}

	tests := []struct {
		name  string
		scope []search.PaddockType
		want  int
	}{
		{"all types", nil, 80},
		{"private only", []search.PaddockType{search.PaddockPrivate}, 120},
		{"private and shared", []search.PaddockType{search.PaddockPrivate, search.PaddockShared}, 80},
		{"group has no price", []search.PaddockType{search.PaddockGroup}, ContactForPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.MinWeeklyPrice(tt.scope); got != tt.want {
				t.Fatalf("MinWeeklyPrice(%v) = %d, want %d", tt.scope, got, tt.want)
			}
		})
	}
}

func TestMinWeeklyPriceIgnoresEmptyOffers(t *testing.T) {
	l := Listing{Paddocks: map[search.PaddockType]Offer{
		search.PaddockShared: {Total: 0, WeeklyPrice: 10},
	}}
	if got := l.MinWeeklyPrice(nil); got != ContactForPrice {
		t.Fatalf("offer without paddocks should not count, got %d", got)
	}
	if got := (Listing{}).MinWeeklyPrice(nil); got != ContactForPrice {
		t.Fatalf("listing without paddocks should be contact for price, got %d", got)
	}
}

func TestAvailableSpaces(t *testing.T) {
	l := Listing{Paddocks: map[search.PaddockType]Offer{
		search.PaddockPrivate: {Total: 2, Available: 1},
		search.PaddockGroup:   {Total: 5, Available: 4},
	}}
	if got := l.AvailableSpaces(nil); got != 5 {
		t.Fatalf("AvailableSpaces(all) = %d, want 5", got)
	}
	if got := l.AvailableSpaces([]search.PaddockType{search.PaddockGroup}); got != 4 {
		t.Fatalf("AvailableSpaces(group) = %d, want 4", got)
	}
}

func ids(items []Listing) []string {
	out := make([]string, len(items))
	for i, l := range items {
		out[i] = l.ID
	}
	return out
}

func assertOrder(t *testing.T, got []Listing, want ...string) {
	t.Helper()
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, gotIDs)
		}
	}
}

func arrival() []Listing {
	return []Listing{
		priced("A", 50),
		priced("B", ContactForPrice),
		priced("C", 30),
		priced("D", ContactForPrice),
		priced("E", 50),
	}
}

func TestSortAscendingIsStableWithContactLast(t *testing.T) {
	assertOrder(t, Sort(arrival(), SortPriceAsc, nil), "C", "A", "E", "B", "D")
}

func TestSortDescendingReversesAscending(t *testing.T) {
	// Contact-for-price listings come first in descending order. This
	// follows from reversing the ascending list and is intended.
	assertOrder(t, Sort(arrival(), SortPriceDesc, nil), "D", "B", "E", "A", "C")
}

func TestSortDefaultKeepsArrivalOrder(t *testing.T) {
	assertOrder(t, Sort(arrival(), SortDefault, nil), "A", "B", "C", "D", "E")
	assertOrder(t, Sort(arrival(), "", nil), "A", "B", "C", "D", "E")
}

func TestSortDoesNotModifyInput(t *testing.T) {
	in := arrival()
	_ = Sort(in, SortPriceAsc, nil)
	assertOrder(t, in, "A", "B", "C", "D", "E")
}

func TestSortUsesScope(t *testing.T) {
	cheapShared := Listing{ID: "shared", Paddocks: map[search.PaddockType]Offer{
		search.PaddockShared:  {Total: 1, WeeklyPrice: 40},
		search.PaddockPrivate: {Total: 1, WeeklyPrice: 200},
	}}
	midPrivate := Listing{ID: "private", Paddocks: map[search.PaddockType]Offer{
		search.PaddockPrivate: {Total: 1, WeeklyPrice: 100},
	}}
	items := []Listing{midPrivate, cheapShared}

	assertOrder(t, Sort(items, SortPriceAsc, nil), "shared", "private")
	assertOrder(t, Sort(items, SortPriceAsc, []search.PaddockType{search.PaddockPrivate}), "private", "shared")
}

func TestParseSortMode(t *testing.T) {
	for in, want := range map[string]SortMode{
		"":           SortDefault,
		"default":    SortDefault,
		"price_asc":  SortPriceAsc,
		"price_desc": SortPriceDesc,
	} {
		got, err := ParseSortMode(in)
		if err != nil || got != want {
			t.Errorf("ParseSortMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseSortMode("cheapest"); err == nil {
		t.Fatalf("expected error for unknown sort mode")
	}
}

func TestPageExhausted(t *testing.T) {
	cursor := "c1"
	if (Page{NextCursor: &cursor}).Exhausted() {
		t.Fatalf("page with cursor should not be exhausted")
	}
	if !(Page{}).Exhausted() {
		t.Fatalf("page without cursor should be exhausted")
	}
}
