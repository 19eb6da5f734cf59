package session

import (
	"testing"
	"time"

	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/listing"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(t *testing.T, policy cache.Policy) (*Store, *cache.Cache, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := cache.New(cache.NewMemoryBackend(), policy, cache.WithClock(clk.now))
	return NewStore(c), c, clk
}

func cursor(s string) *string { return &s }

func page(next *string, ids ...string) listing.Page {
	p := listing.Page{NextCursor: next}
	for _, id := range ids {
		p.Items = append(p.Items, listing.Listing{ID: id})
	}
	return p
}

func ids(items []listing.Listing) []string {
	out := make([]string, len(items))
	for i, l := range items {
		out[i] = l.ID
	}
	return out
}

func equalIDs(got []listing.Listing, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSetResultAndFreshness(t *testing.T) {
	s, _, clk := newTestStore(t, cache.QueryPolicy)

	s.SetResult("tokA", page(cursor("c1"), "a", "b"))
	rs, ok := s.GetCachedIfFresh("tokA")
	if !ok || !equalIDs(rs.Items, "a", "b") || rs.Exhausted() {
		t.Fatalf("unexpected cached set: %+v %v", rs, ok)
	}
	if _, ok := s.GetCachedIfFresh("tokB"); ok {
		t.Fatalf("different token must not hit")
	}

	clk.t = clk.t.Add(6 * time.Minute)
	if _, ok := s.GetCachedIfFresh("tokA"); ok {
		t.Fatalf("set older than five minutes must not be fresh")
	}
	if _, f := s.GetCached("tokA"); f != cache.Stale {
		t.Fatalf("GetCached = %v, want stale", f)
	}

	s.SetResult("tokA", page(nil, "c"))
	if rs, ok := s.GetCachedIfFresh("tokA"); !ok || !equalIDs(rs.Items, "c") {
		t.Fatalf("SetResult must replace and restamp: %+v %v", rs, ok)
	}
}

func TestAppendPage(t *testing.T) {
	s, _, _ := newTestStore(t, cache.QueryPolicy)

	if s.AppendPage(page(nil, "x")) {
		t.Fatalf("AppendPage without a token must be a no-op")
	}
	if _, ok := s.Current(); ok {
		t.Fatalf("no-op append created a result set")
	}

	s.SetResult("tok", page(cursor("c1"), "a"))
	if !s.AppendPage(page(cursor("c2"), "b", "c")) || !s.AppendPage(page(nil, "d")) {
		t.Fatalf("AppendPage returned false with a current token")
	}
	rs, _ := s.Current()
	if !equalIDs(rs.Items, "a", "b", "c", "d") || !rs.Exhausted() {
		t.Fatalf("unexpected accumulation: %v exhausted=%v", ids(rs.Items), rs.Exhausted())
	}
}

func TestExpiredSetIsNotRestored(t *testing.T) {
	s, c, clk := newTestStore(t, cache.QueryPolicy)
	s.SetResult("tok", page(cursor("c1"), "a"))

	clk.t = clk.t.Add(time.Hour)
	c.Clear("")
	s2 := NewStore(c)
	if _, ok := s2.GetCachedIfFresh("tok"); ok {
		t.Fatalf("expired set must not be restored")
	}
	if s2.AppendPage(page(nil, "b")) {
		t.Fatalf("fresh store has no token; append must be a no-op")
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	s, _, _ := newTestStore(t, cache.QueryPolicy)
	s.SetResult("tok", page(nil, "a", "b"))

	rs, _ := s.Current()
	rs.Items[0].ID = "mutated"
	again, _ := s.Current()
	if again.Items[0].ID != "a" {
		t.Fatalf("Current leaked internal slice")
	}
}

func TestScrollPositions(t *testing.T) {
	s, _, _ := newTestStore(t, cache.QueryPolicy)

	if _, ok := s.GetScrollPosition("key1"); ok {
		t.Fatalf("unexpected scroll position")
	}
	s.SaveScrollPosition("key1", 1200)
	s.SaveScrollPosition("key2", 40)
	if px, ok := s.GetScrollPosition("key1"); !ok || px != 1200 {
		t.Fatalf("GetScrollPosition = %d, %v", px, ok)
	}

	s.Reset()
	if _, ok := s.GetScrollPosition("key1"); ok {
		t.Fatalf("Reset must clear scroll positions")
	}
}

func TestResetClearsCurrent(t *testing.T) {
	s, c, _ := newTestStore(t, cache.LastSearchPolicy)
	s.SetResult("tok", page(nil, "a"))
	s.Reset()

	if rs, ok := s.Current(); ok || rs.Token != "" {
		t.Fatalf("token survived Reset")
	}
	if _, ok := s.Current(); ok {
		t.Fatalf("result set survived Reset")
	}
	if _, ok := NewStore(c).LastSearch(); ok {
		t.Fatalf("last search pointer survived Reset")
	}
	// The per-token cache is kept, so reopening the token does not refetch.
	if _, ok := s.GetCachedIfFresh("tok"); !ok {
		t.Fatalf("per-token cache entry was dropped by Reset")
	}
}

func TestLastSearchAcrossStores(t *testing.T) {
	s, c, clk := newTestStore(t, cache.LastSearchPolicy)
	s.SetResult("tok", page(cursor("c1"), "a"))
	s.AppendPage(page(nil, "b"))

	restored := NewStore(c)
	rs, ok := restored.LastSearch()
	if !ok || rs.Token != "tok" || !equalIDs(rs.Items, "a", "b") || !rs.Exhausted() {
		t.Fatalf("LastSearch = %+v, %v", rs, ok)
	}
	if cur, ok := restored.Current(); !ok || cur.Token != "tok" {
		t.Fatalf("restored set did not become current")
	}

	clk.t = clk.t.Add(25 * time.Hour)
	if _, ok := NewStore(c).LastSearch(); ok {
		t.Fatalf("last search older than a day must not be restored")
	}
}

func TestRestoredFreshnessCountsFromFirstPage(t *testing.T) {
	s, c, clk := newTestStore(t, cache.QueryPolicy)
	s.SetResult("tok", page(cursor("c1"), "a"))
	clk.t = clk.t.Add(4 * time.Minute)
	s.AppendPage(page(nil, "b"))
	clk.t = clk.t.Add(2 * time.Minute)

	if _, ok := NewStore(c).GetCachedIfFresh("tok"); ok {
		t.Fatalf("append must not extend the freshness window")
	}
}

func TestPruneKeepsOtherNamespaces(t *testing.T) {
	s, c, clk := newTestStore(t, cache.QueryPolicy)
	s.SetResult("tok", page(nil, "a"))
	c.Put("seen", "saved-1", []byte(`["a"]`))
	clk.t = clk.t.Add(25 * time.Hour)

	n, err := s.Prune()
	if err != nil || n != 2 {
		t.Fatalf("Prune = %d, %v; want results and meta entries", n, err)
	}
	stats, _ := c.Stats()
	if len(stats) != 1 || stats[0].Namespace != "seen" {
		t.Fatalf("unexpected remaining namespaces: %+v", stats)
	}
}

func TestLastSearchOutlivesQueryWindow(t *testing.T) {
	s, c, clk := newTestStore(t, cache.QueryPolicy)
	s.SetResult("tok", page(cursor("c1"), "a"))

	clk.t = clk.t.Add(2 * time.Hour)
	if n, err := s.Prune(); err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v; want only the result set", n, err)
	}

	restored := NewStore(c)
	if _, ok := restored.GetCachedIfFresh("tok"); ok {
		t.Fatalf("result set past the query window must not be fresh")
	}
	rs, ok := restored.LastSearch()
	if !ok || rs.Token != "tok" || !equalIDs(rs.Items, "a") || rs.Exhausted() {
		t.Fatalf("LastSearch = %+v, %v", rs, ok)
	}
	if cur, ok := restored.Current(); !ok || cur.Token != "tok" {
		t.Fatalf("restored set did not become current")
	}
}

func TestLastSearchPolicyOption(t *testing.T) {
	s, c, clk := newTestStore(t, cache.QueryPolicy)
	s.SetResult("tok", page(nil, "a"))
	clk.t = clk.t.Add(2 * time.Hour)

	short := cache.Policy{FreshFor: time.Hour, RetainFor: time.Hour}
	if _, ok := NewStore(c, WithLastSearchPolicy(short)).LastSearch(); ok {
		t.Fatalf("last search older than the configured window was restored")
	}
	if _, ok := NewStore(c).LastSearch(); !ok {
		t.Fatalf("default window must restore a two hour old search")
	}
}
