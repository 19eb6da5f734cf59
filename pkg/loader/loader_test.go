package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/listing"
	"github.com/kurtheiz/agistme/pkg/search"
	"github.com/kurtheiz/agistme/pkg/searchtoken"
	"github.com/kurtheiz/agistme/pkg/session"
)

func newStore() *session.Store {
	return session.NewStore(cache.New(cache.NewMemoryBackend(), cache.QueryPolicy))
}

func cursor(s string) *string { return &s }

func priced(id string, price int) listing.Listing {
	return listing.Listing{
		ID:       id,
		Paddocks: map[search.PaddockType]listing.Offer{search.PaddockPrivate: {Total: 1, WeeklyPrice: price}},
	}
}

func itemIDs(items []listing.Listing) []string {
	out := make([]string, len(items))
	for i, l := range items {
		out[i] = l.ID
	}
	return out
}

func assertIDs(t *testing.T, got []listing.Listing, want ...string) {
	t.Helper()
	g := itemIDs(got)
	if len(g) != len(want) {
		t.Fatalf("ids = %v, want %v", g, want)
	}
	for i := range g {
		if g[i] != want[i] {
			t.Fatalf("ids = %v, want %v", g, want)
		}
	}
}

// scriptedFetcher serves pages keyed by cursor ("" for the first page) and
// counts calls per token.
type scriptedFetcher struct {
	mu    sync.Mutex
	pages map[string]listing.Page
	calls map[string]int
	err   error
}

func newScripted(pages map[string]listing.Page) *scriptedFetcher {
	return &scriptedFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *scriptedFetcher) FetchPage(_ context.Context, token string, c *string) (listing.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[token]++
	if f.err != nil {
		return listing.Page{}, f.err
	}
	key := ""
	if c != nil {
		key = *c
	}
	return f.pages[key], nil
}

func (f *scriptedFetcher) count(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[token]
}

// gatedFetcher blocks every call until the test replies to it.
type gatedCall struct {
	token  string
	cursor *string
	reply  chan gatedReply
}

type gatedReply struct {
	page listing.Page
	err  error
}

type gatedFetcher struct {
	calls chan *gatedCall
}

func newGated() *gatedFetcher {
	return &gatedFetcher{calls: make(chan *gatedCall)}
}

func (g *gatedFetcher) FetchPage(ctx context.Context, token string, c *string) (listing.Page, error) {
	call := &gatedCall{token: token, cursor: c, reply: make(chan gatedReply)}
	g.calls <- call
	r := <-call.reply
	return r.page, r.err
}

func (g *gatedFetcher) next(t *testing.T) *gatedCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func TestSortModeNeverRefetches(t *testing.T) {
	f := newScripted(map[string]listing.Page{
		"": {Items: []listing.Listing{priced("a", 200), priced("b", 100)}},
	})
	l := New(f, newStore())
	ctx := context.Background()

	v, err := l.Open(ctx, "tokT")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	assertIDs(t, v.Items, "a", "b")

	assertIDs(t, l.SetSortMode(listing.SortPriceAsc).Items, "b", "a")
	assertIDs(t, l.SetSortMode(listing.SortPriceDesc).Items, "a", "b")
	assertIDs(t, l.SetSortMode(listing.SortDefault).Items, "a", "b")

	if n := f.count("tokT"); n != 1 {
		t.Fatalf("expected exactly one fetch for tokT, got %d", n)
	}
}

func TestReopeningCachedTokenDoesNotFetch(t *testing.T) {
	f := newScripted(map[string]listing.Page{"": {Items: []listing.Listing{priced("a", 1)}}})
	store := newStore()
	l := New(f, store)
	ctx := context.Background()

	l.Open(ctx, "tokA")
	l.Open(ctx, "tokB")
	v, err := l.Open(ctx, "tokA")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if n := f.count("tokA"); n != 1 {
		t.Fatalf("tokA fetched %d times, want 1", n)
	}
	assertIDs(t, v.Items, "a")
}

func TestPaginationAccumulates(t *testing.T) {
	f := newScripted(map[string]listing.Page{
		"":   {Items: []listing.Listing{priced("p1a", 300), priced("p1b", 100)}, NextCursor: cursor("c1")},
		"c1": {Items: []listing.Listing{priced("p2a", 50)}, NextCursor: cursor("c2")},
		"c2": {Items: []listing.Listing{priced("p3a", 10), priced("p3b", 400)}},
	})
	l := New(f, newStore())
	ctx := context.Background()

	v, _ := l.Open(ctx, "tok")
	if v.State != HasResults {
		t.Fatalf("state after first page = %v", v.State)
	}
	for i := 0; i < 2; i++ {
		ok, err := l.More(ctx)
		if err != nil || !ok {
			t.Fatalf("More #%d = %v, %v", i+1, ok, err)
		}
	}

	v = l.View()
	assertIDs(t, v.Items, "p1a", "p1b", "p2a", "p3a", "p3b")
	if v.State != Exhausted || !v.Exhausted {
		t.Fatalf("expected exhausted after third page, got %v", v.State)
	}

	ok, err := l.More(ctx)
	if ok || err != nil {
		t.Fatalf("More after exhaustion = %v, %v", ok, err)
	}
	if n := f.count("tok"); n != 3 {
		t.Fatalf("expected 3 fetches, got %d", n)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	g := newGated()
	l := New(g, newStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Open(ctx, "tokA")
	}()
	callA := g.next(t)

	bDone := make(chan View)
	go func() {
		v, _ := l.Open(ctx, "tokB")
		bDone <- v
	}()
	callB := g.next(t)
	if callA.token != "tokA" || callB.token != "tokB" {
		t.Fatalf("unexpected fetch order: %s, %s", callA.token, callB.token)
	}

	callB.reply <- gatedReply{page: listing.Page{Items: []listing.Listing{priced("b1", 1)}}}
	<-bDone
	callA.reply <- gatedReply{page: listing.Page{Items: []listing.Listing{priced("a1", 1)}, NextCursor: cursor("ca")}}
	wg.Wait()

	v := l.View()
	if v.Token != "tokB" {
		t.Fatalf("active token = %q, want tokB", v.Token)
	}
	assertIDs(t, v.Items, "b1")
	if v.State != Exhausted {
		t.Fatalf("state = %v, want exhausted from B's page", v.State)
	}
}

func TestRefreshSuppressedWhileInFlight(t *testing.T) {
	g := newGated()
	l := New(g, newStore())
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Open(ctx, "tok")
	}()
	call := g.next(t)

	if ok, err := l.Refresh(ctx); ok || err != nil {
		t.Fatalf("Refresh while in flight = %v, %v", ok, err)
	}
	if ok, err := l.More(ctx); ok || err != nil {
		t.Fatalf("More while in flight = %v, %v", ok, err)
	}

	call.reply <- gatedReply{page: listing.Page{Items: []listing.Listing{priced("a", 1)}, NextCursor: cursor("c1")}}
	<-done

	select {
	case extra := <-g.calls:
		t.Fatalf("unexpected extra fetch for %s", extra.token)
	default:
	}
	assertIDs(t, l.View().Items, "a")
}

func TestRefreshReplacesAccumulation(t *testing.T) {
	f := newScripted(map[string]listing.Page{
		"":   {Items: []listing.Listing{priced("a", 1)}, NextCursor: cursor("c1")},
		"c1": {Items: []listing.Listing{priced("b", 1)}},
	})
	l := New(f, newStore())
	ctx := context.Background()

	l.Open(ctx, "tok")
	l.More(ctx)
	ok, err := l.Refresh(ctx)
	if !ok || err != nil {
		t.Fatalf("Refresh = %v, %v", ok, err)
	}
	v := l.View()
	assertIDs(t, v.Items, "a")
	if v.State != HasResults {
		t.Fatalf("state after refresh = %v", v.State)
	}
}

func TestFetchFailureKeepsLastGood(t *testing.T) {
	f := newScripted(map[string]listing.Page{
		"": {Items: []listing.Listing{priced("a", 1)}, NextCursor: cursor("c1")},
	})
	l := New(f, newStore())
	ctx := context.Background()
	l.Open(ctx, "tok")

	f.err = errors.New("boom")
	ok, err := l.More(ctx)
	if ok || err == nil {
		t.Fatalf("More = %v, %v; want error", ok, err)
	}
	v := l.View()
	if v.State != HasResults {
		t.Fatalf("state after failed More = %v, want has_results", v.State)
	}
	assertIDs(t, v.Items, "a")

	if _, err := l.Open(ctx, "other"); err == nil {
		t.Fatalf("expected first page failure")
	}
	if l.State() != Idle {
		t.Fatalf("state after failed first page = %v, want idle", l.State())
	}
	if len(l.View().Items) != 0 {
		t.Fatalf("failed search must not show previous search's results")
	}

	f.err = nil
	if _, err := l.Open(ctx, "other"); err != nil {
		t.Fatalf("retrying failed open: %v", err)
	}
	if f.count("other") != 2 {
		t.Fatalf("expected the failed token to be refetched")
	}
}

func TestResetDiscardsInFlight(t *testing.T) {
	g := newGated()
	store := newStore()
	l := New(g, store)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Open(ctx, "tok")
	}()
	call := g.next(t)
	l.Reset()
	call.reply <- gatedReply{page: listing.Page{Items: []listing.Listing{priced("a", 1)}}}
	<-done

	if _, ok := store.Current(); l.State() != Idle || ok {
		t.Fatalf("response arriving after Reset was applied")
	}
}

func TestSearchDecodesCriteriaForPriceScope(t *testing.T) {
	shared := listing.Listing{ID: "s", Paddocks: map[search.PaddockType]listing.Offer{
		search.PaddockShared:  {Total: 1, WeeklyPrice: 40},
		search.PaddockPrivate: {Total: 1, WeeklyPrice: 500},
	}}
	private := priced("p", 100)
	f := newScripted(map[string]listing.Page{"": {Items: []listing.Listing{shared, private}}})

	l := New(f, newStore())
	c := search.Criteria{PaddockTypes: []search.PaddockType{search.PaddockPrivate}}
	v, err := l.Search(context.Background(), c)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if v.Token != searchtoken.Encode(c) {
		t.Fatalf("view token does not match encoded criteria")
	}
	assertIDs(t, l.SetSortMode(listing.SortPriceAsc).Items, "p", "s")
}

func TestResumeLastSearch(t *testing.T) {
	f := newScripted(map[string]listing.Page{"": {Items: []listing.Listing{priced("a", 1)}, NextCursor: cursor("c1")}})
	c := cache.New(cache.NewMemoryBackend(), cache.LastSearchPolicy)
	New(f, session.NewStore(c)).Open(context.Background(), "tok")

	resumed := New(f, session.NewStore(c))
	v, ok := resumed.Resume()
	if !ok || v.Token != "tok" || v.State != HasResults {
		t.Fatalf("Resume = %+v, %v", v, ok)
	}
	assertIDs(t, v.Items, "a")
}

func TestReopeningExpiredTokenRefetches(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := cache.New(cache.NewMemoryBackend(), cache.QueryPolicy, cache.WithClock(func() time.Time { return now }))
	f := newScripted(map[string]listing.Page{"": {Items: []listing.Listing{priced("a", 1)}}})
	l := New(f, session.NewStore(c))
	ctx := context.Background()

	if _, err := l.Open(ctx, "tok"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	now = now.Add(4 * time.Minute)
	if _, err := l.Open(ctx, "tok"); err != nil || f.count("tok") != 1 {
		t.Fatalf("fresh reopen fetched: calls=%d err=%v", f.count("tok"), err)
	}

	now = now.Add(2 * time.Hour)
	f.pages[""] = listing.Page{Items: []listing.Listing{priced("b", 1)}}
	v, err := l.Open(ctx, "tok")
	if err != nil {
		t.Fatalf("Open after expiry: %v", err)
	}
	if f.count("tok") != 2 {
		t.Fatalf("calls = %d, want a refetch once results expired", f.count("tok"))
	}
	assertIDs(t, v.Items, "b")
}

func TestExpiredRefetchFailureKeepsStaleResults(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := cache.New(cache.NewMemoryBackend(), cache.QueryPolicy, cache.WithClock(func() time.Time { return now }))
	f := newScripted(map[string]listing.Page{"": {Items: []listing.Listing{priced("a", 1)}, NextCursor: cursor("c1")}})
	l := New(f, session.NewStore(c))
	ctx := context.Background()

	if _, err := l.Open(ctx, "tok"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	now = now.Add(10 * time.Minute)
	f.err = errors.New("offline")
	v, err := l.Open(ctx, "tok")
	if err == nil {
		t.Fatalf("expected the refetch error")
	}
	if v.State != HasResults {
		t.Fatalf("state = %v, want has_results", v.State)
	}
	assertIDs(t, v.Items, "a")
}

func TestSearchEqualCriteriaKeepsLegacyToken(t *testing.T) {
	const legacy = "eyJsIjpbWyJ4IiwiS3VycmFqb25nIEhpbGxzIiwiMjE1NyIsIk5TVyIsIkhpbGxzIiwicjNneH4/Iiwic3VidXJiIl1dLCJyIjoxMCwicCI6WyJncm91cCJdLCJjIjpbInNlbGYiXSwiZiI6WyJ0aWVfdXAiXSwibSI6MTAwLCJzIjoxLCJhIjpmYWxzZSwieSI6dHJ1ZX0="
	f := newScripted(map[string]listing.Page{"": {Items: []listing.Listing{priced("a", 1)}}})
	l := New(f, newStore())
	ctx := context.Background()

	v, err := l.Open(ctx, legacy)
	if err != nil || v.Recovered {
		t.Fatalf("Open legacy token: %+v, %v", v, err)
	}
	again, err := l.Search(ctx, v.Criteria)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if again.Token != legacy || f.count(legacy) != 1 {
		t.Fatalf("token = %q calls = %d; equal criteria must reuse the active search", again.Token, f.count(legacy))
	}

	other := v.Criteria
	other.HasArena = !other.HasArena
	moved, err := l.Search(ctx, other)
	if err != nil || moved.Token != searchtoken.Encode(other) {
		t.Fatalf("different criteria = %q, %v", moved.Token, err)
	}
}
