// Package loader drives paginated retrieval of search results for one
// session and presents them in the requested order.
//
// A Loader has one active token at a time. Fetches run without holding the
// Loader's lock; each captures the active token and a generation number, and
// a response whose pair no longer matches when it arrives is dropped. A new
// search never merges with, or is overwritten by, an older one still in
// flight.
package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/kurtheiz/agistme/pkg/listing"
	"github.com/kurtheiz/agistme/pkg/log"
	"github.com/kurtheiz/agistme/pkg/search"
	"github.com/kurtheiz/agistme/pkg/searchtoken"
	"github.com/kurtheiz/agistme/pkg/session"
)

var logger = log.ForService("loader")

// Fetcher retrieves one page of results. A nil cursor asks for the first
// page; cursors returned by the server are passed back verbatim.
type Fetcher interface {
	FetchPage(ctx context.Context, token string, cursor *string) (listing.Page, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, token string, cursor *string) (listing.Page, error)

func (f FetcherFunc) FetchPage(ctx context.Context, token string, cursor *string) (listing.Page, error) {
	return f(ctx, token, cursor)
}

// State is the position of the active search in its lifecycle.
type State int

const (
	Idle State = iota
	Fetching
	HasResults
	Exhausted
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case HasResults:
		return "has_results"
	case Exhausted:
		return "exhausted"
	}
	return "idle"
}

// View is what a caller displays: the active search and its results in
// display order.
type View struct {
	Token     string            `json:"token"`
	Criteria  search.Criteria   `json:"criteria"`
	Recovered bool              `json:"recovered"`
	State     State             `json:"-"`
	StateName string            `json:"state"`
	SortMode  listing.SortMode  `json:"sort"`
	Items     []listing.Listing `json:"results"`
	Exhausted bool              `json:"exhausted"`
}

// Loader is safe for concurrent use.
type Loader struct {
	fetcher Fetcher
	store   *session.Store

	mu         sync.Mutex
	token      string
	criteria   search.Criteria
	recovered  bool
	generation uint64
	inFlight   bool
	state      State
	sortMode   listing.SortMode
}

// New creates a Loader that fetches through f and accumulates into store.
func New(f Fetcher, store *session.Store) *Loader {
	return &Loader{fetcher: f, store: store, criteria: search.Criteria{}.Normalize()}
}

// Search makes the token of c the active search. Criteria equal to those
// of the active search keep its token, so a search opened from a legacy
// token is not refetched under its re-encoded form.
func (l *Loader) Search(ctx context.Context, c search.Criteria) (View, error) {
	l.mu.Lock()
	token := l.token
	if token == "" || l.recovered || !searchtoken.Equal(c, l.criteria) {
		token = searchtoken.Encode(c)
	}
	l.mu.Unlock()
	return l.Open(ctx, token)
}

// Open makes token the active search. A fresh cached result set is used
// as-is; otherwise the first page is fetched. Opening the active token does
// not fetch while a fetch for it is in flight or its results are fresh.
// Stale results stay visible until the refetch replaces them.
func (l *Loader) Open(ctx context.Context, token string) (View, error) {
	decoded := searchtoken.Decode(token)

	l.mu.Lock()
	onError := Idle
	if token == l.token && l.state != Idle {
		if l.inFlight {
			defer l.mu.Unlock()
			return l.viewLocked(), nil
		}
		if _, ok := l.store.GetCachedIfFresh(token); ok {
			defer l.mu.Unlock()
			return l.viewLocked(), nil
		}
		onError = l.state
		logger.With("token", abbreviate(token)).Debugf("active results expired, refetching")
	}

	l.generation++
	l.token = token
	l.criteria = decoded.Criteria
	l.recovered = decoded.Recovered
	l.inFlight = false

	if rs, ok := l.store.GetCachedIfFresh(token); ok {
		l.state = stateFor(rs.Exhausted())
		logger.With("token", abbreviate(token)).Debugf("serving %d cached results", len(rs.Items))
		defer l.mu.Unlock()
		return l.viewLocked(), nil
	}

	gen := l.beginLocked()
	l.mu.Unlock()

	return l.fetch(ctx, token, gen, nil, onError, func(page listing.Page) {
		l.store.SetResult(token, page)
	})
}

// More fetches the next page of the active search. It reports whether a
// page was appended. It is a no-op when there is no active search, when the
// search is exhausted, or while a fetch for it is in flight.
func (l *Loader) More(ctx context.Context) (bool, error) {
	l.mu.Lock()
	if l.token == "" || l.inFlight || l.state != HasResults {
		l.mu.Unlock()
		return false, nil
	}
	rs, ok := l.store.Current()
	if !ok || rs.Token != l.token || rs.Exhausted() {
		l.mu.Unlock()
		return false, nil
	}
	token, gen := l.token, l.beginLocked()
	l.mu.Unlock()

	var appended bool
	_, err := l.fetch(ctx, token, gen, rs.NextCursor, HasResults, func(page listing.Page) {
		appended = l.store.AppendPage(page)
	})
	return appended, err
}

// Refresh refetches the first page of the active search and replaces the
// accumulated results. It is a no-op while a fetch is in flight.
func (l *Loader) Refresh(ctx context.Context) (bool, error) {
	l.mu.Lock()
	if l.token == "" || l.inFlight {
		l.mu.Unlock()
		return false, nil
	}
	token, previous := l.token, l.state
	gen := l.beginLocked()
	l.mu.Unlock()

	var replaced bool
	_, err := l.fetch(ctx, token, gen, nil, previous, func(page listing.Page) {
		l.store.SetResult(token, page)
		replaced = true
	})
	return replaced, err
}

// beginLocked marks a fetch for the active token in flight and returns its
// generation.
func (l *Loader) beginLocked() uint64 {
	l.generation++
	l.inFlight = true
	l.state = Fetching
	return l.generation
}

// fetch runs the request started by beginLocked. On completion it discards
// the response if the active search moved on, restores onError on failure,
// or hands the page to apply under the lock.
func (l *Loader) fetch(ctx context.Context, token string, gen uint64, cursor *string, onError State, apply func(listing.Page)) (View, error) {
	lg := logger.With("token", abbreviate(token), "gen", gen)
	lg.Debugf("fetching page")
	page, err := l.fetcher.FetchPage(ctx, token, cursor)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token != token || l.generation != gen {
		lg.Debugf("discarding response for superseded search")
		return l.viewLocked(), nil
	}
	l.inFlight = false
	if err != nil {
		l.state = onError
		return l.viewLocked(), fmt.Errorf("fetching results: %w", err)
	}

	apply(page)
	l.state = stateFor(page.Exhausted())
	lg.Debugf("received %d results", len(page.Items))
	return l.viewLocked(), nil
}

// SetSortMode changes the display order. It never fetches.
func (l *Loader) SetSortMode(mode listing.SortMode) View {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sortMode = mode
	return l.viewLocked()
}

// Resume adopts the last search recorded by the store, if still fresh.
func (l *Loader) Resume() (View, bool) {
	rs, ok := l.store.LastSearch()
	if !ok {
		return View{}, false
	}
	decoded := searchtoken.Decode(rs.Token)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation++
	l.token = rs.Token
	l.criteria = decoded.Criteria
	l.recovered = decoded.Recovered
	l.inFlight = false
	l.state = stateFor(rs.Exhausted())
	return l.viewLocked(), true
}

// View returns the current view.
func (l *Loader) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewLocked()
}

// State returns the lifecycle state of the active search.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Reset clears the active search and the store. Responses still in flight
// are discarded when they arrive.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation++
	l.token = ""
	l.criteria = search.Criteria{}.Normalize()
	l.recovered = false
	l.inFlight = false
	l.state = Idle
	l.store.Reset()
}

func (l *Loader) viewLocked() View {
	v := View{
		Token:     l.token,
		Criteria:  l.criteria,
		Recovered: l.recovered,
		State:     l.state,
		StateName: l.state.String(),
		SortMode:  l.sortMode,
		Exhausted: l.state == Exhausted,
	}
	if rs, ok := l.store.Current(); ok && rs.Token == l.token {
		v.Items = listing.Sort(rs.Items, l.sortMode, l.criteria.PriceScope())
	}
	return v
}

func stateFor(exhausted bool) State {
	if exhausted {
		return Exhausted
	}
	return HasResults
}

func abbreviate(token string) string {
	if len(token) <= 16 {
		return token
	}
	return token[:16] + "..."
}
