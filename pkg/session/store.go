// Package session holds the current search result set of one user session.
//
// A Store keeps the most recent result set and its token in memory and
// mirrors it into a cache.Cache, so returning to a search does not refetch
// and a new process (or a new Store over the same backend) can pick the last
// search up again. Scroll positions are kept in memory only.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/listing"
	"github.com/kurtheiz/agistme/pkg/log"
)

// Cache namespaces written by a Store.
const (
	NamespaceResults = "results"
	NamespaceMeta    = "meta"

	lastSearchKey = "last"
)

var logger = log.ForService("session")

// ResultSet is the accumulated, unsorted result list for one token.
type ResultSet struct {
	Token      string            `json:"token"`
	Items      []listing.Listing `json:"items"`
	NextCursor *string           `json:"nextCursor"`
	StoredAt   time.Time         `json:"storedAt"`
}

// Exhausted reports whether the server has no further pages.
func (r ResultSet) Exhausted() bool {
	return r.NextCursor == nil
}

func (r ResultSet) clone() ResultSet {
	r.Items = slices.Clone(r.Items)
	if r.NextCursor != nil {
		cursor := *r.NextCursor
		r.NextCursor = &cursor
	}
	return r
}

// lastSearch is the session-wide pointer to the most recent search. It
// carries its result set so the set outlives the query retention window.
type lastSearch struct {
	Token       string    `json:"token"`
	Timestamp   time.Time `json:"timestamp"`
	ResultCount int       `json:"resultCount"`
	Results     ResultSet `json:"results"`
}

// Store is the result store of one session. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	cache  *cache.Cache
	last   *cache.Cache
	token  string
	result *ResultSet
	scroll map[string]int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLastSearchPolicy replaces cache.LastSearchPolicy as the window in
// which LastSearch restores the most recent search.
func WithLastSearchPolicy(p cache.Policy) StoreOption {
	return func(s *Store) {
		s.last = s.cache.WithPolicy(p)
	}
}

// NewStore creates a Store over c. The policy of c decides how long a
// result set is reused; the last search is kept under
// cache.LastSearchPolicy on the same backend.
func NewStore(c *cache.Cache, opts ...StoreOption) *Store {
	s := &Store{cache: c, last: c.WithPolicy(cache.LastSearchPolicy), scroll: make(map[string]int)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns a copy of the current result set.
func (s *Store) Current() (ResultSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return ResultSet{}, false
	}
	return s.result.clone(), true
}

// SetResult replaces the current result set with page and restarts its
// freshness window.
func (s *Store) SetResult(token string, page listing.Page) ResultSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := ResultSet{
		Token:      token,
		Items:      slices.Clone(page.Items),
		NextCursor: page.NextCursor,
		StoredAt:   s.cache.Now(),
	}
	s.token = token
	s.result = &rs
	s.persistLocked()
	return rs.clone()
}

// AppendPage adds page to the result set of the current token. It does
// nothing and returns false when there is no current token. When the token
// has no result set yet, the page alone becomes the set. The freshness
// window keeps counting from the first page.
func (s *Store) AppendPage(page listing.Page) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return false
	}
	if s.result == nil {
		s.result = &ResultSet{Token: s.token, StoredAt: s.cache.Now()}
	}
	s.result.Items = append(s.result.Items, page.Items...)
	s.result.NextCursor = page.NextCursor
	s.persistLocked()
	return true
}

// GetCachedIfFresh returns the result set for token if one is held and
// still fresh under the cache policy. A false return means the caller must
// fetch.
func (s *Store) GetCachedIfFresh(token string) (ResultSet, bool) {
	rs, f := s.GetCached(token)
	if f != cache.Fresh {
		return ResultSet{}, false
	}
	return rs, true
}

// GetCached returns the result set for token with its freshness, so callers
// can show stale results while refetching. A hit from the backing cache
// becomes the current result set.
func (s *Store) GetCached(token string) (ResultSet, cache.Freshness) {
	if token == "" {
		return ResultSet{}, cache.Miss
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result != nil && s.token == token {
		f := s.cache.Policy().Classify(s.cache.Now().Sub(s.result.StoredAt))
		if f != cache.Miss {
			return s.result.clone(), f
		}
	}

	var rs ResultSet
	_, f, err := s.cache.LookupJSON(NamespaceResults, token, &rs)
	if err != nil {
		logger.With("token", abbreviate(token)).Warnf("reading cached results: %v", err)
		return ResultSet{}, cache.Miss
	}
	if f == cache.Miss {
		return ResultSet{}, cache.Miss
	}
	// Appends restamp the cache entry; freshness counts from the first page.
	if f = s.cache.Policy().Classify(s.cache.Now().Sub(rs.StoredAt)); f == cache.Miss {
		return ResultSet{}, cache.Miss
	}
	s.token = token
	s.result = &rs
	return rs.clone(), f
}

// LastSearch restores the most recent search recorded in the backing cache
// if it was started within the last-search window. It becomes the current
// result set, which the query policy may already consider stale.
func (s *Store) LastSearch() (ResultSet, bool) {
	var last lastSearch
	_, f, err := s.last.LookupJSON(NamespaceMeta, lastSearchKey, &last)
	if err != nil {
		logger.Warnf("reading last search: %v", err)
		return ResultSet{}, false
	}
	if f != cache.Fresh || last.Token == "" || last.Results.Token != last.Token {
		return ResultSet{}, false
	}
	if s.last.Policy().Classify(s.last.Now().Sub(last.Timestamp)) != cache.Fresh {
		return ResultSet{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rs := last.Results
	s.token = rs.Token
	s.result = &rs
	return rs.clone(), true
}

// SaveScrollPosition records the scroll offset of a list view, keyed by the
// navigation entry it belongs to.
func (s *Store) SaveScrollPosition(routeKey string, offsetPixels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scroll[routeKey] = offsetPixels
}

// GetScrollPosition returns a saved scroll offset.
func (s *Store) GetScrollPosition(routeKey string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	px, ok := s.scroll[routeKey]
	return px, ok
}

// Reset clears the result set, token and scroll positions, and forgets the
// last-search pointer. Result sets already cached per token are kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.result = nil
	s.scroll = make(map[string]int)
	if err := s.last.Delete(NamespaceMeta, lastSearchKey); err != nil {
		logger.Warnf("clearing last search: %v", err)
	}
}

// Prune drops result sets past the query retention and last-search
// pointers past the last-search window from the backing cache.
func (s *Store) Prune() (int, error) {
	n, err := s.cache.Prune(NamespaceResults)
	if err != nil {
		return n, err
	}
	m, err := s.last.Prune(NamespaceMeta)
	return n + m, err
}

// persistLocked mirrors the current result set. Failures are logged; the
// in-memory set stays authoritative.
func (s *Store) persistLocked() {
	rs := s.result
	l := logger.With("token", abbreviate(rs.Token))
	if _, err := s.cache.PutJSON(NamespaceResults, rs.Token, rs); err != nil {
		l.Warnf("persisting results: %v", err)
		return
	}
	last := lastSearch{Token: rs.Token, Timestamp: rs.StoredAt, ResultCount: len(rs.Items), Results: *rs}
	if _, err := s.last.PutJSON(NamespaceMeta, lastSearchKey, last); err != nil {
		l.Warnf("persisting last search: %v", err)
		return
	}
	l.Debugf("persisted %d results", len(rs.Items))
}

func abbreviate(token string) string {
	if len(token) <= 16 {
		return token
	}
	return token[:16] + "..."
}
