package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/loader"
	"github.com/kurtheiz/agistme/pkg/session"
)

// SessionCookie carries the browser session id.
const SessionCookie = "agistme_session"

// browserSession is the search state of one browser.
type browserSession struct {
	store    *session.Store
	loader   *loader.Loader
	lastSeen time.Time
}

type sessionManager struct {
	fetcher  loader.Fetcher
	newCache func() *cache.Cache
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*browserSession
}

func newSessionManager(f loader.Fetcher, newCache func() *cache.Cache, ttl time.Duration) *sessionManager {
	return &sessionManager{
		fetcher:  f,
		newCache: newCache,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*browserSession),
	}
}

// get returns the request's session, creating one (and setting the cookie)
// when the request has none or its session expired.
func (m *sessionManager) get(w http.ResponseWriter, r *http.Request) *browserSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)

	if c, err := r.Cookie(SessionCookie); err == nil {
		if bs, ok := m.sessions[c.Value]; ok {
			bs.lastSeen = now
			return bs
		}
	}

	id := uuid.NewString()
	store := session.NewStore(m.newCache())
	bs := &browserSession{store: store, loader: loader.New(m.fetcher, store), lastSeen: now}
	m.sessions[id] = bs
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	logger.With("session", id).Debugf("new session")
	return bs
}

func (m *sessionManager) sweepLocked(now time.Time) {
	for id, bs := range m.sessions {
		if now.Sub(bs.lastSeen) > m.ttl {
			delete(m.sessions, id)
		}
	}
}

func (m *sessionManager) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
