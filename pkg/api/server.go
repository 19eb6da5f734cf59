// Package api is the local HTTP API used by the agistme web front end: a
// search session per browser (cookie), token helpers, scroll restoration,
// saved searches and a WebSocket feed of new saved-search matches.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/client"
	"github.com/kurtheiz/agistme/pkg/loader"
	"github.com/kurtheiz/agistme/pkg/log"
	"github.com/kurtheiz/agistme/pkg/realtime"
)

var logger = log.ForService("api")

// SavedSearchLister lists the user's saved searches.
type SavedSearchLister interface {
	List(ctx context.Context) ([]client.SavedSearch, error)
}

// Options configure a Server.
type Options struct {
	// Fetcher runs searches. Required.
	Fetcher loader.Fetcher

	// NewCache creates the cache of a new browser session. Defaults to an
	// in-memory cache with cache.QueryPolicy.
	NewCache func() *cache.Cache

	// SessionTTL is how long an idle session is kept. Defaults to 30m.
	SessionTTL time.Duration

	// SavedSearches backs /api/saved-searches; nil disables it.
	SavedSearches SavedSearchLister

	// Hub feeds /api/ws; nil disables it.
	Hub *realtime.Hub
}

type Server struct {
	sessions      *sessionManager
	savedSearches SavedSearchLister
	hub           *realtime.Hub
}

func NewServer(opts Options) *Server {
	newCache := opts.NewCache
	if newCache == nil {
		newCache = func() *cache.Cache {
			return cache.New(cache.NewMemoryBackend(), cache.QueryPolicy)
		}
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Server{
		sessions:      newSessionManager(opts.Fetcher, newCache, ttl),
		savedSearches: opts.SavedSearches,
		hub:           opts.Hub,
	}
}

// Handler returns the routes wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return CorsMiddleware(mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
