package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kurtheiz/agistme/pkg/listing"
	"github.com/kurtheiz/agistme/pkg/loader"
	"github.com/kurtheiz/agistme/pkg/search"
	"github.com/kurtheiz/agistme/pkg/searchtoken"
	"github.com/kurtheiz/agistme/pkg/version"
)

func searchResponse(v loader.View) SearchResponse {
	return SearchResponse{View: v, Count: len(v.Items)}
}

// HandleSearch opens a search. The search is given either by a "token"
// parameter or by criteria parameters (see search.ParseParams). "sort"
// selects the display order.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	mode, err := listing.ParseSortMode(query.Get("sort"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_sort", err.Error())
		return
	}

	token := strings.TrimSpace(query.Get("token"))
	if token == "" {
		query.Del("sort")
		criteria, err := search.ParseParams(query)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_criteria", err.Error())
			return
		}
		token = searchtoken.Encode(criteria)
	}

	bs := s.sessions.get(w, r)
	bs.loader.SetSortMode(mode)
	view, err := bs.loader.Open(r.Context(), token)
	if err != nil {
		logger.With("token", abbreviate(token)).Errorf("search failed: %v", err)
		s.writeError(w, http.StatusBadGateway, "fetch_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, searchResponse(view))
}

// HandleMore appends the next page of the session's active search.
func (s *Server) HandleMore(w http.ResponseWriter, r *http.Request) {
	bs := s.sessions.get(w, r)
	appended, err := bs.loader.More(r.Context())
	if err != nil {
		logger.Errorf("loading more results: %v", err)
		s.writeError(w, http.StatusBadGateway, "fetch_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, MoreResponse{Appended: appended, Search: searchResponse(bs.loader.View())})
}

// HandleRefresh refetches the first page of the session's active search.
func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	bs := s.sessions.get(w, r)
	refreshed, err := bs.loader.Refresh(r.Context())
	if err != nil {
		logger.Errorf("refreshing results: %v", err)
		s.writeError(w, http.StatusBadGateway, "fetch_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, RefreshResponse{Refreshed: refreshed, Search: searchResponse(bs.loader.View())})
}

// HandleReset clears the session's search state.
func (s *Server) HandleReset(w http.ResponseWriter, r *http.Request) {
	bs := s.sessions.get(w, r)
	bs.loader.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// HandleEncodeToken turns criteria parameters into a shareable token.
func (s *Server) HandleEncodeToken(w http.ResponseWriter, r *http.Request) {
	criteria, err := search.ParseParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_criteria", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, EncodeResponse{
		Token:    searchtoken.Encode(criteria),
		Criteria: criteria,
	})
}

// HandleDecodeToken decodes a token. A corrupt token is not an error: the
// response carries the default criteria with "recovered" set.
func (s *Server) HandleDecodeToken(w http.ResponseWriter, r *http.Request) {
	d := searchtoken.Decode(r.URL.Query().Get("token"))
	resp := DecodeResponse{
		Criteria:  d.Criteria,
		Version:   d.Version,
		Recovered: d.Recovered,
	}
	if d.Err != nil {
		resp.Error = d.Err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleSaveScroll(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var pos ScrollPosition
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid scroll position: "+err.Error())
		return
	}
	if pos.Offset < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "offset must not be negative")
		return
	}

	s.sessions.get(w, r).store.SaveScrollPosition(key, pos.Offset)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleGetScroll(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	offset, ok := s.sessions.get(w, r).store.GetScrollPosition(key)
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "No scroll position for "+key)
		return
	}
	s.writeJSON(w, http.StatusOK, ScrollPosition{Offset: offset})
}

// HandleSavedSearches lists saved searches with their decoded criteria.
func (s *Server) HandleSavedSearches(w http.ResponseWriter, r *http.Request) {
	if s.savedSearches == nil {
		s.writeError(w, http.StatusServiceUnavailable, "unavailable", "Saved searches are not configured")
		return
	}

	saved, err := s.savedSearches.List(r.Context())
	if err != nil {
		logger.Errorf("listing saved searches: %v", err)
		s.writeError(w, http.StatusBadGateway, "fetch_failed", err.Error())
		return
	}

	out := make([]SavedSearchResponse, 0, len(saved))
	for _, ss := range saved {
		d := searchtoken.Decode(ss.SearchHash)
		out = append(out, SavedSearchResponse{
			ID:                  ss.ID,
			Name:                ss.Name,
			Token:               ss.SearchHash,
			Criteria:            d.Criteria,
			Recovered:           d.Recovered,
			LastUpdate:          ss.LastUpdate,
			EnableNotifications: ss.EnableNotifications,
		})
	}
	s.writeJSON(w, http.StatusOK, SavedSearchesResponse{SavedSearches: out, Count: len(out)})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   version.Version,
		Sessions:  s.sessions.size(),
	})
}

func abbreviate(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
