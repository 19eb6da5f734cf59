package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("POST /api/search/more", s.HandleMore)
	mux.HandleFunc("POST /api/search/refresh", s.HandleRefresh)
	mux.HandleFunc("POST /api/search/reset", s.HandleReset)
	mux.HandleFunc("GET /api/token/encode", s.HandleEncodeToken)
	mux.HandleFunc("GET /api/token/decode", s.HandleDecodeToken)
	mux.HandleFunc("PUT /api/scroll/{key}", s.HandleSaveScroll)
	mux.HandleFunc("GET /api/scroll/{key}", s.HandleGetScroll)
	mux.HandleFunc("GET /api/saved-searches", s.HandleSavedSearches)
	mux.HandleFunc("GET /api/ws", s.HandleMatchFeed)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
