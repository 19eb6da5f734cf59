package api

import (
	"time"

	"github.com/kurtheiz/agistme/pkg/loader"
	"github.com/kurtheiz/agistme/pkg/search"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SearchResponse struct {
	loader.View
	Count int `json:"count"`
}

type MoreResponse struct {
	Appended bool           `json:"appended"`
	Search   SearchResponse `json:"search"`
}

type RefreshResponse struct {
	Refreshed bool           `json:"refreshed"`
	Search    SearchResponse `json:"search"`
}

type EncodeResponse struct {
	Token    string          `json:"token"`
	Criteria search.Criteria `json:"criteria"`
}

type DecodeResponse struct {
	Criteria  search.Criteria `json:"criteria"`
	Version   int             `json:"version"`
	Recovered bool            `json:"recovered"`
	Error     string          `json:"error,omitempty"`
}

type ScrollPosition struct {
	Offset int `json:"offset"`
}

type SavedSearchResponse struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Token               string          `json:"token"`
	Criteria            search.Criteria `json:"criteria"`
	Recovered           bool            `json:"recovered"`
	LastUpdate          time.Time       `json:"lastUpdate"`
	EnableNotifications bool            `json:"enableNotifications"`
}

type SavedSearchesResponse struct {
	SavedSearches []SavedSearchResponse `json:"savedSearches"`
	Count         int                   `json:"count"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Sessions  int       `json:"sessions"`
}
