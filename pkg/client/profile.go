package client

import (
	"context"
	"net/http"
	"time"
)

// Profile is the signed-in user's profile.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Bio         string `json:"bio"`
}

// SavedSearch is a named search stored on the user's profile. SearchHash
// is the search token, persisted verbatim.
type SavedSearch struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	SearchHash          string    `json:"searchHash"`
	LastUpdate          time.Time `json:"lastUpdate"`
	EnableNotifications bool      `json:"enableNotifications"`
}

type savedSearchesBody struct {
	SavedSearches []SavedSearch `json:"savedSearches"`
}

type favouritesBody struct {
	Favourites []string `json:"favourites"`
}

type bioBody struct {
	Bio string `json:"bio"`
}

// GetProfile fetches the profile, with retries.
func (c *Client) GetProfile(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.withRetry(ctx, "get profile", func() error {
		return c.do(ctx, http.MethodGet, "/profile", nil, nil, &p)
	})
	return p, err
}

// UpdateBio replaces the profile bio, with retries.
func (c *Client) UpdateBio(ctx context.Context, bio string) (Profile, error) {
	var p Profile
	err := c.withRetry(ctx, "update bio", func() error {
		return c.do(ctx, http.MethodPut, "/profile", nil, bioBody{Bio: bio}, &p)
	})
	return p, err
}

// GetSavedSearches fetches the saved search list, with retries.
func (c *Client) GetSavedSearches(ctx context.Context) ([]SavedSearch, error) {
	var body savedSearchesBody
	err := c.withRetry(ctx, "get saved searches", func() error {
		return c.do(ctx, http.MethodGet, "/profile/saved-searches", nil, nil, &body)
	})
	if err != nil {
		return nil, err
	}
	if body.SavedSearches == nil {
		body.SavedSearches = []SavedSearch{}
	}
	return body.SavedSearches, nil
}

// PutSavedSearches replaces the whole saved search list, with retries.
func (c *Client) PutSavedSearches(ctx context.Context, searches []SavedSearch) error {
	if searches == nil {
		searches = []SavedSearch{}
	}
	return c.withRetry(ctx, "put saved searches", func() error {
		return c.do(ctx, http.MethodPut, "/profile/saved-searches", nil, savedSearchesBody{SavedSearches: searches}, nil)
	})
}

// GetFavourites fetches the favourite listing ids, with retries.
func (c *Client) GetFavourites(ctx context.Context) ([]string, error) {
	var body favouritesBody
	err := c.withRetry(ctx, "get favourites", func() error {
		return c.do(ctx, http.MethodGet, "/profile/favourites", nil, nil, &body)
	})
	if err != nil {
		return nil, err
	}
	if body.Favourites == nil {
		body.Favourites = []string{}
	}
	return body.Favourites, nil
}

// PutFavourites replaces the favourite listing ids, with retries.
func (c *Client) PutFavourites(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return c.withRetry(ctx, "put favourites", func() error {
		return c.do(ctx, http.MethodPut, "/profile/favourites", nil, favouritesBody{Favourites: ids}, nil)
	})
}
