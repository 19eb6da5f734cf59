package profile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kurtheiz/agistme/pkg/client"
	"github.com/kurtheiz/agistme/pkg/log"
	"github.com/kurtheiz/agistme/pkg/search"
	"github.com/kurtheiz/agistme/pkg/searchtoken"
)

var logger = log.ForService("profile")

// ErrSavedSearchNotFound is returned for unknown saved search ids.
var ErrSavedSearchNotFound = errors.New("saved search not found")

// SavedSearchAPI is the remote side of SavedSearches. *client.Client
// implements it.
type SavedSearchAPI interface {
	GetSavedSearches(ctx context.Context) ([]client.SavedSearch, error)
	PutSavedSearches(ctx context.Context, searches []client.SavedSearch) error
}

// SavedSearches manages the saved search list.
type SavedSearches struct {
	api SavedSearchAPI
	now func() time.Time

	mu     sync.Mutex
	cached []client.SavedSearch
	loaded bool
}

// NewSavedSearches creates the service.
func NewSavedSearches(api SavedSearchAPI) *SavedSearches {
	return &SavedSearches{api: api, now: time.Now}
}

// List fetches the list from the API and caches it.
func (s *SavedSearches) List(ctx context.Context) ([]client.SavedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(s.cached), nil
}

// Cached returns the last list read or written, without a request.
func (s *SavedSearches) Cached() ([]client.SavedSearch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cached), s.loaded
}

// Save stores c under name. Saving criteria that are already saved updates
// that entry instead of adding a duplicate.
func (s *SavedSearches) Save(ctx context.Context, name string, c search.Criteria, notify bool) (client.SavedSearch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return client.SavedSearch{}, errors.New("saved search name is required")
	}
	token := searchtoken.Encode(c)

	var saved client.SavedSearch
	err := s.mutate(ctx, func(list []client.SavedSearch) ([]client.SavedSearch, error) {
		for i := range list {
			if list[i].SearchHash == token {
				list[i].Name = name
				list[i].EnableNotifications = notify
				list[i].LastUpdate = s.now()
				saved = list[i]
				return list, nil
			}
		}
		saved = client.SavedSearch{
			ID:                  uuid.NewString(),
			Name:                name,
			SearchHash:          token,
			LastUpdate:          s.now(),
			EnableNotifications: notify,
		}
		return append(list, saved), nil
	})
	if err != nil {
		return client.SavedSearch{}, err
	}
	logger.With("id", saved.ID).Infof("saved search %q", saved.Name)
	return saved, nil
}

// Rename changes a saved search's name.
func (s *SavedSearches) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("saved search name is required")
	}
	return s.update(ctx, id, func(ss *client.SavedSearch) {
		ss.Name = name
	})
}

// SetNotifications turns new-match notifications on or off.
func (s *SavedSearches) SetNotifications(ctx context.Context, id string, enabled bool) error {
	return s.update(ctx, id, func(ss *client.SavedSearch) {
		ss.EnableNotifications = enabled
	})
}

// Delete removes a saved search.
func (s *SavedSearches) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, func(list []client.SavedSearch) ([]client.SavedSearch, error) {
		i := indexOf(list, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSavedSearchNotFound, id)
		}
		return slices.Delete(list, i, i+1), nil
	})
}

// Get returns a saved search and its decoded criteria. Criteria are
// defaults, with Recovered set, when the stored token is corrupt.
func (s *SavedSearches) Get(ctx context.Context, id string) (client.SavedSearch, searchtoken.Decoded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.refreshLocked(ctx); err != nil {
			return client.SavedSearch{}, searchtoken.Decoded{}, err
		}
	}
	i := indexOf(s.cached, id)
	if i < 0 {
		return client.SavedSearch{}, searchtoken.Decoded{}, fmt.Errorf("%w: %s", ErrSavedSearchNotFound, id)
	}
	ss := s.cached[i]
	return ss, searchtoken.Decode(ss.SearchHash), nil
}

func (s *SavedSearches) update(ctx context.Context, id string, fn func(*client.SavedSearch)) error {
	return s.mutate(ctx, func(list []client.SavedSearch) ([]client.SavedSearch, error) {
		i := indexOf(list, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSavedSearchNotFound, id)
		}
		fn(&list[i])
		list[i].LastUpdate = s.now()
		return list, nil
	})
}

// mutate applies fn to a copy of the list and writes the result. The cached
// list is replaced only when the write succeeds.
func (s *SavedSearches) mutate(ctx context.Context, fn func([]client.SavedSearch) ([]client.SavedSearch, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.refreshLocked(ctx); err != nil {
			return err
		}
	}
	next, err := fn(slices.Clone(s.cached))
	if err != nil {
		return err
	}
	if err := s.api.PutSavedSearches(ctx, next); err != nil {
		return fmt.Errorf("writing saved searches: %w", err)
	}
	s.cached = next
	return nil
}

func (s *SavedSearches) refreshLocked(ctx context.Context) error {
	list, err := s.api.GetSavedSearches(ctx)
	if err != nil {
		return fmt.Errorf("reading saved searches: %w", err)
	}
	s.cached = list
	s.loaded = true
	return nil
}

func indexOf(list []client.SavedSearch, id string) int {
	return slices.IndexFunc(list, func(ss client.SavedSearch) bool {
		return ss.ID == id
	})
}

// Criteria returns the decoded criteria of a saved search.
func (s *SavedSearches) Criteria(ctx context.Context, id string) (search.Criteria, error) {
	_, decoded, err := s.Get(ctx, id)
	if err != nil {
		return search.Criteria{}, err
	}
	return decoded.Criteria, nil
}
