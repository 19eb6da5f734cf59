package profile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// FavouritesAPI is the remote side of Favourites.
type FavouritesAPI interface {
	GetFavourites(ctx context.Context) ([]string, error)
	PutFavourites(ctx context.Context, ids []string) error
}

// Favourites manages the user's favourite listings, most recent last.
type Favourites struct {
	api FavouritesAPI

	mu     sync.Mutex
	ids    []string
	loaded bool
}

func NewFavourites(api FavouritesAPI) *Favourites {
	return &Favourites{api: api}
}

// List fetches the favourite ids and caches them.
func (f *Favourites) List(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(f.ids), nil
}

// Contains reports whether id is in the cached list.
func (f *Favourites) Contains(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.ids, id)
}

// Add adds a listing. Adding a favourite twice is a no-op.
func (f *Favourites) Add(ctx context.Context, id string) error {
	return f.mutate(ctx, id, func(ids []string) ([]string, bool) {
		if slices.Contains(ids, id) {
			return ids, false
		}
		return append(ids, id), true
	})
}

// Remove removes a listing. Removing a missing favourite is a no-op.
func (f *Favourites) Remove(ctx context.Context, id string) error {
	return f.mutate(ctx, id, func(ids []string) ([]string, bool) {
		i := slices.Index(ids, id)
		if i < 0 {
			return ids, false
		}
		return slices.Delete(ids, i, i+1), true
	})
}

// Toggle adds or removes a listing and reports whether it is now a
// favourite.
func (f *Favourites) Toggle(ctx context.Context, id string) (bool, error) {
	var added bool
	err := f.mutate(ctx, id, func(ids []string) ([]string, bool) {
		if i := slices.Index(ids, id); i >= 0 {
			return slices.Delete(ids, i, i+1), true
		}
		added = true
		return append(ids, id), true
	})
	return added, err
}

func (f *Favourites) mutate(ctx context.Context, id string, fn func([]string) ([]string, bool)) error {
	if id == "" {
		return errors.New("listing id is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		if err := f.refreshLocked(ctx); err != nil {
			return err
		}
	}
	next, changed := fn(slices.Clone(f.ids))
	if !changed {
		return nil
	}
	if err := f.api.PutFavourites(ctx, next); err != nil {
		return fmt.Errorf("writing favourites: %w", err)
	}
	f.ids = next
	return nil
}

func (f *Favourites) refreshLocked(ctx context.Context) error {
	ids, err := f.api.GetFavourites(ctx)
	if err != nil {
		return fmt.Errorf("reading favourites: %w", err)
	}
	f.ids = ids
	f.loaded = true
	return nil
}
