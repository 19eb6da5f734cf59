package profile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kurtheiz/agistme/pkg/client"
)

// MaxBioLength is the longest bio, in characters, the profile accepts.
const MaxBioLength = 1000

// BioAPI is the remote side of Bio.
type BioAPI interface {
	GetProfile(ctx context.Context) (client.Profile, error)
	UpdateBio(ctx context.Context, bio string) (client.Profile, error)
}

// Bio reads and updates the profile bio.
type Bio struct {
	api BioAPI

	mu      sync.Mutex
	profile *client.Profile
}

func NewBio(api BioAPI) *Bio {
	return &Bio{api: api}
}

// Get fetches the profile.
func (b *Bio) Get(ctx context.Context) (client.Profile, error) {
	p, err := b.api.GetProfile(ctx)
	if err != nil {
		return client.Profile{}, fmt.Errorf("reading profile: %w", err)
	}
	b.mu.Lock()
	b.profile = &p
	b.mu.Unlock()
	return p, nil
}

// Cached returns the last profile read or written.
func (b *Bio) Cached() (client.Profile, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.profile == nil {
		return client.Profile{}, false
	}
	return *b.profile, true
}

// Update replaces the bio. Surrounding whitespace is trimmed.
func (b *Bio) Update(ctx context.Context, bio string) (client.Profile, error) {
	bio = strings.TrimSpace(bio)
	if n := utf8.RuneCountInString(bio); n > MaxBioLength {
		return client.Profile{}, fmt.Errorf("bio is %d characters, the limit is %d", n, MaxBioLength)
	}
	p, err := b.api.UpdateBio(ctx, bio)
	if err != nil {
		return client.Profile{}, fmt.Errorf("updating bio: %w", err)
	}
	b.mu.Lock()
	b.profile = &p
	b.mu.Unlock()
	return p, nil
}
