// Package cache is the session cache shared by the search store, the loader
// and the saved-search watcher.
//
// One Cache replaces what used to be two overlapping mechanisms (a one-day
// "last search" cache and a five-minute query cache): the difference between
// them is now only the Policy it is constructed with.
package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Freshness classifies a lookup.
type Freshness int

const (
	// Miss means no usable entry: absent, or older than the retention window.
	Miss Freshness = iota
	// Fresh entries can be used without refetching.
	Fresh
	// Stale entries are past FreshFor but still retained; callers may show
	// them while refetching.
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	}
	return "miss"
}

// Policy is the TTL strategy of a Cache.
type Policy struct {
	// FreshFor is how long an entry is served without refetching.
	FreshFor time.Duration
	// RetainFor is how long an entry is kept at all. Values below FreshFor
	// are treated as FreshFor.
	RetainFor time.Duration
}

var (
	// LastSearchPolicy keeps the most recent search usable for a day.
	LastSearchPolicy = Policy{FreshFor: 24 * time.Hour, RetainFor: 24 * time.Hour}

	// QueryPolicy matches the query layer: five minutes fresh, thirty
	// minutes retained.
	QueryPolicy = Policy{FreshFor: 5 * time.Minute, RetainFor: 30 * time.Minute}
)

// Retention returns the effective retention window.
func (p Policy) Retention() time.Duration {
	if p.RetainFor < p.FreshFor {
		return p.FreshFor
	}
	return p.RetainFor
}

// Classify maps an entry age to its freshness.
func (p Policy) Classify(age time.Duration) Freshness {
	switch {
	case age < p.FreshFor:
		return Fresh
	case age < p.Retention():
		return Stale
	}
	return Miss
}

// Entry is one cached payload.
type Entry struct {
	Namespace string
	Key       string
	StoredAt  time.Time
	Payload   []byte
}

// NamespaceStats summarizes one namespace of a backend.
type NamespaceStats struct {
	Namespace string
	Entries   int
	Bytes     int64
	Oldest    time.Time
	Newest    time.Time
}

// Backend stores entries. Implementations must be safe for concurrent use.
type Backend interface {
	Get(namespace, key string) (Entry, bool, error)
	Put(e Entry) error
	Delete(namespace, key string) error
	// Clear removes a namespace, or everything when namespace is empty.
	Clear(namespace string) error
	// PruneBefore removes entries of a namespace (every namespace when
	// empty) stored before cutoff and returns how many were removed.
	PruneBefore(namespace string, cutoff time.Time) (int, error)
	Stats() ([]NamespaceStats, error)
	Close() error
}

// Cache applies a Policy on top of a Backend.
type Cache struct {
	backend Backend
	policy  Policy
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a Cache.
func New(backend Backend, policy Policy, opts ...Option) *Cache {
	c := &Cache{backend: backend, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the cache's TTL policy.
func (c *Cache) Policy() Policy {
	return c.policy
}

// WithPolicy returns a Cache over the same backend and clock that applies
// p instead.
func (c *Cache) WithPolicy(p Policy) *Cache {
	return &Cache{backend: c.backend, policy: p, now: c.now}
}

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time {
	return c.now()
}

// Lookup returns the entry for key and its freshness. Expired entries are
// reported as Miss but left for Prune to remove.
func (c *Cache) Lookup(namespace, key string) (Entry, Freshness, error) {
	e, ok, err := c.backend.Get(namespace, key)
	if err != nil {
		return Entry{}, Miss, fmt.Errorf("reading %s/%s: %w", namespace, key, err)
	}
	if !ok {
		return Entry{}, Miss, nil
	}
	f := c.policy.Classify(c.now().Sub(e.StoredAt))
	if f == Miss {
		return Entry{}, Miss, nil
	}
	return e, f, nil
}

// Put stores payload under key, stamped with the current time. It
// overwrites any previous entry wholesale.
func (c *Cache) Put(namespace, key string, payload []byte) (Entry, error) {
	e := Entry{Namespace: namespace, Key: key, StoredAt: c.now(), Payload: payload}
	if err := c.backend.Put(e); err != nil {
		return Entry{}, fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	return e, nil
}

// PutJSON marshals v and stores it under key.
func (c *Cache) PutJSON(namespace, key string, v any) (Entry, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Entry{}, fmt.Errorf("marshaling %s/%s: %w", namespace, key, err)
	}
	return c.Put(namespace, key, data)
}

// LookupJSON looks key up and unmarshals a hit into v. v is untouched on a
// Miss.
func (c *Cache) LookupJSON(namespace, key string, v any) (Entry, Freshness, error) {
	e, f, err := c.Lookup(namespace, key)
	if err != nil || f == Miss {
		return e, f, err
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return Entry{}, Miss, fmt.Errorf("unmarshaling %s/%s: %w", namespace, key, err)
	}
	return e, f, nil
}

// Delete removes one entry.
func (c *Cache) Delete(namespace, key string) error {
	return c.backend.Delete(namespace, key)
}

// Clear removes a namespace, or every entry when namespace is empty.
func (c *Cache) Clear(namespace string) error {
	return c.backend.Clear(namespace)
}

// Prune removes entries past the retention window from the given
// namespaces. Caches with different policies can share a backend as long
// as each prunes only its own namespaces.
func (c *Cache) Prune(namespaces ...string) (int, error) {
	cutoff := c.now().Add(-c.policy.Retention())
	total := 0
	for _, ns := range namespaces {
		n, err := c.backend.PruneBefore(ns, cutoff)
		total += n
		if err != nil {
			return total, fmt.Errorf("pruning %s: %w", ns, err)
		}
	}
	return total, nil
}

// Stats reports per-namespace usage.
func (c *Cache) Stats() ([]NamespaceStats, error) {
	return c.backend.Stats()
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}
