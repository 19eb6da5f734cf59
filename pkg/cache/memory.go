package cache

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryBackend keeps entries in process memory. Nothing survives the
// process; it backs --ephemeral sessions and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]map[string]Entry)}
}

func (m *MemoryBackend) Get(namespace, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[namespace][key]
	if !ok {
		return Entry{}, false, nil
	}
	e.Payload = slices.Clone(e.Payload)
	return e, true, nil
}

func (m *MemoryBackend) Put(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.entries[e.Namespace]
	if !ok {
		ns = make(map[string]Entry)
		m.entries[e.Namespace] = ns
	}
	e.Payload = slices.Clone(e.Payload)
	ns[e.Key] = e
	return nil
}

func (m *MemoryBackend) Delete(namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries[namespace], key)
	return nil
}

func (m *MemoryBackend) Clear(namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if namespace == "" {
		m.entries = make(map[string]map[string]Entry)
		return nil
	}
	delete(m.entries, namespace)
	return nil
}

func (m *MemoryBackend) PruneBefore(namespace string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for name, ns := range m.entries {
		if namespace != "" && name != namespace {
			continue
		}
		for key, e := range ns {
			if e.StoredAt.Before(cutoff) {
				delete(ns, key)
				removed++
			}
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Stats() ([]NamespaceStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stats []NamespaceStats
	for name, ns := range m.entries {
		if len(ns) == 0 {
			continue
		}
		s := NamespaceStats{Namespace: name}
		for _, e := range ns {
			s.Entries++
			s.Bytes += int64(len(e.Payload))
			if s.Oldest.IsZero() || e.StoredAt.Before(s.Oldest) {
				s.Oldest = e.StoredAt
			}
			if e.StoredAt.After(s.Newest) {
				s.Newest = e.StoredAt
			}
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Namespace < stats[j].Namespace
	})
	return stats, nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
