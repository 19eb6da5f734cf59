package cache

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(policy Policy) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return New(NewMemoryBackend(), policy, WithClock(clock.Now)), clock
}

func TestPolicyClassify(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		age    time.Duration
		want   Freshness
	}{
		{"query fresh", QueryPolicy, 4 * time.Minute, Fresh},
		{"query stale", QueryPolicy, 5 * time.Minute, Stale},
		{"query still retained", QueryPolicy, 29 * time.Minute, Stale},
		{"query expired", QueryPolicy, 30 * time.Minute, Miss},
		{"last search fresh", LastSearchPolicy, 23*time.Hour + 59*time.Minute, Fresh},
		{"last search expired", LastSearchPolicy, 24 * time.Hour, Miss},
		{"retain below fresh", Policy{FreshFor: time.Hour, RetainFor: time.Minute}, 30 * time.Minute, Fresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Classify(tt.age); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestLookupFreshStaleMiss(t *testing.T) {
	c, clock := newTestCache(QueryPolicy)

	if _, f, err := c.Lookup("results", "tok"); err != nil || f != Miss {
		t.Fatalf("empty cache lookup = %v, %v; want miss", f, err)
	}

	if _, err := c.Put("results", "tok", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	e, f, err := c.Lookup("results", "tok")
	if err != nil || f != Fresh {
		t.Fatalf("lookup after put = %v, %v; want fresh", f, err)
	}
	if string(e.Payload) != "payload" || !e.StoredAt.Equal(clock.Now()) {
		t.Fatalf("unexpected entry: %+v", e)
	}

	clock.Advance(10 * time.Minute)
	if _, f, _ := c.Lookup("results", "tok"); f != Stale {
		t.Fatalf("lookup after 10m = %v, want stale", f)
	}

	clock.Advance(25 * time.Minute)
	if _, f, _ := c.Lookup("results", "tok"); f != Miss {
		t.Fatalf("lookup after 35m = %v, want miss", f)
	}
}

func TestPutOverwritesAndRestamps(t *testing.T) {
	c, clock := newTestCache(LastSearchPolicy)

	c.Put("meta", "last", []byte("a"))
	clock.Advance(23 * time.Hour)
	c.Put("meta", "last", []byte("b"))
	clock.Advance(2 * time.Hour)

	e, f, err := c.Lookup("meta", "last")
	if err != nil || f != Fresh {
		t.Fatalf("lookup = %v, %v; want fresh", f, err)
	}
	if string(e.Payload) != "b" {
		t.Fatalf("payload = %q, want b", e.Payload)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c, _ := newTestCache(QueryPolicy)

	type item struct {
		ID    string `json:"id"`
		Price int    `json:"price"`
	}
	if _, err := c.PutJSON("results", "k", []item{{ID: "a", Price: 120}}); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}

	var got []item
	if _, f, err := c.LookupJSON("results", "k", &got); err != nil || f != Fresh {
		t.Fatalf("LookupJSON = %v, %v", f, err)
	}
	if len(got) != 1 || got[0].ID != "a" || got[0].Price != 120 {
		t.Fatalf("unexpected decoded value: %+v", got)
	}

	c.Put("results", "bad", []byte("{"))
	if _, f, err := c.LookupJSON("results", "bad", &got); err == nil || f != Miss {
		t.Fatalf("expected unmarshal error as miss, got %v, %v", f, err)
	}
}

func TestPruneClearStats(t *testing.T) {
	c, clock := newTestCache(QueryPolicy)

	c.Put("results", "old", []byte("1234"))
	c.Put("seen", "old", []byte("1"))
	clock.Advance(31 * time.Minute)
	c.Put("results", "new", []byte("12"))
	c.Put("seen", "s1", []byte("1"))

	n, err := c.Prune("results")
	if err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v; want 1", n, err)
	}
	if _, f, _ := c.Lookup("seen", "old"); f != Miss {
		t.Fatalf("expired entry reported as %v", f)
	}
	if n, _ := c.Prune("seen"); n != 1 {
		t.Fatalf("Prune(seen) = %d, want 1", n)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 || stats[0].Namespace != "results" || stats[1].Namespace != "seen" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats[0].Entries != 1 || stats[0].Bytes != 2 {
		t.Fatalf("unexpected results stats: %+v", stats[0])
	}

	if err := c.Clear("results"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, f, _ := c.Lookup("results", "new"); f != Miss {
		t.Fatalf("results namespace not cleared")
	}
	if _, f, _ := c.Lookup("seen", "s1"); f != Fresh {
		t.Fatalf("clearing results removed another namespace")
	}

	c.Clear("")
	if stats, _ := c.Stats(); len(stats) != 0 {
		t.Fatalf("expected no stats after full clear, got %+v", stats)
	}
}

func TestMemoryBackendCopiesPayloads(t *testing.T) {
	m := NewMemoryBackend()
	payload := []byte("abc")
	m.Put(Entry{Namespace: "n", Key: "k", Payload: payload})
	payload[0] = 'x'

	e, ok, _ := m.Get("n", "k")
	if !ok || string(e.Payload) != "abc" {
		t.Fatalf("stored payload aliased caller slice: %q", e.Payload)
	}
	e.Payload[0] = 'y'
	again, _, _ := m.Get("n", "k")
	if string(again.Payload) != "abc" {
		t.Fatalf("returned payload aliased stored slice: %q", again.Payload)
	}
}

func TestWithPolicySharesBackendAndClock(t *testing.T) {
	c, clock := newTestCache(QueryPolicy)
	day := c.WithPolicy(LastSearchPolicy)
	c.Put("meta", "last", []byte("tok"))
	clock.Advance(time.Hour)

	if _, f, _ := c.Lookup("meta", "last"); f != Miss {
		t.Fatalf("query policy lookup = %v, want miss", f)
	}
	if _, f, _ := day.Lookup("meta", "last"); f != Fresh {
		t.Fatalf("last search policy lookup = %v, want fresh", f)
	}
	if day.Policy() != LastSearchPolicy || c.Policy() != QueryPolicy {
		t.Fatalf("policies leaked between caches")
	}
}
