package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/v1", AccessToken: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &sleeps
}

func TestNewValidatesURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com", "://bad"} {
		if _, err := New(Options{BaseURL: u}); err == nil {
			t.Errorf("New(%q) succeeded", u)
		}
	}
}

func TestFetchPage(t *testing.T) {
	var gotAuth, gotToken, gotCursor, gotUA string
	var hasCursor bool
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		gotToken = r.URL.Query().Get("token")
		gotCursor = r.URL.Query().Get("cursor")
		_, hasCursor = r.URL.Query()["cursor"]
		w.Write([]byte(`{"results":[{"id":"l1","name":"Hillview"}],"nextToken":"opaque+/="}`))
	}))

	page, err := c.FetchPage(context.Background(), "tok", nil)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotUA == "" {
		t.Errorf("missing User-Agent")
	}
	if gotToken != "tok" || hasCursor {
		t.Errorf("first page query: token=%q cursor present=%v", gotToken, hasCursor)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "l1" || page.NextCursor == nil || *page.NextCursor != "opaque+/=" {
		t.Fatalf("unexpected page: %+v", page)
	}

	if _, err := c.FetchPage(context.Background(), "tok", page.NextCursor); err != nil {
		t.Fatalf("FetchPage next: %v", err)
	}
	if gotCursor != "opaque+/=" {
		t.Errorf("cursor not passed verbatim: %q", gotCursor)
	}
}

func TestFetchPageLastPage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":null,"nextToken":null}`))
	}))
	page, err := c.FetchPage(context.Background(), "tok", nil)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if !page.Exhausted() || page.Items == nil {
		t.Fatalf("expected exhausted page with empty items, got %+v", page)
	}
}

func TestFetchPageNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))

	_, err := c.FetchPage(context.Background(), "tok", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected APIError 502, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("search fetch retried: %d calls", calls.Load())
	}
}

func TestGetListingNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listings/a%2Fb" && r.URL.EscapedPath() != "/v1/listings/a%2Fb" {
			t.Errorf("listing id not escaped: %s", r.URL.EscapedPath())
		}
		http.NotFound(w, r)
	}))
	_, err := c.GetListing(context.Background(), "a/b")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfileRetriesWithLinearBackoff(t *testing.T) {
	var calls atomic.Int32
	c, sleeps := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(Profile{ID: "u1", Bio: "Dressage rider"})
	}))

	p, err := c.GetProfile(context.Background())
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Bio != "Dressage rider" || calls.Load() != 3 {
		t.Fatalf("profile = %+v after %d calls", p, calls.Load())
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != time.Second || (*sleeps)[1] != 2*time.Second {
		t.Fatalf("backoff = %v, want [1s 2s]", *sleeps)
	}
}

func TestProfileRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	err := c.PutFavourites(context.Background(), []string{"l1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected wrapped APIError, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestProfileClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	if _, err := c.GetSavedSearches(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx retried: %d calls", calls.Load())
	}
}

func TestSavedSearchesRoundTrip(t *testing.T) {
	var stored []byte
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var body savedSearchesBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding PUT body: %v", err)
			}
			stored, _ = json.Marshal(body)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			w.Write(stored)
		}
	}))

	in := []SavedSearch{{ID: "s1", Name: "Hills", SearchHash: "eyJ2IjoyfQ", EnableNotifications: true,
		LastUpdate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}}
	if err := c.PutSavedSearches(context.Background(), in); err != nil {
		t.Fatalf("PutSavedSearches: %v", err)
	}
	out, err := c.GetSavedSearches(context.Background())
	if err != nil {
		t.Fatalf("GetSavedSearches: %v", err)
	}
	if len(out) != 1 || out[0].SearchHash != in[0].SearchHash || !out[0].EnableNotifications || !out[0].LastUpdate.Equal(in[0].LastUpdate) {
		t.Fatalf("unexpected saved searches: %+v", out)
	}
}

func TestEnquiryValidate(t *testing.T) {
	valid := Enquiry{ListingID: "l1", Name: "Sam", Email: "sam@example.com", Message: "Two horses from March"}
	tests := []struct {
		name   string
		mutate func(*Enquiry)
		ok     bool
	}{
		{"valid", func(*Enquiry) {}, true},
		{"missing listing", func(e *Enquiry) { e.ListingID = "" }, false},
		{"blank message", func(e *Enquiry) { e.Message = "  " }, false},
		{"bad email", func(e *Enquiry) { e.Email = "sam at example" }, false},
		{"named email", func(e *Enquiry) { e.Email = "Sam <sam@example.com>" }, false},
		{"negative horses", func(e *Enquiry) { e.Horses = -1 }, false},
		{"bad date", func(e *Enquiry) { e.StartDate = "01/03/2026" }, false},
		{"good date", func(e *Enquiry) { e.StartDate = "2026-03-01" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			err := e.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidEnquiry) {
				t.Fatalf("expected ErrInvalidEnquiry, got %v", err)
			}
		})
	}
}

func TestSubmitEnquiry(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/v1/enquiries" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var e Enquiry
		json.NewDecoder(r.Body).Decode(&e)
		if e.ListingID != "l1" {
			t.Errorf("listing id = %q", e.ListingID)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"enq-1","submittedAt":"2026-03-01T10:00:00Z"}`))
	}))

	if _, err := c.SubmitEnquiry(context.Background(), Enquiry{ListingID: "l1"}); !errors.Is(err, ErrInvalidEnquiry) {
		t.Fatalf("invalid enquiry was not rejected locally: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("invalid enquiry reached the server")
	}

	r, err := c.SubmitEnquiry(context.Background(), Enquiry{
		ListingID: "l1", Name: "Sam", Email: "sam@example.com", Message: "Hello",
	})
	if err != nil || r.ID != "enq-1" {
		t.Fatalf("SubmitEnquiry = %+v, %v", r, err)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	if _, err := c.GetProfile(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
