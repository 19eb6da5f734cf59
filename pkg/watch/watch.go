// Package watch runs saved searches that have notifications enabled on a
// schedule and publishes listings that newly match them.
//
// For every watched search the watcher keeps the ids it has already seen in
// the "seen" cache namespace. The first pass over a search (or a pass after
// its criteria changed) only records ids; later passes report ids that were
// not seen before.
package watch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/client"
	"github.com/kurtheiz/agistme/pkg/loader"
	"github.com/kurtheiz/agistme/pkg/log"
	"github.com/kurtheiz/agistme/pkg/realtime"
	"github.com/kurtheiz/agistme/pkg/searchtoken"
)

const (
	// DefaultInterval is used when Config.Interval is zero.
	DefaultInterval = 15 * time.Minute

	// NamespaceSeen holds one seen-set per saved search id.
	NamespaceSeen = "seen"

	// maxSeen bounds each seen-set; the oldest ids fall off first.
	maxSeen = 1000
)

// SeenPolicy keeps seen-sets for a month, so a watcher that was stopped for
// a while does not report everything as new when restarted.
var SeenPolicy = cache.Policy{FreshFor: 30 * 24 * time.Hour, RetainFor: 30 * 24 * time.Hour}

var logger = log.ForService("watch")

// Config configures a Watcher.
type Config struct {
	Interval time.Duration
}

// SavedSearchLister lists saved searches. *profile.SavedSearches implements
// it.
type SavedSearchLister interface {
	List(ctx context.Context) ([]client.SavedSearch, error)
}

type seenRecord struct {
	Token string   `json:"token"`
	IDs   []string `json:"ids"`
}

// Watcher is safe for concurrent use.
type Watcher struct {
	searches SavedSearchLister
	fetcher  loader.Fetcher
	seen     *cache.Cache
	hub      *realtime.Hub

	mu       sync.Mutex
	interval time.Duration
	running  bool
	cancel   context.CancelFunc
	resetCh  chan time.Duration
	wg       sync.WaitGroup
}

// New creates a Watcher. seen should use SeenPolicy; hub may be nil when
// only Check's return value is wanted.
func New(cfg Config, searches SavedSearchLister, fetcher loader.Fetcher, seen *cache.Cache, hub *realtime.Hub) *Watcher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		searches: searches,
		fetcher:  fetcher,
		seen:     seen,
		hub:      hub,
		interval: interval,
		resetCh:  make(chan time.Duration, 1),
	}
}

// Start runs a first check immediately and then one per interval, until ctx
// is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher is already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.wg.Add(1)
	go w.run(ctx, w.interval)
	logger.Infof("watching saved searches every %v", w.interval)
	return nil
}

func (w *Watcher) run(ctx context.Context, interval time.Duration) {
	defer w.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.checkAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-w.resetCh:
			ticker.Reset(d)
			logger.Infof("watch interval changed to %v", d)
		case <-ticker.C:
			w.checkAndLog(ctx)
		}
	}
}

func (w *Watcher) checkAndLog(ctx context.Context) {
	events, err := w.Check(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Warnf("check failed: %v", err)
	}
	if len(events) > 0 {
		logger.Infof("%d new matches", len(events))
	}
}

// Stop stops a running watcher and waits for an in-progress check.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.running = false
	w.mu.Unlock()
	w.wg.Wait()
}

// IsRunning reports whether Start has been called without Stop.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Interval returns the current check interval.
func (w *Watcher) Interval() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.interval
}

// SetInterval changes the check interval, taking effect on a running
// watcher without restarting it.
func (w *Watcher) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if d == w.interval {
		return
	}
	w.interval = d
	if !w.running {
		return
	}
	// Keep only the latest pending change.
	select {
	case <-w.resetCh:
	default:
	}
	w.resetCh <- d
}

// Check runs every watched search once and returns the new matches, which
// are also published on the hub. A failing search does not stop the
// others; their errors are joined.
func (w *Watcher) Check(ctx context.Context) ([]realtime.MatchEvent, error) {
	searches, err := w.searches.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing saved searches: %w", err)
	}

	var (
		events []realtime.MatchEvent
		errs   []error
	)
	for _, ss := range searches {
		if !ss.EnableNotifications {
			continue
		}
		found, err := w.checkOne(ctx, ss)
		if err != nil {
			errs = append(errs, fmt.Errorf("saved search %s: %w", ss.ID, err))
			continue
		}
		events = append(events, found...)
	}

	if w.hub != nil {
		for _, e := range events {
			w.hub.PublishMatch(e)
		}
	}
	return events, errors.Join(errs...)
}

func (w *Watcher) checkOne(ctx context.Context, ss client.SavedSearch) ([]realtime.MatchEvent, error) {
	page, err := w.fetcher.FetchPage(ctx, ss.SearchHash, nil)
	if err != nil {
		return nil, err
	}

	var rec seenRecord
	_, f, err := w.seen.LookupJSON(NamespaceSeen, ss.ID, &rec)
	if err != nil {
		return nil, err
	}
	seeding := f == cache.Miss || rec.Token != ss.SearchHash

	var events []realtime.MatchEvent
	if !seeding {
		scope := searchtoken.Decode(ss.SearchHash).Criteria.PriceScope()
		now := w.seen.Now()
		for _, l := range page.Items {
			if slices.Contains(rec.IDs, l.ID) {
				continue
			}
			events = append(events, realtime.MatchEvent{
				SavedSearchID:   ss.ID,
				SavedSearchName: ss.Name,
				Token:           ss.SearchHash,
				ListingID:       l.ID,
				ListingName:     l.Name,
				Suburb:          l.Suburb,
				State:           l.State,
				WeeklyPrice:     l.MinWeeklyPrice(scope),
				DetectedAt:      now,
			})
		}
	} else {
		rec = seenRecord{}
		logger.With("saved_search", ss.ID).Debugf("seeding %d ids", len(page.Items))
	}

	ids := make([]string, 0, len(page.Items)+len(rec.IDs))
	for _, l := range page.Items {
		ids = append(ids, l.ID)
	}
	for _, id := range rec.IDs {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) > maxSeen {
		ids = ids[:maxSeen]
	}
	rec = seenRecord{Token: ss.SearchHash, IDs: ids}
	if _, err := w.seen.PutJSON(NamespaceSeen, ss.ID, rec); err != nil {
		return nil, err
	}
	return events, nil
}
