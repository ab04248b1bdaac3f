package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promodeals-radar/config"
	"promodeals-radar/database"
	"promodeals-radar/notifications"
	"promodeals-radar/scraper"
)

// ----------------------------------------------------------------------------
// Fakes
// ----------------------------------------------------------------------------

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type fakeScraper struct {
	mu        sync.Mutex
	calls     int
	failFirst bool
	err       error
	deals     []scraper.RawDeal
}

func (f *fakeScraper) FetchNewest(ctx context.Context) ([]scraper.RawDeal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.failFirst && f.calls == 1 {
		return nil, errors.New("extractor returned HTTP 503")
	}
	return f.deals, nil
}

type fakeStore struct {
	mu         sync.Mutex
	params     database.Params
	paramsErr  error
	snapshots  map[string]database.DealHistory
	maxRatings map[string]int
	records    []*database.ObservationRecord
	raised     map[int64]int
	ids        map[string]int64
	nextID     int64

	// calls arriving without a deadline would hang forever on a stuck store
	callsWithoutDeadline int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		params:     database.DefaultParams(),
		snapshots:  make(map[string]database.DealHistory),
		maxRatings: make(map[string]int),
		raised:     make(map[int64]int),
		ids:        make(map[string]int64),
	}
}

func (f *fakeStore) noteDeadline(ctx context.Context) {
	if _, ok := ctx.Deadline(); !ok {
		f.callsWithoutDeadline++
	}
}

func (f *fakeStore) LoadParams(ctx context.Context) (database.Params, error) {
	f.mu.Lock()
	f.noteDeadline(ctx)
	f.mu.Unlock()
	if f.paramsErr != nil {
		return database.Params{}, f.paramsErr
	}
	return f.params, nil
}

func (f *fakeStore) LatestSnapshots(ctx context.Context, urls []string) (map[string]database.DealHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteDeadline(ctx)
	out := make(map[string]database.DealHistory)
	for _, url := range urls {
		if snap, ok := f.snapshots[url]; ok {
			out[url] = snap
		}
	}
	return out, nil
}

func (f *fakeStore) RecordObservation(ctx context.Context, rec *database.ObservationRecord) (int64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteDeadline(ctx)
	id, ok := f.ids[rec.URL]
	if !ok {
		f.nextID++
		id = f.nextID
		f.ids[rec.URL] = id
	}
	f.records = append(f.records, rec)
	return id, f.maxRatings[rec.URL], nil
}

func (f *fakeStore) RaiseMaxRating(ctx context.Context, dealID int64, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteDeadline(ctx)
	if rating > f.raised[dealID] {
		f.raised[dealID] = rating
	}
	return nil
}

type fakeNotifier struct {
	mu           sync.Mutex
	calls        map[string]int
	failAllWith  error
	failFirstTry bool
}

func (f *fakeNotifier) Send(ctx context.Context, chatID string, msg notifications.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[chatID]++
	if f.failAllWith != nil {
		return f.failAllWith
	}
	if f.failFirstTry && f.calls[chatID] == 1 {
		return &notifications.SendError{ChatID: chatID, StatusCode: 500, Err: errors.New("upstream hiccup")}
	}
	return nil
}

type fakeSubscribers struct{ list []string }

func (f *fakeSubscribers) ListRecipients(ctx context.Context) ([]string, error) {
	return f.list, nil
}

// ----------------------------------------------------------------------------
// Fixtures
// ----------------------------------------------------------------------------

func testRadarConfig() config.RadarConfig {
	return config.RadarConfig{
		CycleMinSeconds:      1,
		CycleMaxSeconds:      2,
		CycleDeadlineSeconds: 30,
		DealWorkers:          4,
		NotifyConcurrency:    2,
		ScrapeTimeoutSeconds:  5,
		NotifyTimeoutSeconds:  5,
		StorageTimeoutSeconds: 5,
	}
}

func newTestHunter(sc scraper.Scraper, store DealStore, notifier Notifier, subs SubscriberSource) (*Hunter, *Heartbeat) {
	heartbeat := &Heartbeat{}
	h := NewHunter(HunterDeps{
		Scraper:     sc,
		Store:       store,
		Notifier:    notifier,
		Subscribers: subs,
		Clock:       &fakeClock{now: localTime(12, 0, 0)},
	}, testRadarConfig(), heartbeat)
	return h, heartbeat
}

func hotDeal(now time.Time) scraper.RawDeal {
	return scraper.RawDeal{
		URL:         "https://example.mx/ofertas/switch-oled",
		Title:       "Nintendo Switch OLED",
		Merchant:    "Amazon",
		Temperature: 80,
		PublishedAt: now.Add(-30 * time.Minute),
	}
}

// ----------------------------------------------------------------------------
// Tests
// ----------------------------------------------------------------------------

func TestRunCycle_RecordsEveryValidObservation(t *testing.T) {
	now := localTime(12, 0, 0)
	store := newFakeStore()
	notifier := &fakeNotifier{}

	deals := []scraper.RawDeal{
		hotDeal(now),
		{URL: "https://example.mx/ofertas/cold", Title: "Tibio", Temperature: 5, PublishedAt: now.Add(-time.Hour)},
		{URL: "https://example.mx/ofertas/expired", Title: "Vencido", Temperature: 90, PublishedAt: now.Add(-time.Hour), Expired: true},
		{Title: "Sin URL", Temperature: 50, PublishedAt: now}, // malformed, skipped entirely
	}

	h, heartbeat := newTestHunter(&fakeScraper{deals: deals}, store, notifier, &fakeSubscribers{list: []string{"111", "222"}})
	require.NoError(t, h.RunCycle(context.Background()))

	// Dropped deals still get their history row; the malformed one does not
	assert.Len(t, store.records, 3)

	// Only the hot deal cleared the gate, fanned out to both recipients
	assert.Equal(t, 1, notifier.calls["111"])
	assert.Equal(t, 1, notifier.calls["222"])

	hotID := store.ids["https://example.mx/ofertas/switch-oled"]
	assert.Equal(t, 2, store.raised[hotID], "80 degrees at 30 minutes scores into tier 2")

	assert.Equal(t, now, heartbeat.Last())
}

func TestRunCycle_NoRaiseWhenNobodyReached(t *testing.T) {
	now := localTime(12, 0, 0)
	store := newFakeStore()
	// Permanent failure for every recipient, no retries
	notifier := &fakeNotifier{failAllWith: &notifications.SendError{StatusCode: 403, Err: errors.New("bot blocked")}}

	h, _ := newTestHunter(&fakeScraper{deals: []scraper.RawDeal{hotDeal(now)}}, store, notifier, &fakeSubscribers{list: []string{"111"}})
	require.NoError(t, h.RunCycle(context.Background()))

	assert.Len(t, store.records, 1, "the observation persists regardless")
	assert.Empty(t, store.raised, "failed fan-out must leave the deal eligible for retry")
	assert.Equal(t, 1, notifier.calls["111"], "permanent errors are not retried")
}

func TestRunCycle_TransientSendRetriedOnce(t *testing.T) {
	now := localTime(12, 0, 0)
	store := newFakeStore()
	notifier := &fakeNotifier{failFirstTry: true}

	h, _ := newTestHunter(&fakeScraper{deals: []scraper.RawDeal{hotDeal(now)}}, store, notifier, &fakeSubscribers{list: []string{"111"}})
	require.NoError(t, h.RunCycle(context.Background()))

	assert.Equal(t, 2, notifier.calls["111"])
	hotID := store.ids["https://example.mx/ofertas/switch-oled"]
	assert.Equal(t, 2, store.raised[hotID], "retry succeeded, rating raised")
}

func TestRunCycle_ScrapeRetriedOnce(t *testing.T) {
	now := localTime(12, 0, 0)
	store := newFakeStore()
	sc := &fakeScraper{failFirst: true, deals: []scraper.RawDeal{hotDeal(now)}}

	h, _ := newTestHunter(sc, store, &fakeNotifier{}, &fakeSubscribers{list: []string{"111"}})
	require.NoError(t, h.RunCycle(context.Background()))

	assert.Equal(t, 2, sc.calls)
	assert.Len(t, store.records, 1)
}

func TestRunCycle_StorageUnavailableAborts(t *testing.T) {
	store := newFakeStore()
	store.paramsErr = fmt.Errorf("%w: load config: connection refused", database.ErrStorageUnavailable)
	sc := &fakeScraper{}

	h, heartbeat := newTestHunter(sc, store, &fakeNotifier{}, &fakeSubscribers{})
	err := h.RunCycle(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrStorageUnavailable)
	assert.Zero(t, sc.calls, "no scrape without cycle parameters")
	assert.True(t, heartbeat.Last().IsZero(), "a failed cycle is not a heartbeat")
}

func TestRunCycle_AlreadyNotifiedTierSuppressed(t *testing.T) {
	now := localTime(12, 0, 0)
	store := newFakeStore()
	store.maxRatings["https://example.mx/ofertas/switch-oled"] = 2
	notifier := &fakeNotifier{}

	h, _ := newTestHunter(&fakeScraper{deals: []scraper.RawDeal{hotDeal(now)}}, store, notifier, &fakeSubscribers{list: []string{"111"}})
	require.NoError(t, h.RunCycle(context.Background()))

	assert.Len(t, store.records, 1, "history still written")
	assert.Empty(t, notifier.calls, "same tier never re-alerts")
}

// Every storage call gets its own deadline; a hung query must die with it
// instead of stalling the cycle loop.
func TestRunCycle_StorageCallsCarryDeadline(t *testing.T) {
	now := localTime(12, 0, 0)
	store := newFakeStore()

	h, _ := newTestHunter(&fakeScraper{deals: []scraper.RawDeal{hotDeal(now)}}, store, &fakeNotifier{}, &fakeSubscribers{list: []string{"111"}})
	require.NoError(t, h.RunCycle(context.Background()))

	// All four paths were exercised: params, snapshots, record, raise
	require.NotEmpty(t, store.raised)
	assert.Zero(t, store.callsWithoutDeadline, "storage call reached the store without a deadline")
}

func TestRunCycle_PriorSnapshotDrivesAcceleration(t *testing.T) {
	now := localTime(12, 0, 0)
	store := newFakeStore()
	store.snapshots["https://example.mx/ofertas/switch-oled"] = database.DealHistory{
		Temperature: 55,
		Velocity:    0.5,
		ObservedAt:  now.Add(-10 * time.Minute),
	}

	h, _ := newTestHunter(&fakeScraper{deals: []scraper.RawDeal{hotDeal(now)}}, store, &fakeNotifier{}, &fakeSubscribers{list: []string{"111"}})
	require.NoError(t, h.RunCycle(context.Background()))

	require.Len(t, store.records, 1)
	rec := store.records[0]
	// +25 degrees over 10 minutes against the stored snapshot
	assert.InDelta(t, 2.5, rec.Velocity, 0.001)
	assert.InDelta(t, rec.ViralScore*2.0, rec.FinalScore, 0.001, "5x velocity ratio caps at the 2x multiplier")
}
