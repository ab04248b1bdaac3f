package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"promodeals-radar/config"
	"promodeals-radar/database"
	"promodeals-radar/helpers"
	"promodeals-radar/notifications"
	"promodeals-radar/realtime"
	"promodeals-radar/scraper"
)

// Three failed cycles in a row means the radar is blind, not unlucky
const consecutiveFailureAlert = 3

// candidate is a deal that cleared the decision gate this cycle and is
// waiting for the notification fan-out.
type candidate struct {
	dealID int64
	rating int
	view   notifications.DealView
	msg    notifications.Message
}

// HunterDeps are the collaborators the hunter drives each cycle
type HunterDeps struct {
	Scraper      scraper.Scraper
	Store        DealStore
	Notifier     Notifier
	Subscribers  SubscriberSource
	Broker       *realtime.Broker
	Clock        Clock
	AdminChatIDs []string
}

// Hunter runs the observation cycle: scrape the newest listings, score and
// persist every one of them, then notify subscribers about the gated few.
type Hunter struct {
	scraper     scraper.Scraper
	store       DealStore
	notifier    Notifier
	subscribers SubscriberSource
	broker      *realtime.Broker
	clock       Clock
	admins      []string
	cfg         config.RadarConfig
	heartbeat   *Heartbeat

	consecutiveFailures int
}

// NewHunter creates the hunter
func NewHunter(deps HunterDeps, cfg config.RadarConfig, heartbeat *Heartbeat) *Hunter {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &Hunter{
		scraper:     deps.Scraper,
		store:       deps.Store,
		notifier:    deps.Notifier,
		subscribers: deps.Subscribers,
		broker:      deps.Broker,
		clock:       clock,
		admins:      deps.AdminChatIDs,
		cfg:         cfg,
		heartbeat:   heartbeat,
	}
}

// Run executes cycles until the context is cancelled. The wait between
// cycles is uniform random within the configured band so the scrape pattern
// never looks like a cron job.
func (h *Hunter) Run(ctx context.Context) {
	log.Println("🏹 Deal hunter started")
	for {
		if err := h.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				log.Println("🏹 Deal hunter stopped")
				return
			}
			h.consecutiveFailures++
			log.Printf("❌ Cycle failed (%d consecutive): %v", h.consecutiveFailures, err)
			if h.consecutiveFailures == consecutiveFailureAlert {
				h.alertAdmins(ctx, err)
			}
		} else {
			h.consecutiveFailures = 0
		}

		wait := h.nextCycleWait()
		log.Printf("🏹 Next cycle in %s", wait.Round(time.Second))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			log.Println("🏹 Deal hunter stopped")
			return
		}
	}
}

func (h *Hunter) nextCycleWait() time.Duration {
	span := h.cfg.CycleMaxSeconds - h.cfg.CycleMinSeconds
	if span < 0 {
		span = 0
	}
	return time.Duration(h.cfg.CycleMinSeconds+rand.Intn(span+1)) * time.Second
}

// RunCycle performs one observation cycle under the soft deadline. Cycle-wide
// preconditions (parameters, snapshots, the scrape itself) abort the cycle on
// failure; per-deal failures are logged and skipped.
func (h *Hunter) RunCycle(parent context.Context) error {
	started := h.clock.Now()
	ctx, cancel := context.WithTimeout(parent, time.Duration(h.cfg.CycleDeadlineSeconds)*time.Second)
	defer cancel()

	params, err := h.loadParams(ctx)
	if err != nil {
		return fmt.Errorf("load cycle params: %w", err)
	}

	raw, err := h.fetchNewest(ctx)
	if err != nil {
		return fmt.Errorf("fetch newest deals: %w", err)
	}

	var valid []scraper.RawDeal
	for i := range raw {
		if err := scraper.Validate(&raw[i]); err != nil {
			log.Printf("⚠️  Skipping listing: %v", err)
			continue
		}
		valid = append(valid, raw[i])
	}

	urls := make([]string, len(valid))
	for i, d := range valid {
		urls[i] = d.URL
	}
	snapshots, err := h.loadSnapshots(ctx, urls)
	if err != nil {
		return fmt.Errorf("load prior snapshots: %w", err)
	}

	var (
		mu         sync.Mutex
		candidates []candidate
		abandoned  int
	)
	sem := make(chan struct{}, h.cfg.DealWorkers)
	var wg sync.WaitGroup
	for _, d := range valid {
		if ctx.Err() != nil {
			abandoned++
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(d scraper.RawDeal) {
			defer wg.Done()
			defer func() { <-sem }()
			if c := h.processDeal(ctx, d, snapshots, params); c != nil {
				mu.Lock()
				candidates = append(candidates, *c)
				mu.Unlock()
			}
		}(d)
	}
	wg.Wait()
	if abandoned > 0 {
		log.Printf("⚠️  Cycle deadline reached, abandoned %d queued deals", abandoned)
	}

	if len(candidates) > 0 {
		h.notifyCandidates(ctx, candidates)
	}

	done := h.clock.Now()
	h.heartbeat.Mark(done)
	log.Printf("✅ Cycle complete in %s: %d scraped, %d valid, %d alerts",
		done.Sub(started).Round(time.Millisecond), len(raw), len(valid), len(candidates))
	return nil
}

// fetchNewest calls the scraper with a per-call timeout, retrying once after
// a short jittered pause.
func (h *Hunter) fetchNewest(ctx context.Context) ([]scraper.RawDeal, error) {
	deals, err := h.scrapeOnce(ctx)
	if err == nil {
		return deals, nil
	}

	log.Printf("⚠️  Scrape failed, retrying once: %v", err)
	select {
	case <-time.After(time.Duration(1000+rand.Intn(2000)) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return h.scrapeOnce(ctx)
}

func (h *Hunter) scrapeOnce(ctx context.Context) ([]scraper.RawDeal, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(h.cfg.ScrapeTimeoutSeconds)*time.Second)
	defer cancel()
	return h.scraper.FetchNewest(callCtx)
}

// storageCtx derives the per-call deadline for one storage operation. The
// deadline starts at call time, so a begun transaction is never cut short by
// time already burned elsewhere in the cycle.
func (h *Hunter) storageCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, time.Duration(h.cfg.StorageTimeoutSeconds)*time.Second)
}

func (h *Hunter) loadParams(ctx context.Context) (database.Params, error) {
	callCtx, cancel := h.storageCtx(ctx)
	defer cancel()
	return h.store.LoadParams(callCtx)
}

func (h *Hunter) loadSnapshots(ctx context.Context, urls []string) (map[string]database.DealHistory, error) {
	callCtx, cancel := h.storageCtx(ctx)
	defer cancel()
	return h.store.LatestSnapshots(callCtx, urls)
}

// processDeal scores one listing, persists the observation and runs the
// decision gate. The history row is written whatever the gate decides, so
// the AutoTuner sees dropped deals too. Returns nil when nothing should be
// notified.
func (h *Hunter) processDeal(ctx context.Context, d scraper.RawDeal, snapshots map[string]database.DealHistory, params database.Params) *candidate {
	now := h.clock.Now()
	hours := now.Sub(d.PublishedAt).Hours()
	if hours < 0 {
		hours = 0
	}

	var prior *Snapshot
	if snap, ok := snapshots[d.URL]; ok {
		prior = &Snapshot{
			Temperature: snap.Temperature,
			Velocity:    snap.Velocity,
			ObservedAt:  snap.ObservedAt,
		}
	}

	res := ScoreDeal(Observation{Temperature: d.Temperature, HoursSincePublished: hours}, prior, now, params)

	rec := &database.ObservationRecord{
		URL:         d.URL,
		Title:       d.Title,
		Merchant:    d.Merchant,
		ImageURL:    d.ImageURL,
		Price:       d.Price,
		Discount:    d.Discount,
		Coupon:      d.Coupon,
		Description: d.Description,
		PublishedAt: d.PublishedAt,
		Expired:     d.Expired,

		ObservedAt:          now,
		Temperature:         d.Temperature,
		HoursSincePublished: hours,
		Velocity:            res.Velocity,
		ViralScore:          res.ViralScore,
		FinalScore:          res.FinalScore,
	}
	callCtx, cancel := h.storageCtx(ctx)
	dealID, maxRating, err := h.store.RecordObservation(callCtx, rec)
	cancel()
	if err != nil {
		log.Printf("❌ Failed to record observation for %s: %v", d.URL, err)
		return nil
	}

	verdict := EvaluateGate(d.Expired, d.Temperature, res.Rating, maxRating, params)
	if !verdict.Notify {
		return nil
	}

	view := notifications.DealView{
		Title:               d.Title,
		Merchant:            d.Merchant,
		ImageURL:            d.ImageURL,
		URL:                 d.URL,
		Price:               d.Price,
		Discount:            d.Discount,
		Coupon:              d.Coupon,
		Description:         d.Description,
		PostedOrUpdated:     d.PostedOrUpdated,
		Temperature:         d.Temperature,
		HoursSincePublished: hours,
		Rating:              res.Rating,
	}
	return &candidate{
		dealID: dealID,
		rating: res.Rating,
		view:   view,
		msg:    notifications.BuildDealMessage(view),
	}
}

// notifyCandidates fans each gated deal out to every recipient. The notified
// rating is raised only after at least one delivery succeeded, so a total
// send failure leaves the deal eligible for the next cycle.
func (h *Hunter) notifyCandidates(ctx context.Context, candidates []candidate) {
	recipients, err := h.subscribers.ListRecipients(ctx)
	if err != nil {
		log.Printf("⚠️  Could not load recipients, alerts postponed: %v", err)
		return
	}
	if len(recipients) == 0 {
		log.Println("⚠️  No recipients registered, skipping fan-out")
		return
	}

	for _, c := range candidates {
		successes := h.fanOut(ctx, c.msg, recipients)
		if successes == 0 {
			log.Printf("❌ Alert for deal %d reached nobody, will retry next cycle", c.dealID)
			continue
		}

		callCtx, cancel := h.storageCtx(ctx)
		if err := h.store.RaiseMaxRating(callCtx, c.dealID, c.rating); err != nil {
			log.Printf("⚠️  Failed to raise notified rating for deal %d: %v", c.dealID, err)
		}
		cancel()
		if h.broker != nil {
			h.broker.BroadcastJSON(map[string]interface{}{
				"type":        "deal_alert",
				"deal_id":     c.dealID,
				"rating":      c.rating,
				"title":       c.view.Title,
				"url":         c.view.URL,
				"temperature": c.view.Temperature,
			})
		}
		log.Printf("🔥 Deal %d notified at rating %d (%d/%d recipients)",
			c.dealID, c.rating, successes, len(recipients))
	}
}

// fanOut sends one message to all recipients with bounded concurrency and
// returns how many deliveries succeeded.
func (h *Hunter) fanOut(ctx context.Context, msg notifications.Message, recipients []string) int {
	sem := make(chan struct{}, h.cfg.NotifyConcurrency)
	var wg sync.WaitGroup
	var successes int64

	for _, chatID := range recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(chatID string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := h.sendWithRetry(ctx, chatID, msg); err != nil {
				log.Printf("⚠️  Delivery to %s failed: %v", chatID, err)
				return
			}
			atomic.AddInt64(&successes, 1)
		}(chatID)
	}
	wg.Wait()
	return int(successes)
}

// sendWithRetry attempts one delivery, retrying a single time after a
// jittered pause when the failure looks transient.
func (h *Hunter) sendWithRetry(ctx context.Context, chatID string, msg notifications.Message) error {
	timeout := time.Duration(h.cfg.NotifyTimeoutSeconds) * time.Second

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	err := h.notifier.Send(callCtx, chatID, msg)
	cancel()
	if err == nil {
		return nil
	}

	var sendErr *notifications.SendError
	if errors.As(err, &sendErr) && !sendErr.Transient() {
		return err
	}
	if ctx.Err() != nil {
		return err
	}

	select {
	case <-time.After(time.Duration(500+rand.Intn(1500)) * time.Millisecond):
	case <-ctx.Done():
		return err
	}

	callCtx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()
	return h.notifier.Send(callCtx, chatID, msg)
}

// alertAdmins tells the operators the radar has gone blind
func (h *Hunter) alertAdmins(ctx context.Context, cause error) {
	if len(h.admins) == 0 {
		return
	}
	text := fmt.Sprintf(
		"⚠️ <b>Radar degradado</b>\n\n%d ciclos consecutivos fallidos.\nÚltimo error: <code>%s</code>",
		consecutiveFailureAlert, helpers.EscapeHTML(cause.Error()))
	msg := notifications.Message{Text: text}

	for _, chatID := range h.admins {
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(h.cfg.NotifyTimeoutSeconds)*time.Second)
		if err := h.notifier.Send(callCtx, chatID, msg); err != nil {
			log.Printf("⚠️  Operator alert to %s failed: %v", chatID, err)
		}
		cancel()
	}
}
