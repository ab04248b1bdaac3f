package app

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"promodeals-radar/cache"
	"promodeals-radar/database"
)

// Tuning boundaries. The threshold never leaves [thresholdFloor,
// thresholdCeil] no matter what the percentile says, and fewer than
// tunerMinSample winners is not enough evidence to move anything.
const (
	tunerWinnerTemp  = 200.0
	tunerMinAgeHours = 6.0
	tunerMinSample   = 10
	tunerPercentile  = 0.20
	thresholdFloor   = 10.0
	thresholdCeil    = 500.0

	reportsChannel = "autotuner:reports"
)

// TunerAnalytics is the historical-outcome query capability
type TunerAnalytics interface {
	EarliestWinnerScores(ctx context.Context, minTemp, minAgeHours float64) ([]float64, error)
	CheckpointConversion(ctx context.Context, checkpointHours, floor float64) (total, reached200, reached500 int64, err error)
	PositiveVelocities(ctx context.Context) ([]float64, error)
}

// TunerStore persists the recomputed parameters
type TunerStore interface {
	SaveConfigValues(ctx context.Context, values map[string]float64) error
}

// ConversionCell is one checkpoint/floor combination in the golden-ratio
// report: of the deals at or above the floor by the checkpoint, how many
// went on to 200 and 500 degrees.
type ConversionCell struct {
	CheckpointMinutes int     `json:"checkpoint_minutes"`
	Floor             float64 `json:"floor"`
	Qualified         int64   `json:"qualified"`
	Reached200        int64   `json:"reached_200"`
	Reached500        int64   `json:"reached_500"`
	Ratio200          float64 `json:"ratio_200"`
	Ratio500          float64 `json:"ratio_500"`
}

// GoldenRatioReport is published for operators; it never changes thresholds
type GoldenRatioReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Cells       []ConversionCell `json:"cells"`
}

// AutoTuner periodically recomputes the viral threshold and the velocity
// percentile keys from accumulated history, and publishes the golden-ratio
// conversion report.
type AutoTuner struct {
	analytics TunerAnalytics
	store     TunerStore
	redis     *cache.RedisClient
	interval  time.Duration
	done      chan bool
}

// NewAutoTuner creates the tuner
func NewAutoTuner(analytics TunerAnalytics, store TunerStore, redis *cache.RedisClient, interval time.Duration) *AutoTuner {
	return &AutoTuner{
		analytics: analytics,
		store:     store,
		redis:     redis,
		interval:  interval,
		done:      make(chan bool),
	}
}

// Start runs one tuning pass immediately, then one per interval until Stop
func (at *AutoTuner) Start() {
	log.Printf("🧠 AutoTuner started (interval %s)", at.interval)
	at.RunOnce()

	ticker := time.NewTicker(at.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			at.RunOnce()
		case <-at.done:
			log.Println("🧠 AutoTuner stopped")
			return
		}
	}
}

// Stop terminates the tuning loop
func (at *AutoTuner) Stop() {
	close(at.done)
}

// RunOnce performs a full tuning pass under one deadline. Every step is
// independent and non-fatal: a failed query leaves the current thresholds in
// place.
func (at *AutoTuner) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	at.tuneViralThreshold(ctx)
	at.tuneVelocityPercentiles(ctx)
	at.publishGoldenRatioReport(ctx)
}

func (at *AutoTuner) tuneViralThreshold(ctx context.Context) {
	scores, err := at.analytics.EarliestWinnerScores(ctx, tunerWinnerTemp, tunerMinAgeHours)
	if err != nil {
		log.Printf("⚠️  AutoTuner: winner scores query failed: %v", err)
		return
	}

	threshold, ok := computeViralThreshold(scores)
	if !ok {
		log.Printf("🧠 AutoTuner: only %d finished winners, keeping current viral threshold", len(scores))
		return
	}

	if err := at.store.SaveConfigValues(ctx, map[string]float64{
		database.KeyViralThreshold: threshold,
	}); err != nil {
		log.Printf("⚠️  AutoTuner: failed to save viral threshold: %v", err)
		return
	}
	log.Printf("🧠 AutoTuner: viral threshold recalibrated to %.2f from %d winners", threshold, len(scores))
}

func (at *AutoTuner) tuneVelocityPercentiles(ctx context.Context) {
	velocities, err := at.analytics.PositiveVelocities(ctx)
	if err != nil {
		log.Printf("⚠️  AutoTuner: velocity query failed: %v", err)
		return
	}
	if len(velocities) < tunerMinSample {
		return
	}

	values := map[string]float64{
		database.KeyVelocityP50: percentileCont(velocities, 0.50),
		database.KeyVelocityP80: percentileCont(velocities, 0.80),
		database.KeyVelocityP95: percentileCont(velocities, 0.95),
	}
	if err := at.store.SaveConfigValues(ctx, values); err != nil {
		log.Printf("⚠️  AutoTuner: failed to save velocity percentiles: %v", err)
		return
	}
	log.Printf("📊 AutoTuner: velocity percentiles p50=%.3f p80=%.3f p95=%.3f (n=%d)",
		values[database.KeyVelocityP50], values[database.KeyVelocityP80],
		values[database.KeyVelocityP95], len(velocities))
}

func (at *AutoTuner) publishGoldenRatioReport(ctx context.Context) {
	checkpoints := []float64{0.25, 0.5, 1.0} // hours: 15, 30 and 60 minutes
	floors := []float64{20, 30, 50}

	report := GoldenRatioReport{GeneratedAt: time.Now().UTC()}
	for _, checkpoint := range checkpoints {
		for _, floor := range floors {
			total, r200, r500, err := at.analytics.CheckpointConversion(ctx, checkpoint, floor)
			if err != nil {
				log.Printf("⚠️  AutoTuner: conversion query failed (%.0fmin/%.0f°): %v",
					checkpoint*60, floor, err)
				return
			}
			cell := ConversionCell{
				CheckpointMinutes: int(checkpoint * 60),
				Floor:             floor,
				Qualified:         total,
				Reached200:        r200,
				Reached500:        r500,
			}
			if total > 0 {
				cell.Ratio200 = float64(r200) / float64(total)
				cell.Ratio500 = float64(r500) / float64(total)
			}
			report.Cells = append(report.Cells, cell)
			log.Printf("📊 Golden ratio %dmin/%.0f°: %d qualified, %.1f%% → 200°, %.1f%% → 500°",
				cell.CheckpointMinutes, cell.Floor, cell.Qualified,
				cell.Ratio200*100, cell.Ratio500*100)
		}
	}

	if err := at.redis.Publish(ctx, reportsChannel, report); err != nil {
		log.Printf("⚠️  AutoTuner: report publish skipped: %v", err)
	}
}

// computeViralThreshold derives the new threshold as the 20th percentile of
// the earliest viral scores of finished winners, clamped to the safety band.
// Returns false when the sample is too small to act on.
func computeViralThreshold(scores []float64) (float64, bool) {
	if len(scores) < tunerMinSample {
		return 0, false
	}
	p := percentileCont(scores, tunerPercentile)
	return math.Min(math.Max(p, thresholdFloor), thresholdCeil), true
}

// percentileCont computes a percentile with linear interpolation between the
// two nearest ranks, matching PostgreSQL's PERCENTILE_CONT.
func percentileCont(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
