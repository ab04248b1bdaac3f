package app

import (
	"log"
	"math"
	"time"

	"promodeals-radar/database"
)

// Traffic bucketing is pinned to the source site's audience timezone no
// matter where the process runs.
const trafficTimeZone = "America/Mexico_City"

var trafficLoc = loadTrafficLocation()

func loadTrafficLocation() *time.Location {
	loc, err := time.LoadLocation(trafficTimeZone)
	if err != nil {
		log.Printf("⚠️ Failed to load timezone %s: %v", trafficTimeZone, err)
		// Mexico City dropped DST in 2022, a fixed offset is exact.
		return time.FixedZone("CST", -6*60*60)
	}
	return loc
}

// Observation is the current temperature reading for one deal
type Observation struct {
	Temperature         float64
	HoursSincePublished float64
}

// Snapshot is the prior history row used for acceleration detection
type Snapshot struct {
	Temperature float64
	Velocity    float64
	ObservedAt  time.Time
}

// ScoreResult is everything the scorer derives from one observation.
// Deterministic for the same inputs; no I/O happens here.
type ScoreResult struct {
	ViralScore   float64
	Velocity     float64
	Acceleration float64
	Traffic      float64
	FinalScore   float64
	Rating       int
}

// ScoreDeal computes the staged viral score for one observation:
//
//	viral_score = (t - 1) / (h + 0.1)^gravity      (0 when t < 1)
//	final_score = viral_score x acceleration x traffic
//
// The gravity decay mirrors the Hacker News ranking formula: the -1 zeroes
// out single-vote listings and the +0.1h (~6 min) keeps a fresh listing's
// denominator away from zero.
func ScoreDeal(obs Observation, prior *Snapshot, now time.Time, p database.Params) ScoreResult {
	viral := 0.0
	if obs.Temperature >= 1 {
		viral = (obs.Temperature - 1) / math.Pow(obs.HoursSincePublished+0.1, p.Gravity)
	}

	velocity := linearVelocity(obs, prior, now)
	acceleration := accelerationMultiplier(velocity, prior)
	traffic := TrafficMultiplier(now)

	final := viral * acceleration * traffic

	return ScoreResult{
		ViralScore:   viral,
		Velocity:     velocity,
		Acceleration: acceleration,
		Traffic:      traffic,
		FinalScore:   final,
		Rating:       ratingTier(final, p),
	}
}

// linearVelocity is the temperature gain in degrees per minute since the
// prior snapshot, or since publication for a first observation.
func linearVelocity(obs Observation, prior *Snapshot, now time.Time) float64 {
	if prior == nil {
		minutes := obs.HoursSincePublished * 60
		return obs.Temperature / math.Max(minutes, 1.0)
	}
	minutes := now.Sub(prior.ObservedAt).Minutes()
	return (obs.Temperature - prior.Temperature) / math.Max(minutes, 1.0)
}

// accelerationMultiplier rewards sustained acceleration, ignores small
// wiggles and penalizes a clear loss of traction:
//
//	r >= 2.0        -> 2.0
//	1.0 <= r < 2.0  -> r   (linear ramp between 1x and 2x)
//	0.5 <= r < 1.0  -> 1.0
//	r < 0.5         -> 0.5
//
// where r is velocity_now / velocity_prior. Without a meaningful prior
// velocity there is nothing to compare against.
func accelerationMultiplier(velocityNow float64, prior *Snapshot) float64 {
	if prior == nil || prior.Velocity <= 0 {
		return 1.0
	}

	r := velocityNow / prior.Velocity
	switch {
	case r >= 2.0:
		return 2.0
	case r >= 1.0:
		return r
	case r >= 0.5:
		return 1.0
	default:
		return 0.5
	}
}

// TrafficMultiplier shapes the score by the local hour in Mexico City.
// Overnight the site has few voters, so any temperature gain means more.
func TrafficMultiplier(now time.Time) float64 {
	hour := now.In(trafficLoc).Hour()
	switch {
	case hour < 7:
		return 1.5
	case hour < 9:
		return 1.2
	case hour < 22:
		return 1.0
	default:
		return 1.3
	}
}

// ratingTier maps a final score to the discrete fire rating
func ratingTier(finalScore float64, p database.Params) int {
	switch {
	case finalScore >= p.ScoreTier4:
		return 4
	case finalScore >= p.ScoreTier3:
		return 3
	case finalScore >= p.ScoreTier2:
		return 2
	case finalScore >= p.ViralThreshold:
		return 1
	default:
		return 0
	}
}
