package app

import "promodeals-radar/database"

// DropReason says why the gate held a scored observation back
type DropReason string

const (
	DropNone            DropReason = ""
	DropExpired         DropReason = "expired"
	DropBelowSeed       DropReason = "below_seed_temp"
	DropBelowThreshold  DropReason = "below_threshold"
	DropAlreadyNotified DropReason = "already_notified"
)

// Verdict is the gate's decision for one scored observation
type Verdict struct {
	Notify bool
	Reason DropReason
}

// EvaluateGate applies the notification filters in order: expired listings
// and under-seed temperatures are noise, rating 0 is below the viral
// threshold, and a rating at or under the highest tier already notified
// would be a repeat. Only strict tier upgrades pass.
//
// The gate never blocks persistence: the history row for this cycle is
// written before the gate runs, whatever the verdict.
func EvaluateGate(expired bool, temperature float64, rating, maxRatingNotified int, p database.Params) Verdict {
	switch {
	case expired:
		return Verdict{Reason: DropExpired}
	case temperature < p.MinSeedTemp:
		return Verdict{Reason: DropBelowSeed}
	case rating == 0:
		return Verdict{Reason: DropBelowThreshold}
	case rating <= maxRatingNotified:
		return Verdict{Reason: DropAlreadyNotified}
	default:
		return Verdict{Notify: true}
	}
}
