// Package app wires the radar together: the hunter loop that scores and
// persists scraped listings, the decision gate, the notification fan-out and
// the AutoTuner that recalibrates thresholds from history.
package app

import (
	"context"
	"time"

	"promodeals-radar/database"
	"promodeals-radar/notifications"
)

// DealStore is the persistence capability the hunter needs each cycle. Every
// call carries a context so a hung query dies with its deadline instead of
// stalling the loop.
type DealStore interface {
	LoadParams(ctx context.Context) (database.Params, error)
	LatestSnapshots(ctx context.Context, urls []string) (map[string]database.DealHistory, error)
	RecordObservation(ctx context.Context, rec *database.ObservationRecord) (int64, int, error)
	RaiseMaxRating(ctx context.Context, dealID int64, rating int) error
}

// Notifier delivers one rendered message to one recipient
type Notifier interface {
	Send(ctx context.Context, chatID string, msg notifications.Message) error
}

// SubscriberSource yields the recipient list for a fan-out
type SubscriberSource interface {
	ListRecipients(ctx context.Context) ([]string, error)
}

// Clock abstracts time.Now so scoring and scheduling are testable
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock
func SystemClock() Clock { return systemClock{} }
