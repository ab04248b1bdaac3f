package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DealRepository provides all persistence operations for deals, history
// rows, system configuration and subscribers. Every method takes the
// caller's context so a hung query cannot outlive the cycle that issued it.
type DealRepository struct {
	db *Database
}

// NewDealRepository creates a new deal repository
func NewDealRepository(db *Database) *DealRepository {
	return &DealRepository{db: db}
}

// InitSchema performs auto-migration and seeds the configuration defaults
func (r *DealRepository) InitSchema(ctx context.Context) error {
	if err := r.db.db.WithContext(ctx).AutoMigrate(&Deal{}, &DealHistory{}, &SystemConfig{}, &Subscriber{}); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// The prior-snapshot lookup always scans (deal_id, observed_at DESC).
	r.db.db.WithContext(ctx).Exec(`
		CREATE INDEX IF NOT EXISTS idx_history_deal_observed
		ON deal_history (deal_id, observed_at DESC)
	`)

	if err := r.SeedConfig(ctx); err != nil {
		return fmt.Errorf("config seeding failed: %w", err)
	}

	return nil
}

// ObservationRecord carries everything one cycle persists for a single deal:
// the refreshed listing attributes and the scored history row.
type ObservationRecord struct {
	URL         string
	Title       string
	Merchant    string
	ImageURL    string
	Price       string
	Discount    string
	Coupon      string
	Description string
	PublishedAt time.Time
	Expired     bool

	ObservedAt          time.Time
	Temperature         float64
	HoursSincePublished float64
	Velocity            float64
	ViralScore          float64
	FinalScore          float64
}

// RecordObservation upserts the deal and appends its history row in one
// transaction: a mid-unit crash leaves either both applied or neither. The
// upsert refreshes mutable listing attributes and never touches
// max_rating_notified. Returns the deal ID and the max rating already
// notified, which the decision gate needs.
func (r *DealRepository) RecordObservation(ctx context.Context, rec *ObservationRecord) (int64, int, error) {
	var dealID int64
	var maxRating int

	err := r.db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deal := Deal{
			URL:         rec.URL,
			Title:       rec.Title,
			Merchant:    rec.Merchant,
			ImageURL:    rec.ImageURL,
			Price:       rec.Price,
			Discount:    rec.Discount,
			Coupon:      rec.Coupon,
			Description: rec.Description,
			PublishedAt: rec.PublishedAt,
			Expired:     rec.Expired,
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "merchant", "image_url", "price", "discount",
				"coupon", "description", "published_at", "expired", "updated_at",
			}),
		}).Create(&deal).Error; err != nil {
			return fmt.Errorf("upsert deal %s: %w", rec.URL, err)
		}

		// The conflict path does not reliably populate the model, so read
		// the identity and current rating back inside the transaction.
		var row struct {
			ID                int64
			MaxRatingNotified int
		}
		if err := tx.Model(&Deal{}).
			Select("id", "max_rating_notified").
			Where("url = ?", rec.URL).
			Take(&row).Error; err != nil {
			return fmt.Errorf("read back deal %s: %w", rec.URL, err)
		}

		history := DealHistory{
			DealID:              row.ID,
			ObservedAt:          rec.ObservedAt,
			Temperature:         rec.Temperature,
			HoursSincePublished: rec.HoursSincePublished,
			Velocity:            rec.Velocity,
			ViralScore:          rec.ViralScore,
			FinalScore:          rec.FinalScore,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("append history for deal %d: %w", row.ID, err)
		}

		dealID = row.ID
		maxRating = row.MaxRatingNotified
		return nil
	})
	if err != nil {
		return 0, 0, WrapDBError("RecordObservation", err)
	}

	return dealID, maxRating, nil
}

// snapshotRow joins a history row with the owning deal's URL for the
// batched latest-snapshot query.
type snapshotRow struct {
	URL string
	DealHistory
}

// LatestSnapshots returns the most recent history row per URL for the given
// batch. URLs with no history yet are absent from the map. Failing here means
// the store is unreachable, so the error wraps ErrStorageUnavailable and the
// orchestrator aborts the cycle.
func (r *DealRepository) LatestSnapshots(ctx context.Context, urls []string) (map[string]DealHistory, error) {
	snapshots := make(map[string]DealHistory)
	if len(urls) == 0 {
		return snapshots, nil
	}

	var rows []snapshotRow
	err := r.db.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (d.url) d.url AS url, h.*
		FROM deal_history h
		JOIN deals d ON d.id = h.deal_id
		WHERE d.url IN ?
		ORDER BY d.url, h.observed_at DESC
	`, urls).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: latest snapshots: %v", ErrStorageUnavailable, err)
	}

	for _, row := range rows {
		snapshots[row.URL] = row.DealHistory
	}
	return snapshots, nil
}

// RaiseMaxRating writes the new rating only if it exceeds the stored one,
// keeping max_rating_notified monotonically non-decreasing. Called only
// after a successful notification fan-out.
func (r *DealRepository) RaiseMaxRating(ctx context.Context, dealID int64, rating int) error {
	err := r.db.db.WithContext(ctx).Model(&Deal{}).
		Where("id = ? AND max_rating_notified < ?", dealID, rating).
		Update("max_rating_notified", rating).Error
	return WrapDBError("RaiseMaxRating", err)
}

// GetRecentDeals returns the most recently updated deals for the read API
func (r *DealRepository) GetRecentDeals(ctx context.Context, limit int) ([]Deal, error) {
	var deals []Deal
	query := r.db.db.WithContext(ctx).Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&deals).Error
	return deals, WrapDBError("GetRecentDeals", err)
}

// GetDealHistory returns a deal's history rows ordered oldest first
func (r *DealRepository) GetDealHistory(ctx context.Context, dealID int64, limit int) ([]DealHistory, error) {
	var rows []DealHistory
	query := r.db.db.WithContext(ctx).Where("deal_id = ?", dealID).Order("observed_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, WrapDBError("GetDealHistory", err)
}

// ============================================================================
// System configuration
// ============================================================================

// LoadConfigValues reads every system_config row into a map
func (r *DealRepository) LoadConfigValues(ctx context.Context) (map[string]float64, error) {
	var rows []SystemConfig
	if err := r.db.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: load config: %v", ErrStorageUnavailable, err)
	}

	values := make(map[string]float64, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

// LoadParams builds the typed cycle parameters from system_config, falling
// back to seed defaults for missing keys.
func (r *DealRepository) LoadParams(ctx context.Context) (Params, error) {
	values, err := r.LoadConfigValues(ctx)
	if err != nil {
		return Params{}, err
	}
	return ParamsFromMap(values), nil
}

// SaveConfigValues upserts the given parameters in one transaction. Keys not
// present in the map are left untouched, so unknown external keys survive.
func (r *DealRepository) SaveConfigValues(ctx context.Context, values map[string]float64) error {
	if len(values) == 0 {
		return nil
	}

	err := r.db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			row := SystemConfig{Key: key, Value: value}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("upsert config %s: %w", key, err)
			}
		}
		return nil
	})
	return WrapDBError("SaveConfigValues", err)
}

// SeedConfig inserts the seed defaults for any recognized key that is not
// already present. Existing values, tuned or hand-set, are never overwritten.
func (r *DealRepository) SeedConfig(ctx context.Context) error {
	for _, key := range []string{
		KeyViralThreshold, KeyMinSeedTemp, KeyGravity,
		KeyScoreTier4, KeyScoreTier3, KeyScoreTier2,
	} {
		value, _ := SeedDefault(key)
		row := SystemConfig{Key: key, Value: value}
		if err := r.db.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("seed config %s: %w", key, err)
		}
	}
	return nil
}

// ============================================================================
// Subscribers
// ============================================================================

// ListSubscribers returns every registered recipient chat ID
func (r *DealRepository) ListSubscribers(ctx context.Context) ([]string, error) {
	var chatIDs []string
	err := r.db.db.WithContext(ctx).Model(&Subscriber{}).Pluck("chat_id", &chatIDs).Error
	return chatIDs, WrapDBError("ListSubscribers", err)
}
