package models

import "time"

// Deal represents one distinct listing URL observed on the source site.
// A deal is created on its first observation and mutated on every cycle after
// that: listing attributes are refreshed and max_rating_notified is raised as
// the deal climbs notification tiers.
//
// Key Fields:
//   - URL: canonical listing URL, the deal's identity (unique index)
//   - Expired: the source site marked the listing as expired
//   - MaxRatingNotified: highest fire rating (0-4) already pushed to
//     subscribers; monotonically non-decreasing, raised only after a
//     successful notification fan-out
//
// Temperature snapshots live in DealHistory, not here. Deals are never
// deleted by the radar itself; retention is an external concern. History rows
// cascade if a deal is purged externally.
type Deal struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	URL               string    `gorm:"uniqueIndex;not null" json:"url"`
	Title             string    `gorm:"type:text" json:"title"`
	Merchant          string    `gorm:"type:text" json:"merchant"`
	ImageURL          string    `gorm:"type:text" json:"image_url"`
	Price             string    `gorm:"type:text" json:"price"`    // display string from the site, e.g. "$1,299"
	Discount          string    `gorm:"type:text" json:"discount"` // e.g. "-35%"
	Coupon            string    `gorm:"type:text" json:"coupon"`
	Description       string    `gorm:"type:text" json:"description"`
	PublishedAt       time.Time `gorm:"index" json:"published_at"`
	Expired           bool      `gorm:"default:false" json:"expired"`
	MaxRatingNotified int       `gorm:"default:0;not null" json:"max_rating_notified"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	History []DealHistory `gorm:"foreignKey:DealID;constraint:OnDelete:CASCADE" json:"history,omitempty"`
}

// TableName specifies the table name for Deal
func (Deal) TableName() string {
	return "deals"
}

// DealHistory is one append-only time-series row per (deal, cycle).
//
// Key Fields:
//   - ObservedAt: wall-clock stamp of the cycle that produced the row
//   - Temperature: the site's popularity score at observation time
//   - Velocity: linear temperature gain in degrees per minute
//   - ViralScore: gravity-decayed score before multipliers
//   - FinalScore: ViralScore x acceleration x traffic-of-day
//
// For a given deal, rows are strictly increasing in ObservedAt. The "prior
// snapshot" used for acceleration is the most recent row strictly before the
// current observation.
type DealHistory struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DealID              int64     `gorm:"not null;index:idx_history_deal_observed,priority:1" json:"deal_id"`
	ObservedAt          time.Time `gorm:"not null;index:idx_history_deal_observed,priority:2,sort:desc" json:"observed_at"`
	Temperature         float64   `gorm:"type:decimal(10,2);not null" json:"temperature"`
	HoursSincePublished float64   `gorm:"type:decimal(10,4);not null" json:"hours_since_published"`
	Velocity            float64   `gorm:"type:decimal(12,6)" json:"velocity"`
	ViralScore          float64   `gorm:"type:decimal(12,4)" json:"viral_score"`
	FinalScore          float64   `gorm:"type:decimal(12,4)" json:"final_score"`
}

// TableName specifies the table name for DealHistory
func (DealHistory) TableName() string {
	return "deal_history"
}

// SystemConfig holds one named numeric parameter. Parameters are re-read
// every cycle so AutoTuner writes take effect without a restart. Unknown keys
// are preserved for external consumers.
type SystemConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     float64   `gorm:"type:decimal(12,4);not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for SystemConfig
func (SystemConfig) TableName() string {
	return "system_config"
}

// Subscriber is an opaque notification recipient. Rows are managed by the
// chat-bot side; the radar only reads the set to fan out.
type Subscriber struct {
	ChatID    string    `gorm:"primaryKey" json:"chat_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for Subscriber
func (Subscriber) TableName() string {
	return "subscribers"
}
