// Package analytics runs the AutoTuner's aggregate queries against the raw
// SQL connection. The queries only read deal_history, so they stay off the
// GORM models and out of the hunter's transaction path.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository handles the historical-outcome queries the AutoTuner feeds on
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new analytics repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EarliestWinnerScores returns, for every deal that eventually reached
// minTemp degrees, the viral score of its earliest history row. Only deals
// with at least one row older than minAgeHours qualify, so half-finished
// lifetimes do not skew the tuning.
func (r *Repository) EarliestWinnerScores(ctx context.Context, minTemp, minAgeHours float64) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH winners AS (
			SELECT deal_id FROM deal_history
			GROUP BY deal_id
			HAVING MAX(temperature) >= $1
			   AND MIN(observed_at) <= NOW() - ($2 * INTERVAL '1 hour')
		),
		first_rows AS (
			SELECT DISTINCT ON (deal_id) viral_score
			FROM deal_history
			WHERE deal_id IN (SELECT deal_id FROM winners)
			ORDER BY deal_id, observed_at ASC
		)
		SELECT viral_score FROM first_rows
	`, minTemp, minAgeHours)
	if err != nil {
		return nil, fmt.Errorf("earliest winner scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("scan winner score: %w", err)
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

// CheckpointConversion counts deals that had temperature >= floor within the
// first checkpointHours of their life, and how many of those eventually
// reached 200 and 500 degrees. This feeds the golden-ratio report.
func (r *Repository) CheckpointConversion(ctx context.Context, checkpointHours, floor float64) (total, reached200, reached500 int64, err error) {
	err = r.db.QueryRowContext(ctx, `
		WITH qualified AS (
			SELECT DISTINCT deal_id FROM deal_history
			WHERE hours_since_published <= $1 AND temperature >= $2
		),
		outcomes AS (
			SELECT h.deal_id, MAX(h.temperature) AS max_temp
			FROM deal_history h
			JOIN qualified q ON q.deal_id = h.deal_id
			GROUP BY h.deal_id
		)
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE max_temp >= 200),
		       COUNT(*) FILTER (WHERE max_temp >= 500)
		FROM outcomes
	`, checkpointHours, floor).Scan(&total, &reached200, &reached500)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("checkpoint conversion: %w", err)
	}
	return total, reached200, reached500, nil
}

// PositiveVelocities returns every positive linear velocity recorded in the
// last 30 days, for the legacy velocity percentile keys.
func (r *Repository) PositiveVelocities(ctx context.Context) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT velocity FROM deal_history
		WHERE velocity > 0 AND observed_at >= NOW() - INTERVAL '30 days'
	`)
	if err != nil {
		return nil, fmt.Errorf("positive velocities: %w", err)
	}
	defer rows.Close()

	var velocities []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan velocity: %w", err)
		}
		velocities = append(velocities, v)
	}
	return velocities, rows.Err()
}
