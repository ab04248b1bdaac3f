// Package database provides persistence for the promodeals-radar deal
// tracking system.
//
// This package includes:
//   - GORM/PostgreSQL connection management
//   - The DealRepository with transactional per-deal observation writes
//   - A typed accessor layer over the system_config key/value table
//   - A raw database/sql connection (lib/pq) used by the analytics subpackage
//
// Key Concepts:
//   - Per-deal atomicity: the deal upsert and its history append for one
//     cycle commit in a single transaction
//   - Monotonic max_rating_notified: the stored rating can only go up, and is
//     raised only after a successful notification fan-out
//   - Read-through config: numeric parameters are loaded fresh each cycle and
//     fall back to seed defaults when a key is missing
//
// Data Models:
//
//	All data models (Deal, DealHistory, SystemConfig, Subscriber) are defined
//	in the models_pkg package to avoid circular import dependencies.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "promodeals-radar/database/models_pkg"
)

// Database holds the GORM database connection and provides access to the
// underlying DB instance. It serves as the central connection point for all
// repository operations.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect establishes the database connection using GORM
func Connect(host string, port int, dbname, user, password string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Silent logging for production
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============================================================================
// Model Type Aliases
// ============================================================================

// These aliases let callers work with database.Deal etc. without importing
// the models_pkg package directly.

type Deal = models.Deal
type DealHistory = models.DealHistory
type SystemConfig = models.SystemConfig
type Subscriber = models.Subscriber
