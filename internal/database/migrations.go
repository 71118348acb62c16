package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations executes the raw-SQL migrations that AutoMigrate cannot
// express: the FTS5 virtual table and secondary indexes.
//
// The FTS5 table is rowid-aligned with case_law: the index row for a
// record is always inserted with rowid = case_law.id, so delete-then-insert
// keyed by id keeps both stores in lockstep. Requires building with
// -tags sqlite_fts5.
func RunMigrations(db *gorm.DB) error {
	if err := createSearchIndex(db); err != nil {
		return fmt.Errorf("failed to create search index: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func createSearchIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS case_law_fts USING fts5(
			content,
			petitioner,
			respondent,
			citation,
			note,
			case_id UNINDEXED
		)
	`).Error
}

// createIndexes creates database indexes
func createIndexes(db *gorm.DB) error {
	// Index for the search result ordering
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_case_law_order
		ON case_law(decision_year DESC, created_at DESC)
	`).Error; err != nil {
		return err
	}

	// Index for classification filters
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_case_law_classification
		ON case_law(primary_type, subtype)
	`).Error; err != nil {
		return err
	}

	return nil
}
