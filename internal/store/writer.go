// Package store applies normalized batches to the relational store.
package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/caiqy/threatdigest/internal/models"
)

// PersistenceError reports a failed batch write. The transaction has been
// rolled back; no rows from the batch were retained.
type PersistenceError struct {
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: batch write failed: %v", e.Err)
}

// Unwrap exposes the underlying database error.
func (e *PersistenceError) Unwrap() error { return e.Err }

// Writer persists pulse and indicator batches with insert-or-replace
// semantics keyed on the primary key.
type Writer struct {
	db *gorm.DB
}

// NewWriter constructs a Writer backed by GORM.
func NewWriter(db *gorm.DB) *Writer { return &Writer{db: db} }

const writeBatchSize = 500

// Write applies both row sets in a single transaction. Pulses go first so
// indicator foreign keys always have a target; on any failure the whole
// batch rolls back and a PersistenceError is returned.
func (w *Writer) Write(ctx context.Context, pulses []models.Pulse, indicators []models.Indicator) error {
	if w == nil || w.db == nil {
		return &PersistenceError{Err: fmt.Errorf("nil database handle")}
	}
	if len(pulses) == 0 && len(indicators) == 0 {
		return nil
	}

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(pulses) > 0 {
			if errCreate := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).CreateInBatches(&pulses, writeBatchSize).Error; errCreate != nil {
				return fmt.Errorf("upsert pulses: %w", errCreate)
			}
		}
		if len(indicators) > 0 {
			if errCreate := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).CreateInBatches(&indicators, writeBatchSize).Error; errCreate != nil {
				return fmt.Errorf("upsert indicators: %w", errCreate)
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}
