package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/stwalsh4118/evercast/internal/models"
	"gorm.io/gorm"
)

const insertBatchSize = 100

// ContentRepository handles database operations for the content catalogue
type ContentRepository struct {
	db *DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// List returns the whole catalogue in import order
func (r *ContentRepository) List(ctx context.Context) ([]*models.ContentRecord, error) {
	var records []*models.ContentRecord
	result := r.db.WithContext(ctx).Order("position ASC, id ASC").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list content: %w", MapGormError(result.Error))
	}
	return records, nil
}

// GetByID retrieves a single content record
func (r *ContentRepository) GetByID(ctx context.Context, id string) (*models.ContentRecord, error) {
	var record models.ContentRecord
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&record)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &record, nil
}

// Count returns the number of stored records
func (r *ContentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.ContentRecord{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count content: %w", MapGormError(result.Error))
	}
	return count, nil
}

// Upsert inserts record or replaces the stored record with the same ID
func (r *ContentRepository) Upsert(ctx context.Context, record *models.ContentRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Save(record)
	if result.Error != nil {
		return fmt.Errorf("failed to save content: %w", MapGormError(result.Error))
	}
	return nil
}

// ReplaceAll swaps the whole catalogue for records in one transaction.
// Positions are rewritten to follow the slice order.
func (r *ContentRepository) ReplaceAll(ctx context.Context, records []*models.ContentRecord) error {
	for i, rec := range records {
		if err := validateRecord(rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		rec.Position = i
	}

	return r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ContentRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear content: %w", MapGormError(err))
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert content: %w", MapGormError(err))
		}
		return nil
	})
}

func validateRecord(rec *models.ContentRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidInput)
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if !models.ContentKind(rec.Kind).IsValid() {
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidInput, rec.ID, rec.Kind)
	}
	if strings.TrimSpace(rec.Category) == "" {
		return fmt.Errorf("%w: %s has no category", ErrInvalidInput, rec.ID)
	}
	if rec.Kind == string(models.KindStream) && (rec.SourceURL == nil || *rec.SourceURL == "") {
		return fmt.Errorf("%w: stream %s has no source url", ErrInvalidInput, rec.ID)
	}
	return nil
}
