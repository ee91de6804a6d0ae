package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"webtestflow/recorder/internal/models"
)

// Gorm keeps recordings in a database table. Rows are hard-deleted on read, purge and
// clear so nothing outlives the browsing session.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&models.StoredRecording{}); err != nil {
		return nil, fmt.Errorf("failed to migrate recording table: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Put(ctx context.Context, key, sessionID string, steps []models.Step) error {
	rec := models.StoredRecording{Key: key, SessionID: sessionID}
	if err := rec.SetSteps(steps); err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("storage_key = ?", key).Delete(&models.StoredRecording{}).Error; err != nil {
			return fmt.Errorf("failed to replace recording %s: %w", key, err)
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to store recording %s: %w", key, err)
		}
		return nil
	})
}

func (g *Gorm) Take(ctx context.Context, key, sessionID string) ([]models.Step, error) {
	var steps []models.Step
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.StoredRecording
		if err := tx.Where("storage_key = ?", key).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load recording %s: %w", key, err)
		}
		if rec.SessionID != sessionID {
			return ErrSessionMismatch
		}
		decoded, err := rec.GetSteps()
		if err != nil {
			return fmt.Errorf("failed to decode recording %s: %w", key, err)
		}
		if err := tx.Unscoped().Delete(&rec).Error; err != nil {
			return fmt.Errorf("failed to consume recording %s: %w", key, err)
		}
		steps = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (g *Gorm) Purge(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	res := g.db.WithContext(ctx).Unscoped().Where("created_at < ?", cutoff).Delete(&models.StoredRecording{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge recordings: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (g *Gorm) Clear(ctx context.Context) error {
	if err := g.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Unscoped().Delete(&models.StoredRecording{}).Error; err != nil {
		return fmt.Errorf("failed to clear recordings: %w", err)
	}
	return nil
}
