package postgres

import (
	"context"

	"github.com/yoockh/xiaomian/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferenceRepository interface {
	Get(ctx context.Context, userID uint) (*models.UserPreference, error)
	// Mutate loads the user's preference row under a row lock, creating it
	// when missing, applies fn, and saves the result.
	Mutate(ctx context.Context, userID uint, fn func(p *models.UserPreference)) (*models.UserPreference, error)
	// RecordFeedback stores fb and makes sure a preference row exists.
	RecordFeedback(ctx context.Context, fb *models.UserFeedback) error
}

type preferenceRepo struct {
	db *gorm.DB
}

func NewPreferenceRepo(db *gorm.DB) PreferenceRepository {
	return &preferenceRepo{db: db}
}

func (r *preferenceRepo) Get(ctx context.Context, userID uint) (*models.UserPreference, error) {
	var p models.UserPreference
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func ensurePreference(tx *gorm.DB, userID uint) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(models.NewUserPreference(userID)).Error
}

func (r *preferenceRepo) Mutate(ctx context.Context, userID uint, fn func(p *models.UserPreference)) (*models.UserPreference, error) {
	var p models.UserPreference
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePreference(tx, userID); err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Take(&p).Error; err != nil {
			return err
		}
		fn(&p)
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *preferenceRepo) RecordFeedback(ctx context.Context, fb *models.UserFeedback) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(fb).Error; err != nil {
			return err
		}
		return ensurePreference(tx, fb.UserID)
	})
}
