package postgres

import (
	"context"

	"github.com/yoockh/xiaomian/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResumeRepository interface {
	// ReplaceActive deactivates the user's current résumé and inserts r as
	// the single active one, with the next version number.
	// Uploads of one user are serialised on the user row; a partial unique
	// index backs the single active row and surfaces as utils.ErrDuplicate.
	ReplaceActive(ctx context.Context, r *models.Resume) error
	Active(ctx context.Context, userID uint) (*models.Resume, error)
	CountActive(ctx context.Context, userID uint) (int64, error)
}

type resumeRepo struct {
	db *gorm.DB
}

func NewResumeRepo(db *gorm.DB) ResumeRepository {
	return &resumeRepo{db: db}
}

func (r *resumeRepo) ReplaceActive(ctx context.Context, res *models.Resume) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serialises uploads of the same user
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Take(&models.User{}, res.UserID).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Resume{}).
			Where("user_id = ? AND is_active = 1", res.UserID).
			Update("is_active", 0).Error; err != nil {
			return err
		}

		var maxVersion int
		if err := tx.Model(&models.Resume{}).
			Where("user_id = ?", res.UserID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}

		res.IsActive = 1
		res.Version = maxVersion + 1
		return tx.Create(res).Error
	})
	return translate(err)
}

func (r *resumeRepo) Active(ctx context.Context, userID uint) (*models.Resume, error) {
	var res models.Resume
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = 1", userID).
		Order("created_at DESC").
		Take(&res).Error
	if err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

func (r *resumeRepo) CountActive(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Resume{}).
		Where("user_id = ? AND is_active = 1", userID).
		Count(&n).Error
	return n, err
}
