package postgres

import (
	"context"

	"github.com/yoockh/xiaomian/internal/models"
	"gorm.io/gorm"
)

type TitleRepository interface {
	List(ctx context.Context) ([]models.TitleBenefit, error)
	// SeedIfEmpty inserts defaults when the table has no rows.
	SeedIfEmpty(ctx context.Context, defaults []models.TitleBenefit) (bool, error)
}

type titleRepo struct {
	db *gorm.DB
}

func NewTitleRepo(db *gorm.DB) TitleRepository {
	return &titleRepo{db: db}
}

func (r *titleRepo) List(ctx context.Context) ([]models.TitleBenefit, error) {
	var rows []models.TitleBenefit
	err := r.db.WithContext(ctx).Order("min_level ASC").Find(&rows).Error
	return rows, err
}

func (r *titleRepo) SeedIfEmpty(ctx context.Context, defaults []models.TitleBenefit) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.TitleBenefit{}).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 || len(defaults) == 0 {
		return false, nil
	}
	return true, r.db.WithContext(ctx).Create(&defaults).Error
}
