package postgres

import (
	"context"

	"github.com/yoockh/xiaomian/internal/models"
	"gorm.io/gorm"
)

type KnowledgeRepository interface {
	// Search filters by position category only. An empty category matches all rows.
	Search(ctx context.Context, positionCategory string, limit int) ([]models.KnowledgeBase, error)
	Create(ctx context.Context, entries ...*models.KnowledgeBase) error
	Count(ctx context.Context, positionCategory string) (int64, error)
}

type knowledgeRepo struct {
	db *gorm.DB
}

func NewKnowledgeRepo(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepo{db: db}
}

func (r *knowledgeRepo) Search(ctx context.Context, positionCategory string, limit int) ([]models.KnowledgeBase, error) {
	if limit <= 0 {
		limit = 5
	}
	q := r.db.WithContext(ctx).Omit("embedding")
	if positionCategory != "" {
		q = q.Where("position_category = ?", positionCategory)
	}
	var rows []models.KnowledgeBase
	err := q.Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *knowledgeRepo) Create(ctx context.Context, entries ...*models.KnowledgeBase) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

func (r *knowledgeRepo) Count(ctx context.Context, positionCategory string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.KnowledgeBase{})
	if positionCategory != "" {
		q = q.Where("position_category = ?", positionCategory)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}
