package postgres

import (
	"context"

	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/utils"
	"gorm.io/gorm"
)

// TaskAnnotationRepository stores the notes and highlights a user attaches
// to a task while studying it.
type TaskAnnotationRepository interface {
	ListNotes(ctx context.Context, userID, taskID uint) ([]models.TaskNote, error)
	CreateNote(ctx context.Context, n *models.TaskNote) error
	DeleteNote(ctx context.Context, userID, taskID, noteID uint) error

	ListHighlights(ctx context.Context, userID, taskID uint) ([]models.TaskHighlight, error)
	CreateHighlight(ctx context.Context, h *models.TaskHighlight) error
	DeleteHighlight(ctx context.Context, userID, taskID, highlightID uint) error
}

type taskAnnotationRepo struct {
	db *gorm.DB
}

func NewTaskAnnotationRepo(db *gorm.DB) TaskAnnotationRepository {
	return &taskAnnotationRepo{db: db}
}

func (r *taskAnnotationRepo) ListNotes(ctx context.Context, userID, taskID uint) ([]models.TaskNote, error) {
	var rows []models.TaskNote
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *taskAnnotationRepo) CreateNote(ctx context.Context, n *models.TaskNote) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *taskAnnotationRepo) DeleteNote(ctx context.Context, userID, taskID, noteID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND task_id = ? AND user_id = ?", noteID, taskID, userID).
		Delete(&models.TaskNote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *taskAnnotationRepo) ListHighlights(ctx context.Context, userID, taskID uint) ([]models.TaskHighlight, error) {
	var rows []models.TaskHighlight
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *taskAnnotationRepo) CreateHighlight(ctx context.Context, h *models.TaskHighlight) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *taskAnnotationRepo) DeleteHighlight(ctx context.Context, userID, taskID, highlightID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND task_id = ? AND user_id = ?", highlightID, taskID, userID).
		Delete(&models.TaskHighlight{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
