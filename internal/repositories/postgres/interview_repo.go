package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InterviewResult is everything written when an interview is submitted.
type InterviewResult struct {
	Answers     []string
	Feedback    string
	Scores      map[string]any
	Weaknesses  []string
	TotalScore  float64
	CompletedAt time.Time
}

type InterviewRepository interface {
	Create(ctx context.Context, iv *models.Interview) error
	GetForUser(ctx context.Context, userID, id uint) (*models.Interview, error)
	ListByUser(ctx context.Context, userID uint, status models.InterviewStatus) ([]models.Interview, error)
	RecentCompleted(ctx context.Context, userID uint, n int) ([]models.Interview, error)
	Complete(ctx context.Context, userID, id uint, res InterviewResult) error
}

type interviewRepo struct {
	db *gorm.DB
}

func NewInterviewRepo(db *gorm.DB) InterviewRepository {
	return &interviewRepo{db: db}
}

func (r *interviewRepo) Create(ctx context.Context, iv *models.Interview) error {
	return r.db.WithContext(ctx).Create(iv).Error
}

func (r *interviewRepo) GetForUser(ctx context.Context, userID, id uint) (*models.Interview, error) {
	var iv models.Interview
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&iv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &iv, nil
}

func (r *interviewRepo) ListByUser(ctx context.Context, userID uint, status models.InterviewStatus) ([]models.Interview, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []models.Interview
	err := q.Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *interviewRepo) RecentCompleted(ctx context.Context, userID uint, n int) ([]models.Interview, error) {
	if n <= 0 {
		n = 5
	}
	var rows []models.Interview
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.InterviewStatusCompleted).
		Order("created_at DESC").
		Limit(n).
		Find(&rows).Error
	return rows, err
}

// Complete writes the scored result once. A row that is already completed is
// left untouched and utils.ErrStateConflict is returned.
func (r *interviewRepo) Complete(ctx context.Context, userID, id uint, res InterviewResult) error {
	if res.CompletedAt.IsZero() {
		res.CompletedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upd := tx.Model(&models.Interview{}).
			Where("id = ? AND user_id = ? AND status <> ?", id, userID, models.InterviewStatusCompleted).
			Updates(map[string]any{
				"answers":      datatypes.JSONSlice[string](res.Answers),
				"ai_feedback":  res.Feedback,
				"scores":       datatypes.JSONMap(res.Scores),
				"weaknesses":   pq.StringArray(res.Weaknesses),
				"total_score":  res.TotalScore,
				"status":       models.InterviewStatusCompleted,
				"completed_at": res.CompletedAt,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected > 0 {
			return nil
		}

		var n int64
		if err := tx.Model(&models.Interview{}).Where("id = ? AND user_id = ?", id, userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return utils.ErrNotFound
		}
		return utils.ErrStateConflict
	})
}
