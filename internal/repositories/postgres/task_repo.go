package postgres

import (
	"context"
	"time"

	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompleteTask describes one task completion. Questions are only used for
// position-based tasks; when set a pending interview is created and linked.
type CompleteTask struct {
	UserID    uint
	TaskID    uint
	Questions []string
	Now       time.Time
}

type CompletedTask struct {
	Task      models.Task
	User      models.User
	Interview *models.Interview
	// InterviewErr is set when the interview insert failed; the completion
	// itself still committed.
	InterviewErr error
}

type TaskRepository interface {
	Create(ctx context.Context, tasks ...*models.Task) error
	GetForUser(ctx context.Context, userID, id uint) (*models.Task, error)
	ListByUser(ctx context.Context, userID uint, status models.TaskStatus) ([]models.Task, error)
	Recent(ctx context.Context, userID uint, n int) ([]models.Task, error)
	Delete(ctx context.Context, userID, id uint) error
	Complete(ctx context.Context, p CompleteTask) (*CompletedTask, error)
}

type taskRepo struct {
	db *gorm.DB
}

func NewTaskRepo(db *gorm.DB) TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, tasks ...*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(tasks).Error
}

func (r *taskRepo) GetForUser(ctx context.Context, userID, id uint) (*models.Task, error) {
	var t models.Task
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// ListByUser returns newest first. An empty status lists everything.
func (r *taskRepo) ListByUser(ctx context.Context, userID uint, status models.TaskStatus) ([]models.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []models.Task
	err := q.Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *taskRepo) Recent(ctx context.Context, userID uint, n int) ([]models.Task, error) {
	if n <= 0 {
		n = 5
	}
	var rows []models.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(n).
		Find(&rows).Error
	return rows, err
}

func (r *taskRepo) Delete(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? AND user_id = ?", id, userID).Delete(&models.TaskNote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ? AND user_id = ?", id, userID).Delete(&models.TaskHighlight{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrNotFound
		}
		return nil
	})
}

// Complete marks the task completed, credits the reward to the user, and for
// position-based tasks creates the linked interview, all in one transaction.
// A second completion of the same task returns utils.ErrStateConflict.
func (r *taskRepo) Complete(ctx context.Context, p CompleteTask) (*CompletedTask, error) {
	if p.Now.IsZero() {
		p.Now = time.Now().UTC()
	}

	out := &CompletedTask{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ? AND user_id = ? AND status <> ?", p.TaskID, p.UserID, models.TaskStatusCompleted).
			Updates(map[string]any{
				"status":       models.TaskStatusCompleted,
				"completed_at": p.Now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Task{}).Where("id = ? AND user_id = ?", p.TaskID, p.UserID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return utils.ErrNotFound
			}
			return utils.ErrStateConflict
		}

		if err := tx.Where("id = ?", p.TaskID).Take(&out.Task).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", p.UserID).
			Take(&out.User).Error; err != nil {
			return translate(err)
		}
		out.User.GainExperience(out.Task.ExperienceReward)
		if err := tx.Model(&out.User).Updates(map[string]any{
			"experience_points": out.User.ExperiencePoints,
			"current_level":     out.User.CurrentLevel,
		}).Error; err != nil {
			return err
		}

		if out.Task.TaskType != models.TaskTypePositionBased || len(p.Questions) == 0 {
			return nil
		}

		// the interview is best effort: roll back to here on failure and
		// keep the completion
		if err := tx.SavePoint("task_interview").Error; err != nil {
			return err
		}
		iv, err := createLinkedInterview(tx, &out.Task, p.Questions)
		if err != nil {
			out.InterviewErr = err
			return tx.RollbackTo("task_interview").Error
		}
		out.Interview = iv
		out.Task.RelatedInterviewID = &iv.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func createLinkedInterview(tx *gorm.DB, task *models.Task, questions []string) (*models.Interview, error) {
	taskID := task.ID
	iv := &models.Interview{
		UserID:        task.UserID,
		InterviewType: models.InterviewTypeTaskBased,
		RelatedTaskID: &taskID,
		Questions:     questions,
		Status:        models.InterviewStatusPending,
	}
	if err := tx.Create(iv).Error; err != nil {
		return nil, err
	}

	res := tx.Model(&models.Task{}).
		Where("id = ? AND related_interview_id IS NULL", task.ID).
		Update("related_interview_id", iv.ID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrStateConflict
	}
	return iv, nil
}
