package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type InterviewType string

const (
	InterviewTypeTaskBased  InterviewType = "task_based"
	InterviewTypeStageBased InterviewType = "stage_based"
	InterviewTypeRemedial   InterviewType = "remedial"
)

func (t InterviewType) Valid() bool {
	switch t {
	case InterviewTypeTaskBased, InterviewTypeStageBased, InterviewTypeRemedial:
		return true
	}
	return false
}

// InterviewStatus moves pending -> completed. Reviewed exists in the schema
// but no flow reaches it.
type InterviewStatus string

const (
	InterviewStatusPending   InterviewStatus = "pending"
	InterviewStatusCompleted InterviewStatus = "completed"
	InterviewStatusReviewed  InterviewStatus = "reviewed"
)

func (s InterviewStatus) Valid() bool {
	switch s {
	case InterviewStatusPending, InterviewStatusCompleted, InterviewStatusReviewed:
		return true
	}
	return false
}

type Interview struct {
	ID            uint          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID        uint          `gorm:"column:user_id;not null;index" json:"user_id"`
	InterviewType InterviewType `gorm:"column:interview_type;type:varchar(20);not null" json:"interview_type"`
	RelatedTaskID *uint         `gorm:"column:related_task_id;index" json:"related_task_id"`
	StageNumber   *int          `gorm:"column:stage_number" json:"stage_number"`

	Questions  datatypes.JSONSlice[string] `gorm:"column:questions;type:jsonb" json:"questions"`
	Answers    datatypes.JSONSlice[string] `gorm:"column:answers;type:jsonb" json:"answers"`
	AIFeedback string                      `gorm:"column:ai_feedback;type:text" json:"ai_feedback"`
	Scores     datatypes.JSONMap           `gorm:"column:scores;type:jsonb" json:"scores"`
	Weaknesses pq.StringArray              `gorm:"column:weaknesses;type:text[]" json:"weaknesses"`
	TotalScore *float64                    `gorm:"column:total_score;type:numeric(5,2)" json:"total_score"`

	Status      InterviewStatus `gorm:"column:status;type:varchar(20);not null;default:pending;index" json:"status"`
	CreatedAt   time.Time       `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	CompletedAt *time.Time      `gorm:"column:completed_at;type:timestamptz" json:"completed_at"`
}

func (Interview) TableName() string { return "interviews" }

// Score returns the aggregate score, 0 when the interview was never scored.
func (i *Interview) Score() float64 {
	if i == nil || i.TotalScore == nil {
		return 0
	}
	return *i.TotalScore
}
