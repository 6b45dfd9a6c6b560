package models

import "time"

type TaskType string

const (
	TaskTypeCustom        TaskType = "custom"
	TaskTypeRemedial      TaskType = "remedial"
	TaskTypePositionBased TaskType = "position_based"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeCustom, TaskTypeRemedial, TaskTypePositionBased:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusExpired    TaskStatus = "expired"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusExpired:
		return true
	}
	return false
}

// Difficulty and reward presets per task origin.
const (
	CustomTaskDifficulty   = 1
	CustomTaskReward       = 10
	RemedialTaskDifficulty = 2
	RemedialTaskReward     = 15
	PositionTaskDifficulty = 3
	PositionTaskReward     = 20
)

type Task struct {
	ID                 uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID             uint       `gorm:"column:user_id;not null;index" json:"user_id"`
	TaskType           TaskType   `gorm:"column:task_type;type:varchar(20);not null" json:"task_type"`
	Title              string     `gorm:"column:title;type:varchar(200);not null" json:"title"`
	Description        string     `gorm:"column:description;type:text" json:"description"`
	PositionCategory   string     `gorm:"column:position_category;type:varchar(100)" json:"position_category"`
	DifficultyLevel    int        `gorm:"column:difficulty_level;not null;default:1" json:"difficulty_level"`
	ExperienceReward   int        `gorm:"column:experience_reward;not null;default:10" json:"experience_reward"`
	Status             TaskStatus `gorm:"column:status;type:varchar(20);not null;default:pending;index" json:"status"`
	RelatedInterviewID *uint      `gorm:"column:related_interview_id" json:"related_interview_id"`
	CreatedAt          time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	CompletedAt        *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at"`
}

func (Task) TableName() string { return "tasks" }

type TaskNote struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TaskID       uint      `gorm:"column:task_id;not null;index" json:"task_id"`
	UserID       uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Content      string    `gorm:"column:content;type:text;not null" json:"content"`
	SelectedText *string   `gorm:"column:selected_text;type:text" json:"selected_text"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (TaskNote) TableName() string { return "task_notes" }

type TaskHighlight struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TaskID    uint      `gorm:"column:task_id;not null;index" json:"task_id"`
	UserID    uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Text      string    `gorm:"column:text;type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (TaskHighlight) TableName() string { return "task_highlights" }
