package models

import (
	"time"

	"gorm.io/datatypes"
)

// AreaStat is one subject area with its running average interview score.
type AreaStat struct {
	Area  string  `json:"area"`
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

type UserPreference struct {
	ID     uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID uint `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`

	PreferredLearningStyle string                      `gorm:"column:preferred_learning_style;type:varchar(50)" json:"preferred_learning_style"`
	PreferredDifficulty    string                      `gorm:"column:preferred_difficulty;type:varchar(20);default:medium" json:"preferred_difficulty"`
	PreferredQuestionTypes datatypes.JSONSlice[string] `gorm:"column:preferred_question_types;type:jsonb" json:"preferred_question_types"`

	CommunicationStyle datatypes.JSONMap `gorm:"column:communication_style;type:jsonb" json:"communication_style"`
	AITonePreference   string            `gorm:"column:ai_tone_preference;type:varchar(20);default:friendly" json:"ai_tone_preference"`

	WeakAreas       datatypes.JSONSlice[AreaStat] `gorm:"column:weak_areas;type:jsonb" json:"weak_areas"`
	StrongAreas     datatypes.JSONSlice[AreaStat] `gorm:"column:strong_areas;type:jsonb" json:"strong_areas"`
	LearningHistory datatypes.JSON                `gorm:"column:learning_history;type:jsonb" json:"learning_history"`

	CustomInstructions  string            `gorm:"column:custom_instructions;type:text" json:"custom_instructions"`
	FeedbackPreferences datatypes.JSONMap `gorm:"column:feedback_preferences;type:jsonb" json:"feedback_preferences"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (UserPreference) TableName() string { return "user_preferences" }

func NewUserPreference(userID uint) *UserPreference {
	return &UserPreference{
		UserID:              userID,
		PreferredDifficulty: "medium",
		AITonePreference:    "friendly",
		CommunicationStyle:  datatypes.JSONMap{},
		FeedbackPreferences: datatypes.JSONMap{},
	}
}

// RecordWeakness folds one interview score into the running average of area,
// appending the area when it is new.
func (p *UserPreference) RecordWeakness(area string, score float64) {
	for i := range p.WeakAreas {
		a := &p.WeakAreas[i]
		if a.Area != area {
			continue
		}
		a.Count++
		a.Score = (a.Score*float64(a.Count-1) + score) / float64(a.Count)
		return
	}
	p.WeakAreas = append(p.WeakAreas, AreaStat{Area: area, Score: score, Count: 1})
}

// WeakAreaNames returns up to n weak area names in stored order.
func (p *UserPreference) WeakAreaNames(n int) []string {
	if p == nil {
		return nil
	}
	var out []string
	for _, a := range p.WeakAreas {
		if len(out) == n {
			break
		}
		out = append(out, a.Area)
	}
	return out
}

type UserFeedback struct {
	ID           uint              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID       uint              `gorm:"column:user_id;not null;index" json:"user_id"`
	FeedbackType string            `gorm:"column:feedback_type;type:varchar(50);not null" json:"feedback_type"`
	Content      string            `gorm:"column:content;type:text" json:"content"`
	Rating       *int              `gorm:"column:rating" json:"rating"`
	Metadata     datatypes.JSONMap `gorm:"column:meta_data;type:jsonb" json:"metadata"`
	CreatedAt    time.Time         `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (UserFeedback) TableName() string { return "user_feedback" }
