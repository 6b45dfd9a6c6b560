package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// KnowledgeBase rows back the "ask" endpoint. Retrieval filters on
// position_category only; the embedding column is stored but never compared.
type KnowledgeBase struct {
	ID               uint              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title            string            `gorm:"column:title;type:varchar(200);not null" json:"title"`
	Content          string            `gorm:"column:content;type:text;not null" json:"content"`
	Category         string            `gorm:"column:category;type:varchar(100)" json:"category"`
	PositionCategory string            `gorm:"column:position_category;type:varchar(100);index" json:"position_category"`
	Embedding        *pgvector.Vector  `gorm:"column:embedding;type:vector(768)" json:"-"`
	Metadata         datatypes.JSONMap `gorm:"column:meta_data;type:jsonb" json:"metadata"`
	CreatedAt        time.Time         `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (KnowledgeBase) TableName() string { return "knowledge_base" }

// KnowledgeSource is the trimmed view returned alongside answers.
type KnowledgeSource struct {
	ID               uint   `json:"id"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	Category         string `json:"category"`
	PositionCategory string `json:"position_category"`
}

type TitleBenefit struct {
	ID        uint              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TitleName string            `gorm:"column:title_name;type:varchar(50);not null;uniqueIndex" json:"title_name"`
	MinLevel  int               `gorm:"column:min_level;not null" json:"min_level"`
	MaxLevel  *int              `gorm:"column:max_level" json:"max_level"`
	Benefits  datatypes.JSONMap `gorm:"column:benefits;type:jsonb" json:"benefits"`
}

func (TitleBenefit) TableName() string { return "title_benefits" }

// Covers reports whether level falls within the title's band.
func (t TitleBenefit) Covers(level int) bool {
	return t.MinLevel <= level && (t.MaxLevel == nil || *t.MaxLevel >= level)
}

// ResolveTitle picks the covering title with the highest min_level.
func ResolveTitle(titles []TitleBenefit, level int) (TitleBenefit, bool) {
	var best TitleBenefit
	found := false
	for _, t := range titles {
		if !t.Covers(level) {
			continue
		}
		if !found || t.MinLevel > best.MinLevel {
			best, found = t, true
		}
	}
	return best, found
}

func intPtr(v int) *int { return &v }

// DefaultTitleBenefits seeds an empty title_benefits table.
func DefaultTitleBenefits() []TitleBenefit {
	return []TitleBenefit{
		{TitleName: DefaultTitle, MinLevel: 1, MaxLevel: intPtr(4), Benefits: datatypes.JSONMap{"daily_interviews": 3}},
		{TitleName: "进阶者", MinLevel: 5, MaxLevel: intPtr(9), Benefits: datatypes.JSONMap{"daily_interviews": 5, "standard_answers": true}},
		{TitleName: "熟练者", MinLevel: 10, MaxLevel: intPtr(19), Benefits: datatypes.JSONMap{"daily_interviews": 10, "standard_answers": true, "resume_questions": true}},
		{TitleName: "面试达人", MinLevel: 20, Benefits: datatypes.JSONMap{"daily_interviews": -1, "standard_answers": true, "resume_questions": true}},
	}
}
