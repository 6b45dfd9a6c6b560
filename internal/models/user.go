package models

import (
	"time"

	"github.com/lib/pq"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

const (
	DefaultTitle      = "新手"
	MinTargetPosition = 1
	MaxTargetPosition = 10
	// ExperiencePerLevel is the experience needed to advance one level.
	ExperiencePerLevel = 100
)

type User struct {
	ID           uint     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username     string   `gorm:"column:username;type:varchar(50);uniqueIndex;not null" json:"username"`
	Email        string   `gorm:"column:email;type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string   `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	Role         UserRole `gorm:"column:role;type:varchar(20);not null;default:user" json:"role"`

	TargetPositions pq.StringArray `gorm:"column:target_positions;type:text[]" json:"target_positions"`

	CurrentLevel     int    `gorm:"column:current_level;not null;default:1" json:"current_level"`
	ExperiencePoints int    `gorm:"column:experience_points;not null;default:0" json:"experience_points"`
	Title            string `gorm:"column:title;type:varchar(50)" json:"title"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// PrimaryPosition is the first target position, or "" when none is set.
func (u *User) PrimaryPosition() string {
	if u == nil || len(u.TargetPositions) == 0 {
		return ""
	}
	return u.TargetPositions[0]
}

// Positions never returns nil so JSON renders an empty list.
func (u *User) Positions() []string {
	if u == nil || u.TargetPositions == nil {
		return []string{}
	}
	return []string(u.TargetPositions)
}

// GainExperience adds xp and raises the level when the new total warrants it.
// Levels never go down.
func (u *User) GainExperience(xp int) {
	u.ExperiencePoints += xp
	if lvl := LevelFor(u.ExperiencePoints); lvl > u.CurrentLevel {
		u.CurrentLevel = lvl
	}
}

func LevelFor(experience int) int {
	if experience < 0 {
		experience = 0
	}
	return experience/ExperiencePerLevel + 1
}
