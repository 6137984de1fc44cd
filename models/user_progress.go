package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress tracks gamified progression for each user (denormalized for performance).
// Level and Title are cached derivations of TotalXP and are only written together with it.
type UserProgress struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	// Core progression
	TotalXP     int64  `json:"total_xp" gorm:"not null;default:0;check:total_xp >= 0"`
	Level       int    `json:"level" gorm:"not null;default:0"`
	Title       string `json:"title" gorm:"type:varchar(32);not null;default:'Beginner'"`
	Coins       int64  `json:"coins" gorm:"not null;default:0"`
	PowerPoints int64  `json:"power_points" gorm:"not null;default:0"`

	// Activity counters
	TotalTasksCompleted int64 `json:"total_tasks_completed" gorm:"default:0"`
	MissionsWon         int64 `json:"missions_won" gorm:"default:0"`
	BossesDefeated      int64 `json:"bosses_defeated" gorm:"default:0"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
