// models/task.go
package models

import (
	"time"

	"guild-quest-engine/engine"
)

const (
	RecurrenceDay   = "day"
	RecurrenceWeek  = "week"
	RecurrenceMonth = "month"
)

// Task is a user-owned real-world task. XPValue is frozen at creation/edit time
// and is never recomputed on completion.
type Task struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerID     string `json:"owner_id" gorm:"not null;index:idx_task_owner_day,priority:1"`
	CategoryID  string `json:"category_id,omitempty" gorm:"index"`
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description,omitempty" gorm:"type:text"`

	Difficulty engine.Difficulty `json:"difficulty" gorm:"type:varchar(16);not null;index"`
	Importance engine.Importance `json:"importance" gorm:"type:varchar(16);not null;index"`
	XPValue    int64             `json:"xp_value" gorm:"not null"`
	Status     engine.TaskStatus `json:"status" gorm:"type:varchar(16);not null;default:'active';index"`

	// 🔁 Recurrence descriptor (interval 0 = one-off)
	RecurrenceInterval int        `json:"recurrence_interval" gorm:"default:0"`
	RecurrenceUnit     string     `json:"recurrence_unit,omitempty" gorm:"type:varchar(8)"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`

	// Calendar day (caller's local date) the task was created on; quota windows count on it.
	CreatedOn string `json:"created_on" gorm:"type:varchar(10);not null;index:idx_task_owner_day,priority:2"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TaskCompletion is the immutable audit record of a completion.
type TaskCompletion struct {
	ID             string    `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID         string    `json:"task_id" gorm:"uniqueIndex;not null"`
	UserID         string    `json:"user_id" gorm:"index;not null"`
	CompletionDate string    `json:"completion_date" gorm:"type:varchar(10);not null;index"`
	XPEarned       int64     `json:"xp_earned" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}
