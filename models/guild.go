package models

import (
	"time"
)

// Guild is a local snapshot of a guild owned by the social service.
// Populated via the roster sync worker.
type Guild struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	LeaderID  string    `gorm:"index;not null" json:"leader_id"` // ExternalUserID of the leader
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// GuildMember maps a user to the guild they currently belong to. A user is in at most one guild.
type GuildMember struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	GuildID        string     `gorm:"index;not null" json:"guild_id"`
	ExternalUserID string     `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string     `gorm:"index" json:"username"`
	Active         bool       `gorm:"not null" json:"active"`
	JoinedAt       time.Time  `json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// ShopPurchase mirrors purchases made in the shop service.
// Rows are inserted once; the insert decides whether a mission contribution is recorded.
type ShopPurchase struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"` // purchase id from the shop service
	UserID      string    `gorm:"index;not null" json:"user_id"`
	ItemCode    string    `gorm:"type:varchar(64)" json:"item_code"`
	Price       int64     `json:"price"`
	PurchasedAt time.Time `gorm:"not null;index" json:"purchased_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
