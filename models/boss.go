package models

import (
	"time"

	"guild-quest-engine/engine"
)

const (
	BossScopeUser  = "user"
	BossScopeGuild = "guild"
)

// Boss is a health pool fought by a single user. Guild missions keep their own
// shared HP on SpecialMission.
type Boss struct {
	ID         string     `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerScope string     `json:"owner_scope" gorm:"type:varchar(8);not null;default:'user'"`
	OwnerID    string     `json:"owner_id" gorm:"not null;index"`
	Level      int        `json:"level" gorm:"not null"`
	MaxHP      int64      `json:"max_hp" gorm:"not null"`
	CurrentHP  int64      `json:"current_hp" gorm:"not null;check:current_hp >= 0"`
	Defeated   bool       `json:"defeated" gorm:"not null;default:false;index"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	DefeatedAt *time.Time `json:"defeated_at,omitempty"`
}

func (b *Boss) Encounter() engine.Encounter {
	return engine.Encounter{
		MaxHP:      b.MaxHP,
		CurrentHP:  b.CurrentHP,
		Defeated:   b.Defeated,
		DefeatedAt: b.DefeatedAt,
	}
}

func (b *Boss) ApplyEncounter(e engine.Encounter) {
	b.CurrentHP = e.CurrentHP
	b.Defeated = e.Defeated
	b.DefeatedAt = e.DefeatedAt
}
