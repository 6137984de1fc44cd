// models/mission.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"guild-quest-engine/engine"
)

// SpecialMission is a guild's 14-day cooperative fight against a shared boss.
type SpecialMission struct {
	ID             string               `json:"id" gorm:"primaryKey;type:uuid"`
	GuildID        string               `json:"guild_id" gorm:"not null;index"`
	LeaderID       string               `json:"leader_id" gorm:"not null"`
	StartDate      time.Time            `json:"start_date" gorm:"not null"`
	EndDate        time.Time            `json:"end_date" gorm:"not null;index"`
	InitialBossHP  int64                `json:"initial_boss_hp" gorm:"not null"`
	CurrentBossHP  int64                `json:"current_boss_hp" gorm:"not null;check:current_boss_hp >= 0"`
	Status         engine.MissionStatus `json:"status" gorm:"type:varchar(16);not null;default:'ACTIVE';index"`
	Successful     bool                 `json:"successful" gorm:"not null;default:false"`
	BossDefeatedAt *time.Time           `json:"boss_defeated_at,omitempty"`
	ClosedAt       *time.Time           `json:"closed_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time            `json:"updated_at" gorm:"autoUpdateTime"`

	Members []SpecialMissionProgress `json:"members,omitempty" gorm:"foreignKey:MissionID"`
}

func (m *SpecialMission) Encounter() engine.Encounter {
	return engine.Encounter{
		MaxHP:      m.InitialBossHP,
		CurrentHP:  m.CurrentBossHP,
		Defeated:   m.BossDefeatedAt != nil,
		DefeatedAt: m.BossDefeatedAt,
	}
}

func (m *SpecialMission) ApplyEncounter(e engine.Encounter) {
	m.CurrentBossHP = e.CurrentHP
	m.BossDefeatedAt = e.DefeatedAt
}

// SpecialMissionProgress is one member's scoreboard row for one mission.
type SpecialMissionProgress struct {
	ID                   string       `json:"id" gorm:"primaryKey;type:uuid"`
	MissionID            string       `json:"mission_id" gorm:"not null;uniqueIndex:idx_mission_member,priority:1"`
	UserID               string       `json:"user_id" gorm:"not null;uniqueIndex:idx_mission_member,priority:2"`
	ShopPurchases        int          `json:"shop_purchases" gorm:"not null;default:0;check:shop_purchases <= 5"`
	RegularBossHits      int          `json:"regular_boss_hits" gorm:"not null;default:0;check:regular_boss_hits <= 10"`
	EasyTasksCompleted   int          `json:"easy_tasks_completed" gorm:"not null;default:0;check:easy_tasks_completed <= 10"`
	OtherTasksCompleted  int          `json:"other_tasks_completed" gorm:"not null;default:0;check:other_tasks_completed <= 6"`
	HasNoUnresolvedTasks bool         `json:"has_no_unresolved_tasks" gorm:"not null;default:false"`
	DaysWithMessages     DaySetColumn `json:"days_with_messages" gorm:"type:text"`
	TotalDamageDealt     int64        `json:"total_damage_dealt" gorm:"not null;default:0"`
	RewardXP             int64        `json:"reward_xp" gorm:"not null;default:0"`
	CreatedAt            time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

func (p *SpecialMissionProgress) Tally() engine.Tally {
	days := engine.NewDaySet()
	for k := range p.DaysWithMessages {
		days[k] = struct{}{}
	}
	return engine.Tally{
		ShopPurchases:        p.ShopPurchases,
		RegularBossHits:      p.RegularBossHits,
		EasyTasksCompleted:   p.EasyTasksCompleted,
		OtherTasksCompleted:  p.OtherTasksCompleted,
		HasNoUnresolvedTasks: p.HasNoUnresolvedTasks,
		DaysWithMessages:     days,
		TotalDamageDealt:     p.TotalDamageDealt,
	}
}

func (p *SpecialMissionProgress) ApplyTally(t engine.Tally) {
	p.ShopPurchases = t.ShopPurchases
	p.RegularBossHits = t.RegularBossHits
	p.EasyTasksCompleted = t.EasyTasksCompleted
	p.OtherTasksCompleted = t.OtherTasksCompleted
	p.HasNoUnresolvedTasks = t.HasNoUnresolvedTasks
	p.DaysWithMessages = DaySetColumn(t.DaysWithMessages)
	p.TotalDamageDealt = t.TotalDamageDealt
}

// DaySetColumn stores a set of calendar days as a sorted, comma-separated list.
type DaySetColumn engine.DaySet

func (DaySetColumn) GormDataType() string { return "text" }

func (c DaySetColumn) Value() (driver.Value, error) {
	return strings.Join(engine.DaySet(c).Keys(), ","), nil
}

func (c *DaySetColumn) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("days_with_messages: unsupported type %T", src)
	}
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	*c = DaySetColumn(engine.NewDaySet(keys...))
	return nil
}

func (c DaySetColumn) MarshalJSON() ([]byte, error) {
	return json.Marshal(engine.DaySet(c).Keys())
}
