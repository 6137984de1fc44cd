package models

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// BadgeType: static config (loaded from the embedded YAML catalog)
type BadgeType struct {
	ID          string           `gorm:"primaryKey;type:uuid" yaml:"-" json:"id"`
	Code        string           `gorm:"uniqueIndex;not null" yaml:"code" json:"code"` // e.g., "FIRST_STEP", "MISSION_VICTOR"
	Name        string           `gorm:"not null" yaml:"name" json:"name"`
	Description string           `yaml:"description" json:"description"`
	Rarity      string           `gorm:"type:varchar(16);default:'common'" yaml:"rarity" json:"rarity"` // common, rare, epic, legendary
	Threshold   map[string]int64 `gorm:"serializer:json;type:text" yaml:"threshold" json:"threshold"`    // e.g., {"level": 10}
	CreatedAt   time.Time        `gorm:"autoCreateTime" yaml:"-" json:"created_at"`
}

// UserBadge: awarded instance
type UserBadge struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"not null;uniqueIndex:idx_user_badge,priority:1" json:"external_user_id"`
	BadgeCode      string    `gorm:"not null;uniqueIndex:idx_user_badge,priority:2" json:"badge_code"`
	AwardedAt      time.Time `gorm:"autoCreateTime" json:"awarded_at"`
	Reason         string    `json:"reason,omitempty"`
}

//go:embed badges.yaml
var badgeCatalogYAML []byte

// badgeNamespace keeps catalog ids stable across deployments.
var badgeNamespace = uuid.MustParse("6f1c5a52-3d0e-4c8f-9b7a-2e4d8c1f0a93")

// LoadBadgeCatalog parses the embedded catalog.
func LoadBadgeCatalog() ([]BadgeType, error) {
	var catalog []BadgeType
	if err := yaml.Unmarshal(badgeCatalogYAML, &catalog); err != nil {
		return nil, fmt.Errorf("parse badge catalog: %w", err)
	}
	seen := make(map[string]bool, len(catalog))
	for i := range catalog {
		b := &catalog[i]
		if b.Code == "" {
			return nil, fmt.Errorf("badge catalog entry %d has no code", i)
		}
		if seen[b.Code] {
			return nil, fmt.Errorf("duplicate badge code %q", b.Code)
		}
		seen[b.Code] = true
		b.ID = uuid.NewSHA1(badgeNamespace, []byte(b.Code)).String()
	}
	return catalog, nil
}
