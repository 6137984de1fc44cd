package services

import (
	"context"
	"fmt"
	"log"

	"guild-quest-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB      *gorm.DB
	Catalog []models.BadgeType
}

func NewBadgeService(db *gorm.DB, catalog []models.BadgeType) *BadgeService {
	return &BadgeService{DB: db, Catalog: catalog}
}

// SeedCatalog upserts the badge catalog so badge_types mirrors the embedded YAML.
func (s *BadgeService) SeedCatalog(ctx context.Context) error {
	if len(s.Catalog) == 0 {
		return nil
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "rarity", "threshold"}),
	}).Create(&s.Catalog).Error
	if err != nil {
		return fmt.Errorf("seed badge catalog: %w", err)
	}
	log.Printf("✅ Badge catalog seeded (%d badges)", len(s.Catalog))
	return nil
}

// AutoAwardBadges checks all badge triggers for a user after a progress update.
// Runs on the caller's transaction; returns the codes awarded by this call.
func (s *BadgeService) AutoAwardBadges(tx *gorm.DB, prog *models.UserProgress) ([]string, error) {
	var awarded []string
	for _, badge := range s.Catalog {
		if !meetsThreshold(prog, badge.Threshold) {
			continue
		}
		ub := models.UserBadge{
			ID:             uuid.NewString(),
			ExternalUserID: prog.ExternalUserID,
			BadgeCode:      badge.Code,
			Reason:         badge.Description,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ub)
		if res.Error != nil {
			return awarded, fmt.Errorf("award badge %s: %w", badge.Code, res.Error)
		}
		if res.RowsAffected == 1 {
			awarded = append(awarded, badge.Code)
			log.Printf("🎖️ Badge awarded: %s → %s", badge.Name, prog.ExternalUserID)
		}
	}
	return awarded, nil
}

func meetsThreshold(prog *models.UserProgress, req map[string]int64) bool {
	for key, required := range req {
		var have int64
		switch key {
		case "tasks_completed":
			have = prog.TotalTasksCompleted
		case "missions_won":
			have = prog.MissionsWon
		case "bosses_defeated":
			have = prog.BossesDefeated
		case "level":
			have = int64(prog.Level)
		case "total_xp":
			have = prog.TotalXP
		default:
			// unknown trigger never fires
			return false
		}
		if have < required {
			return false
		}
	}
	return len(req) > 0
}
